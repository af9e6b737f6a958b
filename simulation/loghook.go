package simulation

import (
	"log"
	"strings"

	"github.com/sarchlab/memhier/sim"
)

// LogHook prints one line per access.
type LogHook struct {
	sim.LogHookBase
}

// NewLogHook creates a LogHook that writes to logger. A nil logger selects
// the standard logger.
func NewLogHook(logger *log.Logger) *LogHook {
	return &LogHook{LogHookBase: sim.NewLogHookBase(logger)}
}

// Func prints the access.
func (h *LogHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != HookPosAccess {
		return
	}

	rec, ok := ctx.Item.(AccessRecord)
	if !ok {
		return
	}

	line := new(strings.Builder)
	line.WriteString(string(rec.Kind))

	for i, o := range rec.Outcomes {
		line.WriteString(" ")
		line.WriteString(rec.Levels[i])
		line.WriteString(":")
		line.WriteString(o.String())
	}

	h.Printf("#%d vaddr=0x%x paddr=0x%x fault=%t tlb=%t %s",
		rec.Seq, rec.VAddr, rec.PAddr, rec.PageFault, rec.TLBHit, line)
}
