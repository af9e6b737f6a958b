package trace

import (
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/memhier/mem/vm"
	"github.com/sarchlab/memhier/simulation"
)

// Apply performs the access on a simulation.
func (o Op) Apply(s *simulation.Simulation) error {
	var err error

	switch o.Kind {
	case Read:
		_, err = s.Read(o.Addr)
	case Write:
		_, err = s.WriteWord(o.Addr, o.Value)
	case Translate:
		_, err = s.TranslateAddress(o.Addr)
	default:
		panic(fmt.Sprintf("unknown access kind %d", o.Kind))
	}

	if err != nil {
		return fmt.Errorf("trace line %d: %w", o.Line, err)
	}

	return nil
}

// A Summary counts what a replay did.
type Summary struct {
	Ops        int
	PageFaults int
}

// Replay applies every access of a trace in order. Accesses that fail with a
// page fault are counted and skipped. Any other error stops the replay.
func Replay(s *simulation.Simulation, r io.Reader) (Summary, error) {
	var summary Summary

	reader := NewReader(r)

	for {
		op, err := reader.Next()
		if err == io.EOF {
			return summary, nil
		}

		if err != nil {
			return summary, err
		}

		summary.Ops++

		err = op.Apply(s)

		var pageFault *vm.PageFaultError
		if errors.As(err, &pageFault) {
			summary.PageFaults++
			continue
		}

		if err != nil {
			return summary, err
		}
	}
}
