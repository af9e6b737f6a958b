package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/memhier/sim"
	"github.com/sarchlab/memhier/simulation"
)

// CollectTrace lets the tracer collect the accesses of a domain.
func CollectTrace(domain sim.Hookable, tracer Tracer) {
	isComparable := reflect.TypeOf(tracer).Comparable()

	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && isComparable && hook.t == tracer {
			panic(fmt.Sprintf("domain already has tracer %s",
				reflect.TypeOf(tracer)))
		}
	}

	domain.AcceptHook(&traceHook{t: tracer})
}

// A traceHook forwards accesses to a tracer.
type traceHook struct {
	t Tracer
}

// Func calls the tracer when an access completes.
func (h *traceHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != simulation.HookPosAccess {
		return
	}

	h.t.RecordAccess(NewAccessEntry(ctx.Item.(simulation.AccessRecord)))
}
