package vm

import "fmt"

// PagePolicy decides what happens when a virtual page has no entry.
type PagePolicy int

const (
	// AllocateOnFirstUse assigns a fresh frame to an unmapped page. The
	// access reports a page fault but always succeeds.
	AllocateOnFirstUse PagePolicy = iota

	// FailOnUnmapped returns a PageFaultError for unmapped pages.
	FailOnUnmapped
)

func (p PagePolicy) String() string {
	switch p {
	case AllocateOnFirstUse:
		return "allocate-on-first-use"
	case FailOnUnmapped:
		return "fail-on-unmapped"
	default:
		return fmt.Sprintf("PagePolicy(%d)", int(p))
	}
}

// ParsePagePolicy converts the configuration string of a policy. An empty
// string selects AllocateOnFirstUse.
func ParsePagePolicy(s string) (PagePolicy, error) {
	switch s {
	case "", "allocate-on-first-use":
		return AllocateOnFirstUse, nil
	case "fail-on-unmapped":
		return FailOnUnmapped, nil
	default:
		return 0, fmt.Errorf("unknown page policy %q", s)
	}
}

// FrameAllocation decides how frames are picked for allocated pages.
type FrameAllocation int

const (
	// Sequential hands out frames in increasing order. Frames are never
	// recycled and physical memory is unlimited.
	Sequential FrameAllocation = iota

	// Identity maps each virtual page to the frame with the same number.
	Identity
)

func (a FrameAllocation) String() string {
	switch a {
	case Sequential:
		return "sequential"
	case Identity:
		return "identity"
	default:
		return fmt.Sprintf("FrameAllocation(%d)", int(a))
	}
}

// ParseFrameAllocation converts the configuration string of an allocation
// scheme. An empty string selects Sequential.
func ParseFrameAllocation(s string) (FrameAllocation, error) {
	switch s {
	case "", "sequential":
		return Sequential, nil
	case "identity":
		return Identity, nil
	default:
		return 0, fmt.Errorf("unknown frame allocation %q", s)
	}
}
