package hierarchy

import "fmt"

// WritePolicy decides whether a write miss brings the block into a level.
type WritePolicy int

const (
	// WriteAllocate fills the block into every level that missed on a write.
	WriteAllocate WritePolicy = iota

	// NoWriteAllocate only updates the levels that already hold the block.
	NoWriteAllocate
)

func (p WritePolicy) String() string {
	switch p {
	case WriteAllocate:
		return "allocate-on-write-miss"
	case NoWriteAllocate:
		return "no-allocate-on-write-miss"
	default:
		return fmt.Sprintf("WritePolicy(%d)", int(p))
	}
}

// ParseWritePolicy converts the configuration string of a policy. An empty
// string selects WriteAllocate.
func ParseWritePolicy(s string) (WritePolicy, error) {
	switch s {
	case "", "allocate-on-write-miss", "write-allocate":
		return WriteAllocate, nil
	case "no-allocate-on-write-miss", "no-write-allocate":
		return NoWriteAllocate, nil
	default:
		return 0, fmt.Errorf("unknown write policy %q", s)
	}
}

// Outcome is what happened at one level during an access.
type Outcome int

const (
	// Miss means the level did not hold the block.
	Miss Outcome = iota

	// Hit means the level held the block.
	Hit

	// Skipped means the level was not consulted because a nearer level hit.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Miss:
		return "miss"
	case Hit:
		return "hit"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes an outcome encoded by MarshalText.
func (o *Outcome) UnmarshalText(text []byte) error {
	for _, candidate := range []Outcome{Miss, Hit, Skipped} {
		if candidate.String() == string(text) {
			*o = candidate
			return nil
		}
	}

	return fmt.Errorf("unknown outcome %q", text)
}
