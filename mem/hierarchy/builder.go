package hierarchy

import (
	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/mem/cache"
)

// A Builder can build memory hierarchies.
type Builder struct {
	levels      []*cache.Level
	storage     mem.BackingStore
	writePolicy WritePolicy
}

// MakeBuilder creates a builder for a write-allocate hierarchy.
func MakeBuilder() Builder {
	return Builder{
		writePolicy: WriteAllocate,
	}
}

// WithLevel appends a level, farther from the processor than the levels
// added before it.
func (b Builder) WithLevel(level *cache.Level) Builder {
	b.levels = append(b.levels[:len(b.levels):len(b.levels)], level)
	return b
}

// WithStorage sets the memory below the last level. If not set, an unlimited
// Storage is created.
func (b Builder) WithStorage(storage mem.BackingStore) Builder {
	b.storage = storage
	return b
}

// WithWritePolicy sets the behavior on write misses.
func (b Builder) WithWritePolicy(policy WritePolicy) Builder {
	b.writePolicy = policy
	return b
}

// Build creates the hierarchy.
func (b Builder) Build() (*Hierarchy, error) {
	if len(b.levels) == 0 {
		return nil, mem.NewConfigError("levels", "must have at least one level")
	}

	names := make(map[string]bool)
	for _, l := range b.levels {
		if names[l.Name()] {
			return nil, mem.NewConfigError("levels",
				"has duplicated level name %q", l.Name())
		}

		names[l.Name()] = true
	}

	h := &Hierarchy{
		levels:      b.levels,
		storage:     b.storage,
		writePolicy: b.writePolicy,
	}

	if h.storage == nil {
		h.storage = mem.NewStorage(0)
	}

	return h, nil
}
