package tlb

import (
	"github.com/sarchlab/memhier/mem"
)

// A Builder can build TLBs.
type Builder struct {
	numSets int
	numWays int
}

// MakeBuilder returns a Builder with a single 32-way set.
func MakeBuilder() Builder {
	return Builder{
		numSets: 1,
		numWays: 32,
	}
}

// WithNumSets sets the number of sets in the TLB.
func (b Builder) WithNumSets(n int) Builder {
	b.numSets = n
	return b
}

// WithNumWays sets the associativity of the TLB.
func (b Builder) WithNumWays(n int) Builder {
	b.numWays = n
	return b
}

// Build creates a new TLB.
func (b Builder) Build() (*TLB, error) {
	if b.numSets < 1 {
		return nil, mem.NewConfigError("tlb.sets",
			"must be at least 1, got %d", b.numSets)
	}

	if b.numWays < 1 {
		return nil, mem.NewConfigError("tlb.ways",
			"must be at least 1, got %d", b.numWays)
	}

	t := &TLB{
		numSets: b.numSets,
		numWays: b.numWays,
	}
	t.Reset()

	return t, nil
}
