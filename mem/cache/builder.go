package cache

import (
	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/mem/cache/internal/tagging"
)

// Builder can build cache levels.
type Builder struct {
	byteSize         uint64
	blockSize        uint64
	wayAssociativity int
	fullyAssociative bool
}

// MakeBuilder creates a new builder for a 16 KiB, 4-way cache with 64-byte
// blocks.
func MakeBuilder() Builder {
	return Builder{
		byteSize:         16 * mem.KB,
		blockSize:        64,
		wayAssociativity: 4,
	}
}

// WithByteSize sets the capacity of the cache.
func (b Builder) WithByteSize(byteSize uint64) Builder {
	b.byteSize = byteSize
	return b
}

// WithBlockSize sets the size of a cache line.
func (b Builder) WithBlockSize(blockSize uint64) Builder {
	b.blockSize = blockSize
	return b
}

// WithLog2BlockSize sets the size of a cache line as a power of two.
func (b Builder) WithLog2BlockSize(log2BlockSize uint64) Builder {
	b.blockSize = 1 << log2BlockSize
	return b
}

// WithWayAssociativity sets the number of ways of each set.
func (b Builder) WithWayAssociativity(wayAssociativity int) Builder {
	b.wayAssociativity = wayAssociativity
	b.fullyAssociative = false

	return b
}

// WithDirectMapped makes every set hold a single block.
func (b Builder) WithDirectMapped() Builder {
	return b.WithWayAssociativity(1)
}

// WithFullyAssociative makes the cache a single set holding every block.
func (b Builder) WithFullyAssociative() Builder {
	b.fullyAssociative = true
	return b
}

// Build builds a cache level.
func (b Builder) Build(name string) (*Level, error) {
	b = b.resolve()

	if err := b.Validate(); err != nil {
		return nil, err
	}

	numWays := b.wayAssociativity
	numSets := int(b.byteSize / (b.blockSize * uint64(numWays)))

	l := &Level{
		name:         name,
		byteSize:     b.byteSize,
		blockSize:    b.blockSize,
		tags:         tagging.NewTagArray(numSets, numWays, int(b.blockSize)),
		victimFinder: tagging.NewLRUVictimFinder(),
	}

	l.dataStore = make([][]byte, numSets*numWays)
	for i := range l.dataStore {
		l.dataStore[i] = make([]byte, b.blockSize)
	}

	return l, nil
}

func (b Builder) resolve() Builder {
	if b.fullyAssociative && b.blockSize != 0 {
		b.wayAssociativity = int(b.byteSize / b.blockSize)
	}

	return b
}

// Validate checks the geometry without allocating the level.
func (b Builder) Validate() error {
	b = b.resolve()

	if !mem.IsPowerOfTwo(b.blockSize) {
		return mem.NewConfigError("block_size",
			"must be a power of two, got %d", b.blockSize)
	}

	if b.wayAssociativity < 1 {
		return mem.NewConfigError("associativity",
			"must be at least 1, got %d", b.wayAssociativity)
	}

	setSize := b.blockSize * uint64(b.wayAssociativity)
	if b.byteSize == 0 || b.byteSize%setSize != 0 {
		return mem.NewConfigError("size",
			"%d must hold an integer number of %d-way sets of %d-byte blocks",
			b.byteSize, b.wayAssociativity, b.blockSize)
	}

	numSets := b.byteSize / setSize
	if !mem.IsPowerOfTwo(numSets) {
		return mem.NewConfigError("size",
			"gives %d sets, which is not a power of two", numSets)
	}

	return nil
}
