// Package hierarchy chains cache levels in front of a backing store.
//
// All levels are write-through: every write reaches the backing store before
// the access completes. The backing store therefore always agrees with every
// valid block, which is why blocks are filled from it.
package hierarchy

import (
	"fmt"

	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/mem/cache"
)

// A ReadResult carries the data read and the outcome at each level.
type ReadResult struct {
	Data     []byte
	Outcomes []Outcome

	// HitLevel is the index of the level that served the read, or -1 when
	// the read went to the backing store.
	HitLevel int
}

// Hierarchy is an ordered chain of levels, L1 first.
type Hierarchy struct {
	levels      []*cache.Level
	storage     mem.BackingStore
	writePolicy WritePolicy
}

// Levels returns the levels, nearest first.
func (h *Hierarchy) Levels() []*cache.Level {
	return h.levels
}

// Level returns the level with the given name.
func (h *Hierarchy) Level(name string) (*cache.Level, bool) {
	for _, l := range h.levels {
		if l.Name() == name {
			return l, true
		}
	}

	return nil, false
}

// Storage returns the backing store.
func (h *Hierarchy) Storage() mem.BackingStore {
	return h.storage
}

// WritePolicy returns the behavior on write misses.
func (h *Hierarchy) WritePolicy() WritePolicy {
	return h.writePolicy
}

func (h *Hierarchy) checkAccess(addr, byteSize uint64) error {
	if byteSize == 0 {
		return &AccessError{Addr: addr}
	}

	for _, l := range h.levels {
		if addr%l.BlockSize()+byteSize > l.BlockSize() {
			return &AccessError{Addr: addr, ByteSize: byteSize, Level: l.Name()}
		}
	}

	return nil
}

// Read returns byteSize bytes at the physical address addr. Levels are
// consulted in order until one hits. Every level that missed is then filled
// with the block.
func (h *Hierarchy) Read(addr uint64, byteSize uint64) (ReadResult, error) {
	if err := h.checkAccess(addr, byteSize); err != nil {
		return ReadResult{}, err
	}

	res := ReadResult{
		Outcomes: make([]Outcome, len(h.levels)),
		HitLevel: -1,
	}

	for i, l := range h.levels {
		if res.HitLevel >= 0 {
			res.Outcomes[i] = Skipped
			continue
		}

		data, hit := l.Read(addr, byteSize)
		if hit {
			res.Outcomes[i] = Hit
			res.Data = data
			res.HitLevel = i

			continue
		}

		res.Outcomes[i] = Miss
	}

	if res.HitLevel < 0 {
		data, err := h.storage.Read(addr, byteSize)
		if err != nil {
			return ReadResult{}, fmt.Errorf("reading backing store at 0x%x: %w", addr, err)
		}

		res.Data = data
	}

	missed := len(h.levels)
	if res.HitLevel >= 0 {
		missed = res.HitLevel
	}

	for _, l := range h.levels[:missed] {
		if err := h.fill(l, addr); err != nil {
			return ReadResult{}, err
		}
	}

	return res, nil
}

// Write stores data at the physical address addr in the backing store and in
// every level that holds the block. Levels that miss are filled under
// WriteAllocate.
func (h *Hierarchy) Write(addr uint64, data []byte) ([]Outcome, error) {
	if err := h.checkAccess(addr, uint64(len(data))); err != nil {
		return nil, err
	}

	if err := h.storage.Write(addr, data); err != nil {
		return nil, fmt.Errorf("writing backing store at 0x%x: %w", addr, err)
	}

	outcomes := make([]Outcome, len(h.levels))

	for i, l := range h.levels {
		if l.WriteThrough(addr, data) {
			outcomes[i] = Hit
			continue
		}

		outcomes[i] = Miss

		if h.writePolicy == WriteAllocate {
			if err := h.fill(l, addr); err != nil {
				return nil, err
			}
		}
	}

	return outcomes, nil
}

func (h *Hierarchy) fill(l *cache.Level, addr uint64) error {
	blockAddr := l.BlockAlign(addr)

	blockData, err := h.storage.Read(blockAddr, l.BlockSize())
	if err != nil {
		return fmt.Errorf("filling %s at 0x%x: %w", l.Name(), blockAddr, err)
	}

	l.Fill(blockAddr, blockData)

	return nil
}

// ResetStats clears the counters of all levels.
func (h *Hierarchy) ResetStats() {
	for _, l := range h.levels {
		l.ResetStats()
	}
}

// Reset invalidates every level and empties the backing store.
func (h *Hierarchy) Reset() {
	for _, l := range h.levels {
		l.Reset()
	}

	h.storage.Reset()
}
