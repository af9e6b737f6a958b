// Package cache provides a single N-way set-associative cache level with LRU
// replacement. A level only keeps its own blocks. Propagating writes and fills
// across levels is done by the hierarchy package.
package cache

import (
	"github.com/sarchlab/memhier/mem/cache/internal/tagging"
)

// Stats counts the accesses served by a level.
type Stats struct {
	ReadHits    uint64
	ReadMisses  uint64
	WriteHits   uint64
	WriteMisses uint64
	Fills       uint64
	Evictions   uint64
}

// Reads returns the number of reads.
func (s Stats) Reads() uint64 {
	return s.ReadHits + s.ReadMisses
}

// Writes returns the number of writes.
func (s Stats) Writes() uint64 {
	return s.WriteHits + s.WriteMisses
}

// HitRate returns the fraction of accesses that hit, or 0 without accesses.
func (s Stats) HitRate() float64 {
	total := s.Reads() + s.Writes()
	if total == 0 {
		return 0
	}

	return float64(s.ReadHits+s.WriteHits) / float64(total)
}

// A Level is one cache in the hierarchy.
type Level struct {
	name         string
	byteSize     uint64
	blockSize    uint64
	tags         tagging.TagArray
	victimFinder tagging.VictimFinder

	// Data of block (set, way) is at index set*ways + way.
	dataStore [][]byte

	stats Stats
}

// Name returns the name of the level.
func (l *Level) Name() string {
	return l.name
}

// ByteSize returns the capacity of the level.
func (l *Level) ByteSize() uint64 {
	return l.byteSize
}

// BlockSize returns the size of a cache line.
func (l *Level) BlockSize() uint64 {
	return l.blockSize
}

// NumSets returns the number of sets.
func (l *Level) NumSets() int {
	return l.tags.NumSets()
}

// Ways returns the associativity.
func (l *Level) Ways() int {
	return l.tags.NumWays()
}

// Stats returns the counters of the level.
func (l *Level) Stats() Stats {
	return l.stats
}

// ResetStats clears the counters of the level.
func (l *Level) ResetStats() {
	l.stats = Stats{}
}

// BlockAlign returns the address of the block that holds addr.
func (l *Level) BlockAlign(addr uint64) uint64 {
	return addr / l.blockSize * l.blockSize
}

func (l *Level) offset(addr uint64) uint64 {
	return addr % l.blockSize
}

func (l *Level) blockIndex(block tagging.Block) int {
	return block.SetID*l.tags.NumWays() + block.WayID
}

func (l *Level) blockAddr(block tagging.Block) uint64 {
	numSets := uint64(l.tags.NumSets())
	return (block.Tag*numSets + uint64(block.SetID)) * l.blockSize
}

func (l *Level) mustStayInBlock(addr uint64, byteSize uint64) {
	if l.offset(addr)+byteSize > l.blockSize {
		panic("access crosses a cache block boundary")
	}
}

// Contains tells if addr is resident without changing the LRU order.
func (l *Level) Contains(addr uint64) bool {
	_, found := l.tags.Lookup(addr)
	return found
}

// Lookup finds the block of addr. A hit makes the block the most recently
// used of its set. The returned slice aliases the cached data.
func (l *Level) Lookup(addr uint64) ([]byte, bool) {
	block, found := l.tags.Lookup(addr)
	if !found {
		return nil, false
	}

	l.tags.Visit(block)

	return l.dataStore[l.blockIndex(block)], true
}

// Read returns byteSize bytes at addr if the address is resident.
func (l *Level) Read(addr uint64, byteSize uint64) ([]byte, bool) {
	l.mustStayInBlock(addr, byteSize)

	blockData, hit := l.Lookup(addr)
	if !hit {
		l.stats.ReadMisses++
		return nil, false
	}

	l.stats.ReadHits++

	offset := l.offset(addr)
	data := make([]byte, byteSize)
	copy(data, blockData[offset:offset+byteSize])

	return data, true
}

// Fill places the block that holds addr in the cache, evicting the least
// recently used block of the set if no way is free. blockData must be the
// full block. The address of the evicted block is returned when a valid
// block was replaced. Evicted data is dropped.
func (l *Level) Fill(addr uint64, blockData []byte) (evictedAddr uint64, evicted bool) {
	if uint64(len(blockData)) != l.blockSize {
		panic("fill data must be exactly one block")
	}

	if block, found := l.tags.Lookup(addr); found {
		copy(l.dataStore[l.blockIndex(block)], blockData)
		l.tags.Visit(block)

		return 0, false
	}

	victim, ok := l.victimFinder.FindVictim(l.tags, addr)
	if !ok {
		panic("cache set has no way to evict")
	}

	if victim.IsValid {
		evictedAddr = l.blockAddr(victim)
		evicted = true
		l.stats.Evictions++
	}

	victim.Tag = l.tags.Tag(addr)
	victim.IsValid = true
	l.tags.Update(victim)
	l.tags.Visit(victim)

	copy(l.dataStore[l.blockIndex(victim)], blockData)
	l.stats.Fills++

	return evictedAddr, evicted
}

// WriteThrough updates the data of addr in place if it is resident and tells
// if it was. A miss leaves the level unchanged.
func (l *Level) WriteThrough(addr uint64, data []byte) bool {
	l.mustStayInBlock(addr, uint64(len(data)))

	blockData, hit := l.Lookup(addr)
	if !hit {
		l.stats.WriteMisses++
		return false
	}

	l.stats.WriteHits++
	copy(blockData[l.offset(addr):], data)

	return true
}

// ValidBlocks returns the number of valid blocks in a set.
func (l *Level) ValidBlocks(setID int) int {
	return l.tags.Set(setID).ValidCount()
}

// Reset invalidates all the blocks and clears the counters.
func (l *Level) Reset() {
	l.tags.Reset()

	for _, data := range l.dataStore {
		clear(data)
	}

	l.stats = Stats{}
}
