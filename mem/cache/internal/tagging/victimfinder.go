package tagging

// A VictimFinder decides which block should be evicted.
type VictimFinder interface {
	FindVictim(tags TagArray, address uint64) (Block, bool)
}

// LRUVictimFinder evicts the least recently used block.
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	e := new(LRUVictimFinder)
	return e
}

// FindVictim returns the block to replace in the set of address. An invalid
// block with the lowest way id is preferred. Otherwise the head of the LRU
// queue is returned.
func (e *LRUVictimFinder) FindVictim(tags TagArray, address uint64) (Block, bool) {
	set, _ := tags.GetSet(address)

	for _, block := range set.Blocks {
		if !block.IsValid {
			return block, true
		}
	}

	if len(set.LRUQueue) == 0 {
		return Block{}, false
	}

	return set.Blocks[set.LRUQueue[0]], true
}
