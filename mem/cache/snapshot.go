package cache

// A WaySnapshot describes one way of a set.
type WaySnapshot struct {
	WayID     int    `json:"way_id"`
	Valid     bool   `json:"valid"`
	Tag       uint64 `json:"tag"`
	BlockAddr uint64 `json:"block_addr"`

	// Rank is the position in the LRU order, 0 being the least recently
	// used.
	Rank int    `json:"rank"`
	Data []byte `json:"data,omitempty"`
}

// A SetSnapshot describes the content of a set.
type SetSnapshot struct {
	SetID int           `json:"set_id"`
	Ways  []WaySnapshot `json:"ways"`
}

// Set returns a copy of the content of one set.
func (l *Level) Set(setID int) SetSnapshot {
	set := l.tags.Set(setID)

	rank := make([]int, len(set.Blocks))
	for i, wayID := range set.LRUQueue {
		rank[wayID] = i
	}

	snapshot := SetSnapshot{SetID: setID}

	for _, block := range set.Blocks {
		way := WaySnapshot{
			WayID: block.WayID,
			Valid: block.IsValid,
			Rank:  rank[block.WayID],
		}

		if block.IsValid {
			way.Tag = block.Tag
			way.BlockAddr = l.blockAddr(block)
			way.Data = append([]byte(nil), l.dataStore[l.blockIndex(block)]...)
		}

		snapshot.Ways = append(snapshot.Ways, way)
	}

	return snapshot
}

// Sets returns the content of the sets that hold at least one valid block.
func (l *Level) Sets() []SetSnapshot {
	var sets []SetSnapshot

	for i := 0; i < l.tags.NumSets(); i++ {
		if l.ValidBlocks(i) == 0 {
			continue
		}

		sets = append(sets, l.Set(i))
	}

	return sets
}

// ResidentBlocks returns the addresses of the valid blocks of a set, ordered
// from the least to the most recently used.
func (l *Level) ResidentBlocks(setID int) []uint64 {
	set := l.tags.Set(setID)

	var addrs []uint64

	for _, wayID := range set.LRUQueue {
		block := set.Blocks[wayID]
		if block.IsValid {
			addrs = append(addrs, l.blockAddr(block))
		}
	}

	return addrs
}
