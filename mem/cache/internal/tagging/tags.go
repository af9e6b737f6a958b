// Package tagging provides the tag array of a set-associative cache.
package tagging

// TagArray keeps the tags of a cache, organized in sets of ways.
type TagArray interface {
	Lookup(reqAddr uint64) (Block, bool)
	Update(block Block)
	Visit(block Block)
	GetSet(reqAddr uint64) (set *Set, setID int)
	Set(setID int) *Set
	Tag(reqAddr uint64) uint64
	NumSets() int
	NumWays() int
	BlockSize() int
	Reset()
}

// NewTagArray creates a tag array where every block is invalid.
func NewTagArray(
	numSets int,
	numWays int,
	blockSize int,
) TagArray {
	t := &tagArrayImpl{
		numSets:   numSets,
		numWays:   numWays,
		blockSize: blockSize,
		Sets:      []Set{},
	}

	t.Reset()

	return t
}

// A Block of a cache is the information that is associated with a cache line.
type Block struct {
	Tag          uint64
	WayID        int
	SetID        int
	CacheAddress uint64
	IsValid      bool
}

// A Set is a list of blocks where a certain piece of memory can be stored.
// The LRUQueue holds the way ids from the least to the most recently used.
type Set struct {
	Blocks   []Block
	LRUQueue []int
}

// ValidCount returns the number of valid blocks in the set.
func (s *Set) ValidCount() int {
	n := 0

	for _, b := range s.Blocks {
		if b.IsValid {
			n++
		}
	}

	return n
}

type tagArrayImpl struct {
	numSets   int
	numWays   int
	blockSize int
	Sets      []Set
}

func (d *tagArrayImpl) NumSets() int   { return d.numSets }
func (d *tagArrayImpl) NumWays() int   { return d.numWays }
func (d *tagArrayImpl) BlockSize() int { return d.blockSize }

// GetSet returns the set that a certain address should be stored at.
func (d *tagArrayImpl) GetSet(reqAddr uint64) (set *Set, setID int) {
	setID = int(reqAddr / uint64(d.blockSize) % uint64(d.numSets))
	set = &d.Sets[setID]

	return
}

// Set returns the set with the given index.
func (d *tagArrayImpl) Set(setID int) *Set {
	return &d.Sets[setID]
}

// Tag returns the address bits above the set index and block offset.
func (d *tagArrayImpl) Tag(reqAddr uint64) uint64 {
	return reqAddr / (uint64(d.blockSize) * uint64(d.numSets))
}

// Lookup finds the block that holds reqAddr. The bool return value tells if
// the address is valid in the cache.
func (d *tagArrayImpl) Lookup(reqAddr uint64) (Block, bool) {
	set, _ := d.GetSet(reqAddr)
	tag := d.Tag(reqAddr)

	for _, block := range set.Blocks {
		if block.IsValid && block.Tag == tag {
			return block, true
		}
	}

	return Block{}, false
}

// Update writes the block information back into its set and way.
func (d *tagArrayImpl) Update(block Block) {
	d.Sets[block.SetID].Blocks[block.WayID] = block
}

// Visit moves the block to the end of the LRUQueue, keeping the relative
// order of the other ways.
func (d *tagArrayImpl) Visit(block Block) {
	set := &d.Sets[block.SetID]
	newLRUQueue := make([]int, 0, len(set.LRUQueue))

	for _, b := range set.LRUQueue {
		if b != block.WayID {
			newLRUQueue = append(newLRUQueue, b)
		}
	}

	newLRUQueue = append(newLRUQueue, block.WayID)

	set.LRUQueue = newLRUQueue
}

// Reset will mark all the blocks in the directory invalid
func (d *tagArrayImpl) Reset() {
	d.Sets = make([]Set, d.numSets)
	for i := 0; i < d.numSets; i++ {
		for j := 0; j < d.numWays; j++ {
			block := Block{
				IsValid:      false,
				SetID:        i,
				WayID:        j,
				CacheAddress: uint64(i*d.numWays+j) * uint64(d.blockSize),
			}

			d.Sets[i].Blocks = append(d.Sets[i].Blocks, block)
			d.Sets[i].LRUQueue = append(d.Sets[i].LRUQueue, j)
		}
	}
}
