// Package tlb provides a set-associative translation lookaside buffer that
// caches page table entries in front of the MMU.
package tlb

import (
	"github.com/sarchlab/memhier/mem/vm"
	"github.com/sarchlab/memhier/mem/vm/tlb/internal"
)

// Stats counts TLB activity.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// A TLB caches translations of virtual page numbers.
type TLB struct {
	numSets int
	numWays int
	sets    []internal.Set
	stats   Stats
}

// NumSets returns the number of sets.
func (t *TLB) NumSets() int {
	return t.numSets
}

// NumWays returns the associativity.
func (t *TLB) NumWays() int {
	return t.numWays
}

func (t *TLB) set(vpn uint64) internal.Set {
	return t.sets[vpn%uint64(t.numSets)]
}

// Lookup returns the cached page of vpn. A hit makes the entry the most
// recently used of its set.
func (t *TLB) Lookup(vpn uint64) (vm.Page, bool) {
	set := t.set(vpn)

	wayID, page, found := set.Lookup(vpn)
	if !found {
		t.stats.Misses++
		return vm.Page{}, false
	}

	t.stats.Hits++
	set.Visit(wayID)

	return page, true
}

// Insert caches a page, evicting the least recently used entry of the set if
// the set is full.
func (t *TLB) Insert(page vm.Page) {
	set := t.set(page.VPN)

	if wayID, _, found := set.Lookup(page.VPN); found {
		set.Update(wayID, page)
		set.Visit(wayID)

		return
	}

	full := set.ValidCount() == t.numWays

	wayID, ok := set.Evict()
	if !ok {
		panic("TLB set has no way to evict")
	}

	if full {
		t.stats.Evictions++
	}

	set.Update(wayID, page)
	set.Visit(wayID)
}

// Invalidate drops the entry of vpn, if cached.
func (t *TLB) Invalidate(vpn uint64) {
	t.set(vpn).Invalidate(vpn)
}

// Stats returns the counters of the TLB.
func (t *TLB) Stats() Stats {
	return t.stats
}

// Reset drops all entries and clears the counters.
func (t *TLB) Reset() {
	t.sets = make([]internal.Set, t.numSets)
	for i := range t.sets {
		t.sets[i] = internal.NewSet(t.numWays)
	}

	t.stats = Stats{}
}
