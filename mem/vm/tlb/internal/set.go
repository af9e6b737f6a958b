// Package internal provides the set definition backing the TLB.
package internal

import (
	"github.com/sarchlab/memhier/mem/vm"
)

// A Set holds a certain number of pages.
type Set interface {
	Lookup(vpn uint64) (wayID int, page vm.Page, found bool)
	Update(wayID int, page vm.Page)
	Evict() (wayID int, ok bool)
	Visit(wayID int)
	Invalidate(vpn uint64) bool
	ValidCount() int
}

// NewSet creates a new TLB set.
func NewSet(numWays int) Set {
	s := &setImpl{}
	s.blocks = make([]*block, numWays)
	s.vpnWayIDMap = make(map[uint64]int)

	for i := range s.blocks {
		s.blocks[i] = &block{wayID: i}
	}

	return s
}

type block struct {
	page      vm.Page
	wayID     int
	valid     bool
	lastVisit uint64
}

type setImpl struct {
	blocks      []*block
	vpnWayIDMap map[uint64]int
	visitCount  uint64
}

func (s *setImpl) Lookup(vpn uint64) (wayID int, page vm.Page, found bool) {
	wayID, ok := s.vpnWayIDMap[vpn]
	if !ok {
		return 0, vm.Page{}, false
	}

	block := s.blocks[wayID]

	return block.wayID, block.page, true
}

// Update replaces the page held by a way.
func (s *setImpl) Update(wayID int, page vm.Page) {
	block := s.blocks[wayID]
	if block.valid {
		delete(s.vpnWayIDMap, block.page.VPN)
	}

	block.page = page
	block.valid = true
	s.vpnWayIDMap[page.VPN] = wayID
}

// Evict picks the way to be replaced: the first free way if there is one,
// otherwise the least recently visited way.
func (s *setImpl) Evict() (wayID int, ok bool) {
	if len(s.blocks) == 0 {
		return 0, false
	}

	var victim *block

	for _, b := range s.blocks {
		if !b.valid {
			return b.wayID, true
		}

		if victim == nil || b.lastVisit < victim.lastVisit {
			victim = b
		}
	}

	return victim.wayID, true
}

// Visit marks a way as the most recently used.
func (s *setImpl) Visit(wayID int) {
	s.visitCount++
	s.blocks[wayID].lastVisit = s.visitCount
}

func (s *setImpl) Invalidate(vpn uint64) bool {
	wayID, ok := s.vpnWayIDMap[vpn]
	if !ok {
		return false
	}

	block := s.blocks[wayID]
	block.valid = false
	block.page = vm.Page{}
	block.lastVisit = 0
	delete(s.vpnWayIDMap, vpn)

	return true
}

func (s *setImpl) ValidCount() int {
	return len(s.vpnWayIDMap)
}
