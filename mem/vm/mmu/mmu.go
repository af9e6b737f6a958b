// Package mmu provides the address translation unit, which turns virtual
// addresses into physical addresses through a page table.
package mmu

import (
	"github.com/sarchlab/memhier/mem/vm"
	"github.com/sarchlab/memhier/mem/vm/tlb"
)

// A Translation is the outcome of translating one virtual address.
type Translation struct {
	VAddr  uint64
	PAddr  uint64
	VPN    uint64
	PFN    uint64
	Offset uint64

	// PageFault is set when the page was not mapped and got allocated.
	PageFault bool
	TLBHit    bool
}

// Stats counts the work done by an MMU.
type Stats struct {
	Translations uint64
	PageFaults   uint64
	TLBHits      uint64
}

// MMU is the address translation unit.
type MMU struct {
	name            string
	log2PageSize    uint64
	addressWidth    uint64
	pageTable       vm.PageTable
	pagePolicy      vm.PagePolicy
	frameAllocation vm.FrameAllocation
	firstFrame      uint64
	nextFrame       uint64
	usedFrames      map[uint64]int
	tlb             *tlb.TLB
	stats           Stats
}

// Name returns the name of the MMU.
func (m *MMU) Name() string {
	return m.name
}

// PageSize returns the number of bytes in a page.
func (m *MMU) PageSize() uint64 {
	return 1 << m.log2PageSize
}

// Log2PageSize returns the number of offset bits.
func (m *MMU) Log2PageSize() uint64 {
	return m.log2PageSize
}

// AddressWidth returns the number of bits of a virtual address.
func (m *MMU) AddressWidth() uint64 {
	return m.addressWidth
}

// PageTable returns the page table used by the MMU.
func (m *MMU) PageTable() vm.PageTable {
	return m.pageTable
}

// TLB returns the TLB of the MMU, or nil if it has none.
func (m *MMU) TLB() *tlb.TLB {
	return m.tlb
}

// Stats returns the counters of the MMU.
func (m *MMU) Stats() Stats {
	return m.stats
}

// Translate converts a virtual address to a physical address.
func (m *MMU) Translate(vAddr uint64) (Translation, error) {
	if !m.fits(vAddr, m.addressWidth) {
		return Translation{}, &vm.AddressOutOfRangeError{
			Addr:  vAddr,
			Width: m.addressWidth,
		}
	}

	m.stats.Translations++

	t := Translation{
		VAddr:  vAddr,
		VPN:    vAddr >> m.log2PageSize,
		Offset: vAddr & (m.PageSize() - 1),
	}

	page, err := m.findPage(&t)
	if err != nil {
		return Translation{}, err
	}

	t.PFN = page.PFN
	t.PAddr = page.PFN<<m.log2PageSize | t.Offset

	return t, nil
}

func (m *MMU) findPage(t *Translation) (vm.Page, error) {
	if m.tlb != nil {
		if page, found := m.tlb.Lookup(t.VPN); found {
			t.TLBHit = true
			m.stats.TLBHits++

			return page, nil
		}
	}

	page, found := m.pageTable.Find(t.VPN)
	if !found || !page.Valid {
		if m.pagePolicy == vm.FailOnUnmapped {
			m.stats.PageFaults++
			return vm.Page{}, &vm.PageFaultError{VPN: t.VPN}
		}

		if found {
			m.releaseFrame(page.PFN)
		}

		var err error

		page, err = m.allocatePage(t.VPN)
		if err != nil {
			return vm.Page{}, err
		}

		t.PageFault = true
	}

	if m.tlb != nil {
		m.tlb.Insert(page)
	}

	return page, nil
}

// allocatePage serves a soft page fault.
func (m *MMU) allocatePage(vpn uint64) (vm.Page, error) {
	m.stats.PageFaults++

	pfn, err := m.nextFreeFrame(vpn)
	if err != nil {
		return vm.Page{}, err
	}

	page := vm.Page{
		VPN:       vpn,
		PFN:       pfn,
		Valid:     true,
		Allocated: true,
	}

	m.pageTable.Insert(page)
	m.usedFrames[page.PFN]++

	return page, nil
}

// nextFreeFrame never returns a frame that another page holds. Identity
// allocation has a single candidate, so a taken frame is an error.
func (m *MMU) nextFreeFrame(vpn uint64) (uint64, error) {
	if m.frameAllocation == vm.Identity {
		if m.usedFrames[vpn] > 0 {
			return 0, &vm.FrameInUseError{VPN: vpn, PFN: vpn}
		}

		return vpn, nil
	}

	for m.usedFrames[m.nextFrame] > 0 {
		m.nextFrame++
	}

	pfn := m.nextFrame
	m.nextFrame++

	return pfn, nil
}

// MapPage maps a virtual page to a physical frame, replacing any previous
// mapping of the page.
func (m *MMU) MapPage(vpn, pfn uint64) error {
	if !m.fits(vpn, m.addressWidth-m.log2PageSize) {
		return &vm.AddressOutOfRangeError{
			Addr:  vpn,
			Width: m.addressWidth - m.log2PageSize,
		}
	}

	if !m.fits(pfn, 64-m.log2PageSize) {
		return &vm.AddressOutOfRangeError{
			Addr:  pfn,
			Width: 64 - m.log2PageSize,
		}
	}

	if old, found := m.pageTable.Find(vpn); found {
		m.releaseFrame(old.PFN)
	}

	m.pageTable.Insert(vm.Page{VPN: vpn, PFN: pfn, Valid: true})
	m.usedFrames[pfn]++

	if m.tlb != nil {
		m.tlb.Invalidate(vpn)
	}

	return nil
}

// UnmapPage removes the mapping of a virtual page.
func (m *MMU) UnmapPage(vpn uint64) error {
	page, found := m.pageTable.Find(vpn)
	if !found {
		return &vm.PageFaultError{VPN: vpn}
	}

	if err := m.pageTable.Remove(vpn); err != nil {
		return err
	}

	m.releaseFrame(page.PFN)

	if m.tlb != nil {
		m.tlb.Invalidate(vpn)
	}

	return nil
}

func (m *MMU) releaseFrame(pfn uint64) {
	m.usedFrames[pfn]--
	if m.usedFrames[pfn] <= 0 {
		delete(m.usedFrames, pfn)
	}
}

// Reset forgets all the pages, the cached translations and the counters.
func (m *MMU) Reset() {
	m.pageTable.Clear()

	if m.tlb != nil {
		m.tlb.Reset()
	}

	m.nextFrame = m.firstFrame
	m.usedFrames = make(map[uint64]int)
	m.stats = Stats{}
}

func (m *MMU) fits(value, width uint64) bool {
	if width >= 64 {
		return true
	}

	return value>>width == 0
}
