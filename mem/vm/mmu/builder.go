package mmu

import (
	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/mem/vm"
	"github.com/sarchlab/memhier/mem/vm/tlb"
)

// A Builder can build MMUs.
type Builder struct {
	log2PageSize    uint64
	addressWidth    uint64
	pageTable       vm.PageTable
	pagePolicy      vm.PagePolicy
	frameAllocation vm.FrameAllocation
	firstFrame      uint64
	tlb             *tlb.TLB
}

// MakeBuilder creates a new builder with 4 KiB pages, 64-bit virtual
// addresses and allocate-on-first-use paging.
func MakeBuilder() Builder {
	return Builder{
		log2PageSize: 12,
		addressWidth: 64,
		pagePolicy:   vm.AllocateOnFirstUse,
	}
}

// WithLog2PageSize sets the page size that the MMU supports.
func (b Builder) WithLog2PageSize(log2PageSize uint64) Builder {
	b.log2PageSize = log2PageSize
	return b
}

// WithAddressWidth sets the number of bits of a virtual address.
func (b Builder) WithAddressWidth(width uint64) Builder {
	b.addressWidth = width
	return b
}

// WithPageTable sets the page table that the MMU uses. If not set, the MMU
// creates its own.
func (b Builder) WithPageTable(pageTable vm.PageTable) Builder {
	b.pageTable = pageTable
	return b
}

// WithPagePolicy sets what happens on an access to an unmapped page.
func (b Builder) WithPagePolicy(policy vm.PagePolicy) Builder {
	b.pagePolicy = policy
	return b
}

// WithFrameAllocation sets how frames are chosen for allocated pages.
func (b Builder) WithFrameAllocation(allocation vm.FrameAllocation) Builder {
	b.frameAllocation = allocation
	return b
}

// WithFirstFrame sets the first frame handed out by sequential allocation.
func (b Builder) WithFirstFrame(pfn uint64) Builder {
	b.firstFrame = pfn
	return b
}

// WithTLB puts a TLB in front of the page table.
func (b Builder) WithTLB(t *tlb.TLB) Builder {
	b.tlb = t
	return b
}

// Build returns a newly created MMU.
func (b Builder) Build(name string) (*MMU, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	mmu := &MMU{
		name:            name,
		log2PageSize:    b.log2PageSize,
		addressWidth:    b.addressWidth,
		pageTable:       b.pageTable,
		pagePolicy:      b.pagePolicy,
		frameAllocation: b.frameAllocation,
		firstFrame:      b.firstFrame,
		nextFrame:       b.firstFrame,
		usedFrames:      make(map[uint64]int),
		tlb:             b.tlb,
	}

	if mmu.pageTable == nil {
		mmu.pageTable = vm.NewPageTable(b.log2PageSize)
	}

	for _, page := range mmu.pageTable.Entries() {
		mmu.usedFrames[page.PFN]++
	}

	return mmu, nil
}

func (b Builder) validate() error {
	if b.addressWidth < 1 || b.addressWidth > 64 {
		return mem.NewConfigError("address_width",
			"must be between 1 and 64, got %d", b.addressWidth)
	}

	if b.log2PageSize >= b.addressWidth {
		return mem.NewConfigError("page_size",
			"offset bits (%d) must be fewer than the address width (%d)",
			b.log2PageSize, b.addressWidth)
	}

	if b.pageTable != nil && b.pageTable.Log2PageSize() != b.log2PageSize {
		return mem.NewConfigError("page_size",
			"page table uses 2^%d byte pages, MMU uses 2^%d",
			b.pageTable.Log2PageSize(), b.log2PageSize)
	}

	return nil
}
