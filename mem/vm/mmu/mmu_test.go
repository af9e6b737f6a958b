package mmu

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/memhier/mem/vm"
	"github.com/sarchlab/memhier/mem/vm/tlb"
)

var _ = Describe("MMU with mocked page table", func() {
	var (
		mockCtrl  *gomock.Controller
		pageTable *MockPageTable
		mmu       *MMU
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		pageTable = NewMockPageTable(mockCtrl)
		pageTable.EXPECT().Log2PageSize().Return(uint64(12)).AnyTimes()
		pageTable.EXPECT().Entries().Return(nil)

		var err error
		mmu, err = MakeBuilder().
			WithPageTable(pageTable).
			WithPagePolicy(vm.FailOnUnmapped).
			Build("MMU")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should translate through the page table", func() {
		pageTable.EXPECT().
			Find(uint64(0x0000123456789)).
			Return(vm.Page{VPN: 0x0000123456789, PFN: 0x5678, Valid: true}, true)

		t, err := mmu.Translate(0x0000123456789abc)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.PAddr).To(Equal(uint64(0x5678abc)))
		Expect(t.Offset).To(Equal(uint64(0xabc)))
		Expect(t.PageFault).To(BeFalse())
	})

	It("should report a page fault on an unmapped page", func() {
		pageTable.EXPECT().Find(uint64(0x11)).Return(vm.Page{}, false)

		_, err := mmu.Translate(0x11000)

		Expect(err).To(MatchError(&vm.PageFaultError{VPN: 0x11}))
		Expect(mmu.Stats().PageFaults).To(Equal(uint64(1)))
	})

	It("should treat invalid entries as unmapped", func() {
		pageTable.EXPECT().
			Find(uint64(0x11)).
			Return(vm.Page{VPN: 0x11, PFN: 9, Valid: false}, true)

		_, err := mmu.Translate(0x11000)

		var fault *vm.PageFaultError
		Expect(err).To(BeAssignableToTypeOf(fault))
	})
})

var _ = Describe("MMU", func() {
	var mmu *MMU

	BeforeEach(func() {
		var err error
		mmu, err = MakeBuilder().Build("MMU")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should keep frame and offset for addresses in the same page", func() {
		base, err := mmu.Translate(0x7000)
		Expect(err).NotTo(HaveOccurred())

		for _, offset := range []uint64{0, 1, 0x7ff, 0xfff} {
			t, err := mmu.Translate(0x7000 + offset)
			Expect(err).NotTo(HaveOccurred())
			Expect(t.PFN).To(Equal(base.PFN))
			Expect(t.Offset).To(Equal(offset))
			Expect(t.PAddr & 0xfff).To(Equal(offset))
		}
	})

	It("should allocate frames sequentially on first use", func() {
		first, _ := mmu.Translate(0x1234)
		second, _ := mmu.Translate(0x5678)
		again, _ := mmu.Translate(0x1000)

		Expect(first.PageFault).To(BeTrue())
		Expect(first.PAddr).To(Equal(uint64(0x234)))
		Expect(second.PAddr).To(Equal(uint64(0x1678)))
		Expect(again.PageFault).To(BeFalse())
		Expect(again.PFN).To(Equal(uint64(0)))

		page, found := mmu.PageTable().Find(1)
		Expect(found).To(BeTrue())
		Expect(page.Allocated).To(BeTrue())
		Expect(mmu.Stats().PageFaults).To(Equal(uint64(2)))
	})

	It("should skip frames that are explicitly mapped", func() {
		Expect(mmu.MapPage(0x40, 0)).To(Succeed())

		t, _ := mmu.Translate(0x1000)
		Expect(t.PFN).To(Equal(uint64(1)))
	})

	It("should map frames by identity", func() {
		m, err := MakeBuilder().
			WithFrameAllocation(vm.Identity).
			Build("IdentityMMU")
		Expect(err).NotTo(HaveOccurred())

		t, _ := m.Translate(0xabcd_e123)
		Expect(t.PAddr).To(Equal(uint64(0xabcd_e123)))
	})

	It("should not allocate a frame by identity that a mapping holds", func() {
		m, err := MakeBuilder().
			WithFrameAllocation(vm.Identity).
			Build("IdentityMMU")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.MapPage(1, 5)).To(Succeed())

		_, err = m.Translate(0x5000)
		Expect(err).To(MatchError(&vm.FrameInUseError{VPN: 5, PFN: 5}))
		Expect(m.PageTable().Len()).To(Equal(1))

		Expect(m.UnmapPage(1)).To(Succeed())

		t, err := m.Translate(0x5000)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.PAddr).To(Equal(uint64(0x5000)))
		Expect(t.PageFault).To(BeTrue())
	})

	It("should start sequential allocation at the first frame", func() {
		m, err := MakeBuilder().WithFirstFrame(0x100).Build("MMU")
		Expect(err).NotTo(HaveOccurred())

		t, _ := m.Translate(0x42)
		Expect(t.PAddr).To(Equal(uint64(0x100042)))
	})

	It("should reject addresses wider than the address width", func() {
		m, err := MakeBuilder().WithAddressWidth(48).Build("MMU")
		Expect(err).NotTo(HaveOccurred())

		_, err = m.Translate(1 << 48)
		Expect(err).To(MatchError(&vm.AddressOutOfRangeError{
			Addr:  1 << 48,
			Width: 48,
		}))

		_, err = m.Translate(1<<48 - 1)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should accept the full 64-bit range", func() {
		t, err := mmu.Translate(^uint64(0))
		Expect(err).NotTo(HaveOccurred())
		Expect(t.VPN).To(Equal(^uint64(0) >> 12))
	})

	It("should map and unmap pages", func() {
		Expect(mmu.MapPage(0x1112, 0x1102)).To(Succeed())

		t, _ := mmu.Translate(0x1112000)
		Expect(t.PAddr).To(Equal(uint64(0x1102000)))
		Expect(t.PageFault).To(BeFalse())

		Expect(mmu.UnmapPage(0x1112)).To(Succeed())
		Expect(mmu.UnmapPage(0x1112)).To(HaveOccurred())

		t, _ = mmu.Translate(0x1112000)
		Expect(t.PageFault).To(BeTrue())
	})

	It("should reject frames that overflow the physical address", func() {
		err := mmu.MapPage(1, 1<<52)

		var rangeErr *vm.AddressOutOfRangeError
		Expect(err).To(BeAssignableToTypeOf(rangeErr))
	})

	It("should forget everything on reset", func() {
		mmu.Translate(0x1000)
		mmu.Translate(0x2000)

		mmu.Reset()

		Expect(mmu.PageTable().Len()).To(Equal(0))
		Expect(mmu.Stats()).To(BeZero())

		t, _ := mmu.Translate(0x2000)
		Expect(t.PageFault).To(BeTrue())
		Expect(t.PFN).To(Equal(uint64(0)))
	})

	Context("with a TLB", func() {
		var t *tlb.TLB

		BeforeEach(func() {
			var err error
			t, err = tlb.MakeBuilder().WithNumSets(2).WithNumWays(2).Build()
			Expect(err).NotTo(HaveOccurred())

			mmu, err = MakeBuilder().WithTLB(t).Build("MMU")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should hit the TLB on a repeated page", func() {
			first, _ := mmu.Translate(0x3000)
			second, _ := mmu.Translate(0x3008)

			Expect(first.TLBHit).To(BeFalse())
			Expect(second.TLBHit).To(BeTrue())
			Expect(second.PFN).To(Equal(first.PFN))
			Expect(mmu.Stats().TLBHits).To(Equal(uint64(1)))
		})

		It("should not serve stale translations after a remap", func() {
			mmu.Translate(0x3000)
			Expect(mmu.MapPage(3, 0x77)).To(Succeed())

			tr, _ := mmu.Translate(0x3000)
			Expect(tr.TLBHit).To(BeFalse())
			Expect(tr.PFN).To(Equal(uint64(0x77)))
		})
	})
})
