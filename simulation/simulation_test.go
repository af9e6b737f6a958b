package simulation

import (
	"bytes"
	"errors"
	"log"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/mem/hierarchy"
	"github.com/sarchlab/memhier/mem/vm"
	"github.com/sarchlab/memhier/sim"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Levels = []LevelConfig{
		{Name: "L1", Size: 1024, BlockSize: 64, Associativity: 2},
		{Name: "L2", Size: 4096, BlockSize: 64, Associativity: 4},
	}

	return cfg
}

var _ = Describe("Simulation", func() {
	var s *Simulation

	BeforeEach(func() {
		var err error
		s, err = New(smallConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	It("should miss, miss and hit on 0x1000, 0x2000, 0x1000", func() {
		cfg := DefaultConfig()
		cfg.Levels = []LevelConfig{
			{Name: "L1", Size: 1024, BlockSize: 64, Associativity: 2},
		}
		s, err := New(cfg)
		Expect(err).NotTo(HaveOccurred())

		var l1 []bool
		for _, addr := range []uint64{0x1000, 0x2000, 0x1000} {
			res, err := s.Read(addr)
			Expect(err).NotTo(HaveOccurred())
			l1 = append(l1, res.Hits[0])
		}

		Expect(l1).To(Equal([]bool{false, false, true}))
	})

	It("should keep the frame and the offset within a page", func() {
		a, err := s.TranslateAddress(0x5123)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.PageFault).To(BeTrue())

		b, err := s.TranslateAddress(0x5fff)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.PageFault).To(BeFalse())

		Expect(a.PFN).To(Equal(b.PFN))
		Expect(a.PAddr & 0xfff).To(Equal(uint64(0x123)))
		Expect(b.PAddr & 0xfff).To(Equal(uint64(0xfff)))
	})

	It("should give distinct pages distinct frames", func() {
		a, _ := s.TranslateAddress(0x1000)
		b, _ := s.TranslateAddress(0x2000)

		Expect(a.PFN).NotTo(Equal(b.PFN))
	})

	It("should stop reading at the first hit", func() {
		s.Read(0x40)

		res, err := s.Read(0x40)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Hits).To(Equal([]bool{true}))
		Expect(res.Outcomes).To(Equal([]hierarchy.Outcome{
			hierarchy.Hit, hierarchy.Skipped,
		}))
	})

	It("should read back a written word at L1", func() {
		_, err := s.WriteWord(0x3008, 0x1122334455667788)
		Expect(err).NotTo(HaveOccurred())

		res, err := s.Read(0x300c)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Hits).To(Equal([]bool{true}))
		Expect(res.Value()).To(Equal(uint64(0x1122334455667788)))
	})

	It("should keep written data after L1 evicts it", func() {
		s.WriteWord(0x0, 42)
		s.Read(0x200)
		s.Read(0x400)

		res, err := s.Read(0x0)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Hits).To(Equal([]bool{false, true}))
		Expect(res.Value()).To(Equal(uint64(42)))

		l1, _ := s.Level("L1")
		Expect(l1.Contains(0x0)).To(BeTrue())
		Expect(l1.Contains(0x200)).To(BeFalse())
		Expect(l1.Contains(0x400)).To(BeTrue())
	})

	It("should report hits of every level on a write", func() {
		s.Read(0x80)

		res, err := s.Write(0x80, []byte{1, 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Hits).To(Equal([]bool{true, true}))
	})

	It("should miss everywhere after a reset", func() {
		addrs := []uint64{0x0, 0x1040, 0x2080, 0x30c0}
		for _, addr := range addrs {
			s.WriteWord(addr, addr+1)
			s.Read(addr)
		}

		s.Reset()

		for _, addr := range addrs {
			res, err := s.Read(addr)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Hits).To(Equal([]bool{false, false}))
			Expect(res.PageFault).To(BeTrue())
			Expect(res.Value()).To(BeZero())
		}
	})

	It("should clear statistics on reset", func() {
		s.Read(0x0)
		s.WriteWord(0x8, 1)

		stats := s.Stats()
		Expect(stats.Reads).To(Equal(uint64(1)))
		Expect(stats.Writes).To(Equal(uint64(1)))
		Expect(stats.PageFaults).To(Equal(uint64(1)))
		Expect(stats.Levels).To(HaveLen(2))
		Expect(stats.Levels[0].Counts.ReadMisses).To(Equal(uint64(1)))
		Expect(stats.Levels[0].Counts.WriteHits).To(Equal(uint64(1)))
		Expect(stats.Levels[0].HitRate).To(Equal(0.5))

		s.Reset()

		stats = s.Stats()
		Expect(stats.Reads).To(BeZero())
		Expect(stats.PageFaults).To(BeZero())
		Expect(stats.Levels[0].Counts).To(BeZero())
	})

	It("should reject accesses crossing a block", func() {
		data := make([]byte, 8)

		_, err := s.Write(0x3c, data)

		var accessErr *hierarchy.AccessError
		Expect(errors.As(err, &accessErr)).To(BeTrue())
	})

	It("should list the page table and the level sets", func() {
		s.Read(0x1000)
		s.Read(0x1040)

		entries := s.PageTableEntries()
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].VPN).To(Equal(uint64(1)))
		Expect(entries[0].Allocated).To(BeTrue())

		sets, err := s.LevelSets("L1")
		Expect(err).NotTo(HaveOccurred())
		Expect(sets).To(HaveLen(2))

		_, err = s.LevelSets("L9")
		Expect(err).To(HaveOccurred())
	})

	It("should map and unmap pages", func() {
		Expect(s.MapPage(0x7, 0x70)).To(Succeed())

		t, err := s.TranslateAddress(0x7010)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.PAddr).To(Equal(uint64(0x70010)))
		Expect(t.PageFault).To(BeFalse())

		Expect(s.UnmapPage(0x7)).To(Succeed())

		var pageFault *vm.PageFaultError
		Expect(errors.As(s.UnmapPage(0x7), &pageFault)).To(BeTrue())
	})

	It("should keep the simulation when reconfiguring fails", func() {
		s.Read(0x0)

		bad := smallConfig()
		bad.PageSize = 3000

		var configErr *mem.ConfigError
		Expect(errors.As(s.Reconfigure(bad), &configErr)).To(BeTrue())
		Expect(configErr.Field).To(Equal("page_size"))
		Expect(s.Config().PageSize).To(Equal(uint64(4096)))
		Expect(s.Stats().Reads).To(Equal(uint64(1)))
	})

	It("should rebuild the memory system on reconfiguring", func() {
		cfg := smallConfig()
		cfg.Levels = cfg.Levels[:1]

		Expect(s.Reconfigure(cfg)).To(Succeed())

		Expect(s.LevelNames()).To(Equal([]string{"L1"}))
		Expect(s.Stats().Levels).To(HaveLen(1))
	})

	Context("when pages must be mapped", func() {
		BeforeEach(func() {
			cfg := smallConfig()
			cfg.PagePolicy = vm.FailOnUnmapped.String()
			cfg.Mappings = map[uint64]uint64{0x1: 0xa0}

			var err error
			s, err = New(cfg)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should fail on unmapped pages", func() {
			_, err := s.Read(0x2000)

			var pageFault *vm.PageFaultError
			Expect(errors.As(err, &pageFault)).To(BeTrue())
			Expect(pageFault.VPN).To(Equal(uint64(2)))
			Expect(s.Stats().PageFaults).To(Equal(uint64(1)))
			Expect(s.Stats().Reads).To(BeZero())
		})

		It("should use configured mappings", func() {
			res, err := s.Read(0x1008)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.PAddr).To(Equal(uint64(0xa0008)))
			Expect(res.PageFault).To(BeFalse())
		})

		It("should restore configured mappings on reset", func() {
			Expect(s.UnmapPage(0x1)).To(Succeed())
			Expect(s.MapPage(0x3, 0x30)).To(Succeed())

			s.Reset()

			_, err := s.TranslateAddress(0x1000)
			Expect(err).NotTo(HaveOccurred())

			_, err = s.TranslateAddress(0x3000)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("with identity frames", func() {
		BeforeEach(func() {
			cfg := smallConfig()
			cfg.FrameAllocation = "identity"
			cfg.Mappings = map[uint64]uint64{1: 5}

			var err error
			s, err = New(cfg)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should read and write the top of the address space", func() {
			_, err := s.WriteWord(0xffff_ffff_ffff_fff8, 7)
			Expect(err).NotTo(HaveOccurred())

			res, err := s.Read(0xffff_ffff_ffff_fff8)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.PAddr).To(Equal(uint64(0xffff_ffff_ffff_fff8)))
			Expect(res.Value()).To(Equal(uint64(7)))
			Expect(res.Hits).To(Equal([]bool{true}))
		})

		It("should not let a page share the frame of a mapping", func() {
			_, err := s.WriteWord(0x1000, 42)
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Read(0x5000)

			var inUse *vm.FrameInUseError
			Expect(errors.As(err, &inUse)).To(BeTrue())
			Expect(inUse.VPN).To(Equal(uint64(5)))
		})
	})

	Context("with a TLB", func() {
		BeforeEach(func() {
			cfg := smallConfig()
			cfg.TLB = TLBConfig{Sets: 2, Ways: 2}

			var err error
			s, err = New(cfg)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should hit the TLB on the second access to a page", func() {
			first, _ := s.Read(0x1000)
			second, _ := s.Read(0x1008)

			Expect(first.TLBHit).To(BeFalse())
			Expect(second.TLBHit).To(BeTrue())
			Expect(s.Stats().TLBHits).To(Equal(uint64(1)))
		})
	})

	It("should reject addresses beyond the address width", func() {
		cfg := smallConfig()
		cfg.AddressWidth = 32
		s, err := New(cfg)
		Expect(err).NotTo(HaveOccurred())

		_, err = s.Read(1 << 32)

		var rangeErr *vm.AddressOutOfRangeError
		Expect(errors.As(err, &rangeErr)).To(BeTrue())
		Expect(rangeErr.Width).To(Equal(uint64(32)))
	})
})

var _ = Describe("Hooks", func() {
	var s *Simulation

	BeforeEach(func() {
		var err error
		s, err = New(smallConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	It("should report every access in order", func() {
		var records []AccessRecord
		s.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == HookPosAccess {
				records = append(records, ctx.Item.(AccessRecord))
			}
		}))

		s.Read(0x10)
		s.WriteWord(0x10, 7)
		s.TranslateAddress(0x10)

		Expect(records).To(HaveLen(3))
		Expect(records[0].Kind).To(Equal(AccessRead))
		Expect(records[0].HitLevel()).To(Equal("memory"))
		Expect(records[1].Kind).To(Equal(AccessWrite))
		Expect(records[1].HitLevel()).To(Equal("L1"))
		Expect(records[2].Kind).To(Equal(AccessTranslate))
		Expect(records[2].Outcomes).To(BeEmpty())
		Expect(records[2].HitLevel()).To(BeEmpty())
		Expect(records[2].Seq).To(Equal(uint64(3)))
	})

	It("should log accesses", func() {
		buf := new(bytes.Buffer)
		s.AcceptHook(NewLogHook(log.New(buf, "", 0)))

		s.Read(0x1000)

		Expect(strings.TrimSpace(buf.String())).To(Equal(
			"#1 vaddr=0x1000 paddr=0x0 fault=true tlb=false " +
				"read L1:miss L2:miss"))
	})

	It("should signal resets", func() {
		resets := 0
		s.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == HookPosReset {
				resets++
			}
		}))

		s.Reset()

		Expect(resets).To(Equal(1))
	})
})

var _ = Describe("Builder", func() {
	It("should register hooks and the logger", func() {
		buf := new(bytes.Buffer)
		calls := 0

		s, err := MakeBuilder().
			WithConfig(smallConfig()).
			WithLogger(log.New(buf, "", 0)).
			WithHook(sim.HookFunc(func(sim.HookCtx) { calls++ })).
			Build()
		Expect(err).NotTo(HaveOccurred())

		s.Read(0x0)

		Expect(s.NumHooks()).To(Equal(2))
		Expect(calls).To(Equal(1))
		Expect(buf.String()).To(HavePrefix("#1 "))
	})

	It("should give each simulation its own ID", func() {
		a, _ := MakeBuilder().Build()
		b, _ := MakeBuilder().Build()

		Expect(a.ID()).NotTo(BeEmpty())
		Expect(a.ID()).NotTo(Equal(b.ID()))
	})

	It("should reject an invalid configuration", func() {
		cfg := smallConfig()
		cfg.Levels = nil

		_, err := MakeBuilder().WithConfig(cfg).Build()

		Expect(err).To(HaveOccurred())
	})
})
