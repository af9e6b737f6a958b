package cache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memhier/mem"
)

func block(size uint64, fill byte) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = fill
	}

	return data
}

var _ = Describe("Builder", func() {
	It("should compute the geometry", func() {
		l, err := MakeBuilder().
			WithByteSize(1024).
			WithBlockSize(64).
			WithWayAssociativity(2).
			Build("L1")
		Expect(err).NotTo(HaveOccurred())

		Expect(l.NumSets()).To(Equal(8))
		Expect(l.Ways()).To(Equal(2))
		Expect(l.ByteSize()).To(Equal(uint64(1024)))
		Expect(uint64(l.NumSets()*l.Ways()) * l.BlockSize()).
			To(Equal(l.ByteSize()))
	})

	It("should build direct mapped and fully associative caches", func() {
		direct, err := MakeBuilder().WithByteSize(1024).WithDirectMapped().
			Build("Direct")
		Expect(err).NotTo(HaveOccurred())
		Expect(direct.Ways()).To(Equal(1))
		Expect(direct.NumSets()).To(Equal(16))

		full, err := MakeBuilder().WithByteSize(1024).WithFullyAssociative().
			Build("Full")
		Expect(err).NotTo(HaveOccurred())
		Expect(full.Ways()).To(Equal(16))
		Expect(full.NumSets()).To(Equal(1))
	})

	DescribeTable("should reject invalid geometries",
		func(builder Builder, field string) {
			_, err := builder.Build("Bad")

			var configErr *mem.ConfigError
			Expect(err).To(BeAssignableToTypeOf(configErr))
			Expect(err.(*mem.ConfigError).Field).To(Equal(field))
		},
		Entry("block size not a power of two",
			MakeBuilder().WithBlockSize(48), "block_size"),
		Entry("zero associativity",
			MakeBuilder().WithWayAssociativity(0), "associativity"),
		Entry("size not a multiple of the set size",
			MakeBuilder().WithByteSize(1000), "size"),
		Entry("number of sets not a power of two",
			MakeBuilder().WithByteSize(3*64*4), "size"),
		Entry("zero size",
			MakeBuilder().WithByteSize(0), "size"),
	)
})

var _ = Describe("Level", func() {
	var l *Level

	BeforeEach(func() {
		var err error
		l, err = MakeBuilder().
			WithByteSize(1024).
			WithBlockSize(64).
			WithWayAssociativity(2).
			Build("L1")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should miss on a cold cache", func() {
		_, hit := l.Read(0x1000, 8)

		Expect(hit).To(BeFalse())
		Expect(l.Stats().ReadMisses).To(Equal(uint64(1)))
	})

	It("should hit after a fill", func() {
		data := block(64, 0)
		data[8] = 0xab
		l.Fill(0x1008, data)

		got, hit := l.Read(0x1008, 1)
		Expect(hit).To(BeTrue())
		Expect(got).To(Equal([]byte{0xab}))
		Expect(l.Stats().ReadHits).To(Equal(uint64(1)))
		Expect(l.Stats().Fills).To(Equal(uint64(1)))
	})

	It("should hit anywhere in the same block", func() {
		l.Fill(0x1000, block(64, 7))

		_, hit := l.Read(0x103f, 1)
		Expect(hit).To(BeTrue())

		_, hit = l.Read(0x1040, 1)
		Expect(hit).To(BeFalse())
	})

	It("should evict the least recently used block (A, B, A, C)", func() {
		stride := uint64(64 * 8)
		a, b, c := uint64(0), stride, 2*stride

		l.Fill(a, block(64, 'A'))
		l.Fill(b, block(64, 'B'))
		_, hit := l.Lookup(a)
		Expect(hit).To(BeTrue())

		evicted, wasEvicted := l.Fill(c, block(64, 'C'))

		Expect(wasEvicted).To(BeTrue())
		Expect(evicted).To(Equal(b))
		Expect(l.Contains(a)).To(BeTrue())
		Expect(l.Contains(b)).To(BeFalse())
		Expect(l.Contains(c)).To(BeTrue())
		Expect(l.ResidentBlocks(0)).To(Equal([]uint64{a, c}))
		Expect(l.Stats().Evictions).To(Equal(uint64(1)))
	})

	It("should evict exactly the least recently referenced of k tags", func() {
		l4, _ := MakeBuilder().
			WithByteSize(4 * 64).
			WithBlockSize(64).
			WithWayAssociativity(4).
			Build("OneSet")

		for i := uint64(0); i < 4; i++ {
			l4.Fill(i*64, block(64, byte(i)))
		}

		for _, i := range []uint64{2, 0, 3, 1} {
			l4.Lookup(i * 64)
		}

		evicted, _ := l4.Fill(4*64, block(64, 4))
		Expect(evicted).To(Equal(uint64(2 * 64)))
	})

	It("should never hold more valid blocks than ways", func() {
		for i := uint64(0); i < 200; i++ {
			l.Fill(i*64*3, block(64, byte(i)))

			for set := 0; set < l.NumSets(); set++ {
				Expect(l.ValidBlocks(set)).To(BeNumerically("<=", l.Ways()))
			}
		}
	})

	It("should be deterministic", func() {
		run := func() []SetSnapshot {
			other, _ := MakeBuilder().
				WithByteSize(1024).
				WithBlockSize(64).
				WithWayAssociativity(2).
				Build("L1")

			for i := uint64(0); i < 100; i++ {
				addr := (i * 7919) % 8192
				if _, hit := other.Lookup(addr); !hit {
					other.Fill(addr, block(64, byte(i)))
				}
			}

			return other.Sets()
		}

		Expect(run()).To(Equal(run()))
	})

	It("should write through in place on a hit", func() {
		l.Fill(0x2000, block(64, 0))

		hit := l.WriteThrough(0x2004, []byte{1, 2})
		Expect(hit).To(BeTrue())

		got, _ := l.Read(0x2004, 2)
		Expect(got).To(Equal([]byte{1, 2}))
		Expect(l.Stats().WriteHits).To(Equal(uint64(1)))
	})

	It("should not allocate on a write miss", func() {
		hit := l.WriteThrough(0x2004, []byte{1, 2})

		Expect(hit).To(BeFalse())
		Expect(l.Contains(0x2004)).To(BeFalse())
		Expect(l.Stats().WriteMisses).To(Equal(uint64(1)))
	})

	It("should refresh recency on a write hit", func() {
		stride := uint64(64 * 8)
		l.Fill(0, block(64, 'A'))
		l.Fill(stride, block(64, 'B'))
		l.WriteThrough(0, []byte{'a'})

		evicted, _ := l.Fill(2*stride, block(64, 'C'))
		Expect(evicted).To(Equal(stride))
	})

	It("should panic on accesses crossing a block", func() {
		Expect(func() { l.Read(0x3c, 8) }).To(Panic())
		Expect(func() { l.Fill(0, block(32, 0)) }).To(Panic())
	})

	It("should describe its sets", func() {
		l.Fill(0x1000, block(64, 1))

		sets := l.Sets()
		Expect(sets).To(HaveLen(1))
		Expect(sets[0].SetID).To(Equal(0))
		Expect(sets[0].Ways[0].Valid).To(BeTrue())
		Expect(sets[0].Ways[0].BlockAddr).To(Equal(uint64(0x1000)))
		Expect(sets[0].Ways[0].Rank).To(Equal(1))
		Expect(sets[0].Ways[1].Valid).To(BeFalse())
	})

	It("should invalidate everything on reset", func() {
		l.Fill(0x1000, block(64, 1))
		l.Read(0x1000, 1)

		l.Reset()

		Expect(l.Contains(0x1000)).To(BeFalse())
		Expect(l.Sets()).To(BeEmpty())
		Expect(l.Stats()).To(BeZero())
	})

	It("should compute hit rates", func() {
		s := Stats{ReadHits: 3, ReadMisses: 1}
		Expect(s.HitRate()).To(Equal(0.75))
		Expect(Stats{}.HitRate()).To(BeZero())
	})
})
