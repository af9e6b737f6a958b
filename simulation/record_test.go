package simulation

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memhier/mem/hierarchy"
)

var _ = Describe("AccessRecord", func() {
	It("should name the level that hit", func() {
		rec := AccessRecord{
			Levels:   []string{"L1", "L2"},
			Outcomes: []hierarchy.Outcome{hierarchy.Miss, hierarchy.Hit},
		}
		Expect(rec.HitLevel()).To(Equal("L2"))

		rec.Outcomes = []hierarchy.Outcome{hierarchy.Miss, hierarchy.Miss}
		Expect(rec.HitLevel()).To(Equal("memory"))

		rec.Outcomes = nil
		Expect(rec.HitLevel()).To(BeEmpty())
	})
})

var _ = Describe("Words", func() {
	It("should encode little-endian words of any size", func() {
		Expect(encodeWord(0x0102_0304, 4)).To(Equal([]byte{4, 3, 2, 1}))
		Expect(encodeWord(0x0102_0304_0506_0708, 2)).To(Equal([]byte{8, 7}))

		wide := encodeWord(0xff, 16)
		Expect(wide).To(HaveLen(16))
		Expect(wide[0]).To(Equal(byte(0xff)))
		Expect(wide[1:]).To(Equal(make([]byte, 15)))
	})

	It("should decode what it encodes", func() {
		Expect(decodeWord(encodeWord(0xdead_beef, 4))).To(Equal(uint64(0xdead_beef)))
		Expect(decodeWord([]byte{1, 2})).To(Equal(uint64(0x0201)))
		Expect(decodeWord(encodeWord(^uint64(0), 16))).To(Equal(^uint64(0)))
	})
})
