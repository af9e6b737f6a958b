package simulation

import (
	"encoding/binary"

	"github.com/sarchlab/memhier/mem/hierarchy"
)

// AccessKind tells what an access did.
type AccessKind string

const (
	AccessRead      AccessKind = "read"
	AccessWrite     AccessKind = "write"
	AccessTranslate AccessKind = "translate"
)

// An AccessRecord describes one completed access. It is the item of hooks
// invoked at HookPosAccess.
type AccessRecord struct {
	// Seq numbers the accesses since the last reset, starting at 1.
	Seq  uint64
	Kind AccessKind

	VAddr uint64
	PAddr uint64
	Data  []byte

	// Levels names the levels that Outcomes refer to. Outcomes is empty for
	// translations.
	Levels    []string
	Outcomes  []hierarchy.Outcome
	PageFault bool
	TLBHit    bool
}

// HitLevel returns the name of the level that hit, or "memory" when every
// level missed. It is empty for translations, which reach no level.
func (r AccessRecord) HitLevel() string {
	if len(r.Outcomes) == 0 {
		return ""
	}

	for i, o := range r.Outcomes {
		if o == hierarchy.Hit {
			return r.Levels[i]
		}
	}

	return "memory"
}

// encodeWord zero-extends or truncates value to size bytes.
func encodeWord(value, size uint64) []byte {
	data := make([]byte, max(size, 8))
	binary.LittleEndian.PutUint64(data, value)

	return data[:size]
}

// decodeWord reads at most the first 8 bytes of data.
func decodeWord(data []byte) uint64 {
	var word [8]byte
	copy(word[:], data)

	return binary.LittleEndian.Uint64(word[:])
}
