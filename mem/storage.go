package mem

import (
	"errors"
	"sort"
)

// ErrBeyondCapacity is returned when an access reaches past the capacity of a
// Storage.
var ErrBeyondCapacity = errors.New(
	"accessing physical address beyond the storage capacity")

// A BackingStore is the memory below the last cache level. Bytes that were
// never written read as zero.
type BackingStore interface {
	Read(address uint64, byteSize uint64) ([]byte, error)
	Write(address uint64, data []byte) error
	Reset()
}

// A Storage keeps the data of the simulated physical memory.
//
// The storage manages the memory in units, similar to the concept of page in
// memory management. For the units that are not touched by Write, no memory
// is allocated, so a full 64-bit physical address space costs nothing until
// it is used.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity. A capacity
// of zero means the whole 64-bit physical address space.
func NewStorage(capacity uint64) *Storage {
	storage := new(Storage)

	storage.unitSize = 4 * KB
	storage.capacity = capacity
	storage.data = make(map[uint64][]byte)

	return storage
}

// Capacity returns the capacity of the storage. Zero means unlimited.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

// checkRange compares the last byte accessed, so that an access may end at
// the top of the 64-bit address space.
func (s *Storage) checkRange(address, byteSize uint64) error {
	if byteSize == 0 {
		return nil
	}

	last := address + byteSize - 1
	if last < address {
		return ErrBeyondCapacity
	}

	if s.capacity != 0 && last >= s.capacity {
		return ErrBeyondCapacity
	}

	return nil
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return
}

// Read returns byteSize bytes starting at address.
func (s *Storage) Read(address uint64, byteSize uint64) ([]byte, error) {
	if err := s.checkRange(address, byteSize); err != nil {
		return nil, err
	}

	res := make([]byte, byteSize)
	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < byteSize {
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenToRead := min(byteSize-dataOffset, s.unitSize-inUnitAddr)

		if unit, ok := s.data[baseAddr]; ok {
			copy(res[dataOffset:dataOffset+lenToRead],
				unit[inUnitAddr:inUnitAddr+lenToRead])
		}

		dataOffset += lenToRead
		currAddr += lenToRead
	}

	return res, nil
}

// Write stores data starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	byteSize := uint64(len(data))
	if err := s.checkRange(address, byteSize); err != nil {
		return err
	}

	currAddr := address
	dataOffset := uint64(0)

	for dataOffset < byteSize {
		baseAddr, inUnitAddr := s.parseAddress(currAddr)
		lenToWrite := min(byteSize-dataOffset, s.unitSize-inUnitAddr)

		unit, ok := s.data[baseAddr]
		if !ok {
			unit = make([]byte, s.unitSize)
			s.data[baseAddr] = unit
		}

		copy(unit[inUnitAddr:inUnitAddr+lenToWrite],
			data[dataOffset:dataOffset+lenToWrite])
		dataOffset += lenToWrite
		currAddr += lenToWrite
	}

	return nil
}

// Units returns the base addresses of the allocated units in ascending order.
func (s *Storage) Units() []uint64 {
	units := make([]uint64, 0, len(s.data))
	for base := range s.data {
		units = append(units, base)
	}

	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })

	return units
}

// Reset drops all the data in the storage.
func (s *Storage) Reset() {
	s.data = make(map[uint64][]byte)
}
