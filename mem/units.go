// Package mem provides the building blocks shared by the memory models: byte
// units, the configuration error, and the backing storage that sits below the
// cache hierarchy.
package mem

import "math/bits"

// Byte units.
const (
	_        = iota
	KB uint64 = 1 << (10 * iota)
	MB
	GB
)

// IsPowerOfTwo tells if n is a positive power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// Log2 returns the base-2 logarithm of a power of two. It panics if n is not
// a power of two.
func Log2(n uint64) uint64 {
	if !IsPowerOfTwo(n) {
		panic("not a power of two")
	}

	return uint64(bits.TrailingZeros64(n))
}
