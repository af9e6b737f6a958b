package hierarchy

import "fmt"

// An AccessError reports an access that no level can serve as a single block
// access.
type AccessError struct {
	Addr     uint64
	ByteSize uint64
	Level    string
}

func (e *AccessError) Error() string {
	if e.ByteSize == 0 {
		return fmt.Sprintf("access at 0x%x has no bytes", e.Addr)
	}

	return fmt.Sprintf("access of %d bytes at 0x%x crosses a block of %s",
		e.ByteSize, e.Addr, e.Level)
}
