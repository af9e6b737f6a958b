package vm

import "fmt"

// A PageFaultError reports a virtual page that has no valid entry in the page
// table while the policy does not allow allocating one.
type PageFaultError struct {
	VPN uint64
}

func (e *PageFaultError) Error() string {
	return fmt.Sprintf("page fault: virtual page 0x%x is not mapped", e.VPN)
}

// An AddressOutOfRangeError reports an address that does not fit in the
// configured address width.
type AddressOutOfRangeError struct {
	Addr  uint64
	Width uint64
}

func (e *AddressOutOfRangeError) Error() string {
	return fmt.Sprintf("address 0x%x exceeds the %d-bit address width",
		e.Addr, e.Width)
}

// A FrameInUseError reports a page that cannot be allocated because the only
// frame it may use already backs another page.
type FrameInUseError struct {
	VPN uint64
	PFN uint64
}

func (e *FrameInUseError) Error() string {
	return fmt.Sprintf("virtual page 0x%x cannot be allocated: frame 0x%x "+
		"is mapped to another page", e.VPN, e.PFN)
}
