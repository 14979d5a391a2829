package vm

import "unsafe"

// tableAddr and addrToPointer convert between a *PageTable and the raw
// 64-bit value stored in a parent entry. liumos models page tables as
// ordinary Go-allocated values rather than a real identity-mapped physical
// address space, so "physical address" here is simply the table's pointer
// value with the attribute bits masked off — sufficient to round-trip a
// page-table tree built and walked entirely by this package.
func tableAddr(pt *PageTable) uint64 {
	return uint64(uintptr(unsafe.Pointer(pt))) &^ 0xfff
}

func addrToPointer(entry uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(entry & addrMask))
}
