// Package vm materialises persistent ProcessMappingInfo records into live
// x86-64 page tables and implements the SegmentMapping value type (C2) that
// the rest of the core copies, flushes, and maps.
package vm

import "pmem"

// PGSIZE is the small page size this core maps in, re-exported from pmem so
// callers outside pmem don't need to import it just for the constant.
const PGSIZE = pmem.PGSIZE

// PageTable is one level of the 4-level x86-64 paging hierarchy: 512
// 8-byte entries, each either a pointer to the next level or, at the PD/PT
// level, a leaf mapping.
type PageTable [512]uint64

// Attrs are the page-attribute bits spec.md §6 names, plus the
// large-page bit needed to mark a PD entry as a 2 MiB leaf.
type Attrs uint64

const (
	Present      Attrs = 1 << 0
	Writable     Attrs = 1 << 1
	User         Attrs = 1 << 2
	WriteThrough Attrs = 1 << 3
	CacheDisable Attrs = 1 << 4
	PageSizeBit  Attrs = 1 << 7 // large (2 MiB) page at the PD level
	NoExecute    Attrs = 1 << 63

	addrMask uint64 = 0x000ffffffffff000
)

// Allocator hands out zeroed pages for new page-table levels. vm.PageTable
// trees live in volatile memory (spec.md §4.6: "stored in volatile memory");
// only the mapping's target physical pages are durable.
type Allocator interface {
	// AllocPage returns the address of a freshly zeroed PageTable.
	AllocPage() (*PageTable, error)
}

// pageIndex splits a canonical virtual address into its four levels:
// PML4, PDPT, PD, PT.
func pageIndex(vaddr uintptr) (pml4, pdpt, pd, pt int) {
	pml4 = int((vaddr >> 39) & 0x1ff)
	pdpt = int((vaddr >> 30) & 0x1ff)
	pd = int((vaddr >> 21) & 0x1ff)
	pt = int((vaddr >> 12) & 0x1ff)
	return
}

// walk returns the leaf PTE slot for vaddr within root, allocating
// intermediate levels from alloc as needed. New intermediate levels are
// always entered Present|Writable|User; flags is consulted only for
// PageSizeBit, which stops the walk at the PD entry.
func walk(root *PageTable, vaddr uintptr, alloc Allocator, flags Attrs) (*uint64, error) {
	l4, l3, l2, l1 := pageIndex(vaddr)

	next := func(pt *PageTable, idx int) (*PageTable, error) {
		e := pt[idx]
		if e&uint64(Present) == 0 {
			child, err := alloc.AllocPage()
			if err != nil {
				return nil, err
			}
			pt[idx] = tableAddr(child) | uint64(Present|Writable|User)
			return child, nil
		}
		return (*PageTable)(addrToPointer(e)), nil
	}

	l3t, err := next(root, l4)
	if err != nil {
		return nil, err
	}
	l2t, err := next(l3t, l3)
	if err != nil {
		return nil, err
	}
	if flags&PageSizeBit != 0 {
		return &l2t[l2], nil
	}
	l1t, err := next(l2t, l2)
	if err != nil {
		return nil, err
	}
	return &l1t[l1], nil
}
