package vm

import (
	"unsafe"

	"defs"
	"durable"
	"pmem"
	"util"
)

// SegmentMapping links a virtual range to a physical range inside a PMEM
// region. It is itself durable: Set and Clear flush the record after every
// write so the triple survives a crash. The zero value is the "unused"
// segment spec.md §3 describes.
type SegmentMapping struct {
	Vaddr   uint64
	Paddr   uint64
	MapSize uint64
}

// Set assigns all three words and flushes the record, making the segment
// durable before any caller can rely on it.
func (s *SegmentMapping) Set(vaddr, paddr, size uint64) {
	s.Vaddr, s.Paddr, s.MapSize = vaddr, paddr, size
	s.flushSelf()
}

// Clear zeroes the segment and flushes it.
func (s *SegmentMapping) Clear() {
	s.Vaddr, s.Paddr, s.MapSize = 0, 0, 0
	s.flushSelf()
}

func (s *SegmentMapping) flushSelf() {
	durable.FlushRange(uintptr(unsafe.Pointer(s)), unsafe.Sizeof(*s))
}

// AllocFromPmem draws MapSize bytes from region and records the resulting
// physical offset. MapSize must already be set (by a prior Set call with
// Paddr left 0, or by direct field assignment before recovery populates it)
// and be a multiple of the page size.
func (s *SegmentMapping) AllocFromPmem(region *pmem.Region) defs.Err_t {
	if s.MapSize == 0 || !util.Aligned(s.MapSize, uint64(pmem.PGSIZE)) {
		return defs.EHEAPOVERFLOW
	}
	npages := int(s.MapSize) / pmem.PGSIZE
	off, err := region.AllocPages(npages)
	if err != nil {
		return defs.EPMEMEXHAUSTED
	}
	s.Paddr = uint64(off)
	s.flushSelf()
	return 0
}

// CopyDataFrom copies src's live bytes into this segment's backing storage,
// flushing each destination cache line as it is written, and accumulates
// the number of bytes copied into *copied. The precondition is
// this.MapSize >= src.MapSize and both Paddr non-zero.
func (s *SegmentMapping) CopyDataFrom(src *SegmentMapping, region *pmem.Region, copied *uint64) defs.Err_t {
	if s.Paddr == 0 || src.Paddr == 0 {
		return defs.EUNINITIALIZED
	}
	if s.MapSize < src.MapSize {
		return defs.EHEAPOVERFLOW
	}
	dst := region.Bytes(pmem.Pa_t(s.Paddr), int(s.MapSize)/pmem.PGSIZE)
	source := region.Bytes(pmem.Pa_t(src.Paddr), int(src.MapSize)/pmem.PGSIZE)
	n := copy(dst, source[:src.MapSize])
	if n > 0 {
		durable.FlushSlice(dst[:n])
	}
	*copied += uint64(n)
	return 0
}

// Map installs page-table entries covering [Vaddr, Vaddr+MapSize) onto
// [Paddr, Paddr+MapSize) in root, using alloc for any intermediate levels
// that don't yet exist. A null segment (Paddr == 0) is skipped. If
// shouldFlush, every touched page-table entry is flushed after being
// written.
func (s *SegmentMapping) Map(alloc Allocator, root *PageTable, attrs Attrs, base uintptr, shouldFlush bool) error {
	if s.Paddr == 0 {
		return nil
	}
	entryAttrs := attrs | Present
	for off := uint64(0); off < s.MapSize; off += uint64(pmem.PGSIZE) {
		vaddr := uintptr(s.Vaddr + off)
		paddr := base + uintptr(s.Paddr+off)
		pte, err := walk(root, vaddr, alloc, entryAttrs)
		if err != nil {
			return err
		}
		*pte = (uint64(paddr) &^ 0xfff) | uint64(entryAttrs)
		if shouldFlush {
			durable.Flush(uintptr(unsafe.Pointer(pte)))
		}
	}
	return nil
}

// Flush forces every cache line of the segment's physical range back to
// persistent memory and counts the flushes performed.
func (s *SegmentMapping) Flush(region *pmem.Region, flushCount *int) {
	if s.Paddr == 0 || s.MapSize == 0 {
		return
	}
	data := region.Bytes(pmem.Pa_t(s.Paddr), int(s.MapSize)/pmem.PGSIZE)
	durable.FlushSlice(data)
	_, lines := util.CachelineRound(0, uintptr(len(data)), durable.LineSize)
	*flushCount += lines
}

// Empty reports whether the segment is the zero/unused value.
func (s *SegmentMapping) Empty() bool {
	return s.Vaddr == 0 && s.Paddr == 0 && s.MapSize == 0
}
