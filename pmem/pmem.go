// Package pmem manages the durable physical-memory arena the checkpointing
// core is built on: a single contiguous byte region, a bump allocator over
// its pages, and a durable descriptor header used to find every registered
// process's PersistentProcessInfo record across a restart.
//
// The allocator itself is not durable in the COW/refcounted sense the
// teacher's Physmem_t is (no demand paging, no per-CPU free lists — this
// core runs on one logical CPU and never frees a page once handed out); what
// must survive a crash is the descriptor header recording how much of the
// arena is in use and where every process record lives, modeled on the
// first-run-vs-recovery magic-header pattern common to pmem allocators.
package pmem

import (
	"fmt"
	"unsafe"

	"defs"
	"util"
)

// PGSHIFT is the base-2 exponent of the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

// Pa_t represents an offset into the arena, in bytes from its base.
type Pa_t uintptr

// MaxProcs bounds how many PersistentProcessInfo slots the descriptor can
// track; it mirrors the scheduler's own fixed table size (limits.MaxProcs)
// so the descriptor never needs to grow.
const MaxProcs = 256

// descriptorMagic identifies an arena that pmem itself has initialized,
// matching spec.md §6's literal. Stored little-endian, its bytes spell
// "liumOSPO" in ASCII, chosen only to be recognizable in a hex dump; it
// carries no other meaning.
const descriptorMagic uint64 = 0x4F50534F6D75696C

// descriptor is the durable header living at offset 0 of the arena. It is
// flushed explicitly after every field update that must survive a crash;
// ordinary Go field writes are not durable by themselves.
type descriptor struct {
	Magic    uint64
	FreeByte uint64
	// Records holds a byte offset into the arena for each registered
	// process's PersistentProcessInfo record, or 0 if the slot is empty.
	// pmem never interprets these bytes; ppinfo does.
	Records [MaxProcs]uint64
}

const descriptorSize = int(unsafe.Sizeof(descriptor{}))

// Region is a durable arena: a contiguous slice of bytes, bump-allocated a
// page at a time, with a descriptor header tracking allocation progress and
// per-process record locations.
type Region struct {
	arena []byte
	desc  *descriptor
	flush FlushFunc
}

// FlushFunc persists the byte range [addr, addr+n) to the backing medium.
// Region calls it after every durable header update; pmem does not import
// the durable package, so the caller supplies it.
type FlushFunc func(base uintptr, n uintptr)

// Config parameters construct a Region at boot, mirroring the teacher's
// Phys_init single construction call.
type Config struct {
	// ArenaSize is the total size of the backing arena in bytes. Open does
	// not read it: the Region always spans the whole slice passed to Open.
	ArenaSize int
	// Flush persists header writes. If nil, flushes are skipped (useful in
	// tests that don't care about durability, only about bookkeeping).
	Flush FlushFunc
}

// Open constructs a Region over a freshly allocated arena (first boot) or
// adopts one written by a previous run (recovery), deciding which by
// inspecting the descriptor magic, in the style of pmem allocators that
// distinguish first-time init from a post-crash reopen by a header check.
func Open(arena []byte, cfg Config) (*Region, bool, error) {
	if len(arena) < descriptorSize+PGSIZE {
		return nil, false, fmt.Errorf("pmem: arena too small: %d bytes", len(arena))
	}
	r := &Region{
		arena: arena,
		desc:  (*descriptor)(unsafe.Pointer(&arena[0])),
		flush: cfg.Flush,
	}
	if r.desc.Magic == descriptorMagic {
		return r, true, nil
	}
	r.desc.Magic = descriptorMagic
	r.desc.FreeByte = uint64(util.Roundup(descriptorSize, PGSIZE))
	for i := range r.desc.Records {
		r.desc.Records[i] = 0
	}
	r.persistDescriptor()
	return r, false, nil
}

func (r *Region) persistDescriptor() {
	if r.flush != nil {
		r.flush(uintptr(unsafe.Pointer(r.desc)), uintptr(descriptorSize))
	}
}

// AllocPages bump-allocates n contiguous pages and returns the offset of the
// first one. It never reclaims pages: the checkpointing core frees memory
// only by process exit, and exited processes' arenas are left for the next
// Open to overwrite record-by-record, not byte-by-byte.
func (r *Region) AllocPages(n int) (Pa_t, error) {
	if n <= 0 {
		return 0, fmt.Errorf("pmem: AllocPages: n must be positive, got %d", n)
	}
	need := uint64(n * PGSIZE)
	start := r.desc.FreeByte
	if start+need > uint64(len(r.arena)) {
		return 0, defs.EPMEMEXHAUSTED
	}
	r.desc.FreeByte = start + need
	r.persistDescriptor()
	return Pa_t(start), nil
}

// Bytes returns the live byte slice backing the page at offset pa, sized to
// n pages.
func (r *Region) Bytes(pa Pa_t, n int) []byte {
	start := int(pa)
	end := start + n*PGSIZE
	return r.arena[start:end]
}

// Size returns the total arena size in bytes.
func (r *Region) Size() int {
	return len(r.arena)
}

// FreeBytes returns the number of bytes never yet handed out by AllocPages.
func (r *Region) FreeBytes() int {
	return len(r.arena) - int(r.desc.FreeByte)
}

// RawBytes returns n bytes of the arena starting at pa, without the
// page-multiple requirement Bytes has. Callers overlay fixed-size durable
// records (PersistentProcessInfo) at an AllocPages-returned offset, whose
// size is rarely a whole number of pages.
func (r *Region) RawBytes(pa Pa_t, n int) []byte {
	start := int(pa)
	return r.arena[start : start+n]
}

// PutRecord stores the arena offset of slot's PersistentProcessInfo record
// in the descriptor, so a later Open can find it during recovery.
func (r *Region) PutRecord(slot int, offset Pa_t) error {
	if slot < 0 || slot >= MaxProcs {
		return fmt.Errorf("pmem: PutRecord: slot %d out of range", slot)
	}
	r.desc.Records[slot] = uint64(offset)
	r.persistDescriptor()
	return nil
}

// Records returns the non-empty (slot, offset) pairs written by prior
// PutRecord calls, in slot order. kernel.Recover walks these to rebuild the
// process table after a restart.
func (r *Region) Records() []RecordRef {
	var out []RecordRef
	for i, off := range r.desc.Records {
		if off != 0 {
			out = append(out, RecordRef{Slot: i, Offset: Pa_t(off)})
		}
	}
	return out
}

// RecordRef names a registered PersistentProcessInfo record's location.
type RecordRef struct {
	Slot   int
	Offset Pa_t
}

// NoopFlush is a FlushFunc that performs no durability action, for callers
// whose backing arena is already fully durable by construction (e.g. an
// mmap'd file the OS will write back on its own schedule) or that don't
// care about crash consistency at all (most tests).
func NoopFlush(base uintptr, n uintptr) {}
