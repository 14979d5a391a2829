// Package ppinfo implements PersistentProcessInfo (C5) and the checkpoint
// engine's SwitchContext operation (C6): the two-slot double-buffer of
// execution contexts, its atomic validity index, and the four-step commit
// protocol spec.md §4.4 describes.
//
// The commit protocol is grounded on the undo-log commit idiom of
// mansub1029-go-pmem-transaction's undoTx: flush the data first, then make
// a single small durable store that flips which copy is authoritative, then
// flush that store. Everything durable here goes through durable.FlushRange
// the same way that package routes through runtime.PersistRange.
package ppinfo

import (
	"unsafe"

	"defs"
	"durable"
	"execctx"
	"pmem"
)

// numContexts is the fixed double-buffer width; it is also the sentinel
// value of ValidCtxIdx meaning "uninitialised".
const numContexts = 2

// Sentinel is the value of ValidCtxIdx before the first checkpoint commits.
const Sentinel = numContexts

// Magic identifies a PersistentProcessInfo record in PMEM. spec.md §6 gives
// the arena descriptor's own magic; this is the analogous per-record value,
// chosen independently so a partially-written descriptor and a
// partially-written process record can never be confused for one another.
const Magic uint64 = 0x6c69756d6f735050 // "liumosPP"

// PersistentProcessInfo is the atomic durable unit spec.md §3 (C5)
// describes: two ExecutionContexts, a validity index, and a signature.
type PersistentProcessInfo struct {
	Ctx         [numContexts]execctx.ExecutionContext
	ValidCtxIdx uint64
	Signature   uint64
}

// Init stamps a fresh record with the magic signature and the sentinel
// validity index, then flushes both fields, per the "placement-new into
// zeroed memory" design note: callers build into already-zeroed PMEM, then
// this call durably publishes it as live.
func (p *PersistentProcessInfo) Init() {
	p.Signature = Magic
	p.ValidCtxIdx = Sentinel
	p.flushHeader()
}

func (p *PersistentProcessInfo) flushHeader() {
	durable.FlushRange(uintptr(unsafe.Pointer(&p.ValidCtxIdx)), unsafe.Sizeof(p.ValidCtxIdx))
	durable.FlushRange(uintptr(unsafe.Pointer(&p.Signature)), unsafe.Sizeof(p.Signature))
}

// Validate checks the invariants recovery enforces (spec.md §3): a matching
// signature and a validity index in {0,1}. It returns ECORRUPTPMEM if the
// signature doesn't match or the index is out of range, or EUNINITIALIZED
// if the signature matches but no checkpoint has ever committed.
func (p *PersistentProcessInfo) Validate() defs.Err_t {
	if p.Signature != Magic {
		return defs.ECORRUPTPMEM
	}
	if p.ValidCtxIdx == Sentinel {
		return defs.EUNINITIALIZED
	}
	if p.ValidCtxIdx > numContexts-1 {
		return defs.ECORRUPTPMEM
	}
	return 0
}

// Valid returns the currently-authoritative execution context. Callers must
// call Validate first; Valid panics if ValidCtxIdx is out of {0,1}.
func (p *PersistentProcessInfo) Valid() *execctx.ExecutionContext {
	return &p.Ctx[p.validIndex()]
}

func (p *PersistentProcessInfo) validIndex() uint64 {
	if p.ValidCtxIdx > numContexts-1 {
		panic("ppinfo: Valid called on an unvalidated record")
	}
	return p.ValidCtxIdx
}

// SwitchContext runs the commit protocol of spec.md §4.4:
//  1. v = ValidCtxIdx, w = 1-v; fails with EUNINITIALIZED if v isn't in {0,1}.
//  2. flush the working context's data (durable.FlushRange over its segments).
//  3. commit: store ValidCtxIdx = w and flush that one word. This is the
//     single point a crash can be observed on either side of.
//  4. copy the new valid context back into the new working slot so the next
//     checkpoint interval starts from a known-good image.
//
// copied and flushed accumulate the byte and cache-line counts the caller
// uses for diagnostics (spec.md's stats/instrumentation needs, C9).
func (p *PersistentProcessInfo) SwitchContext(region *pmem.Region, copied *uint64, flushed *int) defs.Err_t {
	if p.ValidCtxIdx > numContexts-1 {
		return defs.EUNINITIALIZED
	}
	v := p.ValidCtxIdx
	w := numContexts - 1 - v

	p.Ctx[w].Flush(region, flushed)

	p.ValidCtxIdx = w
	durable.FlushRange(uintptr(unsafe.Pointer(&p.ValidCtxIdx)), unsafe.Sizeof(p.ValidCtxIdx))

	return p.Ctx[v].CopyContextFrom(&p.Ctx[w], region, copied)
}
