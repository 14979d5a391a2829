// Package execctx implements CPUContext and ExecutionContext (C4): the full
// architectural state needed to resume a process via an interrupt return,
// plus the process mapping info, kernel stack pointer, and heap watermark
// that ride alongside it in a checkpoint.
//
// CPUContext's register-file split (named general-purpose fields vs. an
// opaque FXSAVE byte blob) follows bobuhiro11-gokvm's SaveCPUState /
// RestoreCPUState design: registers the core needs to reason about (rip,
// rsp, cr3, rflags) are named fields; everything else the CPU owns (FPU,
// SSE, MXCSR) is copied and flushed as an undifferentiated block.
package execctx

import (
	"unsafe"

	"defs"
	"durable"
	"pmem"
	"util"
	"vm"
)

// fxsaveSize is the size of the legacy FXSAVE/FXRSTOR region.
const fxsaveSize = 512

// rflagsBit1 is bit 1 of rflags, the reserved bit that always reads as 1;
// spec.md §3 requires it set in every valid CPUContext.
const rflagsBit1 uint64 = 1 << 1

// CPUContext is the opaque architectural register file spec.md §3 names:
// general-purpose registers, the interrupt frame, cr3, and FPU/SSE state.
type CPUContext struct {
	Rax, Rbx, Rcx, Rdx uint64
	Rsi, Rdi, Rbp      uint64
	R8, R9, R10, R11   uint64
	R12, R13, R14, R15 uint64

	// Interrupt frame: the five words an `iret` pops off the stack.
	Rip    uint64
	Cs     uint64
	Rflags uint64
	Rsp    uint64
	Ss     uint64

	Cr3 uint64

	// Fxsave holds FPU/SSE/MXCSR state in the CPU's native FXSAVE layout.
	// Opaque to this package; copied and flushed as a block.
	Fxsave [fxsaveSize]byte
}

// ExecutionContext is CPUContext + ProcessMappingInfo + kernel_rsp +
// heap_used_size (spec.md §3, C4).
type ExecutionContext struct {
	CPU          CPUContext
	Mapping      vm.ProcessMappingInfo
	KernelRsp    uint64
	HeapUsedSize uint64
}

// SetRegisters initialises the CPU interrupt frame, forces rflags bit 1,
// and resets heap_used_size to 0, per spec.md §4.3.
func (ec *ExecutionContext) SetRegisters(rip, cs, rsp, ss, cr3, rflags, kernelRsp uint64) {
	ec.CPU.Rip = rip
	ec.CPU.Cs = cs
	ec.CPU.Rsp = rsp
	ec.CPU.Ss = ss
	ec.CPU.Cr3 = cr3
	ec.CPU.Rflags = rflags | rflagsBit1
	ec.KernelRsp = kernelRsp
	ec.HeapUsedSize = 0
}

// PushToStack lays bytes onto the context's stored user stack image,
// decrementing Rsp by len(bytes) and writing them into the stack segment's
// backing storage. It is used to build the initial argv/envp image before
// first dispatch.
func (ec *ExecutionContext) PushToStack(region *pmem.Region, bytes []byte) error {
	seg := &ec.Mapping.Stack
	newRsp := ec.CPU.Rsp - uint64(len(bytes))
	if newRsp < seg.Vaddr {
		return errOverflow{"PushToStack", "stack"}
	}
	segBytes := region.Bytes(pmem.Pa_t(seg.Paddr), int(seg.MapSize)/pmem.PGSIZE)
	off := newRsp - seg.Vaddr
	copy(segBytes[off:off+uint64(len(bytes))], bytes)
	ec.CPU.Rsp = newRsp
	return nil
}

// AlignStack rounds Rsp down to the given power-of-two alignment, as the
// System V ABI requires before a call's first instruction.
func (ec *ExecutionContext) AlignStack(alignment uint64) {
	ec.CPU.Rsp &^= (alignment - 1)
}

// ExpandHeap adjusts HeapUsedSize by delta (which may be negative),
// rejecting the change if it would push the watermark outside
// [0, heap.MapSize].
func (ec *ExecutionContext) ExpandHeap(delta int64) defs.Err_t {
	cur := int64(ec.HeapUsedSize)
	next := cur + delta
	if next < 0 {
		return defs.EHEAPUNDERFLOW
	}
	if uint64(next) > ec.Mapping.Heap.MapSize {
		return defs.EHEAPOVERFLOW
	}
	ec.HeapUsedSize = uint64(next)
	return 0
}

// CopyContextFrom copies the entire CPU context (except Cr3, which is
// per-address-space) and the data and stack segment contents from src into
// ec, accumulating the number of bytes copied into *bytes. Heap and code
// are not copied: code is read-only and shared-identical between slots, and
// heap is persisted explicitly by the user through ExpandHeap plus direct
// writes.
func (ec *ExecutionContext) CopyContextFrom(src *ExecutionContext, region *pmem.Region, bytes *uint64) defs.Err_t {
	keepCr3 := ec.CPU.Cr3
	ec.CPU = src.CPU
	ec.CPU.Cr3 = keepCr3
	ec.KernelRsp = src.KernelRsp
	ec.HeapUsedSize = src.HeapUsedSize

	if errc := ec.Mapping.Data.CopyDataFrom(&src.Mapping.Data, region, bytes); errc != 0 {
		return errc
	}
	if errc := ec.Mapping.Stack.CopyDataFrom(&src.Mapping.Stack, region, bytes); errc != 0 {
		return errc
	}
	return 0
}

// Flush flushes every segment of the context's mapping, counting the
// cache lines flushed, and then flushes the CPUContext struct itself so the
// resumable register file is durable too.
func (ec *ExecutionContext) Flush(region *pmem.Region, count *int) {
	ec.Mapping.Code.Flush(region, count)
	ec.Mapping.Data.Flush(region, count)
	ec.Mapping.Stack.Flush(region, count)
	ec.Mapping.Heap.Flush(region, count)
	cpuAddr, cpuSize := uintptr(unsafe.Pointer(&ec.CPU)), unsafe.Sizeof(ec.CPU)
	durable.FlushRange(cpuAddr, cpuSize)
	_, lines := util.CachelineRound(cpuAddr, cpuSize, durable.LineSize)
	*count += lines
}

type errOverflow struct {
	op, seg string
}

func (e errOverflow) Error() string { return e.op + ": " + e.seg + " segment overflow" }
