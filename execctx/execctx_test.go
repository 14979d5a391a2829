package execctx

import (
	"testing"

	"pmem"
)

func newTestRegion(t *testing.T) *pmem.Region {
	t.Helper()
	arena := make([]byte, 64*pmem.PGSIZE)
	r, _, err := pmem.Open(arena, pmem.Config{})
	if err != nil {
		t.Fatalf("pmem.Open: %v", err)
	}
	return r
}

func TestSetRegistersForcesRflagsBit1(t *testing.T) {
	var ec ExecutionContext
	ec.HeapUsedSize = 123
	ec.SetRegisters(0x1000, 0x8, 0x7000, 0x10, 0x9000, 0, 0xA000)
	if ec.CPU.Rflags&rflagsBit1 == 0 {
		t.Fatalf("rflags bit 1 not set")
	}
	if ec.HeapUsedSize != 0 {
		t.Fatalf("HeapUsedSize not reset, got %d", ec.HeapUsedSize)
	}
}

func TestExpandHeapBounds(t *testing.T) {
	var ec ExecutionContext
	ec.Mapping.Heap.Set(0x500000, 0x1000, 4096)

	if errc := ec.ExpandHeap(4096); errc != 0 {
		t.Fatalf("ExpandHeap(+4096): %v", errc)
	}
	if ec.HeapUsedSize != 4096 {
		t.Fatalf("HeapUsedSize = %d, want 4096", ec.HeapUsedSize)
	}
	if errc := ec.ExpandHeap(1); errc == 0 {
		t.Fatalf("expected HEAP_OVERFLOW")
	}
	if ec.HeapUsedSize != 4096 {
		t.Fatalf("watermark changed after failed ExpandHeap: %d", ec.HeapUsedSize)
	}
	if errc := ec.ExpandHeap(-5000); errc == 0 {
		t.Fatalf("expected HEAP_UNDERFLOW")
	}
}

func TestCopyContextFromRoundTrip(t *testing.T) {
	region := newTestRegion(t)

	var a, b ExecutionContext
	a.Mapping.Data.Set(0x2000, 0, 4096)
	a.Mapping.Stack.Set(0x3000, 0, 4096)
	if errc := a.Mapping.Data.AllocFromPmem(region); errc != 0 {
		t.Fatalf("alloc a.data: %v", errc)
	}
	if errc := a.Mapping.Stack.AllocFromPmem(region); errc != 0 {
		t.Fatalf("alloc a.stack: %v", errc)
	}
	a.CPU.Rax = 0xdeadbeef
	a.CPU.Cr3 = 0x1111

	b.Mapping.Data.Set(0x2000, 0, 4096)
	b.Mapping.Stack.Set(0x3000, 0, 4096)
	if errc := b.Mapping.Data.AllocFromPmem(region); errc != 0 {
		t.Fatalf("alloc b.data: %v", errc)
	}
	if errc := b.Mapping.Stack.AllocFromPmem(region); errc != 0 {
		t.Fatalf("alloc b.stack: %v", errc)
	}
	b.CPU.Cr3 = 0x2222

	dataBytes := region.Bytes(pa(a.Mapping.Data.Paddr), 1)
	dataBytes[0] = 0x42

	var copied uint64
	if errc := b.CopyContextFrom(&a, region, &copied); errc != 0 {
		t.Fatalf("CopyContextFrom: %v", errc)
	}
	if b.CPU.Rax != 0xdeadbeef {
		t.Fatalf("Rax not copied")
	}
	if b.CPU.Cr3 != 0x2222 {
		t.Fatalf("Cr3 leaked across address spaces: got 0x%x", b.CPU.Cr3)
	}
	bData := region.Bytes(pa(b.Mapping.Data.Paddr), 1)
	if bData[0] != 0x42 {
		t.Fatalf("data segment bytes not copied")
	}

	// Clobber a, then copy b back into it: a must come back as it was,
	// keeping its own Cr3.
	a.CPU.Rax = 0
	dataBytes[0] = 0
	if errc := a.CopyContextFrom(&b, region, &copied); errc != 0 {
		t.Fatalf("CopyContextFrom (back): %v", errc)
	}
	if a.CPU.Rax != 0xdeadbeef || a.CPU.Cr3 != 0x1111 {
		t.Fatalf("round trip registers: Rax=0x%x Cr3=0x%x", a.CPU.Rax, a.CPU.Cr3)
	}
	if dataBytes[0] != 0x42 {
		t.Fatalf("round trip data segment byte = 0x%x, want 0x42", dataBytes[0])
	}
}

func pa(v uint64) pmem.Pa_t { return pmem.Pa_t(v) }
