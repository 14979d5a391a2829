package kernel

import (
	"testing"
	"unsafe"

	"pmem"
	"ppinfo"
	"stats"
)

func newTestRegion(t *testing.T) *pmem.Region {
	t.Helper()
	arena := make([]byte, 512*pmem.PGSIZE)
	r, _, err := pmem.Open(arena, pmem.Config{})
	if err != nil {
		t.Fatalf("pmem.Open: %v", err)
	}
	return r
}

// writeRecord allocates space for one PersistentProcessInfo in region,
// overlays init on it in place, and registers its offset under slot, the
// same sequence a live checkpointing core follows when it first registers a
// durable process.
func writeRecord(t *testing.T, region *pmem.Region, slot int, init func(*ppinfo.PersistentProcessInfo)) {
	t.Helper()
	size := int(unsafe.Sizeof(ppinfo.PersistentProcessInfo{}))
	npages := (size + pmem.PGSIZE - 1) / pmem.PGSIZE
	off, err := region.AllocPages(npages)
	if err != nil {
		t.Fatalf("AllocPages: %v", err)
	}
	raw := region.RawBytes(off, size)
	rec := (*ppinfo.PersistentProcessInfo)(unsafe.Pointer(&raw[0]))
	init(rec)
	if err := region.PutRecord(slot, off); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}
}

func validProcess(t *testing.T, region *pmem.Region) func(*ppinfo.PersistentProcessInfo) {
	return func(p *ppinfo.PersistentProcessInfo) {
		for i := range p.Ctx {
			p.Ctx[i].Mapping.Code.Set(0x1000, 0, 4096)
			p.Ctx[i].Mapping.Data.Set(0x2000, 0, 4096)
			p.Ctx[i].Mapping.Stack.Set(0x3000, 0, 4096)
			p.Ctx[i].Mapping.Heap.Set(0x4000, 0, 4096)
			if errc := p.Ctx[i].Mapping.Code.AllocFromPmem(region); errc != 0 {
				t.Fatalf("alloc code: %v", errc)
			}
			if errc := p.Ctx[i].Mapping.Data.AllocFromPmem(region); errc != 0 {
				t.Fatalf("alloc data: %v", errc)
			}
			if errc := p.Ctx[i].Mapping.Stack.AllocFromPmem(region); errc != 0 {
				t.Fatalf("alloc stack: %v", errc)
			}
			if errc := p.Ctx[i].Mapping.Heap.AllocFromPmem(region); errc != 0 {
				t.Fatalf("alloc heap: %v", errc)
			}
		}
		p.Init()
		p.ValidCtxIdx = 0
	}
}

// TestBootFreshArenaHasOnlyRoot is scenario S1: a fresh arena with no
// records yields a scheduler containing only the volatile root process.
func TestBootFreshArenaHasOnlyRoot(t *testing.T) {
	region := newTestRegion(t)
	k, err := Boot(region)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if n := k.Sched.NumProcesses(); n != 1 {
		t.Fatalf("NumProcesses() = %d, want 1", n)
	}
}

// TestBootRecoversValidRecord is scenario S2: one valid
// PersistentProcessInfo record in the arena is recovered as a registered,
// Ready process in addition to root.
func TestBootRecoversValidRecord(t *testing.T) {
	region := newTestRegion(t)
	writeRecord(t, region, 0, validProcess(t, region))

	k, err := Boot(region)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if n := k.Sched.NumProcesses(); n != 2 {
		t.Fatalf("NumProcesses() = %d, want 2 (root + recovered)", n)
	}
}

// TestBootSkipsCorruptRecord is scenario S3: a record with a bad signature
// is logged and skipped, and boot still succeeds with just the root
// process registered.
func TestBootSkipsCorruptRecord(t *testing.T) {
	region := newTestRegion(t)
	writeRecord(t, region, 0, func(p *ppinfo.PersistentProcessInfo) {
		// never call Init: signature stays zero, which Validate rejects.
	})

	k, err := Boot(region)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if n := k.Sched.NumProcesses(); n != 1 {
		t.Fatalf("NumProcesses() = %d, want 1 (corrupt record skipped)", n)
	}
}

// TestBootSharesStatsWithScheduler confirms Kernel.Stats is the same
// counter block the scheduler updates on every checkpoint, not a dead
// unwired copy.
func TestBootSharesStatsWithScheduler(t *testing.T) {
	stats.Stats = true
	defer func() { stats.Stats = false }()

	region := newTestRegion(t)
	writeRecord(t, region, 0, validProcess(t, region))

	k, err := Boot(region)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	if k.Stats != k.Sched.Stats {
		t.Fatalf("Kernel.Stats does not alias Sched.Stats")
	}

	// Two switches: root -> recovered process, then recovered process
	// out again, running its checkpoint.
	if _, errc := k.Sched.SwitchProcess(); errc != 0 {
		t.Fatalf("SwitchProcess: %v", errc)
	}
	if _, errc := k.Sched.SwitchProcess(); errc != 0 {
		t.Fatalf("SwitchProcess: %v", errc)
	}
	if k.Stats.Checkpoints != 1 {
		t.Fatalf("Checkpoints = %d, want 1", int64(k.Stats.Checkpoints))
	}
}

// TestRecoverSkipsUninitializedRecord covers a record whose signature is
// valid but that never completed its first checkpoint (ValidCtxIdx still
// the sentinel): Recover must skip it rather than resume garbage state.
func TestRecoverSkipsUninitializedRecord(t *testing.T) {
	region := newTestRegion(t)
	writeRecord(t, region, 0, func(p *ppinfo.PersistentProcessInfo) {
		p.Init() // signature set, ValidCtxIdx left at the sentinel
	})

	procs, err := Recover(region)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(procs) != 0 {
		t.Fatalf("Recover returned %d processes, want 0", len(procs))
	}
}
