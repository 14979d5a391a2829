// Package kernel aggregates the checkpointing core's subsystems behind a
// single boot-constructed context value (the "Global singletons" design
// note: one explicit value threaded through constructors, built once by the
// boot entry point, rather than a package-level singleton) and implements
// cold-start recovery (spec.md §4.6).
package kernel

import (
	"unsafe"

	"defs"
	"pmem"
	"ppinfo"
	"proc"
	"sched"
	"stats"
	"vm"
)

// Kernel is the aggregate context value every subsystem is constructed
// from. Only cmd/liumos's entry point creates one.
type Kernel struct {
	Region *pmem.Region
	Sched  *sched.Scheduler
	// Stats aliases Sched.Stats: the scheduler is the only thing that
	// updates the counters (on every SwitchContext), but callers that
	// only hold a *Kernel (cmd/liumos) shouldn't have to reach through
	// Sched to report them.
	Stats *stats.CheckpointStats
	diag  *diag
}

// volatileAllocator hands out ordinary Go-heap PageTables: root page-table
// trees live in volatile memory per spec.md §4.6, unlike the segments they
// map, which live in the durable arena.
type volatileAllocator struct{}

func (volatileAllocator) AllocPage() (*vm.PageTable, error) {
	return &vm.PageTable{}, nil
}

// recordSize is the fixed byte footprint of one PersistentProcessInfo
// record, used to slice it out of the arena at a recorded offset.
var recordSize = int(unsafe.Sizeof(ppinfo.PersistentProcessInfo{}))

// Recover walks the PMEM region's descriptor for PersistentProcessInfo
// records, validates each, and returns a Process for every one that passes
// (spec.md §4.6). Corrupt records are logged and skipped, never fatal.
func Recover(region *pmem.Region) ([]*proc.Process, error) {
	d := newDiag()
	var procs []*proc.Process
	for _, ref := range region.Records() {
		raw := region.RawBytes(ref.Offset, recordSize)
		rec := (*ppinfo.PersistentProcessInfo)(unsafe.Pointer(&raw[0]))

		if errc := rec.Validate(); errc != 0 {
			d.corrupt(ref.Slot, errc)
			continue
		}

		root := &vm.PageTable{}
		ctx := rec.Valid()
		if err := ctx.Mapping.Map(volatileAllocator{}, root, 0, false); err != nil {
			d.corrupt(ref.Slot, err)
			continue
		}
		ctx.CPU.Cr3 = uint64(uintptr(unsafe.Pointer(root)))

		p := proc.New(defs.Pid_t(ref.Slot+1), rec)
		p.Status = proc.Ready
		procs = append(procs, p)
		d.recovered(int(p.Id), ref.Slot)
	}
	d.summary("recovery complete: %d process(es) recovered from %d byte(s) of PMEM", len(procs), region.Size())
	return procs, nil
}

// Boot constructs the root process (pid 0, never persistent), the
// scheduler seeded with it, recovers every durable process found in
// region, and registers each recovered process with the scheduler.
// Scenario S1 (spec.md §8): with no records, exactly the root process
// exists afterward.
func Boot(region *pmem.Region) (*Kernel, error) {
	k := &Kernel{Region: region, diag: newDiag()}

	root := proc.New(0, nil)
	k.Sched = sched.New(root, region)
	k.Stats = k.Sched.Stats

	recovered, err := Recover(region)
	if err != nil {
		return nil, err
	}
	for _, p := range recovered {
		if errc := k.Sched.RegisterProcess(p); errc != 0 {
			k.diag.corrupt(-1, errc)
			continue
		}
	}
	return k, nil
}
