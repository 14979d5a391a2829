package vm

import "fmt"

// ProcessMappingInfo aggregates the four segments describing one process's
// address space (spec.md §3, C3). The four virtual ranges must be pairwise
// disjoint; CheckDisjoint verifies that invariant. kernel.Recover does not
// call it: records read back from PMEM are mapped without this check.
type ProcessMappingInfo struct {
	Code  SegmentMapping
	Data  SegmentMapping
	Stack SegmentMapping
	Heap  SegmentMapping
}

// segments returns the four mappings in a fixed order, used by every
// operation that must touch "all segments".
func (m *ProcessMappingInfo) segments() [4]*SegmentMapping {
	return [4]*SegmentMapping{&m.Code, &m.Data, &m.Stack, &m.Heap}
}

// CheckDisjoint reports an error naming the first pair of non-empty
// segments whose virtual ranges overlap, or nil if all four are pairwise
// disjoint.
func (m *ProcessMappingInfo) CheckDisjoint() error {
	segs := m.segments()
	names := [4]string{"code", "data", "stack", "heap"}
	for i := 0; i < len(segs); i++ {
		if segs[i].Empty() {
			continue
		}
		ai, aend := segs[i].Vaddr, segs[i].Vaddr+segs[i].MapSize
		for j := i + 1; j < len(segs); j++ {
			if segs[j].Empty() {
				continue
			}
			bi, bend := segs[j].Vaddr, segs[j].Vaddr+segs[j].MapSize
			if ai < bend && bi < aend {
				return fmt.Errorf("vm: %s segment [0x%x,0x%x) overlaps %s segment [0x%x,0x%x)",
					names[i], ai, aend, names[j], bi, bend)
			}
		}
	}
	return nil
}

// Map materialises every non-empty segment of m onto root, in the attribute
// bits appropriate to each segment (code is present+user, never writable or
// executable-disabled; data/stack/heap are present+writable+user+NX).
func (m *ProcessMappingInfo) Map(alloc Allocator, root *PageTable, base uintptr, shouldFlush bool) error {
	if err := m.Code.Map(alloc, root, User, base, shouldFlush); err != nil {
		return err
	}
	rw := User | Writable | NoExecute
	if err := m.Data.Map(alloc, root, rw, base, shouldFlush); err != nil {
		return err
	}
	if err := m.Stack.Map(alloc, root, rw, base, shouldFlush); err != nil {
		return err
	}
	if err := m.Heap.Map(alloc, root, rw, base, shouldFlush); err != nil {
		return err
	}
	return nil
}
