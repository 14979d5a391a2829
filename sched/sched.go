// Package sched implements the round-robin scheduler (C7): a fixed-capacity
// ring of registered processes that invokes the checkpoint engine on a
// persistent process as it is switched out, backed by the hashtable
// registry (C10) for O(1) pid lookup.
package sched

import (
	"sync"

	"accnt"
	"defs"
	"durable"
	"hashtable"
	"limits"
	"pmem"
	"proc"
	"stats"
)

// Scheduler is the fixed-capacity round-robin ring spec.md §4.5 describes.
// Its mutex models "disabling interrupts across critical sections": there
// is only one logical CPU, so the mutex exists to document and enforce the
// critical section boundary and to let tests drive it from goroutines
// without corrupting the ring.
type Scheduler struct {
	mu       sync.Mutex
	ring     []*proc.Process
	cur      int
	registry *hashtable.Hashtable_t
	region   *pmem.Region
	nextPid  defs.Pid_t

	// Stats accumulates the checkpoint-engine counters (C9) as
	// switchLocked drives SwitchContext; kernel.Boot shares this pointer
	// on its own Kernel value so cmd/liumos can report it at shutdown.
	Stats *stats.CheckpointStats
}

// New constructs a Scheduler seeded with root as the sole, currently
// running process; spec.md §4.5 requires the current-process pointer never
// be null once the scheduler exists.
func New(root *proc.Process, region *pmem.Region) *Scheduler {
	s := &Scheduler{
		registry: hashtable.MkHash(limits.MaxProcs),
		region:   region,
		nextPid:  1,
		Stats:    &stats.CheckpointStats{},
	}
	root.MarkRunning()
	s.ring = append(s.ring, root)
	s.registry.Set(root.Id, root)
	return s
}

// NextPid allocates a fresh process id.
func (s *Scheduler) NextPid() defs.Pid_t {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextPid
	s.nextPid++
	return id
}

// RegisterProcess appends p to the ring if capacity remains, failing with
// ESCHEDFULL otherwise, and sets p.Status = Ready.
func (s *Scheduler) RegisterProcess(p *proc.Process) defs.Err_t {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !limits.ProcSlots.Take() {
		return defs.ESCHEDFULL
	}
	p.Status = proc.Ready
	s.ring = append(s.ring, p)
	s.registry.Set(p.Id, p)
	// Processes registered with an id chosen elsewhere (kernel.Recover)
	// move the counter past it, so NextPid never hands out a live id.
	if p.Id >= s.nextPid {
		s.nextPid = p.Id + 1
	}
	return 0
}

// Lookup finds a registered process by id in O(1) via the hashtable
// registry, without scanning the ring.
func (s *Scheduler) Lookup(id defs.Pid_t) (*proc.Process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.registry.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*proc.Process), true
}

// Current returns the currently running process.
func (s *Scheduler) Current() *proc.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring[s.cur]
}

// SwitchProcess selects the next runnable process in round-robin order. If
// the outgoing process is persistent, the checkpoint engine runs on it
// before control moves on (spec.md §4.5).
func (s *Scheduler) SwitchProcess() (*proc.Process, defs.Err_t) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switchLocked()
}

func (s *Scheduler) switchLocked() (*proc.Process, defs.Err_t) {
	outgoing := s.ring[s.cur]
	outgoing.AccountElapsed()
	if outgoing.Persistent() {
		start := outgoing.Accnt.Now()
		var copied uint64
		var flushed int
		errc := outgoing.Info.SwitchContext(s.region, &copied, &flushed)
		outgoing.Accnt.Systadd(outgoing.Accnt.Now() - start)
		s.Stats.Checkpoints.Inc()
		s.Stats.BytesCopied.Add(int64(copied))
		s.Stats.BytesFlushed.Add(int64(flushed) * durable.LineSize)
		if errc != 0 {
			return nil, errc
		}
	}
	if outgoing.Status == proc.Running {
		outgoing.Status = proc.Ready
	}
	return s.selectNextLocked()
}

// selectNextLocked advances s.cur to the next Ready/Running process,
// starting the search right after the current index, and marks it Running.
// It does not touch whatever process currently sits at s.cur: callers that
// just removed a process from the ring (KillCurrent) want exactly this,
// with no checkpoint invoked on a process that no longer exists.
func (s *Scheduler) selectNextLocked() (*proc.Process, defs.Err_t) {
	n := len(s.ring)
	for i := 1; i <= n; i++ {
		idx := (s.cur + i) % n
		cand := s.ring[idx]
		if cand.Status == proc.Ready || cand.Status == proc.Running {
			s.cur = idx
			cand.MarkRunning()
			return cand, 0
		}
	}
	return nil, defs.EUNINITIALIZED
}

// KillCurrent marks the current process Killed, removes it from the ring,
// and immediately switches to the next runnable process.
func (s *Scheduler) KillCurrent(code int) defs.Err_t {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.ring[s.cur]
	cur.Kill(code)
	s.ring = append(s.ring[:s.cur], s.ring[s.cur+1:]...)
	limits.ProcSlots.Give()
	s.registry.Del(cur.Id)

	if len(s.ring) == 0 {
		return defs.EUNINITIALIZED
	}
	// s.cur now names the process that was one slot past the killed one
	// (everything shifted left); back up one so selectNextLocked's search
	// starts from the killed process's former predecessor, preserving
	// round-robin order among the survivors.
	s.cur = (s.cur - 1 + len(s.ring)) % len(s.ring)
	_, errc := s.selectNextLocked()
	return errc
}

// LaunchAndWaitUntilExit registers p, marks it Ready, and cooperatively
// yields (by driving SwitchProcess) until p.Status == Killed, returning its
// exit code and final accounting snapshot (spec.md §2's C11 "merged into
// exit reporting").
func (s *Scheduler) LaunchAndWaitUntilExit(p *proc.Process) (int, accnt.Snapshot, defs.Err_t) {
	if errc := s.RegisterProcess(p); errc != 0 {
		return 0, accnt.Snapshot{}, errc
	}
	for p.Status != proc.Killed {
		if _, errc := s.SwitchProcess(); errc != 0 {
			return 0, accnt.Snapshot{}, errc
		}
	}
	return p.ExitCode, p.Accnt.Fetch(), 0
}

// NumProcesses reports how many processes are currently registered,
// matching spec.md scenario S1's GetNumOfProcess().
func (s *Scheduler) NumProcesses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ring)
}

