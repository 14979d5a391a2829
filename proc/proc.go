// Package proc implements Process (spec.md §3): the runtime handle the
// scheduler ring-buffers, carrying a status, a unique id, a pointer to its
// PersistentProcessInfo (nil for a volatile/never-checkpointed process),
// and per-process accounting.
package proc

import (
	"accnt"
	"defs"
	"ppinfo"
)

// Status is one of the five states spec.md §3 names.
type Status int

const (
	NotInitialized Status = iota
	Ready
	Running
	Sleeping
	Killed
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Sleeping:
		return "Sleeping"
	case Killed:
		return "Killed"
	default:
		return "NotInitialized"
	}
}

// Process is created by sched.RegisterProcess, runnable until
// sched.KillCurrent, and removed from the ring on exit.
type Process struct {
	Id     defs.Pid_t
	Status Status

	// Info is nil for a process with no durable checkpoint (the design
	// note on "tagged variant with two arms" for persistent vs. volatile
	// processes: Info == nil is the volatile arm).
	Info *ppinfo.PersistentProcessInfo

	Accnt accnt.Accnt_t

	// ExitCode is valid once Status == Killed.
	ExitCode int

	// ranSince is the timestamp (Accnt.Now()) at which this process was
	// last marked Running, or 0 if it isn't currently running. The
	// scheduler uses it to attribute wall-clock time to Userns as the
	// process is switched out or killed.
	ranSince int
}

// New constructs a Process in the NotInitialized state; RegisterProcess
// moves it to Ready once it has a slot in the scheduler ring.
func New(id defs.Pid_t, info *ppinfo.PersistentProcessInfo) *Process {
	return &Process{Id: id, Status: NotInitialized, Info: info}
}

// Persistent reports whether this process has a checkpoint engine attached
// (spec.md §4.5: "if the outgoing process is persistent").
func (p *Process) Persistent() bool {
	return p.Info != nil
}

// MarkRunning transitions the process to Running and starts its run-time
// clock, so the next AccountElapsed call (made when the scheduler switches
// it out, or by Kill) knows how much user time to credit it with.
func (p *Process) MarkRunning() {
	p.Status = Running
	p.ranSince = p.Accnt.Now()
}

// AccountElapsed credits Accnt.Userns with the time since the last
// MarkRunning call, then clears the clock. It is a no-op if the process
// isn't currently being timed (ranSince == 0), so it is safe to call on a
// process that was never Running.
func (p *Process) AccountElapsed() {
	if p.ranSince == 0 {
		return
	}
	p.Accnt.Utadd(p.Accnt.Now() - p.ranSince)
	p.ranSince = 0
}

// Kill accounts any time still running, marks the process Killed, finishes
// its system-time bookkeeping, and records its exit code (spec.md §2's
// C11 "merged into exit reporting"). It does not remove the process from
// any ring; that is the scheduler's job.
func (p *Process) Kill(code int) {
	inttime := p.Accnt.Now()
	p.AccountElapsed()
	p.Status = Killed
	p.ExitCode = code
	p.Accnt.Finish(inttime)
}
