// Package limits holds the fixed capacity numbers the checkpointing core is
// built around, plus the atomic take/give counter the teacher uses for
// every bounded resource.
package limits

import "sync/atomic"
import "unsafe"

// MaxProcs bounds the scheduler's process table (spec.md §4.5: "fixed
// capacity array of process pointers (up to 256)") and, transitively, the
// arena descriptor's record table (pmem.MaxProcs mirrors this value).
const MaxProcs = 256

// ProcSlots tracks how many scheduler slots remain free. RegisterProcess
// takes one; a process leaving the ring (KillCurrent) gives it back.
var ProcSlots = NewSysLimit(MaxProcs)

// NewSysLimit constructs a Sysatomic_t counter starting at n.
func NewSysLimit(n int64) *Sysatomic_t {
	s := Sysatomic_t(n)
	return &s
}

/// Sysatomic_t is a numeric limit that can be atomically updated.
type Sysatomic_t int64

func (s *Sysatomic_t) _aptr() *int64 {
	return (*int64)(unsafe.Pointer(s))
}

/// Given increases the limit by the provided amount.
func (s *Sysatomic_t) Given(_n uint) {
	n := int64(_n)
	atomic.AddInt64(s._aptr(), n)
}

/// Taken tries to decrement the limit by the provided amount.
/// It returns true on success.
func (s *Sysatomic_t) Taken(_n uint) bool {
	n := int64(_n)
	g := atomic.AddInt64(s._aptr(), -n)
	if g >= 0 {
		return true
	}
	atomic.AddInt64(s._aptr(), n)
	return false
}

/// Take decrements the limit and reports whether it succeeded.
func (s *Sysatomic_t) Take() bool {
	return s.Taken(1)
}

/// Give increments the limit by one.
func (s *Sysatomic_t) Give() {
	s.Given(1)
}
