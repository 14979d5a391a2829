package defs

// Err_t is a negative sentinel error code, in the teacher's Err_t style.
// A zero value means success; callers test err != 0, not err < 0.
type Err_t int

func (e Err_t) Error() string {
	if s, ok := errStrings[e]; ok {
		return s
	}
	return "unknown error"
}

const (
	// EPMEMEXHAUSTED is returned when the PMEM arena has no free pages left.
	EPMEMEXHAUSTED Err_t = -1 - iota
	// ESCHEDFULL is returned when the scheduler's process table is full.
	ESCHEDFULL
	// EUNINITIALIZED is returned when an operation targets a PersistentProcessInfo
	// record whose ValidCtxIdx is still the sentinel (no checkpoint has
	// committed yet), a segment with no backing pages, or a scheduler with no
	// runnable process. A record whose signature is missing is ECORRUPTPMEM.
	EUNINITIALIZED
	// EHEAPOVERFLOW is returned when ExpandHeap would grow a segment past its
	// mapped region.
	EHEAPOVERFLOW
	// EHEAPUNDERFLOW is returned when ExpandHeap would shrink a segment below
	// zero.
	EHEAPUNDERFLOW
	// ECORRUPTPMEM is returned when recovery finds a record whose signature or
	// valid_ctx_idx fails validation.
	ECORRUPTPMEM
)

var errStrings = map[Err_t]string{
	EPMEMEXHAUSTED: "pmem arena exhausted",
	ESCHEDFULL:     "scheduler table full",
	EUNINITIALIZED: "uninitialized persistent process info",
	EHEAPOVERFLOW:  "heap segment overflow",
	EHEAPUNDERFLOW: "heap segment underflow",
	ECORRUPTPMEM:   "corrupt persistent memory record",
}

// Pid_t identifies a process for the lifetime of the kernel instance. Pids
// are never reused while the owning Process is registered.
type Pid_t int

// NoPid is the zero value of Pid_t, never assigned to a real process.
const NoPid Pid_t = 0
