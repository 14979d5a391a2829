// Package stats implements C9: gated instrumentation counters for the
// checkpointing core (checkpoints committed, bytes flushed, bytes copied on
// resync), in the teacher's Stats/Timing-gated Counter_t/Cycles_t idiom, plus
// two additions the teacher has no equivalent of: exporting the counters as
// a pprof profile for offline inspection, and formatting them with locale
// separators for a human reading a recovery summary.
package stats

import (
	"io"
	"reflect"
	"strings"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/google/pprof/profile"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats gates whether Counter_t.Inc does any work; Timing gates Cycles_t.Add.
// Both default off, as in the teacher, so instrumentation costs nothing on
// a production boot unless explicitly enabled.
var Stats = false
var Timing = false

/// Rdtsc returns a monotonic tick count when timing is enabled. The teacher
/// reads the real TSC via a patched runtime.Rdtsc(); standard Go has no
/// portable equivalent, so this core uses wall-clock nanoseconds instead —
/// coarser, but sufficient for the relative before/after deltas Cycles_t
/// accumulates.
func Rdtsc() uint64 {
	if Timing {
		return uint64(time.Now().UnixNano())
	}
	return 0
}

/// Counter_t is a statistical counter.
type Counter_t int64

/// Cycles_t holds a cycle count.
type Cycles_t int64

/// Inc increments the counter.
func (c *Counter_t) Inc() {
	if Stats {
		n := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(n, 1)
	}
}

/// Add adds n to the counter (used for byte/flush counts, not just +1).
func (c *Counter_t) Add(n int64) {
	if Stats {
		p := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(p, n)
	}
}

/// Add adds elapsed ticks to the cycle counter.
func (c *Cycles_t) Add(since uint64) {
	if Timing {
		n := (*int64)(unsafe.Pointer(c))
		atomic.AddInt64(n, int64(Rdtsc()-since))
	}
}

/// Stats2String converts a struct of counters to a printable string, one
/// line per Counter_t/Cycles_t field, formatted with locale-aware thousands
/// separators for whoever is reading a recovery or shutdown summary.
func Stats2String(st interface{}) string {
	if !Stats {
		return ""
	}
	p := message.NewPrinter(language.English)
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		name := v.Type().Field(i).Name
		switch {
		case strings.HasSuffix(t, "Counter_t"):
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + name + ": " + p.Sprintf("%d", int64(n))
		case strings.HasSuffix(t, "Cycles_t"):
			n := v.Field(i).Interface().(Cycles_t)
			s += "\n\t#" + name + ": " + p.Sprintf("%d", int64(n))
		}
	}
	return s + "\n"
}

// WriteProfile exports every Counter_t/Cycles_t field of st as a pprof
// profile sample, so the counters gathered during a long-running boot can
// be inspected offline with `go tool pprof`.
func WriteProfile(w io.Writer, st interface{}) error {
	v := reflect.ValueOf(st)
	prof := &profile.Profile{
		SampleType:    []*profile.ValueType{{Type: "count", Unit: "count"}},
		TimeNanos:     0,
		DurationNanos: 0,
	}
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		name := v.Type().Field(i).Name
		var val int64
		switch {
		case strings.HasSuffix(t, "Counter_t"):
			val = int64(v.Field(i).Interface().(Counter_t))
		case strings.HasSuffix(t, "Cycles_t"):
			val = int64(v.Field(i).Interface().(Cycles_t))
		default:
			continue
		}
		fn := &profile.Function{ID: uint64(i + 1), Name: name}
		loc := &profile.Location{ID: uint64(i + 1), Line: []profile.Line{{Function: fn}}}
		prof.Function = append(prof.Function, fn)
		prof.Location = append(prof.Location, loc)
		prof.Sample = append(prof.Sample, &profile.Sample{
			Value:    []int64{val},
			Location: []*profile.Location{loc},
			Label:    map[string][]string{"counter": {name}},
		})
	}
	if err := prof.CheckValid(); err != nil {
		return err
	}
	return prof.Write(w)
}

// CheckpointStats holds the checkpoint-engine counters a sched.Scheduler
// owns and updates in switchLocked each time it runs SwitchContext,
// summed over every persistent process it switches out: checkpoints
// committed, bytes flushed, and bytes copied during the working-slot
// resync step of spec.md §4.4.
type CheckpointStats struct {
	Checkpoints  Counter_t
	BytesFlushed Counter_t
	BytesCopied  Counter_t
	FlushTicks   Cycles_t
}
