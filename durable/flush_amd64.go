//go:build amd64

package durable

import "golang.org/x/sys/cpu"

// amd64Backend flushes cache lines with real x86-64 instructions, preferring
// CLFLUSHOPT (unordered with respect to other CLFLUSHOPTs, needs an SFENCE
// to order against later stores) over plain CLFLUSH when the CPU advertises
// it, and falling back to CLFLUSH on older parts.
type amd64Backend struct {
	clflushopt bool
}

func defaultBackend() backend {
	return &amd64Backend{clflushopt: cpu.X86.HasCLFLUSHOPT}
}

func (b *amd64Backend) flushLine(addr uintptr) {
	if b.clflushopt {
		clflushopt(addr)
		return
	}
	clflush(addr)
}

func (b *amd64Backend) fence() {
	sfence()
}

// clflush, clflushopt, and sfence are implemented in flush_amd64.s.
func clflush(addr uintptr)
func clflushopt(addr uintptr)
func sfence()
