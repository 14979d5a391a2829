//go:build !amd64

package durable

import "sync/atomic"

// fallbackBackend lets the package build and its tests run on non-amd64
// hosts. It is NOT durable: there is no portable cache-line writeback
// instruction, so this backend only provides the ordering a fence gives,
// via a dummy atomic store. liumos only boots on amd64; this exists purely
// so `go test ./...` works on the development machine.
type fallbackBackend struct{}

func defaultBackend() backend {
	return &fallbackBackend{}
}

var fallbackFenceWord int64

func (fallbackBackend) flushLine(addr uintptr) {
	atomic.AddInt64(&fallbackFenceWord, 1)
}

func (fallbackBackend) fence() {
	atomic.AddInt64(&fallbackFenceWord, 1)
}
