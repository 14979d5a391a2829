//go:build amd64

package durable

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"
)

// TestClflushoptEncoding decodes the byte sequence the hand-written
// CLFLUSHOPT stub is written to emit (the mandatory 0x66 prefix ahead of the
// CLFLUSH opcode) and checks it is CLFLUSHOPT; it does not read the
// assembled stub itself. Getting
// this wrong silently downgrades every flush to an ordinary (and much
// slower, though still correct) CLFLUSH, so it is worth pinning down.
func TestClflushoptEncoding(t *testing.T) {
	// 66 0F AE /7 — CLFLUSHOPT m8, ModRM for (AX) with no displacement.
	code := []byte{0x66, 0x0F, 0xAE, 0x38}
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		t.Fatalf("x86asm.Decode: %v", err)
	}
	if inst.Op != x86asm.CLFLUSHOPT {
		t.Fatalf("decoded op = %v, want CLFLUSHOPT", inst.Op)
	}
}

func TestClflushEncoding(t *testing.T) {
	// 0F AE /7 — CLFLUSH m8, ModRM for (AX) with no displacement.
	code := []byte{0x0F, 0xAE, 0x38}
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		t.Fatalf("x86asm.Decode: %v", err)
	}
	if inst.Op != x86asm.CLFLUSH {
		t.Fatalf("decoded op = %v, want CLFLUSH", inst.Op)
	}
}
