package hashtable

import (
	"defs"
	"testing"
)

func TestSetGetDel(t *testing.T) {
	ht := MkHash(8)
	if ok := ht.Set(defs.Pid_t(1), "one"); !ok {
		t.Fatalf("Set(1) should succeed")
	}
	if ok := ht.Set(defs.Pid_t(1), "dup"); ok {
		t.Fatalf("Set(1) again should report already-present")
	}
	v, ok := ht.Get(defs.Pid_t(1))
	if !ok || v != "one" {
		t.Fatalf("Get(1) = (%v, %v), want (one, true)", v, ok)
	}
	ht.Del(defs.Pid_t(1))
	if _, ok := ht.Get(defs.Pid_t(1)); ok {
		t.Fatalf("Get(1) after Del should miss")
	}
}

func TestSizeAcrossBuckets(t *testing.T) {
	ht := MkHash(4)
	for i := 1; i <= 20; i++ {
		ht.Set(defs.Pid_t(i), i)
	}
	if n := ht.Size(); n != 20 {
		t.Fatalf("Size() = %d, want 20", n)
	}
}
