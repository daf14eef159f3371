package tagptr

import (
	"testing"
	"unsafe"
)

func TestWordPackRoundTrip(t *testing.T) {
	for tag := uint64(0); tag <= TagMask; tag++ {
		for _, payload := range []uint64{0, 1, 41, 1 << 40} {
			w := Make(tag, payload)
			if w.Tag() != tag {
				t.Fatalf("tag: got %d want %d", w.Tag(), tag)
			}
			if w.Payload() != payload {
				t.Fatalf("payload: got %d want %d", w.Payload(), payload)
			}
		}
	}
}

func TestWordPayloadUnit(t *testing.T) {
	w := Make(3, 7)
	w += PayloadUnit
	if w.Tag() != 3 || w.Payload() != 8 {
		t.Fatalf("after unit add: tag=%d payload=%d", w.Tag(), w.Payload())
	}
}

func TestNilCellInterning(t *testing.T) {
	if New(1, nil) != New(1, nil) {
		t.Fatal("(1, nil) cells must share identity")
	}
	x := 0
	p := unsafe.Pointer(&x)
	if New(1, p) == New(1, p) {
		t.Fatal("pointer-carrying cells must be distinct allocations")
	}
}

func TestNilCellReads(t *testing.T) {
	var c *Cell
	if c.Tag() != 0 || c.Pointer() != nil {
		t.Fatal("nil cell must read as (0, nil)")
	}
}

func TestAtomicCASByWitness(t *testing.T) {
	var a Atomic
	w := a.Load() // nil witness for the zero-valued slot
	x := 0
	leaf := New(2, unsafe.Pointer(&x))
	if !a.CompareAndSwap(w, leaf) {
		t.Fatal("CAS from zero-valued slot must succeed")
	}
	if a.CompareAndSwap(w, New(1, nil)) {
		t.Fatal("stale witness must fail")
	}
	if got := a.Load(); got != leaf || got.Tag() != 2 || got.Pointer() != unsafe.Pointer(&x) {
		t.Fatal("slot must hold the installed cell")
	}
}
