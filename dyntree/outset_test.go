package dyntree

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

type succ struct {
	id       int64
	notified atomic.Int64
}

// drain runs the two-phase teardown to completion on one goroutine,
// splitting now and then to cover the sibling handoff path.
func drain[T any](o *Outset[T], notify func(*T)) {
	nf := o.NotifyFrontier()
	for !nf.Empty() {
		if nf.Size() >= 2 {
			g := nf.Split()
			for !g.Empty() {
				g.NotifyStep(8, notify)
			}
		}
		nf.NotifyStep(8, notify)
	}
	df := o.DeallocFrontier()
	for !df.Empty() {
		df.DeallocStep(8)
	}
}

func TestOutsetNotifiesEachLeafOnce(t *testing.T) {
	o := NewOutset[succ](2)
	const n = 1000
	succs := make([]succ, n)
	for i := range succs {
		succs[i].id = int64(i)
		if !o.Insert(&succs[i]) {
			t.Fatalf("insert %d failed before finish", i)
		}
	}
	drain(o, func(s *succ) { s.notified.Add(1) })
	for i := range succs {
		if got := succs[i].notified.Load(); got != 1 {
			t.Fatalf("successor %d notified %d times, want 1", i, got)
		}
	}
}

func TestOutsetFinishedBarrier(t *testing.T) {
	o := NewOutset[succ](2)
	var s succ
	if !o.Insert(&s) {
		t.Fatal("insert before finish must succeed")
	}
	nf := o.NotifyFrontier()
	for !nf.Empty() {
		nf.NotifyStep(64, func(*succ) {})
	}
	for i := 0; i < 100; i++ {
		var x succ
		if o.Insert(&x) {
			t.Fatal("insert after finish must fail")
		}
	}
}

// TestOutsetInsertFinishRace has writers inserting while one goroutine
// finishes the out-set.  Every insert that reported success must be
// notified exactly once; every failed insert must never be notified.
func TestOutsetInsertFinishRace(t *testing.T) {
	writers := runtime.GOMAXPROCS(0)
	perWriter := 2000
	if testing.Short() {
		perWriter = 200
	}
	o := NewOutset[succ](2)
	succs := make([][]succ, writers)
	accepted := make([][]bool, writers)
	for w := range succs {
		succs[w] = make([]succ, perWriter)
		accepted[w] = make([]bool, perWriter)
	}

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer done.Done()
			start.Wait()
			for i := 0; i < perWriter; i++ {
				accepted[w][i] = o.Insert(&succs[w][i])
			}
		}(w)
	}
	start.Done()
	drain(o, func(s *succ) { s.notified.Add(1) })
	done.Wait()

	for w := range succs {
		for i := range succs[w] {
			got := succs[w][i].notified.Load()
			if accepted[w][i] && got != 1 {
				t.Fatalf("accepted successor (%d,%d) notified %d times, want 1", w, i, got)
			}
			if !accepted[w][i] && got != 0 {
				t.Fatalf("rejected successor (%d,%d) notified %d times, want 0", w, i, got)
			}
		}
	}
}

func TestOutsetNilLeaf(t *testing.T) {
	o := NewOutset[succ](2)
	if !o.Insert(nil) {
		t.Fatal("nil leaf insert must succeed")
	}
	var nils int
	drain(o, func(s *succ) {
		if s == nil {
			nils++
		}
	})
	if nils != 1 {
		t.Fatalf("nil leaf notified %d times, want 1", nils)
	}
}

func BenchmarkOutsetInsert(b *testing.B) {
	o := NewOutset[succ](DefaultBranching)
	var s succ
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			o.Insert(&s)
		}
	})
}
