package snzi

import (
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"
)

func TestShape(t *testing.T) {
	cases := []struct {
		branching, levels, leaves, total int
	}{
		{2, 1, 1, 1},
		{2, 2, 2, 3},
		{2, 3, 4, 7},
		{4, 3, 16, 21},
	}
	for _, c := range cases {
		tr := New(c.branching, c.levels)
		if tr.NbLeaves() != c.leaves {
			t.Fatalf("New(%d,%d): leaves=%d want %d", c.branching, c.levels, tr.NbLeaves(), c.leaves)
		}
		if len(tr.nodes) != c.total {
			t.Fatalf("New(%d,%d): nodes=%d want %d", c.branching, c.levels, len(tr.nodes), c.total)
		}
	}
}

func TestArriveDepartSingle(t *testing.T) {
	tr := New(2, 3)
	if tr.IsNonzero() {
		t.Fatal("fresh tree must be zero")
	}
	l := tr.LeafAt(0)
	l.Arrive()
	if !tr.IsNonzero() {
		t.Fatal("root must be nonzero after arrive")
	}
	if !l.Depart() {
		t.Fatal("sole depart must report the root zero transition")
	}
	if tr.IsNonzero() {
		t.Fatal("root must be zero after balanced traffic")
	}
}

func TestDepartCrossesLeaves(t *testing.T) {
	tr := New(2, 3)
	tr.LeafAt(0).Arrive()
	tr.LeafAt(3).Arrive()
	if tr.LeafAt(0).Depart() {
		t.Fatal("first depart must not report zero")
	}
	if !tr.LeafAt(3).Depart() {
		t.Fatal("final depart must report zero")
	}
}

func TestAnnotation(t *testing.T) {
	type owner struct{ x int }
	o := &owner{x: 7}
	tr := New(2, 2)
	tr.SetAnnotation(unsafe.Pointer(o))
	got := (*owner)(tr.LeafAt(1).Tree().Annotation())
	if got != o {
		t.Fatal("annotation must be readable from any leaf")
	}
}

// TestFinalDepartReportedOnce drives a two-phase schedule: every worker
// performs all arrives, a barrier, then all departs.  Exactly one depart in
// the second phase may witness the root 1→0 transition.
func TestFinalDepartReportedOnce(t *testing.T) {
	workers := runtime.GOMAXPROCS(0)
	const perWorker = 2048
	tr := New(4, 3)

	var phase sync.WaitGroup
	var done sync.WaitGroup
	var activations atomic.Int64
	phase.Add(workers)
	done.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer done.Done()
			l := tr.LeafAt(id % tr.NbLeaves())
			for i := 0; i < perWorker; i++ {
				l.Arrive()
			}
			phase.Done()
			phase.Wait()
			for i := 0; i < perWorker; i++ {
				if l.Depart() {
					activations.Add(1)
				}
			}
		}(w)
	}
	done.Wait()

	if tr.IsNonzero() {
		t.Fatal("tree must quiesce at zero")
	}
	if n := activations.Load(); n != 1 {
		t.Fatalf("zero transition reported %d times, want exactly 1", n)
	}
}

// TestRandomTrafficQuiesces interleaves increments and decrements with the
// bench-style pending discipline: a worker only departs arrivals it made
// itself, and drains its pending count at the end.
func TestRandomTrafficQuiesces(t *testing.T) {
	workers := runtime.GOMAXPROCS(0)
	iters := 20000
	if testing.Short() {
		iters = 2000
	}
	tr := New(2, 4)
	var done sync.WaitGroup
	done.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer done.Done()
			r := rand.New(rand.NewSource(0xbeef + int64(id)))
			l := tr.LeafAt(id % tr.NbLeaves())
			pending := 0
			for i := 0; i < iters; i++ {
				if pending > 0 && r.Intn(2) == 0 {
					l.Depart()
					pending--
				} else {
					l.Arrive()
					pending++
				}
			}
			for ; pending > 0; pending-- {
				l.Depart()
			}
		}(w)
	}
	done.Wait()
	if tr.IsNonzero() {
		t.Fatal("tree must quiesce at zero after balanced traffic")
	}
}

func TestLeafForIsStable(t *testing.T) {
	tr := New(2, 3)
	xs := make([]int, 8)
	for i := range xs {
		p := unsafe.Pointer(&xs[i])
		if tr.LeafFor(p) != tr.LeafFor(p) {
			t.Fatal("LeafFor must be deterministic per source")
		}
	}
	if tr.LeafFor(nil) != tr.LeafAt(0) {
		t.Fatal("nil source must map to leaf 0")
	}
}

func BenchmarkArriveDepart(b *testing.B) {
	tr := New(DefaultBranching, DefaultLevels)
	b.RunParallel(func(pb *testing.PB) {
		l := tr.RandomLeaf()
		for pb.Next() {
			l.Arrive()
			l.Depart()
		}
	})
}
