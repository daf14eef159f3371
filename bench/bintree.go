// bintree.go — fork-tree scenarios
// ============================================================================
//
// Two shapes of the same balanced binary recursion: one spawning with
// async edges into a single join, one building futures and forcing both
// branches.  The counters pin the exact number of leaf and interior nodes,
// which any lost or duplicated wake-up would skew.

package bench

import (
	"fmt"
	"sync/atomic"

	"github.com/MunirAD/pasl/sched"
)

type asyncBintreeState struct {
	n        int
	leaf     atomic.Int64
	interior atomic.Int64
}

const (
	abEntry = iota
	abMid
	abExit
)

type asyncBintreeRec struct {
	sched.Node
	lo, hi   int
	mid      int
	consumer *sched.Node
	st       *asyncBintreeState
}

func (t *asyncBintreeRec) Body() {
	switch t.Block() {
	case abEntry:
		switch n := t.hi - t.lo; {
		case n == 0:
			return
		case n == 1:
			t.st.leaf.Add(1)
		default:
			t.st.interior.Add(1)
			t.mid = (t.lo + t.hi) / 2
			t.Async(&asyncBintreeRec{lo: t.lo, hi: t.mid, consumer: t.consumer, st: t.st},
				t.consumer, abMid)
		}
	case abMid:
		t.Async(&asyncBintreeRec{lo: t.mid, hi: t.hi, consumer: t.consumer, st: t.st},
			t.consumer, abExit)
	case abExit:
	}
}

type asyncBintree struct {
	sched.Node
	st *asyncBintreeState
}

func (t *asyncBintree) Body() {
	switch t.Block() {
	case abEntry:
		t.Finish(&asyncBintreeRec{lo: 0, hi: t.st.n, consumer: &t.Node, st: t.st}, abExit)
	case abExit:
	}
}

// AsyncBintree builds the async fork-tree scenario over n leaves.
func AsyncBintree(n int) *Scenario {
	st := &asyncBintreeState{n: n}
	return &Scenario{
		Name: "async_bintree",
		Root: &asyncBintree{st: st},
		Check: func() error {
			if got := st.leaf.Load(); got != int64(n) {
				return fmt.Errorf("async_bintree: leaves %d, want %d", got, n)
			}
			if got := st.interior.Load(); got+1 != int64(n) {
				return fmt.Errorf("async_bintree: interiors %d, want %d", got, n-1)
			}
			return nil
		},
		Counters: func() map[string]int64 {
			return map[string]int64{
				"leaves":    st.leaf.Load(),
				"interiors": st.interior.Load(),
			}
		},
	}
}

type futureBintreeState struct {
	n        int
	leaf     atomic.Int64
	interior atomic.Int64
}

const (
	fbEntry = iota
	fbBranch2
	fbForce1
	fbForce2
	fbExit
)

type futureBintreeRec struct {
	sched.Node
	lo, hi int
	mid    int
	b1, b2 sched.Outset
	st     *futureBintreeState
}

func (t *futureBintreeRec) Body() {
	switch t.Block() {
	case fbEntry:
		switch n := t.hi - t.lo; {
		case n == 0:
			return
		case n == 1:
			t.st.leaf.Add(1)
		default:
			t.mid = (t.lo + t.hi) / 2
			t.b1 = t.Future(&futureBintreeRec{lo: t.lo, hi: t.mid, st: t.st}, fbBranch2)
		}
	case fbBranch2:
		t.b2 = t.Future(&futureBintreeRec{lo: t.mid, hi: t.hi, st: t.st}, fbForce1)
	case fbForce1:
		t.Force(t.b1, fbForce2)
	case fbForce2:
		t.Force(t.b2, fbExit)
	case fbExit:
		t.st.interior.Add(1)
		t.DeallocateFuture(t.b1)
		t.DeallocateFuture(t.b2)
	}
}

const (
	fbRootEntry = iota
	fbRootForce
	fbRootExit
)

type futureBintree struct {
	sched.Node
	rootOut sched.Outset
	st      *futureBintreeState
}

func (t *futureBintree) Body() {
	switch t.Block() {
	case fbRootEntry:
		t.rootOut = t.Future(&futureBintreeRec{lo: 0, hi: t.st.n, st: t.st}, fbRootForce)
	case fbRootForce:
		t.Force(t.rootOut, fbRootExit)
	case fbRootExit:
		t.DeallocateFuture(t.rootOut)
	}
}

// FutureBintree builds the future/force fork-tree scenario over n leaves.
func FutureBintree(n int) *Scenario {
	st := &futureBintreeState{n: n}
	return &Scenario{
		Name: "future_bintree",
		Root: &futureBintree{st: st},
		Check: func() error {
			if got := st.leaf.Load(); got != int64(n) {
				return fmt.Errorf("future_bintree: leaves %d, want %d", got, n)
			}
			if got := st.interior.Load(); got+1 != int64(n) {
				return fmt.Errorf("future_bintree: interiors %d, want %d", got, n-1)
			}
			return nil
		},
		Counters: func() map[string]int64 {
			return map[string]int64{
				"leaves":    st.leaf.Load(),
				"interiors": st.interior.Load(),
			}
		},
	}
}
