// futurepool.go — one future, many forcers
// ============================================================================
//
// A single future computes fib(k); n readers force it concurrently.  Every
// reader must observe the completed result exactly once, whichever side of
// the finish its force landed on.

package bench

import (
	"fmt"
	"sync/atomic"

	"github.com/MunirAD/pasl/sched"
)

func fib(n int64) int64 {
	if n < 2 {
		return n
	}
	return fib(n-1) + fib(n-2)
}

type futurePoolState struct {
	n         int
	fibInput  int64
	fibResult int64
	forces    atomic.Int64
	mismatch  atomic.Int64
}

type futureBody struct {
	sched.Node
	st *futurePoolState
}

func (t *futureBody) Body() {
	t.st.fibResult = fib(t.st.fibInput)
}

const (
	frEntry = iota
	frExit
)

type futureReader struct {
	sched.Node
	f  sched.Outset
	st *futurePoolState
}

func (t *futureReader) Body() {
	switch t.Block() {
	case frEntry:
		t.Force(t.f, frExit)
	case frExit:
		t.st.forces.Add(1)
		if t.st.fibResult != fib(t.st.fibInput) {
			t.st.mismatch.Add(1)
		}
	}
}

const (
	fpEntry = iota
	fpCall
	fpExit
)

type futurePool struct {
	sched.Node
	f  sched.Outset
	st *futurePoolState
}

func (t *futurePool) Body() {
	switch t.Block() {
	case fpEntry:
		t.f = t.Future(&futureBody{st: t.st}, fpCall)
	case fpCall:
		f, st := t.f, t.st
		t.Call(&eagerParallelFor{lo: 0, hi: st.n, gen: func(int) sched.Task {
			return &futureReader{f: f, st: st}
		}}, fpExit)
	case fpExit:
		t.DeallocateFuture(t.f)
	}
}

// FuturePool runs n readers against one fib future.
func FuturePool(n int, fibInput int64) *Scenario {
	st := &futurePoolState{n: n, fibInput: fibInput}
	return &Scenario{
		Name: "future_pool",
		Root: &futurePool{st: st},
		Check: func() error {
			if got := st.forces.Load(); got != int64(n) {
				return fmt.Errorf("future_pool: %d successful forces, want %d", got, n)
			}
			if st.mismatch.Load() != 0 {
				return fmt.Errorf("future_pool: %d readers saw a stale result", st.mismatch.Load())
			}
			if want := fib(st.fibInput); st.fibResult != want {
				return fmt.Errorf("future_pool: fib(%d) = %d, want %d", st.fibInput, st.fibResult, want)
			}
			return nil
		},
		Counters: func() map[string]int64 {
			return map[string]int64{"forces": st.forces.Load(), "fib": st.fibResult}
		},
	}
}
