// ports.go — the scenario battery on the port-passing engine
// ============================================================================
//
// The same shapes as the direct-engine scenarios, rebuilt on ports.Node.
// The engines share no node type — the whole point of the bottom-up
// variant is that its tasks carry port maps — so the state machines are
// written out twice rather than abstracted into a lowest common surface.

package bench

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/MunirAD/pasl/control"
	"github.com/MunirAD/pasl/ports"
	"github.com/MunirAD/pasl/tagptr"
)

// PortScenario is one runnable benchmark for the port-passing engine.
type PortScenario struct {
	Name     string
	Root     ports.Task
	Check    func() error
	Counters func() map[string]int64
}

// Async bintree.

type pAsyncBintreeRec struct {
	ports.Node
	lo, hi   int
	mid      int
	consumer *ports.Node
	st       *asyncBintreeState
}

func (t *pAsyncBintreeRec) Body() {
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
			t.Async(&pAsyncBintreeRec{lo: t.lo, hi: t.mid, consumer: t.consumer, st: t.st},
				t.consumer, abMid)
		}
	case abMid:
		t.Async(&pAsyncBintreeRec{lo: t.mid, hi: t.hi, consumer: t.consumer, st: t.st},
			t.consumer, abExit)
	case abExit:
	}
}

type pAsyncBintree struct {
	ports.Node
	st *asyncBintreeState
}

func (t *pAsyncBintree) Body() {
	switch t.Block() {
	case abEntry:
		t.Finish(&pAsyncBintreeRec{lo: 0, hi: t.st.n, consumer: &t.Node, st: t.st}, abExit)
	case abExit:
	}
}

// PortAsyncBintree is AsyncBintree on the port-passing engine.
func PortAsyncBintree(n int) *PortScenario {
	st := &asyncBintreeState{n: n}
	return &PortScenario{
		Name: "async_bintree",
		Root: &pAsyncBintree{st: st},
		Check: func() error {
			if got := st.leaf.Load(); got != int64(n) {
				return fmt.Errorf("async_bintree/ports: leaves %d, want %d", got, n)
			}
			if got := st.interior.Load(); got+1 != int64(n) {
				return fmt.Errorf("async_bintree/ports: interiors %d, want %d", got, n-1)
			}
			return nil
		},
		Counters: func() map[string]int64 {
			return map[string]int64{"leaves": st.leaf.Load(), "interiors": st.interior.Load()}
		},
	}
}

// Future bintree.

type pFutureBintreeRec struct {
	ports.Node
	lo, hi int
	mid    int
	b1, b2 *ports.Outset
	st     *futureBintreeState
}

func (t *pFutureBintreeRec) Body() {
	switch t.Block() {
	case fbEntry:
		switch n := t.hi - t.lo; {
		case n == 0:
			return
		case n == 1:
			t.st.leaf.Add(1)
		default:
			t.mid = (t.lo + t.hi) / 2
			t.b1 = t.Future(&pFutureBintreeRec{lo: t.lo, hi: t.mid, st: t.st}, fbBranch2)
		}
	case fbBranch2:
		t.b2 = t.Future(&pFutureBintreeRec{lo: t.mid, hi: t.hi, st: t.st}, fbForce1)
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

type pFutureBintree struct {
	ports.Node
	rootOut *ports.Outset
	st      *futureBintreeState
}

func (t *pFutureBintree) Body() {
	switch t.Block() {
	case fbRootEntry:
		t.rootOut = t.Future(&pFutureBintreeRec{lo: 0, hi: t.st.n, st: t.st}, fbRootForce)
	case fbRootForce:
		t.Force(t.rootOut, fbRootExit)
	case fbRootExit:
		t.DeallocateFuture(t.rootOut)
	}
}

// PortFutureBintree is FutureBintree on the port-passing engine.
func PortFutureBintree(n int) *PortScenario {
	st := &futureBintreeState{n: n}
	return &PortScenario{
		Name: "future_bintree",
		Root: &pFutureBintree{st: st},
		Check: func() error {
			if got := st.leaf.Load(); got != int64(n) {
				return fmt.Errorf("future_bintree/ports: leaves %d, want %d", got, n)
			}
			if got := st.interior.Load(); got+1 != int64(n) {
				return fmt.Errorf("future_bintree/ports: interiors %d, want %d", got, n-1)
			}
			return nil
		},
		Counters: func() map[string]int64 {
			return map[string]int64{"leaves": st.leaf.Load(), "interiors": st.interior.Load()}
		},
	}
}

// Parallel-for.

type pParallelForTest struct {
	ports.Node
	n   int64
	arr []int64
}

func (t *pParallelForTest) Body() {
	switch t.Block() {
	case pfEntry:
		t.arr = make([]int64, t.n)
		arr := t.arr
		t.ParallelFor(0, t.n, func(i int64) {
			arr[i] = i
		}, pfExit)
	case pfExit:
	}
}

// PortParallelForTest is ParallelForTest on the port-passing engine.
func PortParallelForTest(n int64) *PortScenario {
	root := &pParallelForTest{n: n}
	return &PortScenario{
		Name: "parallel_for",
		Root: root,
		Check: func() error {
			if int64(len(root.arr)) != n {
				return fmt.Errorf("parallel_for/ports: array length %d, want %d", len(root.arr), n)
			}
			for i, v := range root.arr {
				if v != int64(i) {
					return fmt.Errorf("parallel_for/ports: arr[%d] = %d", i, v)
				}
			}
			return nil
		},
		Counters: func() map[string]int64 {
			return map[string]int64{"cells": n}
		},
	}
}

// Eager parallel-for (async-splitting spawn loop).

type pEagerParallelForRec struct {
	ports.Node
	lo, hi int
	mid    int
	gen    func(int) ports.Task
	join   *ports.Node
}

func (t *pEagerParallelForRec) Body() {
	switch t.Block() {
	case epfEntry:
		switch n := t.hi - t.lo; {
		case n == 0:
			return
		case n == 1:
			t.Call(t.gen(t.lo), epfExit)
		default:
			t.mid = (t.lo + t.hi) / 2
			t.Async(&pEagerParallelForRec{lo: t.lo, hi: t.mid, gen: t.gen, join: t.join},
				t.join, epfBranch2)
		}
	case epfBranch2:
		t.Async(&pEagerParallelForRec{lo: t.mid, hi: t.hi, gen: t.gen, join: t.join},
			t.join, epfExit)
	case epfExit:
	}
}

type pEagerParallelFor struct {
	ports.Node
	lo, hi int
	gen    func(int) ports.Task
}

func (t *pEagerParallelFor) Body() {
	switch t.Block() {
	case pfEntry:
		t.Finish(&pEagerParallelForRec{lo: t.lo, hi: t.hi, gen: t.gen, join: &t.Node}, pfExit)
	case pfExit:
	}
}

// Future pool.

type pFutureBody struct {
	ports.Node
	st *futurePoolState
}

func (t *pFutureBody) Body() {
	t.st.fibResult = fib(t.st.fibInput)
}

type pFutureReader struct {
	ports.Node
	f  *ports.Outset
	st *futurePoolState
}

func (t *pFutureReader) Body() {
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

type pFuturePool struct {
	ports.Node
	f  *ports.Outset
	st *futurePoolState
}

func (t *pFuturePool) Body() {
	switch t.Block() {
	case fpEntry:
		t.f = t.Future(&pFutureBody{st: t.st}, fpCall)
	case fpCall:
		f, st := t.f, t.st
		t.Call(&pEagerParallelFor{lo: 0, hi: st.n, gen: func(int) ports.Task {
			return &pFutureReader{f: f, st: st}
		}}, fpExit)
	case fpExit:
		t.DeallocateFuture(t.f)
	}
}

// PortFuturePool is FuturePool on the port-passing engine.
func PortFuturePool(n int, fibInput int64) *PortScenario {
	st := &futurePoolState{n: n, fibInput: fibInput}
	return &PortScenario{
		Name: "future_pool",
		Root: &pFuturePool{st: st},
		Check: func() error {
			if got := st.forces.Load(); got != int64(n) {
				return fmt.Errorf("future_pool/ports: %d successful forces, want %d", got, n)
			}
			if st.mismatch.Load() != 0 {
				return fmt.Errorf("future_pool/ports: %d readers saw a stale result", st.mismatch.Load())
			}
			return nil
		},
		Counters: func() map[string]int64 {
			return map[string]int64{"forces": st.forces.Load(), "fib": st.fibResult}
		},
	}
}

// Future-pool readers need the reader nodes to hold ports for the future;
// they inherit them by propagation from the pool node through the eager
// spawn tree, which is why gen captures only the shared state.

// Async microbench.

type pAsyncMicroLoop struct {
	ports.Node
	join *ports.Node
	c    *ShardedCounter
}

func (t *pAsyncMicroLoop) Body() {
	switch t.Block() {
	case amEntry:
		if !control.Stopped() {
			t.c.Add(t.Worker().ID())
			t.Async(&pAsyncMicroLoop{join: t.join, c: t.c}, t.join, amExit)
		}
	case amExit:
		t.JumpTo(amEntry)
	}
}

type pAsyncMicro struct {
	ports.Node
	c *ShardedCounter
}

func (t *pAsyncMicro) Body() {
	switch t.Block() {
	case amEntry:
		t.Finish(&pAsyncMicroLoop{join: &t.Node, c: t.c}, amExit)
	case amExit:
	}
}

// PortAsyncMicrobench is AsyncMicrobench on the port-passing engine.
func PortAsyncMicrobench(d time.Duration, workers int) *PortScenario {
	c := NewShardedCounter(workers)
	control.Reset()
	control.ShutdownAfter(d)
	return &PortScenario{
		Name: "async_microbench",
		Root: &pAsyncMicro{c: c},
		Check: func() error {
			if c.Sum() == 0 {
				return fmt.Errorf("async_microbench/ports: no asyncs recorded")
			}
			return nil
		},
		Counters: func() map[string]int64 {
			return map[string]int64{"asyncs": c.Sum()}
		},
	}
}

// Edge throughput.

type pEtState struct {
	buffer   tagptr.Atomic
	producer *ports.Outset
	forces   *ShardedCounter
	dur      time.Duration
}

type pEtFuture struct {
	ports.Node
	st *pEtState
}

func (t *pEtFuture) Body() {
	switch t.Block() {
	case etEntry:
		self := &t.Node
		st := t.st
		go func() {
			time.Sleep(st.dur)
			st.buffer.Store(tagptr.New(0, unsafe.Pointer(self)))
		}()
		t.Detach(etExit)
	case etExit:
	}
}

type pEtForce struct {
	ports.Node
	st *pEtState
}

func (t *pEtForce) Body() {
	switch t.Block() {
	case etEntry:
		t.st.forces.Add(t.Worker().ID())
		t.Force(t.st.producer, etExit)
	case etExit:
	}
}

type pEtLoop struct {
	ports.Node
	join *ports.Node
	st   *pEtState
}

func (t *pEtLoop) Body() {
	switch t.Block() {
	case etlEntry:
		t.Async(&pEtForce{st: t.st}, t.join, etlRecurse)
	case etlRecurse:
		t.Async(&pEtLoop{join: t.join, st: t.st}, t.join, etlLoop)
	case etlLoop:
		c := t.st.buffer.Load()
		switch {
		case c == nil:
			t.JumpTo(etlEntry)
		case c.Tag() == doneTag:
			// another loop node claimed the producer
		default:
			if t.st.buffer.CompareAndSwap(c, tagptr.New(doneTag, nil)) {
				producer := (*ports.Node)(c.Pointer())
				t.Call(producer.BoundTask(), etlExit)
			}
		}
	case etlExit:
	}
}

type pEdgeThroughput struct {
	ports.Node
	st *pEtState
}

func (t *pEdgeThroughput) Body() {
	switch t.Block() {
	case etmEntry:
		t.st.producer = t.Future(&pEtFuture{st: t.st}, etmGen)
	case etmGen:
		t.Finish(&pEtLoop{join: &t.Node, st: t.st}, etmExit)
	case etmExit:
	}
}

// PortEdgeThroughputMicrobench is EdgeThroughputMicrobench on the
// port-passing engine.
func PortEdgeThroughputMicrobench(d time.Duration, workers int) *PortScenario {
	st := &pEtState{forces: NewShardedCounter(workers), dur: d}
	return &PortScenario{
		Name: "edge_throughput_microbench",
		Root: &pEdgeThroughput{st: st},
		Check: func() error {
			if st.forces.Sum() == 0 {
				return fmt.Errorf("edge_throughput/ports: no forces recorded")
			}
			if st.buffer.Load().Tag() != doneTag {
				return fmt.Errorf("edge_throughput/ports: producer never claimed")
			}
			return nil
		},
		Counters: func() map[string]int64 {
			return map[string]int64{"forces": st.forces.Sum()}
		},
	}
}
