package pool

import (
	"runtime"
	"sync/atomic"
	"testing"
)

type fanout struct {
	depth   int
	counter *atomic.Int64
}

func (t *fanout) Run(w *Worker) {
	if t.depth == 0 {
		t.counter.Add(1)
		return
	}
	for i := 0; i < 2; i++ {
		c := &fanout{depth: t.depth - 1, counter: t.counter}
		w.Pool().LiveAdd(1)
		w.Push(c)
	}
}

func (t *fanout) Finished(w *Worker) { w.Pool().LiveAdd(-1) }

func TestLaunchRunsWholeTree(t *testing.T) {
	const depth = 12 // 4096 leaves
	var leaves atomic.Int64
	p := New(runtime.GOMAXPROCS(0), false)
	root := &fanout{depth: depth, counter: &leaves}
	p.LiveAdd(1)
	p.Launch(root)
	if got := leaves.Load(); got != 1<<depth {
		t.Fatalf("leaves executed: got %d want %d", got, 1<<depth)
	}
}

type hopper struct {
	hops    int
	counter *atomic.Int64
}

func (t *hopper) Run(w *Worker) {
	t.counter.Add(1)
	if t.hops > 0 {
		t.hops--
		w.ReuseCallingThread()
		w.PushNext(t)
	}
}

func (t *hopper) Finished(w *Worker) { w.Pool().LiveAdd(-1) }

// TestReuseSuppressesFinish re-runs one thread across blocks: Finished
// fires only after the run that did not request reuse.
func TestReuseSuppressesFinish(t *testing.T) {
	var runs atomic.Int64
	p := New(2, false)
	root := &hopper{hops: 9, counter: &runs}
	p.LiveAdd(1)
	p.Launch(root)
	if got := runs.Load(); got != 10 {
		t.Fatalf("runs: got %d want 10", got)
	}
}

func TestRunqSpillToInject(t *testing.T) {
	p := New(1, false)
	w := p.workers[0]
	var n atomic.Int64
	total := runqSize + runqSize/2
	for i := 0; i < total; i++ {
		w.Push(&fanout{depth: 0, counter: &n})
	}
	seen := 0
	for {
		th := w.pop()
		if th == nil {
			th = p.popInject()
		}
		if th == nil {
			break
		}
		seen++
	}
	if seen != total {
		t.Fatalf("drained %d threads, want %d", seen, total)
	}
}

func TestStealFromVictim(t *testing.T) {
	p := New(2, false)
	v, thief := p.workers[0], p.workers[1]
	var n atomic.Int64
	for i := 0; i < 8; i++ {
		v.Push(&fanout{depth: 0, counter: &n})
	}
	got := 0
	for thief.stealFrom(v) != nil {
		got++
	}
	if got != 8 {
		t.Fatalf("stole %d threads, want 8", got)
	}
	if v.pop() != nil {
		t.Fatal("victim queue must be empty after steals")
	}
}

func TestPushNextDemotesOccupant(t *testing.T) {
	p := New(1, false)
	w := p.workers[0]
	var n atomic.Int64
	a := &fanout{depth: 0, counter: &n}
	b := &fanout{depth: 0, counter: &n}
	w.PushNext(a)
	w.PushNext(b)
	if w.pop() != b {
		t.Fatal("runnext must hold the most recent continuation")
	}
	if w.pop() != a {
		t.Fatal("demoted occupant must surface from the run queue")
	}
}
