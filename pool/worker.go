// worker.go
//
// One worker: a bounded run queue stolen from at the head, a runnext slot
// for straight-line continuations, and the find/execute loop.  The queue
// protocol is the classic head-CAS ring: the owner publishes at the tail
// with a release store, owner and thieves both claim the head by CAS, and
// a successful CAS proves the slot read beforehand was still live.

package pool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

type box struct{ t Thread }

// Worker is one scheduling context.  All fields except the queue words are
// owner-only.
type Worker struct {
	id  int
	p   *Pool
	rnd uint64

	head atomic.Uint32
	tail atomic.Uint32
	runq [runqSize]atomic.Pointer[box]

	next  Thread // runnext slot, owner-only
	cur   Thread // thread currently in Run
	reuse bool
}

// ID returns the worker index, usable as an affinity key.
func (w *Worker) ID() int { return w.id }

// Pool returns the owning pool.
func (w *Worker) Pool() *Pool { return w.p }

// Current returns the thread whose Run is on this worker's stack.
func (w *Worker) Current() Thread { return w.cur }

// ReuseCallingThread marks the running thread as suspended rather than
// finished: the worker will not fire its finish notification when Run
// returns.
func (w *Worker) ReuseCallingThread() { w.reuse = true }

// ShouldSplit reports whether a splittable loop ought to shed work.
func (w *Worker) ShouldSplit() bool { return w.p.Hungry() }

// PushNext schedules t as this worker's immediate continuation.  A thread
// already occupying the slot is demoted to the run queue.
func (w *Worker) PushNext(t Thread) {
	if w.next != nil {
		w.Push(w.next)
	}
	w.next = t
}

// Push publishes t on this worker's run queue, spilling half the queue to
// the inject queue when full.
func (w *Worker) Push(t Thread) {
	for {
		h := w.head.Load()
		tl := w.tail.Load()
		if tl-h < runqSize {
			w.runq[tl%runqSize].Store(&box{t: t})
			w.tail.Store(tl + 1)
			return
		}
		w.spillHalf(h)
	}
}

// spillHalf moves half of the queue into the inject queue to make room.
func (w *Worker) spillHalf(h uint32) {
	n := (w.tail.Load() - h) / 2
	if n == 0 {
		return
	}
	batch := make([]Thread, 0, n)
	for i := uint32(0); i < n; i++ {
		batch = append(batch, w.runq[(h+i)%runqSize].Load().t)
	}
	if w.head.CompareAndSwap(h, h+n) {
		w.p.injectBatch(batch)
	}
}

// pop takes the next thread owned by this worker.
func (w *Worker) pop() Thread {
	if t := w.next; t != nil {
		w.next = nil
		return t
	}
	for {
		h := w.head.Load()
		if h == w.tail.Load() {
			return nil
		}
		b := w.runq[h%runqSize].Load()
		if w.head.CompareAndSwap(h, h+1) {
			return b.t
		}
	}
}

// stealFrom takes one thread from a victim's queue head.
func (w *Worker) stealFrom(v *Worker) Thread {
	for {
		h := v.head.Load()
		tl := v.tail.Load()
		if int32(tl-h) <= 0 {
			return nil
		}
		b := v.runq[h%runqSize].Load()
		if b == nil {
			continue
		}
		if v.head.CompareAndSwap(h, h+1) {
			return b.t
		}
	}
}

// xorshift per-worker stream for victim selection; never shared.
func (w *Worker) nextRand() uint64 {
	x := w.rnd
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	w.rnd = x
	return x
}

// find locates the next thread: own queue, inject queue, then random
// victims.
func (w *Worker) find() Thread {
	if t := w.pop(); t != nil {
		return t
	}
	if t := w.p.popInject(); t != nil {
		return t
	}
	n := len(w.p.workers)
	if n > 1 {
		for round := 0; round < stealRounds; round++ {
			v := w.p.workers[w.nextRand()%uint64(n)]
			if v == w {
				continue
			}
			if t := w.stealFrom(v); t != nil {
				return t
			}
		}
	}
	return nil
}

// execute runs one thread and fires its finish notification unless the
// thread suspended itself.
func (w *Worker) execute(t Thread) {
	w.cur = t
	w.reuse = false
	t.Run(w)
	reused := w.reuse
	w.cur = nil
	if !reused {
		t.Finished(w)
	}
}

// loop is the worker body: run until the engines report no live threads.
func (w *Worker) loop(wg *sync.WaitGroup) {
	defer wg.Done()
	if w.p.pin {
		runtime.LockOSThread()
		setAffinity(w.id)
		defer runtime.UnlockOSThread()
	}
	idle := false
	miss := 0
	for {
		if t := w.find(); t != nil {
			if idle {
				w.p.starving.Add(-1)
				idle = false
			}
			miss = 0
			w.execute(t)
			continue
		}
		if w.p.live.Load() == 0 {
			if idle {
				w.p.starving.Add(-1)
			}
			return
		}
		if !idle {
			w.p.starving.Add(1)
			idle = true
		}
		miss++
		if miss < spinBudget {
			cpuRelax()
			continue
		}
		// Detached timers are plain goroutines; give the runtime room
		// to run them while the DAG is stalled on an external event.
		runtime.Gosched()
		if miss > 4*spinBudget {
			time.Sleep(idleNap)
		}
	}
}
