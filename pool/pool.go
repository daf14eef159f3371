// pool.go — work-stealing thread pool
// ============================================================================
//
// The pool underneath the DAG engines.  Each worker owns a fixed-size run
// queue; thieves take from the head, the owner consumes from the head and
// publishes at the tail, and a single runnext slot carries the continuation
// a block handed straight back (the reuse-calling-thread path).  Overflow
// and external submissions go through a shared inject queue.
//
// Threading model follows the pinned-consumer shape: workers optionally
// lock their OS thread and pin to a core, spin hot through a miss budget,
// then back off with cpuRelax and short sleeps so detached timers and the
// Go runtime keep getting cycles.
//
// Termination is driven by the engines, not by queue emptiness: a node that
// suspended between blocks sits in no queue but keeps its DAG alive.  The
// engines maintain the live count (one unit per prepared, unfinished
// thread); workers exit when it reaches zero.

package pool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Thread is one schedulable unit.  Run executes the current block; if the
// thread did not request reuse, the worker reports it finished exactly
// once.
type Thread interface {
	Run(w *Worker)
	Finished(w *Worker)
}

const (
	runqSize    = 256
	spinBudget  = 128
	stealRounds = 4
	idleNap     = 20 * time.Microsecond
)

// Pool owns the workers and the shared queues.
type Pool struct {
	workers []*Worker

	injectMu sync.Mutex
	inject   []Thread

	// live counts prepared-but-unfinished threads across all engines
	// using this pool.  It is the termination condition.
	live atomic.Int64

	// starving counts workers that currently find nothing to run; a
	// positive value is the split hint for cooperative loops.
	starving atomic.Int32

	pin bool
}

// New builds a pool with nbWorkers workers.  pin locks each worker to an
// OS thread and a core.
func New(nbWorkers int, pin bool) *Pool {
	if nbWorkers < 1 {
		nbWorkers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{pin: pin}
	for i := 0; i < nbWorkers; i++ {
		p.workers = append(p.workers, &Worker{
			id:  i,
			p:   p,
			rnd: uint64(i)*0x9e3779b97f4a7c15 + 0x2545f4914f6cdd1d,
		})
	}
	return p
}

// NbWorkers returns the worker count.
func (p *Pool) NbWorkers() int { return len(p.workers) }

// LiveAdd adjusts the live-thread count.  Engines call +1 when a thread
// enters the DAG and -1 after its finish notification completes.
func (p *Pool) LiveAdd(d int64) {
	if p.live.Add(d) < 0 {
		panic("pool: live thread count went negative")
	}
}

// Inject submits a thread from outside any worker (launch code, timers).
func (p *Pool) Inject(t Thread) {
	p.injectMu.Lock()
	p.inject = append(p.inject, t)
	p.injectMu.Unlock()
}

func (p *Pool) injectBatch(ts []Thread) {
	p.injectMu.Lock()
	p.inject = append(p.inject, ts...)
	p.injectMu.Unlock()
}

func (p *Pool) popInject() Thread {
	p.injectMu.Lock()
	defer p.injectMu.Unlock()
	if len(p.inject) == 0 {
		return nil
	}
	t := p.inject[0]
	n := copy(p.inject, p.inject[1:])
	p.inject = p.inject[:n]
	return t
}

// Launch runs the workers until the live count reaches zero.  The caller
// must have accounted every root in the live count before calling.
func (p *Pool) Launch(roots ...Thread) {
	for _, r := range roots {
		p.Inject(r)
	}
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go w.loop(&wg)
	}
	wg.Wait()
}

// Hungry reports whether some worker is idle; splittable loops consult it
// at block boundaries.
func (p *Pool) Hungry() bool { return p.starving.Load() > 0 }
