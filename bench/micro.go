// micro.go — timed DAG microbenchmarks
// ============================================================================
//
// Two open-ended producers throttled by the control flag: a
// self-regenerating async loop measuring spawn throughput, and the
// edge-throughput scenario, where a future detaches on a timer while a
// generator keeps spawning readers that force it.  The timer hand-off in
// the latter runs through a tagged buffer: the claiming loop node CASes in
// the done tag and re-enters the detached producer with Call.

package bench

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/MunirAD/pasl/control"
	"github.com/MunirAD/pasl/sched"
	"github.com/MunirAD/pasl/tagptr"
)

const (
	amEntry = iota
	amExit
)

type asyncMicroLoop struct {
	sched.Node
	join *sched.Node
	c    *ShardedCounter
}

func (t *asyncMicroLoop) Body() {
	switch t.Block() {
	case amEntry:
		if !control.Stopped() {
			t.c.Add(t.Worker().ID())
			t.Async(&asyncMicroLoop{join: t.join, c: t.c}, t.join, amExit)
		}
	case amExit:
		t.JumpTo(amEntry)
	}
}

type asyncMicro struct {
	sched.Node
	c *ShardedCounter
}

func (t *asyncMicro) Body() {
	switch t.Block() {
	case amEntry:
		t.Finish(&asyncMicroLoop{join: &t.Node, c: t.c}, amExit)
	case amExit:
	}
}

// AsyncMicrobench measures async spawn throughput for the given duration.
func AsyncMicrobench(d time.Duration, workers int) *Scenario {
	c := NewShardedCounter(workers)
	control.Reset()
	control.ShutdownAfter(d)
	return &Scenario{
		Name: "async_microbench",
		Root: &asyncMicro{c: c},
		Check: func() error {
			if c.Sum() == 0 {
				return fmt.Errorf("async_microbench: no asyncs recorded")
			}
			return nil
		},
		Counters: func() map[string]int64 {
			return map[string]int64{"asyncs": c.Sum()}
		},
	}
}

// Edge-throughput scenario.

const doneTag = 1

type etState struct {
	buffer   tagptr.Atomic
	producer sched.Outset
	forces   *ShardedCounter
	dur      time.Duration
}

const (
	etEntry = iota
	etExit
)

type etFuture struct {
	sched.Node
	st *etState
}

func (t *etFuture) Body() {
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

type etForce struct {
	sched.Node
	st *etState
}

func (t *etForce) Body() {
	switch t.Block() {
	case etEntry:
		t.st.forces.Add(t.Worker().ID())
		t.Force(t.st.producer, etExit)
	case etExit:
	}
}

const (
	etlEntry = iota
	etlRecurse
	etlLoop
	etlExit
)

type etLoop struct {
	sched.Node
	join *sched.Node
	st   *etState
}

func (t *etLoop) Body() {
	switch t.Block() {
	case etlEntry:
		t.Async(&etForce{st: t.st}, t.join, etlRecurse)
	case etlRecurse:
		t.Async(&etLoop{join: t.join, st: t.st}, t.join, etlLoop)
	case etlLoop:
		c := t.st.buffer.Load()
		switch {
		case c == nil:
			t.JumpTo(etlEntry)
		case c.Tag() == doneTag:
			// another loop node claimed the producer
		default:
			if t.st.buffer.CompareAndSwap(c, tagptr.New(doneTag, nil)) {
				producer := (*sched.Node)(c.Pointer())
				t.Call(producer.BoundTask(), etlExit)
			}
		}
	case etlExit:
	}
}

const (
	etmEntry = iota
	etmGen
	etmExit
)

type edgeThroughput struct {
	sched.Node
	st *etState
}

func (t *edgeThroughput) Body() {
	switch t.Block() {
	case etmEntry:
		t.st.producer = t.Future(&etFuture{st: t.st}, etmGen)
	case etmGen:
		t.Finish(&etLoop{join: &t.Node, st: t.st}, etmExit)
	case etmExit:
	}
}

// EdgeThroughputMicrobench spawns forcers against a timer-detached future
// for d, counting completed readers.
func EdgeThroughputMicrobench(d time.Duration, workers int) *Scenario {
	st := &etState{forces: NewShardedCounter(workers), dur: d}
	return &Scenario{
		Name: "edge_throughput_microbench",
		Root: &edgeThroughput{st: st},
		Check: func() error {
			if st.forces.Sum() == 0 {
				return fmt.Errorf("edge_throughput: no forces recorded")
			}
			if st.buffer.Load().Tag() != doneTag {
				return fmt.Errorf("edge_throughput: producer never claimed")
			}
			return nil
		},
		Counters: func() map[string]int64 {
			return map[string]int64{"forces": st.forces.Sum()}
		},
	}
}
