package sched

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MunirAD/pasl/config"
	"github.com/MunirAD/pasl/tagptr"
)

func testConfig(algo config.EdgeAlgorithm) *config.Config {
	c := config.Default()
	c.EdgeAlgorithm = algo
	c.Workers = runtime.GOMAXPROCS(0)
	return &c
}

// payload reads the fetch-add count of a node's in word.
func payload(n *Node) uint64 {
	return tagptr.Word(n.in.Load()).Payload()
}

func newFetchAddTarget(count int) *Node {
	t := NewFuncTask(func() {})
	PrepareNode(t, InFetchAdd(), OutNoop())
	for i := 0; i < count; i++ {
		incrementIncounter(nil, t.base())
	}
	return t.base()
}

func TestStrategyWordTags(t *testing.T) {
	Boot(testConfig(config.Simple))
	task := NewFuncTask(func() {})
	PrepareNode(task, InFetchAdd(), OutNoop())
	n := task.base()
	if got := tagptr.Word(n.in.Load()).Tag(); got != inTagFetchAdd {
		t.Fatalf("in tag: got %d want %d", got, inTagFetchAdd)
	}
	if got := tagptr.Word(n.out.Load()).Tag(); got != outTagNoop {
		t.Fatalf("out tag: got %d want %d", got, outTagNoop)
	}
}

func TestFetchAddCounting(t *testing.T) {
	Boot(testConfig(config.Simple))
	n := newFetchAddTarget(3)
	if got := payload(n); got != 3 {
		t.Fatalf("payload after 3 increments: got %d", got)
	}
	decrementIncounter(nil, n, nil)
	decrementIncounter(nil, n, nil)
	if got := payload(n); got != 1 {
		t.Fatalf("payload after 2 decrements: got %d", got)
	}
}

func TestOutUnaryCoupledToDistributed(t *testing.T) {
	Boot(testConfig(config.Distributed))
	if got := OutUnary().word.Tag(); got != outTagDDU {
		t.Fatalf("distributed OutUnary tag: got %d want %d", got, outTagDDU)
	}
	Boot(testConfig(config.Dyntree))
	if got := OutUnary().word.Tag(); got != outTagUnary {
		t.Fatalf("dyntree OutUnary tag: got %d want %d", got, outTagUnary)
	}
}

func TestSimpleOutsetNotifiesEachInsertOnce(t *testing.T) {
	Boot(testConfig(config.Simple))
	o := newSimpleOutset()
	const n = 200
	targets := make([]*Node, n)
	for i := range targets {
		targets[i] = newFetchAddTarget(2)
		if !o.Insert(targets[i]) {
			t.Fatalf("insert %d failed before finish", i)
		}
	}
	o.Finish(nil, nil)
	for i, tgt := range targets {
		if got := payload(tgt); got != 1 {
			t.Fatalf("target %d payload %d after finish, want 1", i, got)
		}
	}
	if o.Insert(newFetchAddTarget(2)) {
		t.Fatal("insert after finish must fail")
	}
}

// TestSimpleOutsetInsertFinishRace checks the finished barrier under
// contention: accepted inserts are decremented exactly once, rejected ones
// not at all.
func TestSimpleOutsetInsertFinishRace(t *testing.T) {
	Boot(testConfig(config.Simple))
	writers := runtime.GOMAXPROCS(0)
	perWriter := 500
	if testing.Short() {
		perWriter = 50
	}
	o := newSimpleOutset()
	targets := make([][]*Node, writers)
	accepted := make([][]bool, writers)
	for w := range targets {
		targets[w] = make([]*Node, perWriter)
		accepted[w] = make([]bool, perWriter)
		for i := range targets[w] {
			targets[w][i] = newFetchAddTarget(2)
		}
	}

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer done.Done()
			start.Wait()
			for i := 0; i < perWriter; i++ {
				accepted[w][i] = o.Insert(targets[w][i])
			}
		}(w)
	}
	start.Done()
	o.Finish(nil, nil)
	done.Wait()

	for w := range targets {
		for i, tgt := range targets[w] {
			got := payload(tgt)
			if accepted[w][i] && got != 1 {
				t.Fatalf("accepted (%d,%d): payload %d, want 1", w, i, got)
			}
			if !accepted[w][i] && got != 2 {
				t.Fatalf("rejected (%d,%d): payload %d, want 2", w, i, got)
			}
		}
	}
}

// TestAddEdgeCompensation covers the no-lost-wakeup discipline: an edge
// whose insertion loses to the source's finish undoes its increment.
func TestAddEdgeCompensation(t *testing.T) {
	Boot(testConfig(config.Simple))
	src := NewFuncTask(func() {})
	PrepareNode(src, InReady(), OutNew())
	src.base().outObj.Finish(src.base(), nil)

	tgt := newFetchAddTarget(2)
	addEdge(src.base(), tgt, nil)
	if got := payload(tgt); got != 2 {
		t.Fatalf("payload after compensated edge: got %d, want 2", got)
	}
}

func TestCaptureOutsetLeavesNoop(t *testing.T) {
	Boot(testConfig(config.Simple))
	task := NewFuncTask(func() {})
	PrepareNode(task, InReady(), OutNew())
	n := task.base()
	obj := n.outObj
	os := n.captureOutset()
	if os.obj != obj {
		t.Fatal("capture must lift the out-set object")
	}
	if got := tagptr.Word(n.out.Load()).Tag(); got != outTagNoop {
		t.Fatalf("out tag after capture: got %d want noop", got)
	}
	installOut(n, os)
	if n.outObj != obj {
		t.Fatal("reinstall must restore the out-set object")
	}
}

// TestLaunchRunsFuncTasks exercises the whole stack on a trivial graph.
func TestLaunchRunsFuncTasks(t *testing.T) {
	for _, algo := range []config.EdgeAlgorithm{config.Simple, config.Distributed, config.Dyntree} {
		var ran atomic.Int64
		Launch(testConfig(algo), NewFuncTask(func() { ran.Add(1) }))
		if ran.Load() != 1 {
			t.Fatalf("%v: root ran %d times", algo, ran.Load())
		}
	}
}
