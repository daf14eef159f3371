package ports

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MunirAD/pasl/config"
	"github.com/MunirAD/pasl/tagptr"
)

func testConfig() *config.Config {
	c := config.Default()
	c.Workers = runtime.GOMAXPROCS(0)
	return &c
}

func newOwnedIncounter() (*Incounter, *Node) {
	task := NewFuncTask(func() {})
	n := task.base()
	n.task = task
	in := NewIncounter(n)
	return in, n
}

func TestIncounterRootPortActivates(t *testing.T) {
	Boot(testConfig())
	in, _ := newOwnedIncounter()
	root, sibling := in.Increment(nil)
	if sibling != nil {
		t.Fatal("a fresh root port has no sibling")
	}
	if in.IsActivated(root) {
		t.Fatal("a live root port must not read as activated")
	}
	if !in.Decrement(root) {
		t.Fatal("departing the only port must activate")
	}
}

func TestIncounterForkActivatesOnce(t *testing.T) {
	Boot(testConfig())
	in, _ := newOwnedIncounter()
	root, _ := in.Increment(nil)
	a, b := in.Increment(root)
	if a == nil || b == nil {
		t.Fatal("forking a live port must yield two children")
	}
	if in.Decrement(a) {
		t.Fatal("first sibling depart must not activate")
	}
	if !in.Decrement(b) {
		t.Fatal("second sibling depart must carry the climb to activation")
	}
}

// TestIncounterDeepForkConcurrent forks a port tree several levels deep
// and departs all leaves from separate goroutines; exactly one departure
// reports activation.
func TestIncounterDeepForkConcurrent(t *testing.T) {
	Boot(testConfig())
	in, _ := newOwnedIncounter()
	root, _ := in.Increment(nil)
	leaves := []*InPort{root}
	for depth := 0; depth < 7; depth++ {
		var next []*InPort
		for _, l := range leaves {
			a, b := in.Increment(l)
			next = append(next, a, b)
		}
		leaves = next
	}

	var activations atomic.Int64
	var wg sync.WaitGroup
	wg.Add(len(leaves))
	for _, l := range leaves {
		go func(p *InPort) {
			defer wg.Done()
			if in.Decrement(p) {
				activations.Add(1)
			}
		}(l)
	}
	wg.Wait()
	if n := activations.Load(); n != 1 {
		t.Fatalf("activation reported %d times, want exactly 1", n)
	}
}

func TestOutsetInsertAndNotify(t *testing.T) {
	Boot(testConfig())
	owner := NewFuncTask(func() {})
	PrepareNode(owner, InReady(), OutUnary())
	o := NewOutset(owner.base())

	in, target := newOwnedIncounter()
	target.in.Store(uint64(tagptr.Make(inTagObj, 0)))
	target.inObj = in
	port, _ := in.Increment(nil)

	leaf := o.FindLeaf()
	newPort, ok := o.Insert(leaf, target, port)
	if !ok || newPort == nil {
		t.Fatal("insert into a live out-set must succeed")
	}

	var notified []*Node
	f := o.NotifyFrontier()
	for !f.Empty() {
		f.NotifyStep(4, func(n *Node, p *InPort) {
			notified = append(notified, n)
			if p != port {
				t.Fatal("notification must carry the registered in-port")
			}
		})
	}
	if len(notified) != 1 || notified[0] != target {
		t.Fatalf("notified %d targets, want exactly the inserted one", len(notified))
	}
	if !o.IsFinished() {
		t.Fatal("out-set must read finished after the freeze walk")
	}
	if _, ok := o.Insert(o.root, target, nil); ok {
		t.Fatal("insert after finish must fail")
	}
}

func TestOutsetFork2AgainstFreeze(t *testing.T) {
	Boot(testConfig())
	owner := NewFuncTask(func() {})
	PrepareNode(owner, InReady(), OutUnary())
	o := NewOutset(owner.base())
	leaf := o.FindLeaf()

	a, b := o.Fork2(leaf)
	if a == nil || b == nil {
		t.Fatal("fork of a live port must succeed")
	}

	f := o.NotifyFrontier()
	for !f.Empty() {
		f.NotifyStep(64, func(*Node, *InPort) {})
	}
	if x, y := o.Fork2(a); x != nil || y != nil {
		t.Fatal("fork after freeze must fail")
	}
}

func TestOutsetDeallocSevers(t *testing.T) {
	Boot(testConfig())
	owner := NewFuncTask(func() {})
	PrepareNode(owner, InReady(), OutUnary())
	o := NewOutset(owner.base())
	port := o.FindLeaf()
	for i := 0; i < 20; i++ {
		a, _ := o.Fork2(port)
		if a == nil {
			t.Fatal("fork failed on a live tree")
		}
		port = a
	}
	nf := o.NotifyFrontier()
	for !nf.Empty() {
		nf.NotifyStep(8, func(*Node, *InPort) {})
	}
	df := o.DeallocFrontier()
	for !df.Empty() {
		df.DeallocStep(8)
	}
	if o.root != nil {
		t.Fatal("dealloc must detach the root")
	}
}

func TestPassingModes(t *testing.T) {
	Boot(testConfig())
	inA, _ := newOwnedIncounter()
	inB, _ := newOwnedIncounter()
	pa, _ := inA.Increment(nil)
	pb, _ := inB.Increment(nil)

	parent := map[*Incounter]*InPort{inA: pa, inB: pb}
	child := map[*Incounter]*InPort{inA: nil}

	got := filterInports(PassIntersection, parent, child)
	if len(got) != 1 || got[inA] != pa {
		t.Fatal("intersection must keep only shared keys, with the parent's ports")
	}
	got = filterInports(PassDifference, parent, child)
	if len(got) != 1 || got[inB] != pb {
		t.Fatal("difference must keep only unshared keys")
	}
	got = filterInports(PassDefault, parent, child)
	if len(got) != 2 {
		t.Fatal("default must forward everything")
	}
}

func TestLaunchRunsFuncTask(t *testing.T) {
	var ran atomic.Int64
	Launch(testConfig(), NewFuncTask(func() { ran.Add(1) }))
	if ran.Load() != 1 {
		t.Fatalf("root ran %d times", ran.Load())
	}
}
