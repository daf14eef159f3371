// dyntree.go — dyntree edge-algorithm glue and parallel teardown tasks
// ============================================================================
//
// The tree structures themselves live in the dyntree package; this file
// binds them to nodes and runs their dismantling as DAG work.  Teardown is
// paced by the communication delay and splits by handing subtrees to
// siblings, so no single worker ever owns a whole tree's destruction.
//
// Out-set teardown is two phases.  Notify freezes the slots and decrements
// every recorded successor; deallocate severs the frozen tree.  The
// deallocate pass runs after the notify pass by construction: it is the
// finish continuation of the wrapper node driving the notify recursion.

package sched

import (
	"github.com/MunirAD/pasl/dyntree"
	"github.com/MunirAD/pasl/pool"
)

type dynIncounter struct {
	t *dyntree.Incounter
}

func newDynIncounter() *dynIncounter {
	return &dynIncounter{t: dyntree.NewIncounter(engineCfg().DyntreeBranching)}
}

func (d *dynIncounter) IsActivated() bool    { return d.t.IsActivated() }
func (d *dynIncounter) Increment(*Node)      { d.t.Increment() }
func (d *dynIncounter) Decrement(*Node) bool { return d.t.Decrement() }

type dynOutset struct {
	t      *dyntree.Outset[Node]
	future bool
}

func newDynOutset() *dynOutset {
	return &dynOutset{t: dyntree.NewOutset[Node](engineCfg().DyntreeBranching)}
}

func (o *dynOutset) EnableFuture() { o.future = true }

func (o *dynOutset) isFuture() bool { return o.future }

func (o *dynOutset) Insert(target *Node) bool { return o.t.Insert(target) }

// Finish runs the first teardown slice inline and hands the rest to a DAG
// task.  Small out-sets never touch the scheduler.
func (o *dynOutset) Finish(owner *Node, w *pool.Worker) {
	delay := engineCfg().CommunicationDelay
	f := o.t.NotifyFrontier()
	f.NotifyStep(delay, func(tgt *Node) { decrementIncounter(owner, tgt, w) })
	if !f.Empty() {
		task := &notifyOutsetPar{out: o, src: owner, f: f}
		PrepareNodeDefault(task)
		AddNode(task.base(), w)
		return
	}
	if !o.future {
		o.Destroy(w)
	}
}

// Destroy dismantles the frozen tree, again inline first and as a
// splittable task if anything remains.
func (o *dynOutset) Destroy(w *pool.Worker) {
	delay := engineCfg().CommunicationDelay
	f := o.t.DeallocFrontier()
	f.DeallocStep(delay)
	if !f.Empty() {
		task := &deallocOutsetPar{f: f}
		PrepareNodeDefault(task)
		AddNode(task.base(), w)
	}
}

// spawnIncounterTeardown dismantles the retired-leaf tree of an activated
// dyntree in-counter.
func spawnIncounterTeardown(d *dynIncounter, w *pool.Worker) {
	f := d.t.OutFrontier()
	f.Step(engineCfg().CommunicationDelay)
	if f.Empty() {
		return
	}
	task := &deallocIncounterPar{f: f}
	PrepareNodeDefault(task)
	AddNode(task.base(), w)
}

// Walk-task blocks.
const (
	blkProcess = iota
	blkRepeat
)

const (
	blkEntry = iota
	blkExit
)

// deallocIncounterPar dismantles an in-counter's out-tree.
type deallocIncounterPar struct {
	Node
	f *dyntree.InFrontier
}

func (t *deallocIncounterPar) Body() {
	switch t.Block() {
	case blkProcess:
		t.f.Step(engineCfg().CommunicationDelay)
		t.JumpTo(blkRepeat)
	case blkRepeat:
		if !t.f.Empty() {
			t.JumpTo(blkProcess)
		}
	}
}

func (t *deallocIncounterPar) Size() int { return t.f.Size() }

func (t *deallocIncounterPar) Split() *Node {
	sibling := &deallocIncounterPar{f: t.f.Split()}
	PrepareNode(sibling, InReady(), OutNoop())
	return sibling.base()
}

// notifyOutsetPar drives the notify recursion and, once it joins back,
// deallocates the tree unless the out-set is a future.
type notifyOutsetPar struct {
	Node
	out *dynOutset
	src *Node
	f   *dyntree.OutsetFrontier[Node]
}

func (t *notifyOutsetPar) Body() {
	switch t.Block() {
	case blkEntry:
		t.Finish(&notifyOutsetParRec{src: t.src, join: t.base(), f: t.f}, blkExit)
	case blkExit:
		if !t.out.future {
			t.out.Destroy(t.Worker())
		}
	}
}

// notifyOutsetParRec is the splittable walker of the notify phase; every
// sibling it sheds is edged back to the join node.
type notifyOutsetParRec struct {
	Node
	src  *Node
	join *Node
	f    *dyntree.OutsetFrontier[Node]
}

func (t *notifyOutsetParRec) Body() {
	switch t.Block() {
	case blkProcess:
		w := t.Worker()
		t.f.NotifyStep(engineCfg().CommunicationDelay, func(tgt *Node) {
			decrementIncounter(t.src, tgt, w)
		})
		t.JumpTo(blkRepeat)
	case blkRepeat:
		if !t.f.Empty() {
			t.JumpTo(blkProcess)
		}
	}
}

func (t *notifyOutsetParRec) Size() int { return t.f.Size() }

func (t *notifyOutsetParRec) Split() *Node {
	sibling := &notifyOutsetParRec{src: t.src, join: t.join, f: t.f.Split()}
	PrepareNode(sibling, InReady(), OutUnary())
	addEdge(sibling.base(), t.join, t.Worker())
	return sibling.base()
}

// deallocOutsetPar dismantles a frozen out-set tree.
type deallocOutsetPar struct {
	Node
	f *dyntree.OutsetFrontier[Node]
}

func (t *deallocOutsetPar) Body() {
	switch t.Block() {
	case blkProcess:
		t.f.DeallocStep(engineCfg().CommunicationDelay)
		t.JumpTo(blkRepeat)
	case blkRepeat:
		if !t.f.Empty() {
			t.JumpTo(blkProcess)
		}
	}
}

func (t *deallocOutsetPar) Size() int { return t.f.Size() }

func (t *deallocOutsetPar) Split() *Node {
	sibling := &deallocOutsetPar{f: t.f.Split()}
	PrepareNode(sibling, InReady(), OutNoop())
	return sibling.base()
}
