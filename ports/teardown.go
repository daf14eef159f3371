// teardown.go — freeze, notify, and dismantle port out-set trees
// ============================================================================
//
// Finishing an owned out-set departs the finisher's in-ports (the enabling
// path) and then freezes the tree, notifying every recorded target.  Both
// the notify walk and the severing walk run a communication-delay slice
// inline and continue as splittable DAG tasks when anything remains.

package ports

import "github.com/MunirAD/pasl/pool"

// finishFrom is the out-strategy hook for owned out-sets.
func (o *Outset) finishFrom(w *pool.Worker) {
	if o.n != nil {
		o.n.decrementInports(w)
	}
	notifyOutsetTree(o, w)
}

func notifyOutsetTree(o *Outset, w *pool.Worker) {
	f := o.NotifyFrontier()
	f.NotifyStep(engineCfg().CommunicationDelay, func(target *Node, port *InPort) {
		notifyDecrement(target, port, w)
	})
	if !f.Empty() {
		task := &notifyOutsetPar{out: o, f: f}
		PrepareNodeDefault(task)
		AddNode(task.base(), w)
		return
	}
	if !o.future {
		destroyOutset(o, w)
	}
}

func destroyOutset(o *Outset, w *pool.Worker) {
	f := o.DeallocFrontier()
	f.DeallocStep(engineCfg().CommunicationDelay)
	if !f.Empty() {
		task := &deallocOutsetPar{f: f}
		PrepareNodeDefault(task)
		AddNode(task.base(), w)
	}
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

// notifyOutsetPar drives the notify recursion, then deallocates unless the
// out-set is a future.
type notifyOutsetPar struct {
	Node
	out *Outset
	f   *Frontier
}

func (t *notifyOutsetPar) Body() {
	switch t.Block() {
	case blkEntry:
		t.Finish(&notifyOutsetParRec{join: t.base(), f: t.f}, blkExit)
	case blkExit:
		if !t.out.future {
			destroyOutset(t.out, t.Worker())
		}
	}
}

// notifyOutsetParRec walks the freeze frontier; shed siblings hold a
// forked port into the join's in-counter like any other child task.
type notifyOutsetParRec struct {
	Node
	join *Node
	f    *Frontier
}

func (t *notifyOutsetParRec) Body() {
	switch t.Block() {
	case blkProcess:
		w := t.Worker()
		t.f.NotifyStep(engineCfg().CommunicationDelay, func(target *Node, port *InPort) {
			notifyDecrement(target, port, w)
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
	sibling := &notifyOutsetParRec{join: t.join, f: t.f.Split()}
	PrepareNode(sibling, InReady(), OutUnary())
	forkInportFor(t.base(), sibling.base(), t.join)
	return sibling.base()
}

// deallocOutsetPar severs a frozen tree.
type deallocOutsetPar struct {
	Node
	f *Frontier
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
	PrepareNodeDefault(sibling)
	return sibling.base()
}
