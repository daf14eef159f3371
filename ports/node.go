// node.go — the port-passing DAG node
// ============================================================================
//
// Same resumption machinery as the direct engine, plus the two port maps
// that make dependency state local: for every live in-counter in its
// environment a task holds the in-port it would decrement, and likewise an
// out-port for every live out-set.  The maps are owned by exactly one node
// and never shared; the ports they hold point into shared trees.
//
// Finishing a node walks its in-ports and departs each one — that is the
// enabling path, no global successor lookup anywhere.

package ports

import (
	"sync/atomic"

	"github.com/MunirAD/pasl/pool"
	"github.com/MunirAD/pasl/tagptr"
)

const (
	uninitializedBlock = -1
	entryBlock         = 0
)

// In-strategy tags.
const (
	inTagObj = iota
	inTagReady
	inTagUnary
	inTagFetchAdd
)

// Out-strategy tags.
const (
	outTagObj = iota
	outTagNoop
	outTagUnary // notifies by departing the finisher's own in-ports
)

const negPayloadUnit = ^uint64(tagptr.PayloadUnit) + 1

// PassingMode selects which of the parent's ports propagate to a child on
// fork.
type PassingMode int

const (
	PassDefault      PassingMode = iota // all of them
	PassIntersection                    // only those the child already holds
	PassDifference                      // only those the child does not hold
)

// Task is the concrete body of a node.
type Task interface {
	Body()
	base() *Node
}

// Splittable is implemented by tasks that shed work at block boundaries.
type Splittable interface {
	Size() int
	Split() *Node
}

// Node is one port-passing task.
type Node struct {
	blockCur  int
	blockCont int

	in    atomic.Uint64
	inObj *Incounter

	out    atomic.Uint64
	outObj *Outset

	inports  map[*Incounter]*InPort
	outports map[*Outset]*OutPort

	inMode  PassingMode
	outMode PassingMode

	task    Task
	w       *pool.Worker
	entered bool
}

func (n *Node) base() *Node { return n }

// Block returns the label of the block currently executing.
func (n *Node) Block() int { return n.blockCur }

// Worker returns the worker running this node's current block.
func (n *Node) Worker() *pool.Worker { return n.w }

// BoundTask returns the task this node was prepared with.
func (n *Node) BoundTask() Task { return n.task }

// SetInportMode controls in-port propagation into this node on fork.
func (n *Node) SetInportMode(m PassingMode) { n.inMode = m }

// SetOutportMode controls out-port propagation into this node on fork.
func (n *Node) SetOutportMode(m PassingMode) { n.outMode = m }

// Run implements pool.Thread.
func (n *Node) Run(w *pool.Worker) {
	n.w = w
	cur := n.blockCont
	if cur == uninitializedBlock {
		panic("ports: node run without a continuation block")
	}
	n.blockCont = uninitializedBlock
	n.blockCur = cur
	n.task.Body()
}

// Finished implements pool.Thread: departs the node's in-ports, and for an
// owned out-set freezes and notifies its tree.
func (n *Node) Finished(w *pool.Worker) {
	switch tagptr.Word(n.out.Load()).Tag() {
	case outTagNoop:
		// nothing listens
	case outTagUnary:
		n.decrementInports(w)
	case outTagObj:
		n.outObj.finishFrom(w)
	}
	enginePool().LiveAdd(-1)
}

// decrementInports departs every in-port this node holds; this is what
// enables successors when a task completes.
func (n *Node) decrementInports(w *pool.Worker) {
	for in, port := range n.inports {
		if in.Decrement(port) {
			scheduleNode(in.n, w)
		}
	}
	clear(n.inports)
}

// notifyDecrement resolves an edge recorded in an out-set tree: the target
// is enabled through the exact in-port the edge was registered with, or
// through its strategy word when the edge was port-free (a forced
// consumer).
func notifyDecrement(target *Node, port *InPort, w *pool.Worker) {
	word := tagptr.Word(target.in.Load())
	switch word.Tag() {
	case inTagReady:
		panic("ports: notification of a ready node")
	case inTagUnary:
		scheduleNode(target, w)
	case inTagFetchAdd:
		if tagptr.Word(target.in.Add(negPayloadUnit)).Payload() == 0 {
			scheduleNode(target, w)
		}
	case inTagObj:
		if target.inObj.Decrement(port) {
			scheduleNode(target, w)
		}
	}
}

// inStrategy and outStrategy mirror the direct engine's tagged words.
type inStrategy struct {
	word tagptr.Word
	obj  *Incounter
}

type outStrategy struct {
	word tagptr.Word
	obj  *Outset
}

// InReady marks a node as immediately schedulable.
func InReady() inStrategy { return inStrategy{word: tagptr.Make(inTagReady, 0)} }

// InUnary marks a node enabled by a single notification.
func InUnary() inStrategy { return inStrategy{word: tagptr.Make(inTagUnary, 0)} }

// InFetchAdd is the counting word strategy.
func InFetchAdd() inStrategy { return inStrategy{word: tagptr.Make(inTagFetchAdd, 0)} }

// InNew builds the port-tree in-counter owned by n.
func InNew(n *Node) inStrategy { return inStrategy{obj: NewIncounter(n)} }

// OutNoop marks a node nothing listens to.
func OutNoop() outStrategy { return outStrategy{word: tagptr.Make(outTagNoop, 0)} }

// OutUnary is the default producer out-strategy: finishing departs the
// producer's own in-ports.
func OutUnary() outStrategy { return outStrategy{word: tagptr.Make(outTagUnary, 0)} }

// OutNew builds an owned out-set tree for n.
func OutNew(n *Node) outStrategy { return outStrategy{obj: NewOutset(n)} }

// PrepareNode installs both strategies and accounts the node once.
func PrepareNode(t Task, in inStrategy, out outStrategy) {
	n := t.base()
	n.task = t
	if in.obj != nil {
		n.in.Store(uint64(tagptr.Make(inTagObj, 0)))
		n.inObj = in.obj
	} else {
		n.in.Store(uint64(in.word))
		n.inObj = nil
	}
	if out.obj != nil {
		n.out.Store(uint64(tagptr.Make(outTagObj, 0)))
		n.outObj = out.obj
	} else {
		n.out.Store(uint64(out.word))
		n.outObj = nil
	}
	if !n.entered {
		n.entered = true
		enginePool().LiveAdd(1)
	}
}

// PrepareNodeDefault gives a task the full owned pair.
func PrepareNodeDefault(t Task) {
	n := t.base()
	PrepareNode(t, InNew(n), OutNew(n))
}

// captureOutset lifts the running node's out-strategy, leaving noop.
func (n *Node) captureOutset() outStrategy {
	os := outStrategy{word: tagptr.Word(n.out.Load()), obj: n.outObj}
	n.out.Store(uint64(tagptr.Make(outTagNoop, 0)))
	n.outObj = nil
	return os
}

// joinWith re-prepares a suspending node with a fresh in-strategy while
// keeping its out-strategy.
func joinWith(n *Node, in inStrategy) {
	PrepareNode(n.task, in, n.captureOutset())
}

// continueWith reschedules the running node as its own continuation.
func continueWith(n *Node) {
	joinWith(n, InReady())
	n.w.PushNext(n)
}

// prepareForTransfer suspends the node at the given continuation block.
func (n *Node) prepareForTransfer(target int) {
	n.w.ReuseCallingThread()
	n.blockCont = target
}

// JumpTo suspends at the target block and immediately reschedules; the
// split hook fires here.
func (n *Node) JumpTo(target int) {
	n.prepareForTransfer(target)
	n.maybeSplit()
	continueWith(n)
}

func (n *Node) maybeSplit() {
	s, ok := n.task.(Splittable)
	if !ok || n.w == nil || !n.w.ShouldSplit() || s.Size() < 2 {
		return
	}
	if sibling := s.Split(); sibling != nil {
		AddNode(sibling, n.w)
	}
}

// AddNode schedules a node now.  A node handed over with an owned
// in-counter must not yet hold a port in it: the counter is discarded,
// scheduling is unconditional in the bottom-up scheme.
func AddNode(n *Node, w *pool.Worker) {
	if tagptr.Word(n.in.Load()).Tag() == inTagObj {
		n.inObj = nil
		n.in.Store(uint64(tagptr.Make(inTagReady, 0)))
	}
	scheduleNode(n, w)
}

// scheduleNode makes the node runnable, on the caller's worker when there
// is one.
func scheduleNode(n *Node, w *pool.Worker) {
	if w != nil {
		w.Push(n)
		return
	}
	enginePool().Inject(n)
}
