// strategy.go — strategy selection and the edge-wiring glue
// ============================================================================
//
// Everything that turns two nodes into an edge lives here.  The discipline
// in AddEdge is the one that makes wake-ups exact: increment the target's
// in-counter first, then insert into the source's out-set, and compensate
// with a decrement if the insertion lost to the source's finish.  Either
// the finish notification or the compensation runs — never both, never
// neither.

package sched

import (
	"unsafe"

	"github.com/MunirAD/pasl/config"
	"github.com/MunirAD/pasl/pool"
	"github.com/MunirAD/pasl/snzi"
	"github.com/MunirAD/pasl/tagptr"
)

// inStrategy names an in-strategy before it is installed on a node.
type inStrategy struct {
	word tagptr.Word
	obj  Incounter
}

// outStrategy names an out-strategy; node and leaf carry the adjacent
// fields of the unary flavours so a captured strategy reinstalls intact.
type outStrategy struct {
	word tagptr.Word
	obj  Outset
	node *Node
	leaf *snzi.Leaf
}

// InReady marks a node with no predecessors.
func InReady() inStrategy { return inStrategy{word: tagptr.Make(inTagReady, 0)} }

// InUnary marks a node with exactly one predecessor.
func InUnary() inStrategy { return inStrategy{word: tagptr.Make(inTagUnary, 0)} }

// InFetchAdd is the shared-counter in-strategy; the count lives in the
// word's payload.
func InFetchAdd() inStrategy { return inStrategy{word: tagptr.Make(inTagFetchAdd, 0)} }

// InNew builds the in-counter the configured edge algorithm prescribes for
// node n.
func InNew(n *Node) inStrategy {
	switch engineCfg().EdgeAlgorithm {
	case config.Simple:
		return InFetchAdd()
	case config.Distributed:
		return inStrategy{obj: newDistIncounter(n)}
	case config.Dyntree:
		return inStrategy{obj: newDynIncounter()}
	}
	panic("sched: unknown edge algorithm")
}

// OutNoop marks a node with no successors to notify.
func OutNoop() outStrategy { return outStrategy{word: tagptr.Make(outTagNoop, 0)} }

// OutUnary is the single-successor out-strategy.  Under the distributed
// algorithm it starts as a direct-distributed-unary that will capture the
// successor's SNZI leaf at insertion; the two features are coupled.
func OutUnary() outStrategy {
	if engineCfg().EdgeAlgorithm == config.Distributed {
		return outStrategy{word: tagptr.Make(outTagDDU, 0)}
	}
	return outStrategy{word: tagptr.Make(outTagUnary, 0)}
}

// OutNew builds the general out-set the configured algorithm prescribes.
func OutNew() outStrategy {
	return outStrategy{obj: newOutsetObj()}
}

func newOutsetObj() Outset {
	if engineCfg().EdgeAlgorithm == config.Simple {
		return newSimpleOutset()
	}
	return newDynOutset()
}

// NewOutset builds a free-standing out-set of the configured family; the
// structure microbenchmarks hammer these outside any DAG.
func NewOutset() Outset {
	return newOutsetObj()
}

// AllocateFuture builds an out-set that survives its own finish; the
// consumer deallocates it explicitly.
func AllocateFuture() Outset {
	o := newOutsetObj()
	o.EnableFuture()
	return o
}

// PrepareNode installs both strategies on a task's node and accounts it in
// the live count the first time it enters the DAG.
func PrepareNode(t Task, in inStrategy, out outStrategy) {
	n := t.base()
	n.task = t
	installIn(n, in)
	installOut(n, out)
	if !n.entered {
		n.entered = true
		enginePool().LiveAdd(1)
	}
}

// PrepareNodeDefault gives a task the configured algorithm's full pair.
func PrepareNodeDefault(t Task) {
	PrepareNode(t, InNew(t.base()), OutNew())
}

func installIn(n *Node, in inStrategy) {
	if in.obj != nil {
		n.in.Store(uint64(tagptr.Make(inTagObj, 0)))
		n.inObj = in.obj
		return
	}
	n.in.Store(uint64(in.word))
	n.inObj = nil
}

func installOut(n *Node, out outStrategy) {
	if out.obj != nil {
		n.out.Store(uint64(tagptr.Make(outTagObj, 0)))
		n.outObj = out.obj
		n.outNode = nil
		n.outLeaf = nil
		return
	}
	n.out.Store(uint64(out.word))
	n.outObj = nil
	n.outNode = out.node
	n.outLeaf = out.leaf
}

// captureOutset lifts the running node's out-strategy so a re-preparation
// keeps it; the node is left with a noop out until joinWith reinstalls.
func (n *Node) captureOutset() outStrategy {
	os := outStrategy{
		word: tagptr.Word(n.out.Load()),
		obj:  n.outObj,
		node: n.outNode,
		leaf: n.outLeaf,
	}
	installOut(n, OutNoop())
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

// AddNode hands a prepared node to the scheduler.  It becomes runnable
// when its in-counter is zero, which for ready, drained fetch-add and
// already-activated object strategies is immediately.
func AddNode(n *Node, w *pool.Worker) {
	word := tagptr.Word(n.in.Load())
	switch word.Tag() {
	case inTagReady:
		scheduleNode(n, w)
	case inTagUnary:
		// waits for its single decrement
	case inTagFetchAdd:
		if word.Payload() == 0 {
			scheduleNode(n, w)
		}
	case inTagObj:
		if n.inObj.IsActivated() {
			scheduleNode(n, w)
		}
	}
}

// scheduleNode makes the node runnable now, on the caller's worker when
// there is one.
func scheduleNode(n *Node, w *pool.Worker) {
	if w != nil {
		w.Push(n)
		return
	}
	enginePool().Inject(n)
}

// incrementIncounter adds one unresolved edge to the target.
func incrementIncounter(src, tgt *Node) {
	word := tagptr.Word(tgt.in.Load())
	switch word.Tag() {
	case inTagReady:
		panic("sched: edge into a ready node")
	case inTagUnary:
		// the single edge is implicit
	case inTagFetchAdd:
		tgt.in.Add(tagptr.PayloadUnit)
	case inTagObj:
		tgt.inObj.Increment(src)
	}
}

// decrementIncounter resolves one incoming edge of the target, scheduling
// it on the transition to zero.
func decrementIncounter(src, tgt *Node, w *pool.Worker) {
	word := tagptr.Word(tgt.in.Load())
	switch word.Tag() {
	case inTagReady:
		panic("sched: decrement on a ready node")
	case inTagUnary:
		scheduleNode(tgt, w)
	case inTagFetchAdd:
		if tagptr.Word(tgt.in.Add(negPayloadUnit)).Payload() == 0 {
			scheduleNode(tgt, w)
		}
	case inTagObj:
		if tgt.inObj.Decrement(src) {
			activate(tgt, w)
		}
	}
}

// DecrementIncounter is the external entry point used by out-set
// notifications that carry no worker context.
func DecrementIncounter(src, tgt *Node) {
	decrementIncounter(src, tgt, nil)
}

// activate schedules a node whose object in-counter just reached zero, and
// hands the dyntree's retired-leaf tree to a teardown task.
func activate(tgt *Node, w *pool.Worker) {
	if d, ok := tgt.inObj.(*dynIncounter); ok {
		spawnIncounterTeardown(d, w)
	}
	scheduleNode(tgt, w)
}

// outsetInsert records target in the source's out-strategy, resolving the
// unary flavours in place.
func outsetInsert(src, tgt *Node) bool {
	word := tagptr.Word(src.out.Load())
	switch word.Tag() {
	case outTagNoop:
		panic("sched: edge out of a noop node")
	case outTagUnary:
		src.outNode = tgt
		return true
	case outTagDDU:
		tin := tagptr.Word(tgt.in.Load())
		if tin.Tag() == inTagObj {
			if d, ok := tgt.inObj.(*distIncounter); ok {
				src.outLeaf = d.tree.LeafFor(unsafe.Pointer(src))
				return true
			}
		}
		// The successor's in-counter is not a SNZI; fall back to unary.
		src.out.Store(uint64(tagptr.Make(outTagUnary, 0)))
		src.outNode = tgt
		return true
	case outTagObj:
		return src.outObj.Insert(tgt)
	}
	panic("sched: impossible out-strategy tag")
}

// addEdge wires source → target: increment first, insert second, undo the
// increment if the insert raced with the source's finish.
func addEdge(src, tgt *Node, w *pool.Worker) {
	incrementIncounter(src, tgt)
	if !outsetInsert(src, tgt) {
		decrementIncounter(src, tgt, w)
	}
}

// AddEdge inserts the edge source → target.  Callers outside a running
// block have no worker context, so a compensation that needs to schedule
// goes through the inject queue; the combinators use the in-block path.
func AddEdge(src, tgt *Node) {
	addEdge(src, tgt, nil)
}
