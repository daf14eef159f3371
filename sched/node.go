// node.go — the DAG node and its strategy words
// ============================================================================
//
// A Node is one unit of schedulable work: a hand-written state machine with
// labelled blocks, an in-strategy counting unresolved incoming edges, and
// an out-strategy recording outgoing edges for the finish notification.
//
// Both strategies are tagged words.  The hot cases (ready, unary, fetch-add
// / noop, unary, direct-distributed-unary) are resolved from the tag alone
// with no dispatch; only tag 0 indirects through an owned structure.  The
// fetch-add count rides in the payload bits of the in word, so counting is
// one atomic add on the word itself.
//
// Ownership: a node belongs to exactly one worker between entering Run and
// returning from it; strategy objects are installed before the node is
// shared and the adjacent target/leaf fields of the out word mutate only
// while the node is still private to its builder.  The only concurrently
// mutated word is the fetch-add in word.

package sched

import (
	"sync/atomic"

	"github.com/MunirAD/pasl/pool"
	"github.com/MunirAD/pasl/snzi"
	"github.com/MunirAD/pasl/tagptr"
)

const (
	uninitializedBlock = -1
	entryBlock         = 0
)

// In-strategy tags.
const (
	inTagObj = iota // owned Incounter instance
	inTagReady
	inTagUnary
	inTagFetchAdd
)

// Out-strategy tags.
const (
	outTagObj = iota // owned Outset instance
	outTagNoop
	outTagUnary
	outTagDDU // direct leaf of the successor's SNZI in-counter
)

// negPayloadUnit is the two's-complement add that subtracts one from the
// payload of a strategy word.
const negPayloadUnit = ^uint64(tagptr.PayloadUnit) + 1

// Incounter is an owned in-strategy instance.
type Incounter interface {
	IsActivated() bool
	Increment(src *Node)
	Decrement(src *Node) bool
}

// Outset is an owned out-strategy instance.
type Outset interface {
	// Insert records target as a successor; false means the out-set has
	// already finished and the caller must compensate.
	Insert(target *Node) bool
	// Finish notifies every successor exactly once.  Called at most once,
	// by the owner.
	Finish(owner *Node, w *pool.Worker)
	// EnableFuture suppresses self-deallocation on finish.
	EnableFuture()
	// Destroy dismantles a future out-set; Finish must have run.
	Destroy(w *pool.Worker)
	// isFuture reports the EnableFuture flag.
	isFuture() bool
}

// Task is the concrete body of a node.  Implementations embed Node and
// switch on Block().
type Task interface {
	Body()
	base() *Node
}

// Splittable is implemented by tasks that can shed half their remaining
// work at a block boundary when some worker is starving.
type Splittable interface {
	Size() int
	Split() *Node
}

// Node carries the resumption label and the two strategy words.
type Node struct {
	blockCur  int
	blockCont int

	in    atomic.Uint64 // tagptr.Word
	inObj Incounter

	out     atomic.Uint64 // tagptr.Word, payload unused
	outNode *Node
	outLeaf *snzi.Leaf
	outObj  Outset

	task    Task
	w       *pool.Worker // owning worker while running
	entered bool         // accounted in the pool live count
}

func (n *Node) base() *Node { return n }

// Block returns the label of the block currently executing.
func (n *Node) Block() int { return n.blockCur }

// Worker returns the worker running this node's current block.
func (n *Node) Worker() *pool.Worker { return n.w }

// BoundTask returns the task this node was prepared with; external events
// use it to re-enter a detached node through a combinator.
func (n *Node) BoundTask() Task { return n.task }

// futureOut returns the node's out-set when it is a future, nil otherwise.
// A detached future producer re-entered through Call keeps this out-set so
// its waiting forcers are notified when it finally finishes.
func (n *Node) futureOut() Outset {
	if n.outObj != nil && tagptr.Word(n.out.Load()).Tag() == outTagObj && n.outObj.isFuture() {
		return n.outObj
	}
	return nil
}

// Run implements pool.Thread: move the continuation label into place and
// execute one block.  Nothing is written to the node after the body
// returns; a suspension may be rescheduled and re-entered on another
// worker before this frame unwinds.
func (n *Node) Run(w *pool.Worker) {
	n.w = w
	cur := n.blockCont
	if cur == uninitializedBlock {
		panic("sched: node run without a continuation block")
	}
	n.blockCont = uninitializedBlock
	n.blockCur = cur
	n.task.Body()
}

// Finished implements pool.Thread: fire the out-strategy exactly once and
// retire the node from the live count.
func (n *Node) Finished(w *pool.Worker) {
	switch tagptr.Word(n.out.Load()).Tag() {
	case outTagNoop:
		// no successors
	case outTagUnary:
		decrementIncounter(n, n.outNode, w)
	case outTagDDU:
		if n.outLeaf.Depart() {
			target := (*Node)(n.outLeaf.Tree().Annotation())
			scheduleNode(target, w)
		}
	case outTagObj:
		n.outObj.Finish(n, w)
	}
	enginePool().LiveAdd(-1)
}

// prepareForTransfer suspends the node at the given continuation block.
func (n *Node) prepareForTransfer(target int) {
	n.w.ReuseCallingThread()
	n.blockCont = target
}

// JumpTo suspends at the target block and immediately reschedules, which
// is also the point where splittable work sheds a sibling to idle workers.
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
