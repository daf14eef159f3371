// outset.go — the port-tree out-set
// ============================================================================
//
// A binary tree whose nodes carry an optional (target, in-port) pair.
// Holding a port means holding an insertion point: Insert hangs a new
// child at slot 0 of the caller's port, Fork2 grows both slots so parent
// and child task each keep a private port.  Finishing freezes every slot
// with a tag CAS and notifies every recorded target through the exact
// in-port the edge was registered with, so enabling is O(path) with no
// global lookup.

package ports

import (
	"unsafe"

	"github.com/MunirAD/pasl/tagptr"
)

const frozenTag = 1

// OutPort is one node of an out-set tree.
type OutPort struct {
	target   *Node
	port     *InPort
	children [2]tagptr.Atomic
}

// Outset is a node's out-set.  The owner is the node whose finish freezes
// the tree; futures are created unowned and bound when the producer is
// prepared.
type Outset struct {
	root   *OutPort
	n      *Node
	future bool
}

// NewOutset builds an out-set owned by n (nil for a future).
func NewOutset(n *Node) *Outset {
	return &Outset{root: &OutPort{}, n: n}
}

// SetOwner binds a future out-set to its producer.
func (o *Outset) SetOwner(n *Node) {
	if o.n != nil || n == nil {
		panic("ports: out-set owner rebound")
	}
	o.n = n
}

// EnableFuture suppresses self-deallocation on finish.
func (o *Outset) EnableFuture() { o.future = true }

// FindLeaf walks the (0, 0) chain to the current leaf; the creator of a
// future uses it to obtain the initial port.
func (o *Outset) FindLeaf() *OutPort {
	cur := o.root
	for {
		next := (*OutPort)(cur.children[0].Load().Pointer())
		if next == nil {
			next = (*OutPort)(cur.children[1].Load().Pointer())
		}
		if next == nil {
			return cur
		}
		cur = next
	}
}

// IsFinished reports whether the freeze walk has reached the root.
func (o *Outset) IsFinished() bool {
	return o.root.children[0].Load().Tag() == frozenTag
}

// Insert hangs (target, inport) as child 0 of the given port.  It fails if
// the out-set is finished or the slot is no longer plainly empty.
func (o *Outset) Insert(port *OutPort, target *Node, inport *InPort) (*OutPort, bool) {
	if o.IsFinished() {
		return nil, false
	}
	next := &OutPort{target: target, port: inport}
	w := port.children[0].Load()
	if w.Tag() != 0 || w.Pointer() != nil {
		return nil, false
	}
	if !port.children[0].CompareAndSwap(w, tagptr.New(0, unsafe.Pointer(next))) {
		return nil, false
	}
	return next, true
}

// Fork2 grows both children of the given port.  Failure means the freeze
// walk got there first; the caller drops the port.
func (o *Outset) Fork2(port *OutPort) (*OutPort, *OutPort) {
	var branches [2]*OutPort
	for i := 1; i >= 0; i-- {
		branches[i] = &OutPort{}
		w := port.children[i].Load()
		if w.Tag() != 0 || w.Pointer() != nil {
			return nil, nil
		}
		if !port.children[i].CompareAndSwap(w, tagptr.New(0, unsafe.Pointer(branches[i]))) {
			return nil, nil
		}
	}
	return branches[0], branches[1]
}
