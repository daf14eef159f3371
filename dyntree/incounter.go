// incounter.go — randomized-tree in-counter
// ============================================================================
//
// An in-counter that spreads its token state over a dynamically grown k-ary
// tree instead of a shared counter word.  One outstanding token == one leaf
// of the in-tree, so the counter is zero exactly when the in-tree is empty.
//
//   Increment — inserts a fresh leaf at a random empty slot along a random
//               path from the in-root.  Never fails; a descent that runs
//               into a detaching (minus-tagged) leaf restarts from the root.
//   Decrement — walks a random path to a leaf and detaches it with an
//               all-or-nothing CAS sweep over the leaf's child slots.  A
//               failed sweep rolls written slots back to empty and restarts
//               the descent.  Returns true iff it removed the last leaf.
//
// Detached leaves are not freed on the hot path: they are transplanted into
// a second tree (the out-tree) whose only purpose is bulk dismantling by a
// DAG task later.  The walk helpers for that task live in frontier.go.
//
// Slot encoding: empty is the nil cell; minus is tag bit 1.  A minus-tagged
// nil slot marks a leaf mid-detach, a minus-tagged pointer only ever occurs
// inside the out-tree.

package dyntree

import (
	"math/rand/v2"
	"sync/atomic"
	"unsafe"

	"github.com/MunirAD/pasl/tagptr"
)

const minusTag = 1

// DefaultBranching matches the shape the scenarios run with.
const DefaultBranching = 2

var minusCell = tagptr.New(minusTag, nil)

type inode struct {
	children []tagptr.Atomic
}

func newINode(branching int, init *tagptr.Cell) *inode {
	n := &inode{children: make([]tagptr.Atomic, branching)}
	if init != nil {
		for i := range n.children {
			n.children[i].Store(init)
		}
	}
	return n
}

// isLeaf reports whether no child slot carries a pointer.  Minus-tagged nil
// slots still count as childless.
func (n *inode) isLeaf() bool {
	for i := range n.children {
		if n.children[i].Load().Pointer() != nil {
			return false
		}
	}
	return true
}

// tryDetach claims every child slot of a leaf, empty → minus, in one sweep.
// Any slot that gained a child in the meantime fails the sweep; written
// slots are rolled back so the racing increment's subtree stays reachable.
func (n *inode) tryDetach() bool {
	for i := range n.children {
		if !n.children[i].CompareAndSwap(nil, minusCell) {
			for j := i - 1; j >= 0; j-- {
				n.children[j].Store(nil)
			}
			return false
		}
	}
	return true
}

// Incounter is the dyntree in-counter: an in-tree that grows on increments
// and an out-tree that collects retired leaves for deferred teardown.
type Incounter struct {
	branching int
	in        atomic.Pointer[inode]
	out       *inode
}

// NewIncounter builds an empty in-counter with the given branching factor.
// branching must be at least 2.
func NewIncounter(branching int) *Incounter {
	if branching < 2 {
		panic("dyntree: branching factor must be >= 2")
	}
	return &Incounter{
		branching: branching,
		out:       newINode(branching, minusCell),
	}
}

// IsActivated reports whether the counter is logically zero.
func (c *Incounter) IsActivated() bool {
	return c.in.Load() == nil
}

// Increment adds one token.  It cannot fail.
func (c *Incounter) Increment() {
	leaf := newINode(c.branching, nil)
	leafCell := tagptr.New(0, unsafe.Pointer(leaf))
	for {
		cur := c.in.Load()
		if cur == nil {
			if c.in.CompareAndSwap(nil, leaf) {
				return
			}
			continue
		}
		for {
			br := &cur.children[rand.IntN(c.branching)]
			cell := br.Load()
			if cell.Tag() == minusTag {
				break // leaf mid-detach; restart from the in-root
			}
			next := (*inode)(cell.Pointer())
			if next == nil {
				if br.CompareAndSwap(cell, leafCell) {
					return
				}
				break
			}
			cur = next
		}
	}
}

// Decrement removes one token and reports whether it removed the last one.
// Calling Decrement on an empty counter is a protocol violation.
func (c *Incounter) Decrement() bool {
	for {
		cur := c.in.Load()
		if cur == nil {
			panic("dyntree: decrement on an empty incounter")
		}
		if cur.isLeaf() {
			if cur.tryDetach() {
				c.in.Store(nil)
				c.addToOut(cur)
				return true
			}
		}
		for {
			br := &cur.children[rand.IntN(c.branching)]
			cell := br.Load()
			next := (*inode)(cell.Pointer())
			if next == nil || cell.Tag() == minusTag {
				break
			}
			if next.isLeaf() {
				if next.tryDetach() {
					br.Store(nil)
					c.addToOut(next)
					return false
				}
				break
			}
			cur = next
		}
	}
}

// addToOut transplants a detached leaf into the out-tree.  The leaf's slots
// are all minus at this point, which is exactly the empty-slot state the
// out-tree descends through, so the node can immediately host further
// transplants.
func (c *Incounter) addToOut(n *inode) {
	cell := tagptr.New(minusTag, unsafe.Pointer(n))
	for {
		cur := c.out
		for {
			br := &cur.children[rand.IntN(c.branching)]
			old := br.Load()
			if old.Pointer() == nil {
				if br.CompareAndSwap(old, cell) {
					return
				}
				break
			}
			cur = (*inode)(old.Pointer())
		}
	}
}
