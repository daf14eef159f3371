// outset.go — randomized-tree out-set
// ============================================================================
//
// The out-set records a source node's successors so that finishing the
// source can notify each of them exactly once.  Successors insert
// themselves concurrently along random paths; the finish walk freezes every
// slot so that any insertion racing with finish either lands before the
// freeze (and is notified by the walk) or observes a finished tag and
// reports failure to its caller, who then compensates on the in-counter.
//
// Each slot is in one of six states, encoded in the cell tag:
//
//	empty             nothing here yet
//	leaf              a successor reference
//	interior          a child out-set node
//	finished empty    frozen, nothing was here
//	finished leaf     frozen, the successor has been notified
//	finished interior frozen, subtree handled by the walk
//
// Insertion on a leaf slot displaces it: a fresh interior node adopts the
// new value and the displaced leaf as its first two children.  The walk
// itself is exposed in bounded steps (frontier.go) so the scheduler can run
// notify and deallocate as splittable DAG tasks.

package dyntree

import (
	"math/rand/v2"
	"unsafe"

	"github.com/MunirAD/pasl/tagptr"
)

// Slot tags.  Tag 0 is deliberately unused so a zero-valued slot is an
// immediately visible protocol violation.
const (
	tagEmpty = iota + 1
	tagLeaf
	tagInterior
	tagFinishedEmpty
	tagFinishedLeaf
	tagFinishedInterior
)

var emptyCell = tagptr.New(tagEmpty, nil)

type onode struct {
	children []tagptr.Atomic
}

func newONode(branching int) *onode {
	n := &onode{children: make([]tagptr.Atomic, branching)}
	for i := range n.children {
		n.children[i].Store(emptyCell)
	}
	return n
}

// makeFinished maps a live cell to its frozen counterpart.  Freezing an
// already frozen slot means finish ran twice; that kills the process.
func makeFinished(c *tagptr.Cell) *tagptr.Cell {
	switch c.Tag() {
	case tagEmpty:
		return tagptr.New(tagFinishedEmpty, nil)
	case tagLeaf:
		return tagptr.New(tagFinishedLeaf, c.Pointer())
	case tagInterior:
		return tagptr.New(tagFinishedInterior, c.Pointer())
	}
	panic("dyntree: finish on an already finished out-set slot")
}

// Outset is the dyntree out-set over successor type T.
type Outset[T any] struct {
	branching int
	root      *onode
}

// NewOutset builds an empty out-set.  branching must be at least 2: a leaf
// displacement needs two slots for (new value, displaced leaf).
func NewOutset[T any](branching int) *Outset[T] {
	if branching < 2 {
		panic("dyntree: branching factor must be >= 2")
	}
	return &Outset[T]{branching: branching, root: newONode(branching)}
}

// Insert records v as a successor.  It returns false iff the out-set has
// been finished, in which case the caller owns the compensation.
func (o *Outset[T]) Insert(v *T) bool {
	val := tagptr.New(tagLeaf, unsafe.Pointer(v))
	cur := o.root
	if cur == nil {
		// The deallocate phase has already detached the frozen tree.
		return false
	}
	for {
		var next *onode
	slots:
		for {
			br := &cur.children[rand.IntN(o.branching)]
			cell := br.Load()
			tag := cell.Tag()
			if tag >= tagFinishedEmpty {
				return false
			}
			if tag == tagEmpty {
				if br.CompareAndSwap(cell, val) {
					return true
				}
				cell = br.Load()
				tag = cell.Tag()
			}
			if tag == tagLeaf {
				interior := newONode(o.branching)
				interior.children[0].Store(val)
				interior.children[1].Store(cell)
				icell := tagptr.New(tagInterior, unsafe.Pointer(interior))
				if br.CompareAndSwap(cell, icell) {
					return true
				}
				cell = br.Load()
				tag = cell.Tag()
			}
			if tag == tagInterior {
				next = (*onode)(cell.Pointer())
				break slots
			}
			// A finished tag that appeared mid-slot is caught at the top
			// of the next iteration.
		}
		cur = next
	}
}
