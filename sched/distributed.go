// distributed.go — SNZI-backed in-counter
// ============================================================================
//
// The distributed in-counter routes each edge's arrive and depart to the
// SNZI leaf chosen by hashing the edge's source, so the pair always lands
// on the same leaf, and the hot counting traffic spreads across the leaf
// row.  The root annotation points back at the owning node; the
// direct-distributed-unary out-strategy uses it to schedule the owner
// straight from the leaf whose depart zeroed the root, with no walk back
// through the in-counter object.

package sched

import (
	"unsafe"

	"github.com/MunirAD/pasl/snzi"
)

type distIncounter struct {
	tree *snzi.Tree
}

func newDistIncounter(n *Node) *distIncounter {
	c := engineCfg()
	t := snzi.New(c.SnziBranching, c.SnziLevels)
	t.SetAnnotation(unsafe.Pointer(n))
	return &distIncounter{tree: t}
}

func (d *distIncounter) IsActivated() bool { return !d.tree.IsNonzero() }

func (d *distIncounter) Increment(src *Node) {
	d.tree.LeafFor(unsafe.Pointer(src)).Arrive()
}

func (d *distIncounter) Decrement(src *Node) bool {
	return d.tree.LeafFor(unsafe.Pointer(src)).Depart()
}
