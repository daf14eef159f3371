// snzi.go — scalable non-zero indicator tree
// ============================================================================
//
// A fixed-shape k-ary tree of counters supporting concurrent Arrive/Depart
// on its leaves while exposing a single root is-nonzero predicate.  The
// point of the shape: counting traffic spreads over b^(levels-1) leaves, and
// only the 0↔1 transitions of a node climb toward the root, so the root
// word is touched once per quiescence boundary instead of once per edge.
//
// Each node packs (count, has-signal bit, version) into one word and is
// CAS'd exactly at the 0/1 boundary.  The signal state is the classic
// intermediate "half" value: an arrival that finds a node at zero parks it
// at half, completes the parent arrival, and only then publishes count 1.
// A visible count of at least one therefore guarantees the propagation
// above it has landed, which is what lets a depart climb without ever
// under-running a parent.  The version half of the word pins the half→1
// hand-off to its own epoch.  Interleavings may expose an interior count
// transiently at 1; the contract is eventual quiescence at zero once total
// arrives equal total departs, and that the final depart of a balanced
// multiset observes the root 1→0 transition exactly once.
//
// A tree carries a root annotation: an owner reference set once at
// construction and readable in O(1) from any leaf.  The distributed unary
// out-strategy uses it to schedule the in-counter's owner straight from the
// leaf that ran the enabling depart.

package snzi

import (
	"math/rand/v2"
	"sync/atomic"
	"unsafe"
)

// paddedUint64 keeps each tree node on its own cache line; the whole reason
// the tree exists is to stop counting traffic from colliding on one line.
type paddedUint64 struct {
	v atomic.Uint64
	_ [56]byte
}

func (p *paddedUint64) Load() uint64 { return p.v.Load() }

func (p *paddedUint64) CompareAndSwap(old, new uint64) bool {
	return p.v.CompareAndSwap(old, new)
}

const (
	DefaultBranching = 2
	DefaultLevels    = 3
)

// state word layout: version in the high half, count in the low half.
// countHalf is the parked intermediate state of an in-flight first arrive.
const countHalf = ^uint32(0)

func packState(count, version uint32) uint64 {
	return uint64(version)<<32 | uint64(count)
}

func stateCount(s uint64) uint32   { return uint32(s) }
func stateVersion(s uint64) uint32 { return uint32(s >> 32) }

type node struct {
	state paddedUint64
}

// Tree is one SNZI instance.  Shape is fixed at construction; nodes are
// stored in heap order with the root at index 0.
type Tree struct {
	branching int
	nodes     []node
	leaves    []Leaf
	owner     unsafe.Pointer // root annotation, set once before sharing
}

// Leaf is a handle to one leaf node of a tree.
type Leaf struct {
	t *Tree
	i int
}

// New builds a tree with the given branching factor and number of levels.
// levels == 1 degenerates to a single counter that is both root and leaf.
func New(branching, levels int) *Tree {
	if branching < 1 || levels < 1 {
		panic("snzi: branching and levels must be >= 1")
	}
	total, width := 1, 1
	for l := 1; l < levels; l++ {
		width *= branching
		total += width
	}
	t := &Tree{
		branching: branching,
		nodes:     make([]node, total),
	}
	first := total - width
	t.leaves = make([]Leaf, width)
	for i := range t.leaves {
		t.leaves[i] = Leaf{t: t, i: first + i}
	}
	return t
}

// SetAnnotation installs the owner reference.  Must happen before the tree
// is shared; there is deliberately no synchronisation here.
func (t *Tree) SetAnnotation(p unsafe.Pointer) { t.owner = p }

// Annotation returns the owner reference installed at construction.
func (t *Tree) Annotation() unsafe.Pointer { return t.owner }

// NbLeaves returns the number of leaf nodes.
func (t *Tree) NbLeaves() int { return len(t.leaves) }

// LeafAt returns the i-th leaf.  Callers that want an affinity scheme
// (hash of the arriving node, worker id) index here; everyone else uses
// RandomLeaf.
func (t *Tree) LeafAt(i int) *Leaf { return &t.leaves[i] }

// RandomLeaf picks a leaf with the calling worker's PRNG stream.
func (t *Tree) RandomLeaf() *Leaf {
	if len(t.leaves) == 1 {
		return &t.leaves[0]
	}
	return &t.leaves[rand.IntN(len(t.leaves))]
}

// LeafFor maps a source reference to a leaf.  Arrive and Depart for one
// logical edge must land on the same leaf or its count would go negative,
// so every caller that keys traffic by edge source routes through here.
// nil maps to leaf 0.
func (t *Tree) LeafFor(src unsafe.Pointer) *Leaf {
	if len(t.leaves) == 1 || src == nil {
		return &t.leaves[0]
	}
	return &t.leaves[mix64(uint64(uintptr(src)))%uint64(len(t.leaves))]
}

// mix64 is a finalizer-style avalanche over the pointer bits; without it
// allocator alignment would funnel every source onto a handful of leaves.
func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// IsNonzero reports whether the arrive/depart multiset is currently
// non-zero as witnessed by the root.  The root is never parked at half.
func (t *Tree) IsNonzero() bool {
	return stateCount(t.nodes[0].state.Load()) > 0
}

// Tree returns the owning tree of a leaf.
func (l *Leaf) Tree() *Tree { return l.t }

// Arrive registers one arrival at the leaf; the root is non-zero before
// Arrive returns.
func (l *Leaf) Arrive() {
	l.t.arriveAt(l.i)
}

// Depart registers one departure at the leaf.  It returns true iff this
// departure drove the root to zero, i.e. the caller witnessed the final
// depart of the current epoch.
func (l *Leaf) Depart() bool {
	return l.t.departAt(l.i)
}

func (t *Tree) arriveAt(i int) {
	if i == 0 {
		// The root has no parent to signal; it is a plain counter.
		for {
			s := t.nodes[0].state.Load()
			if t.nodes[0].state.CompareAndSwap(s,
				packState(stateCount(s)+1, stateVersion(s))) {
				return
			}
		}
	}
	parent := (i - 1) / t.branching
	undo := 0
	done := false
	for !done {
		s := t.nodes[i].state.Load()
		c, v := stateCount(s), stateVersion(s)
		if c >= 1 && c != countHalf {
			if t.nodes[i].state.CompareAndSwap(s, packState(c+1, v)) {
				done = true
			}
			continue
		}
		if c == 0 {
			if t.nodes[i].state.CompareAndSwap(s, packState(countHalf, v+1)) {
				done = true
				s = packState(countHalf, v+1)
				c, v = countHalf, v+1
			} else {
				continue
			}
		}
		if c == countHalf {
			// Complete the propagation, then publish count 1.  Losing
			// the publish means someone else finished this epoch; the
			// extra parent arrival is rolled back below.
			t.arriveAt(parent)
			if !t.nodes[i].state.CompareAndSwap(s, packState(1, v)) {
				undo++
			}
		}
	}
	for ; undo > 0; undo-- {
		t.departAt(parent)
	}
}

func (t *Tree) departAt(i int) bool {
	for {
		s := t.nodes[i].state.Load()
		c, v := stateCount(s), stateVersion(s)
		if c == countHalf {
			// An in-flight first arrive owns the node for an instant;
			// its publish is one CAS away.
			continue
		}
		if c == 0 {
			panic("snzi: depart on a zero node")
		}
		if !t.nodes[i].state.CompareAndSwap(s, packState(c-1, v)) {
			continue
		}
		if c != 1 {
			return false
		}
		if i == 0 {
			return true
		}
		return t.departAt((i - 1) / t.branching)
	}
}
