// incounter.go — the port-tree in-counter
// ============================================================================
//
// In the bottom-up variant a node's in-counter is a tree of ports.  Every
// task holding an edge into the counter holds a leaf; forking a task forks
// the port into two children, and the counter is logically zero when a
// departing walk climbs to a nil parent.  The one-bit removed counter per
// node resolves sibling races: the first sibling to depart parks at the
// junction, the second carries the departure upward, so the activation is
// reported exactly once.

package ports

import "sync/atomic"

// InPort is one node of a port tree.
type InPort struct {
	parent  *InPort
	removed atomic.Int32
}

// Incounter is the in-counter of its owning node.
type Incounter struct {
	n *Node
}

// NewIncounter binds a fresh in-counter to its owner.
func NewIncounter(n *Node) *Incounter {
	if n == nil {
		panic("ports: incounter needs an owner")
	}
	return &Incounter{n: n}
}

// Owner returns the node this counter activates.
func (c *Incounter) Owner() *Node { return c.n }

// IsActivated reports whether the given port witnesses a zero counter.
func (c *Incounter) IsActivated(port *InPort) bool { return port.parent == nil }

// Increment splits a port in two.  A nil port grows a fresh root port
// with no sibling.  A root port (nil parent) is itself re-forkable: both
// children hang beneath it, the root becomes their junction, and its
// removed bit arbitrates the two departures so the second one carries the
// climb past the root and reports activation.  Any other port stops being
// a leaf and serves as its children's junction the same way.
func (c *Incounter) Increment(port *InPort) (*InPort, *InPort) {
	if port == nil {
		return &InPort{}, nil
	}
	if port.parent == nil {
		// Re-forking the root: the returned leaves are the only live
		// ports, and the walk that wins the junction ends at the root's
		// nil parent exactly as an unforked root departure would.
		return &InPort{parent: port}, &InPort{parent: port}
	}
	return &InPort{parent: port}, &InPort{parent: port}
}

// Decrement departs through the given leaf port.  The walk climbs while
// it is the second sibling to arrive at each junction; reaching a nil
// parent means the counter is zero.
func (c *Incounter) Decrement(port *InPort) bool {
	if port == nil {
		panic("ports: decrement without a port")
	}
	cur := port
	next := cur.parent
	for next != nil {
		cur.parent = nil // sever the spent leaf
		for {
			if next.removed.Load() != 0 {
				break // sibling already departed; keep climbing
			}
			if next.removed.CompareAndSwap(0, 1) {
				return false // first at this junction; the sibling finishes the climb
			}
		}
		cur = next
		next = cur.parent
	}
	return true
}
