// combinators.go — graph building with port propagation
// ============================================================================
//
// The combinators mirror the direct engine's surface, but every fork also
// decides which of the parent's ports the child observes and splits those
// ports in the underlying trees.  Splitting an in-port is the increment;
// departing one at finish is the decrement; nothing ever looks a successor
// up globally.

package ports

// ensure-style accessors: the maps are lazy because most nodes hold no
// ports at all.
func (n *Node) inportsMap() map[*Incounter]*InPort {
	if n.inports == nil {
		n.inports = make(map[*Incounter]*InPort)
	}
	return n.inports
}

func (n *Node) outportsMap() map[*Outset]*OutPort {
	if n.outports == nil {
		n.outports = make(map[*Outset]*OutPort)
	}
	return n.outports
}

func insertInport(caller *Node, in *Incounter, port *InPort) {
	caller.inportsMap()[in] = port
}

// insertInportFor registers caller's port into target's owned in-counter.
func insertInportFor(caller, target *Node, port *InPort) {
	if target.inObj == nil {
		panic("ports: in-port into a node without an owned in-counter")
	}
	insertInport(caller, target.inObj, port)
}

func insertOutport(caller *Node, out *Outset, port *OutPort) {
	if port == nil {
		panic("ports: nil out-port")
	}
	caller.outportsMap()[out] = port
}

func findOutport(caller *Node, out *Outset) *OutPort {
	port, ok := caller.outports[out]
	if !ok {
		panic("ports: node holds no port for this out-set")
	}
	return port
}

func findInport(caller *Node, in *Incounter) *InPort {
	port, ok := caller.inports[in]
	if !ok || port == nil {
		panic("ports: node holds no forkable port for this in-counter")
	}
	return port
}

// forkInportFor splits the caller's own in-port for the target between
// the caller and a shed sibling: the caller keeps one branch as its
// replacement entry, the sibling departs the other at its finish.  This
// is the one-edge form of forkInports, for splits whose sibling needs no
// other ports.
func forkInportFor(caller, sibling, target *Node) {
	in := target.inObj
	if in == nil {
		panic("ports: split toward a node without an owned in-counter")
	}
	mine, theirs := in.Increment(findInport(caller, in))
	caller.inports[in] = mine
	sibling.inportsMap()[in] = theirs
}

// filterInports applies a passing mode; the surviving entries always carry
// the parent's ports, which the fork pass then splits.
func filterInports(mode PassingMode, parent, child map[*Incounter]*InPort) map[*Incounter]*InPort {
	result := make(map[*Incounter]*InPort, len(parent))
	for in, port := range parent {
		_, held := child[in]
		switch mode {
		case PassDefault:
			result[in] = port
		case PassIntersection:
			if held {
				result[in] = port
			}
		case PassDifference:
			if !held {
				result[in] = port
			}
		}
	}
	return result
}

func filterOutports(mode PassingMode, parent, child map[*Outset]*OutPort) map[*Outset]*OutPort {
	result := make(map[*Outset]*OutPort, len(parent))
	for out, port := range parent {
		_, held := child[out]
		switch mode {
		case PassDefault:
			result[out] = port
		case PassIntersection:
			if held {
				result[out] = port
			}
		case PassDifference:
			if !held {
				result[out] = port
			}
		}
	}
	return result
}

// forkInports splits every port both maps hold: the parent keeps one
// branch, the child gets the other.  This is the increment of every edge
// the child inherits.
func forkInports(parent, child *Node) {
	for in, port := range parent.inports {
		if _, ok := child.inports[in]; ok {
			b1, b2 := in.Increment(port)
			parent.inports[in] = b1
			child.inports[in] = b2
		}
	}
}

// forkOutports grows both children of every shared out-port.  A fork that
// loses to the freeze walk drops the port from both maps: the out-set is
// finishing and neither task may insert through it any more.
func forkOutports(parent, child *Node) {
	var dead []*Outset
	for out, port := range parent.outports {
		if _, ok := child.outports[out]; ok {
			b1, b2 := out.Fork2(port)
			if b1 == nil {
				dead = append(dead, out)
				continue
			}
			parent.outports[out] = b1
			child.outports[out] = b2
		}
	}
	for _, out := range dead {
		delete(parent.outports, out)
		delete(child.outports, out)
	}
}

// propagatePortsFor forwards the parent's ports to a freshly forked child
// under the child's passing modes.
func propagatePortsFor(parent, child *Node) {
	child.inports = filterInports(child.inMode, parent.inportsMap(), child.inportsMap())
	forkInports(parent, child)
	child.outports = filterOutports(child.outMode, parent.outportsMap(), child.outportsMap())
	forkOutports(parent, child)
}

// Async spawns producer as a sibling holding an edge into consumer.
func (n *Node) Async(producer Task, consumer *Node, k int) {
	PrepareNode(producer, InReady(), OutUnary())
	p := producer.base()
	insertInportFor(p, consumer, nil)
	propagatePortsFor(n, p)
	n.JumpTo(k)
	AddNode(p, n.w)
}

// Finish spawns producer and suspends the caller behind a fresh port-tree
// in-counter; the producer holds its root port.
func (n *Node) Finish(producer Task, k int) {
	p := producer.base()
	if p.outObj != nil && p.outObj.future {
		// Re-entering a detached future producer: keep the out-set its
		// forcers are registered in.
		PrepareNode(producer, InReady(), outStrategy{obj: p.outObj})
	} else {
		PrepareNode(producer, InReady(), OutUnary())
	}
	joinWith(n, InNew(n))
	propagatePortsFor(n, p)
	rootPort, _ := n.inObj.Increment(nil)
	insertInportFor(p, n, rootPort)
	n.prepareForTransfer(k)
	AddNode(p, n.w)
}

// Call is Finish under the plain-nesting name.
func (n *Node) Call(target Task, k int) {
	n.Finish(target, k)
}

// AllocateFuture builds an unowned future out-set.
func AllocateFuture() *Outset {
	o := NewOutset(nil)
	o.EnableFuture()
	return o
}

// ListenOn registers the caller on a future's port chain so it (and tasks
// forked from it) can force the future later.
func (n *Node) ListenOn(out *Outset) {
	insertOutport(n, out, out.FindLeaf())
}

// FutureWith spawns producer writing into the supplied out-set and leaves
// the caller listening on it.
func (n *Node) FutureWith(producer Task, out *Outset, k int) {
	PrepareNode(producer, InReady(), outStrategy{obj: out})
	out.SetOwner(producer.base())
	propagatePortsFor(n, producer.base())
	n.ListenOn(out)
	n.JumpTo(k)
	AddNode(producer.base(), n.w)
}

// Future allocates, spawns, and returns the out-set to force later.
func (n *Node) Future(producer Task, k int) *Outset {
	out := AllocateFuture()
	n.FutureWith(producer, out, k)
	return out
}

// Force suspends the caller at block k until out finishes, inserting
// through the caller's own port.  A lost insertion means the future is
// done and the caller reschedules immediately.  Either way the port is
// spent.
func (n *Node) Force(out *Outset, k int) {
	n.prepareForTransfer(k)
	joinWith(n, InUnary())
	inserted := false
	if !out.IsFinished() {
		port := findOutport(n, out)
		_, inserted = out.Insert(port, n, nil)
	}
	if !inserted {
		AddNode(n, n.w)
	}
	delete(n.outports, out)
}

// DeallocateFuture drops the caller's port and dismantles the tree.
func (n *Node) DeallocateFuture(out *Outset) {
	if !out.future {
		panic("ports: deallocate of a non-future out-set")
	}
	delete(n.outports, out)
	destroyOutset(out, n.w)
}

// DestroyFuture dismantles a finished future that no live task holds a
// port for any more (ports spent by Force are already erased); bulk
// deallocation loops use it from inside parallel-for bodies.
func DestroyFuture(out *Outset) {
	if !out.future {
		panic("ports: destroy of a non-future out-set")
	}
	destroyOutset(out, nil)
}

// Detach parks the caller at block k; an external event re-enters it.
func (n *Node) Detach(k int) {
	n.prepareForTransfer(k)
	joinWith(n, InReady())
}

// SplitWith prepares a sibling shed by a splittable loop and forwards the
// caller's ports to it.
func (n *Node) SplitWith(sibling Task) {
	PrepareNodeDefault(sibling)
	propagatePortsFor(n, sibling.base())
}

// ParallelFor runs body over [lo, hi) as a lazily split producer joined to
// the caller through a fresh port-tree in-counter.  The producer holds the
// counter's root port; splits re-fork it (see Incounter.Increment) so the
// join edge follows every shed sibling.
func (n *Node) ParallelFor(lo, hi int64, body func(int64), k int) {
	producer := &lazyParallelFor{lo: lo, hi: hi, join: n, fn: body}
	PrepareNode(producer, InReady(), OutUnary())
	joinWith(n, InNew(n))
	propagatePortsFor(n, producer.base())
	rootPort, _ := n.inObj.Increment(nil)
	insertInportFor(producer.base(), n, rootPort)
	n.prepareForTransfer(k)
	AddNode(producer.base(), n.w)
}
