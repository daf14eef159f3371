// combinators.go — the graph-building surface
// ============================================================================
//
// Every combinator composes the same three moves: prepare a producer node,
// wire an edge through AddEdge, transfer control.  They are methods on the
// running node, and by convention a combinator is the last statement of
// its block: the block's suspension point is the call itself, and the node
// may be re-entered on another worker the instant its in-counter allows.

package sched

// Async spawns producer as a sibling whose completion resolves one edge
// into consumer; the caller resumes at block k immediately.
func (n *Node) Async(producer Task, consumer *Node, k int) {
	PrepareNode(producer, InReady(), OutUnary())
	addEdge(producer.base(), consumer, n.w)
	n.JumpTo(k)
	AddNode(producer.base(), n.w)
}

// Finish spawns producer and suspends the caller at block k until the
// producer (and every edge later added into the caller) resolves.  The
// caller gets a fresh in-counter; its out-strategy is preserved.
func (n *Node) Finish(producer Task, k int) {
	p := producer.base()
	if fut := p.futureOut(); fut != nil {
		// Re-entering a detached future producer: its out-set still has
		// forcers registered, so it must survive the re-preparation and
		// fire when the producer finally finishes.
		PrepareNode(producer, InReady(), outStrategy{obj: fut})
	} else {
		PrepareNode(producer, InReady(), OutUnary())
	}
	n.prepareForTransfer(k)
	joinWith(n, InNew(n))
	addEdge(p, n, n.w)
	AddNode(p, n.w)
}

// Call is Finish under the name the scenarios use for plain nested calls.
func (n *Node) Call(target Task, k int) {
	n.Finish(target, k)
}

// FutureWith spawns producer writing its completion into the supplied
// out-set; the caller resumes at k without waiting.
func (n *Node) FutureWith(producer Task, out Outset, k int) {
	PrepareNode(producer, InReady(), outStrategy{obj: out})
	n.JumpTo(k)
	AddNode(producer.base(), n.w)
}

// Future allocates a future out-set for producer and returns it; forcing
// the result waits for the producer.
func (n *Node) Future(producer Task, k int) Outset {
	out := AllocateFuture()
	n.FutureWith(producer, out, k)
	return out
}

// Force suspends the caller at block k until out finishes.  If out has
// already finished, the caller is immediately rescheduled.
func (n *Node) Force(out Outset, k int) {
	n.prepareForTransfer(k)
	joinWith(n, InUnary())
	if !out.Insert(n) {
		scheduleNode(n, n.w)
	}
}

// DeallocateFuture dismantles a future out-set once its consumers are done
// with it.  Futures never self-deallocate on finish.
func (n *Node) DeallocateFuture(out Outset) {
	out.Destroy(n.w)
}

// ListenOn is a no-op here: the direct engine forces a future through the
// out-set object itself, so there is nothing to register up front.  The
// port-passing engine gives this call real work.
func (n *Node) ListenOn(Outset) {}

// Detach parks the caller at block k with a ready in-counter; an external
// event re-enters it later through a combinator such as Call.
func (n *Node) Detach(k int) {
	n.prepareForTransfer(k)
	joinWith(n, InReady())
}

// ParallelFor runs body over [lo, hi) as a lazily split loop producer and
// suspends the caller at block k until the whole range has executed.
func (n *Node) ParallelFor(lo, hi int64, body func(int64), k int) {
	producer := &lazyParallelFor{lo: lo, hi: hi, join: n, fn: body}
	PrepareNode(producer, InReady(), OutUnary())
	n.prepareForTransfer(k)
	joinWith(n, InNew(n))
	addEdge(producer.base(), n, n.w)
	AddNode(producer.base(), n.w)
}
