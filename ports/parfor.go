// parfor.go — the lazy parallel-for producer, port-passing flavour
// ============================================================================
//
// Identical pacing to the direct engine's loop.  The split forks exactly
// one port: the caller's own in-port for the join is split in two, the
// caller keeps one branch and the sibling departs the other at its
// finish.  The sibling carries no other ports, so it is prepared with the
// plain ready/unary pair — its finish goes straight through
// decrementInports, like the direct engine's split sibling goes straight
// through its unary out-strategy.

package ports

type lazyParallelFor struct {
	Node
	lo, hi int64
	join   *Node
	fn     func(int64)
}

func (t *lazyParallelFor) Body() {
	switch t.Block() {
	case blkProcess:
		n := t.lo + int64(engineCfg().CommunicationDelay)
		if n > t.hi {
			n = t.hi
		}
		for i := t.lo; i < n; i++ {
			t.fn(i)
		}
		t.lo = n
		t.JumpTo(blkRepeat)
	case blkRepeat:
		if t.lo < t.hi {
			t.JumpTo(blkProcess)
		}
	}
}

func (t *lazyParallelFor) Size() int { return int(t.hi - t.lo) }

func (t *lazyParallelFor) Split() *Node {
	mid := (t.lo + t.hi) / 2
	if mid == t.lo {
		return nil
	}
	sibling := &lazyParallelFor{lo: mid, hi: t.hi, join: t.join, fn: t.fn}
	t.hi = mid
	PrepareNode(sibling, InReady(), OutUnary())
	forkInportFor(t.base(), sibling.base(), t.join)
	return sibling.base()
}
