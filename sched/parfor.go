// parfor.go — the lazy parallel-for producer
// ============================================================================
//
// The loop body runs communication-delay iterations per block, suspending
// between blocks.  Each suspension is a split opportunity: when a worker
// is starving, the remaining range bisects and the upper half becomes a
// sibling node edged to the same join, stealable like any other work.

package sched

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
	addEdge(sibling.base(), t.join, t.Worker())
	return sibling.base()
}
