// simple.go — the simple edge-algorithm pair
// ============================================================================
//
// In-counter: the fetch-add strategy word itself; there is no object.
// Out-set: a Treiber stack of successor records whose head word carries a
// finished bit.  Once the head is swung to (nil, finished) no insertion
// can succeed, and the finisher owns the captured list outright.

package sched

import (
	"unsafe"

	"github.com/MunirAD/pasl/pool"
	"github.com/MunirAD/pasl/tagptr"
)

const finishedTag = 1

type listCell struct {
	n    *Node
	next *listCell
}

type simpleOutset struct {
	head   tagptr.Atomic
	future bool
}

func newSimpleOutset() *simpleOutset { return &simpleOutset{} }

func (o *simpleOutset) EnableFuture() { o.future = true }

func (o *simpleOutset) isFuture() bool { return o.future }

func (o *simpleOutset) Insert(target *Node) bool {
	cell := &listCell{n: target}
	for {
		h := o.head.Load()
		if h.Tag() == finishedTag {
			return false
		}
		cell.next = (*listCell)(h.Pointer())
		if o.head.CompareAndSwap(h, tagptr.New(0, unsafe.Pointer(cell))) {
			return true
		}
	}
}

func (o *simpleOutset) Finish(owner *Node, w *pool.Worker) {
	var todo *listCell
	for {
		h := o.head.Load()
		if h.Tag() == finishedTag {
			panic("sched: simple out-set finished twice")
		}
		if o.head.CompareAndSwap(h, tagptr.New(finishedTag, nil)) {
			todo = (*listCell)(h.Pointer())
			break
		}
	}
	for todo != nil {
		next := todo.next
		todo.next = nil
		decrementIncounter(owner, todo.n, w)
		todo = next
	}
}

// Destroy is a no-op: the captured list was already unlinked by Finish and
// the head stays frozen; the collector does the rest.
func (o *simpleOutset) Destroy(*pool.Worker) {}
