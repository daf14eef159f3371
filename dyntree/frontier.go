// frontier.go — bounded walks over dyntree structures
// ============================================================================
//
// Dismantling a dyntree is DAG work, not hot-path work: the scheduler runs
// it as tasks that process a bounded number of nodes per activation and
// split by handing part of the frontier to a sibling.  This file exposes
// those walks as step/split primitives; the task types that drive them live
// with the scheduler, keeping this package free of scheduling concerns.
//
// An out-set is dismantled in two phases.  Notify freezes every slot and
// reports each leaf to the caller; deallocate walks the frozen tree again
// and severs the interior links so nothing stays reachable.  The in-counter
// out-tree needs only the severing walk.

package dyntree

// InFrontier is the pending set of a walk over in-counter nodes.
type InFrontier struct {
	todo []*inode
}

// OutFrontier releases the incounter's out-tree for dismantling.  The
// incounter must be activated; after the call it no longer references the
// retired leaves.
func (c *Incounter) OutFrontier() *InFrontier {
	if !c.IsActivated() {
		panic("dyntree: out-tree released before activation")
	}
	f := &InFrontier{}
	if c.out != nil {
		f.todo = append(f.todo, c.out)
		c.out = nil
	}
	return f
}

// Empty reports whether the walk is complete.
func (f *InFrontier) Empty() bool { return len(f.todo) == 0 }

// Size returns the number of pending subtrees.
func (f *InFrontier) Size() int { return len(f.todo) }

// Step dismantles up to k nodes, queueing their children.
func (f *InFrontier) Step(k int) {
	for done := 0; done < k && len(f.todo) > 0; done++ {
		n := f.todo[len(f.todo)-1]
		f.todo = f.todo[:len(f.todo)-1]
		for i := range n.children {
			if child := (*inode)(n.children[i].Load().Pointer()); child != nil {
				f.todo = append(f.todo, child)
			}
			n.children[i].Store(nil)
		}
	}
}

// Split hands the oldest pending subtree to a new frontier.  The caller
// must hold at least two subtrees.
func (f *InFrontier) Split() *InFrontier {
	if len(f.todo) < 2 {
		panic("dyntree: split of a frontier with fewer than two subtrees")
	}
	head := f.todo[0]
	f.todo = append(f.todo[:0], f.todo[1:]...)
	return &InFrontier{todo: []*inode{head}}
}

// OutsetFrontier is the pending set of a walk over out-set nodes.
type OutsetFrontier[T any] struct {
	todo []*onode
}

// NotifyFrontier starts the freeze-and-notify phase at the root.
func (o *Outset[T]) NotifyFrontier() *OutsetFrontier[T] {
	return &OutsetFrontier[T]{todo: []*onode{o.root}}
}

// DeallocFrontier starts the second phase.  It detaches the root from the
// out-set so that, once the walk completes, no out-set node is reachable.
func (o *Outset[T]) DeallocFrontier() *OutsetFrontier[T] {
	root := o.root
	o.root = nil
	return &OutsetFrontier[T]{todo: []*onode{root}}
}

// Empty reports whether the walk is complete.
func (f *OutsetFrontier[T]) Empty() bool { return len(f.todo) == 0 }

// Size returns the number of pending subtrees.
func (f *OutsetFrontier[T]) Size() int { return len(f.todo) }

// Split hands the oldest pending subtree to a new frontier.
func (f *OutsetFrontier[T]) Split() *OutsetFrontier[T] {
	if len(f.todo) < 2 {
		panic("dyntree: split of a frontier with fewer than two subtrees")
	}
	head := f.todo[0]
	f.todo = append(f.todo[:0], f.todo[1:]...)
	return &OutsetFrontier[T]{todo: []*onode{head}}
}

// NotifyStep freezes the slots of up to k nodes.  Every leaf encountered is
// reported to notify exactly once; interiors join the frontier.  Racing
// insertions either lose their CAS to the freeze and fail over to the
// caller's compensation path, or land first and are collected here.
func (f *OutsetFrontier[T]) NotifyStep(k int, notify func(*T)) {
	for done := 0; done < k && len(f.todo) > 0; done++ {
		n := f.todo[len(f.todo)-1]
		f.todo = f.todo[:len(f.todo)-1]
		for i := range n.children {
			br := &n.children[i]
			for {
				old := br.Load()
				if br.CompareAndSwap(old, makeFinished(old)) {
					switch old.Tag() {
					case tagLeaf:
						notify((*T)(old.Pointer()))
					case tagInterior:
						f.todo = append(f.todo, (*onode)(old.Pointer()))
					}
					break
				}
			}
		}
	}
}

// DeallocStep severs the links of up to k frozen nodes.  Finding a live tag
// here means the notify phase never ran over this subtree; that is fatal.
// Slots are left at finished-empty rather than nil: an insertion that read
// an interior pointer just before the notify phase froze it may still be
// mid-descent, and must keep observing a finished tag.
func (f *OutsetFrontier[T]) DeallocStep(k int) {
	finished := makeFinished(emptyCell)
	for done := 0; done < k && len(f.todo) > 0; done++ {
		n := f.todo[len(f.todo)-1]
		f.todo = f.todo[:len(f.todo)-1]
		for i := range n.children {
			cell := n.children[i].Load()
			switch cell.Tag() {
			case tagFinishedEmpty, tagFinishedLeaf:
				// nothing behind the slot
			case tagFinishedInterior:
				f.todo = append(f.todo, (*onode)(cell.Pointer()))
			default:
				panic("dyntree: deallocate walk reached an unfrozen slot")
			}
			n.children[i].Store(finished)
		}
	}
}
