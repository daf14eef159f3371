// frontier.go — bounded walks over port out-set trees
// ============================================================================
//
// Same discipline as the dyntree walks: the freeze-and-notify phase and
// the severing phase are exposed as bounded steps so the engine can run
// them as splittable DAG tasks.

package ports

import "github.com/MunirAD/pasl/tagptr"

// Frontier is the pending set of an out-set walk.
type Frontier struct {
	todo []*OutPort
}

// NotifyFrontier starts the freeze walk at the root.
func (o *Outset) NotifyFrontier() *Frontier {
	return &Frontier{todo: []*OutPort{o.root}}
}

// DeallocFrontier starts the severing walk and detaches the root.
func (o *Outset) DeallocFrontier() *Frontier {
	root := o.root
	o.root = nil
	return &Frontier{todo: []*OutPort{root}}
}

// Empty reports whether the walk is complete.
func (f *Frontier) Empty() bool { return len(f.todo) == 0 }

// Size returns the number of pending subtrees.
func (f *Frontier) Size() int { return len(f.todo) }

// Split hands the oldest pending subtree to a new frontier.
func (f *Frontier) Split() *Frontier {
	if len(f.todo) < 2 {
		panic("ports: split of a frontier with fewer than two subtrees")
	}
	head := f.todo[0]
	f.todo = append(f.todo[:0], f.todo[1:]...)
	return &Frontier{todo: []*OutPort{head}}
}

// NotifyStep freezes up to k ports and reports each recorded target with
// the exact in-port its edge was registered under.
func (f *Frontier) NotifyStep(k int, notify func(target *Node, port *InPort)) {
	for done := 0; done < k && len(f.todo) > 0; done++ {
		n := f.todo[len(f.todo)-1]
		f.todo = f.todo[:len(f.todo)-1]
		if n.target != nil {
			notify(n.target, n.port)
		}
		for i := 0; i < 2; i++ {
			br := &n.children[i]
			for {
				old := br.Load()
				if br.CompareAndSwap(old, tagptr.New(frozenTag, old.Pointer())) {
					if child := (*OutPort)(old.Pointer()); child != nil {
						f.todo = append(f.todo, child)
					}
					break
				}
			}
		}
	}
}

// DeallocStep severs up to k frozen ports, leaving slots frozen-empty so a
// straggling insert keeps failing its witness CAS.
func (f *Frontier) DeallocStep(k int) {
	frozen := tagptr.New(frozenTag, nil)
	for done := 0; done < k && len(f.todo) > 0; done++ {
		n := f.todo[len(f.todo)-1]
		f.todo = f.todo[:len(f.todo)-1]
		for i := 0; i < 2; i++ {
			if child := (*OutPort)(n.children[i].Load().Pointer()); child != nil {
				f.todo = append(f.todo, child)
			}
			n.children[i].Store(frozen)
		}
		n.target = nil
		n.port = nil
	}
}
