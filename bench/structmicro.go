// structmicro.go — raw structure microbenchmarks
// ============================================================================
//
// These hammer one in-counter or out-set from plain goroutines, no DAG in
// sight: balanced random increment/decrement streams with the pending
// discipline, or insert storms.  At the end the structure must report
// activated (or, for out-sets, simply survive) with a positive op count.

package bench

import (
	"fmt"
	"sync/atomic"
	"time"

	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/MunirAD/pasl/config"
	"github.com/MunirAD/pasl/control"
	"github.com/MunirAD/pasl/dyntree"
	"github.com/MunirAD/pasl/sched"
	"github.com/MunirAD/pasl/snzi"
)

// incounterBench is the common surface the three wrappers expose.
type incounterBench interface {
	increment(worker int)
	decrement(worker int)
	activated() bool
}

type simpleIncounterBench struct {
	counter atomic.Int64
}

func (b *simpleIncounterBench) increment(int)   { b.counter.Add(1) }
func (b *simpleIncounterBench) decrement(int)   { b.counter.Add(-1) }
func (b *simpleIncounterBench) activated() bool { return b.counter.Load() == 0 }

type snziIncounterBench struct {
	tree *snzi.Tree
}

func (b *snziIncounterBench) leaf(worker int) *snzi.Leaf {
	return b.tree.LeafAt(worker % b.tree.NbLeaves())
}

func (b *snziIncounterBench) increment(worker int) { b.leaf(worker).Arrive() }
func (b *snziIncounterBench) decrement(worker int) { b.leaf(worker).Depart() }
func (b *snziIncounterBench) activated() bool      { return !b.tree.IsNonzero() }

type dyntreeIncounterBench struct {
	c *dyntree.Incounter
}

func (b *dyntreeIncounterBench) increment(int)   { b.c.Increment() }
func (b *dyntreeIncounterBench) decrement(int)   { b.c.Decrement() }
func (b *dyntreeIncounterBench) activated() bool { return b.c.IsActivated() }

func newIncounterBench(cfg *config.Config, kind string) (incounterBench, error) {
	switch kind {
	case "simple":
		return &simpleIncounterBench{}, nil
	case "snzi":
		return &snziIncounterBench{tree: snzi.New(cfg.SnziBranching, cfg.SnziLevels)}, nil
	case "dyntree":
		return &dyntreeIncounterBench{c: dyntree.NewIncounter(cfg.DyntreeBranching)}, nil
	}
	return nil, fmt.Errorf("bench: unknown incounter kind %q", kind)
}

// IncounterMicrobench runs workers hammering one in-counter for d with
// balanced totals.  Returns the op count; the structure must quiesce
// activated.
func IncounterMicrobench(cfg *config.Config, kind string, workers int, d time.Duration, seed int64) (int64, error) {
	b, err := newIncounterBench(cfg, kind)
	if err != nil {
		return 0, err
	}
	control.Reset()
	control.ShutdownAfter(d)

	var ops atomic.Int64
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		id := w
		g.Go(func() error {
			r := rand.New(rand.NewSource(seed + int64(id)))
			pending := 0
			n := int64(0)
			for !control.Stopped() {
				if pending > 0 && r.Intn(2) == 0 {
					b.decrement(id)
					pending--
				} else {
					b.increment(id)
					pending++
				}
				n++
			}
			for ; pending > 0; pending-- {
				b.decrement(id)
				n++
			}
			ops.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if !b.activated() {
		return ops.Load(), fmt.Errorf("bench: %s incounter did not quiesce activated", kind)
	}
	if ops.Load() == 0 {
		return 0, fmt.Errorf("bench: %s incounter recorded no operations", kind)
	}
	return ops.Load(), nil
}

// OutsetMicrobench runs workers inserting into one out-set of the
// configured family for d, returning the insert count.
func OutsetMicrobench(cfg *config.Config, workers int, d time.Duration) (int64, error) {
	sched.Boot(cfg)
	o := sched.NewOutset()
	control.Reset()
	control.ShutdownAfter(d)

	var ops atomic.Int64
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			n := int64(0)
			for !control.Stopped() {
				if !o.Insert(nil) {
					return fmt.Errorf("bench: insert failed on an unfinished out-set")
				}
				n++
			}
			ops.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if ops.Load() == 0 {
		return 0, fmt.Errorf("bench: out-set recorded no operations")
	}
	return ops.Load(), nil
}
