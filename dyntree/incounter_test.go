package dyntree

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"math/rand"
)

func TestIncounterSingleToken(t *testing.T) {
	c := NewIncounter(2)
	if !c.IsActivated() {
		t.Fatal("fresh incounter must be activated")
	}
	c.Increment()
	if c.IsActivated() {
		t.Fatal("incounter with one token must not be activated")
	}
	if !c.Decrement() {
		t.Fatal("removing the only token must report activation")
	}
	if !c.IsActivated() {
		t.Fatal("incounter must be activated after balanced traffic")
	}
}

func TestIncounterReuseAfterActivation(t *testing.T) {
	c := NewIncounter(2)
	for round := 0; round < 3; round++ {
		for i := 0; i < 10; i++ {
			c.Increment()
		}
		for i := 0; i < 9; i++ {
			if c.Decrement() {
				t.Fatalf("round %d: early decrement reported activation", round)
			}
		}
		if !c.Decrement() {
			t.Fatalf("round %d: final decrement must report activation", round)
		}
	}
}

// TestIncounterActivatedOnce phases the schedule: all increments land
// before any decrement starts, so the counter crosses zero exactly once
// and exactly one decrementer may observe the crossing.
func TestIncounterActivatedOnce(t *testing.T) {
	workers := runtime.GOMAXPROCS(0)
	perWorker := 3000
	if testing.Short() {
		perWorker = 300
	}
	c := NewIncounter(DefaultBranching)

	var phase, done sync.WaitGroup
	var activations atomic.Int64
	phase.Add(workers)
	done.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer done.Done()
			for i := 0; i < perWorker; i++ {
				c.Increment()
			}
			phase.Done()
			phase.Wait()
			for i := 0; i < perWorker; i++ {
				if c.Decrement() {
					activations.Add(1)
				}
			}
		}()
	}
	done.Wait()

	if !c.IsActivated() {
		t.Fatal("incounter must be activated after balanced traffic")
	}
	if n := activations.Load(); n != 1 {
		t.Fatalf("activation reported %d times, want exactly 1", n)
	}
}

// TestIncounterRandomTraffic runs the pending-token discipline: workers
// interleave increments with decrements of their own tokens, then drain.
// The structure must quiesce activated, every zero crossing paired with a
// reported activation.
func TestIncounterRandomTraffic(t *testing.T) {
	workers := runtime.GOMAXPROCS(0)
	iters := 5000
	if testing.Short() {
		iters = 500
	}
	c := NewIncounter(DefaultBranching)
	var done sync.WaitGroup
	done.Add(workers)
	for w := 0; w < workers; w++ {
		go func(seed int64) {
			defer done.Done()
			r := rand.New(rand.NewSource(seed))
			pending := 0
			for i := 0; i < iters; i++ {
				if pending > 0 && r.Intn(2) == 0 {
					c.Decrement()
					pending--
				} else {
					c.Increment()
					pending++
				}
			}
			for ; pending > 0; pending-- {
				c.Decrement()
			}
		}(0x5eed + int64(w))
	}
	done.Wait()
	if !c.IsActivated() {
		t.Fatal("incounter must be activated after balanced traffic")
	}
}

// TestIncounterOutTreeTeardown checks that the retired leaves collected in
// the out-tree can be fully dismantled with bounded steps and splits.
func TestIncounterOutTreeTeardown(t *testing.T) {
	c := NewIncounter(2)
	const n = 500
	for i := 0; i < n; i++ {
		c.Increment()
	}
	for i := 0; i < n; i++ {
		c.Decrement()
	}
	f := c.OutFrontier()
	steps := 0
	for !f.Empty() {
		if f.Size() >= 2 && steps%3 == 2 {
			g := f.Split()
			for !g.Empty() {
				g.Step(16)
			}
		}
		f.Step(16)
		steps++
	}
	if c.out != nil {
		t.Fatal("out-tree must be detached from the incounter")
	}
}

func BenchmarkIncounterMixed(b *testing.B) {
	c := NewIncounter(DefaultBranching)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Increment()
			c.Decrement()
		}
	})
}
