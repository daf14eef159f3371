// parfor.go — loop scenarios
// ============================================================================
//
// The lazy parallel-for writes every index of a large array through the
// combinator; a dropped split or a double-executed block shows up as a
// wrong cell.  The eager variant is the async-splitting loop pattern the
// future-pool scenario spawns its readers with.

package bench

import (
	"fmt"

	"github.com/MunirAD/pasl/sched"
)

const (
	pfEntry = iota
	pfExit
)

type parallelForTest struct {
	sched.Node
	n   int64
	arr []int64
}

func (t *parallelForTest) Body() {
	switch t.Block() {
	case pfEntry:
		t.arr = make([]int64, t.n)
		arr := t.arr
		t.ParallelFor(0, t.n, func(i int64) {
			arr[i] = i
		}, pfExit)
	case pfExit:
	}
}

// ParallelForTest fills arr[i] = i over [0, n) and verifies every cell.
func ParallelForTest(n int64) *Scenario {
	root := &parallelForTest{n: n}
	return &Scenario{
		Name: "parallel_for",
		Root: root,
		Check: func() error {
			if int64(len(root.arr)) != n {
				return fmt.Errorf("parallel_for: array length %d, want %d", len(root.arr), n)
			}
			for i, v := range root.arr {
				if v != int64(i) {
					return fmt.Errorf("parallel_for: arr[%d] = %d", i, v)
				}
			}
			return nil
		},
		Counters: func() map[string]int64 {
			return map[string]int64{"cells": n}
		},
	}
}

const (
	epfEntry = iota
	epfBranch2
	epfExit
)

// eagerParallelForRec spawns [lo, hi) by binary async splitting and calls
// gen(i) at each leaf.
type eagerParallelForRec struct {
	sched.Node
	lo, hi int
	mid    int
	gen    func(int) sched.Task
	join   *sched.Node
}

func (t *eagerParallelForRec) Body() {
	switch t.Block() {
	case epfEntry:
		switch n := t.hi - t.lo; {
		case n == 0:
			return
		case n == 1:
			t.Call(t.gen(t.lo), epfExit)
		default:
			t.mid = (t.lo + t.hi) / 2
			t.Async(&eagerParallelForRec{lo: t.lo, hi: t.mid, gen: t.gen, join: t.join},
				t.join, epfBranch2)
		}
	case epfBranch2:
		t.Async(&eagerParallelForRec{lo: t.mid, hi: t.hi, gen: t.gen, join: t.join},
			t.join, epfExit)
	case epfExit:
	}
}

type eagerParallelFor struct {
	sched.Node
	lo, hi int
	gen    func(int) sched.Task
}

func (t *eagerParallelFor) Body() {
	switch t.Block() {
	case pfEntry:
		t.Finish(&eagerParallelForRec{lo: t.lo, hi: t.hi, gen: t.gen, join: &t.Node}, pfExit)
	case pfExit:
	}
}
