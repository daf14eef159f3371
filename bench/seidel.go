// seidel.go — Gauss–Seidel pipeline over a futures matrix
// ============================================================================
//
// The heat-style block relaxation whose dependence pattern is the whole
// point: cell (i, j) of an iteration reads its west and north neighbours
// of the same iteration, so the wavefront of runnable cells is an
// anti-diagonal.  The parallel version allocates one future per block
// cell, a generator walks the diagonals spawning cell bodies that force
// their two neighbours, and a token window throttles how far the
// generator may run ahead of the forces it owes.
//
// The sequential by-row and by-diagonal walks double as the references
// the consistency check compares against.

package bench

import (
	"fmt"
	"math"

	"github.com/MunirAD/pasl/sched"
)

func nbLevels(n int) int { return 2*(n-1) + 1 }

func nbCellsInLevel(n, l int) int {
	if l <= n {
		return l
	}
	return nbLevels(n) + 1 - l
}

// cellAt maps (level, position) to matrix coordinates.
func cellAt(n, l, pos int) (int, int) {
	if l <= n { // on or above the diagonal
		return pos, l - (pos + 1)
	}
	return (l - n) + pos, n - (pos + 1)
}

// gaussSeidelBlock relaxes one blockSize² tile whose north-west cell sits
// at data[base+N+1]; data[base] is the halo cell diagonally above it.
func gaussSeidelBlock(data []float64, base, N, blockSize int) {
	for i := 1; i <= blockSize; i++ {
		for j := 1; j <= blockSize; j++ {
			p := base + i*N + j
			data[p] = 0.2 * (data[p] + data[p-N] + data[p+N] + data[p-1] + data[p+1])
		}
	}
}

// GaussSeidelSequential is the row-order reference.
func GaussSeidelSequential(numiters, N, blockSize int, data []float64) {
	for iter := 0; iter < numiters; iter++ {
		for i := 0; i < N-2; i += blockSize {
			for j := 0; j < N-2; j += blockSize {
				gaussSeidelBlock(data, i*N+j, N, blockSize)
			}
		}
	}
}

// gaussSeidelByDiagonal is the wavefront-order reference; it visits cells
// in the same order the parallel pipeline enables them.
func gaussSeidelByDiagonal(numiters, N, blockSize int, data []float64) {
	n := (N - 2) / blockSize
	for iter := 0; iter < numiters; iter++ {
		for l := 1; l <= nbLevels(n); l++ {
			for c := 0; c < nbCellsInLevel(n, l); c++ {
				i, j := cellAt(n, l, c)
				gaussSeidelBlock(data, i*blockSize*N+j*blockSize, N, blockSize)
			}
		}
	}
}

// gaussSeidelInit places the two heat sources the scenarios relax.
func gaussSeidelInit(N int, data []float64) {
	for i := range data {
		data[i] = 0
	}
	if N > 25 {
		data[25*N+25] = 500
		data[(N-25)*N+(N-25)] = 500
	}
}

func countDiffs(a, b []float64, epsilon float64) int {
	diffs := 0
	for i := range a {
		if math.Abs(a[i]-b[i]) > epsilon {
			diffs++
		}
	}
	return diffs
}

type seidelState struct {
	numiters  int
	N         int // grid side including the halo
	blockSize int
	data      []float64
	futures   []sched.Outset
	n         int // block cells per side
}

func (st *seidelState) fut(i, j int) sched.Outset { return st.futures[i*st.n+j] }

const (
	sfbEntry = iota
	sfbAfterForce1
	sfbExit
)

// seidelFutureBody relaxes one cell after forcing its west and north
// neighbours.
type seidelFutureBody struct {
	sched.Node
	st   *seidelState
	i, j int
}

func (t *seidelFutureBody) Body() {
	switch t.Block() {
	case sfbEntry:
		if t.j >= 1 {
			t.Force(t.st.fut(t.i, t.j-1), sfbAfterForce1)
		} else {
			t.JumpTo(sfbAfterForce1)
		}
	case sfbAfterForce1:
		if t.i >= 1 {
			t.Force(t.st.fut(t.i-1, t.j), sfbExit)
		} else {
			t.JumpTo(sfbExit)
		}
	case sfbExit:
		bs := t.st.blockSize
		gaussSeidelBlock(t.st.data, t.i*bs*t.st.N+t.j*bs, t.st.N, bs)
	}
}

type seidelToken struct {
	l, cLo, cHi int
}

const (
	sgLevelEntry = iota
	sgLevelTest
	sgDiagEntry
	sgDiagBody
	sgDiagTest
	sgThrottleEntry
	sgThrottleBody
	sgThrottleTest
)

const seidelUninitialized = -1

// seidelGenerator walks the anti-diagonals spawning cell futures; the
// token window bounds how many spawned-but-unforced cells it may owe, and
// splitting hands half of the current diagonal to a sibling generator.
type seidelGenerator struct {
	sched.Node
	st *seidelState

	l, cLo, cHi int
	n           int

	window, burst int

	tokens   []seidelToken
	nbTokens int
	nbToPop  int
}

func newSeidelGenerator(st *seidelState, window, burst int) *seidelGenerator {
	return &seidelGenerator{
		st: st, window: window, burst: burst,
		l: seidelUninitialized, cLo: seidelUninitialized, cHi: seidelUninitialized,
	}
}

func (t *seidelGenerator) needToThrottle() bool { return t.nbTokens >= t.window }

func (t *seidelGenerator) pushToken(l, c int) {
	tok := seidelToken{l: l, cLo: c, cHi: c + 1}
	if len(t.tokens) > 0 {
		if last := t.tokens[len(t.tokens)-1]; last.l == l {
			t.tokens = t.tokens[:len(t.tokens)-1]
			tok.cLo = last.cLo
		}
	}
	t.tokens = append(t.tokens, tok)
	t.nbTokens++
}

func (t *seidelGenerator) popToken() sched.Outset {
	tok := t.tokens[0]
	t.tokens = t.tokens[1:]
	t.nbTokens--
	c := tok.cLo
	tok.cLo++
	if tok.cHi-tok.cLo > 0 {
		t.tokens = append([]seidelToken{tok}, t.tokens...)
	}
	i, j := cellAt(t.n, tok.l, c)
	return t.st.fut(i, j)
}

func (t *seidelGenerator) Body() {
	switch t.Block() {
	case sgLevelEntry:
		t.n = (t.st.N - 2) / t.st.blockSize
		if t.l == seidelUninitialized {
			t.l = 1
			t.JumpTo(sgLevelTest)
		} else {
			t.JumpTo(sgDiagTest)
		}
	case sgLevelTest:
		if t.l <= nbLevels(t.n) {
			t.JumpTo(sgDiagEntry)
		}
	case sgDiagEntry:
		t.cLo = 0
		t.cHi = nbCellsInLevel(t.n, t.l)
		t.JumpTo(sgDiagTest)
	case sgDiagBody:
		t.pushToken(t.l, t.cLo)
		i, j := cellAt(t.n, t.l, t.cLo)
		body := &seidelFutureBody{st: t.st, i: i, j: j}
		out := t.st.fut(i, j)
		t.cLo++
		if t.needToThrottle() {
			t.FutureWith(body, out, sgThrottleEntry)
		} else {
			t.FutureWith(body, out, sgDiagTest)
		}
	case sgThrottleEntry:
		t.nbToPop = t.burst
		t.JumpTo(sgThrottleTest)
	case sgThrottleBody:
		out := t.popToken()
		t.nbToPop--
		t.Force(out, sgThrottleTest)
	case sgThrottleTest:
		if len(t.tokens) == 0 || t.nbToPop == 0 {
			t.JumpTo(sgDiagTest)
		} else {
			t.JumpTo(sgThrottleBody)
		}
	case sgDiagTest:
		if t.cLo < t.cHi {
			t.JumpTo(sgDiagBody)
		} else if t.cHi == nbCellsInLevel(t.n, t.l) {
			t.l++
			t.JumpTo(sgLevelTest)
		}
	}
}

func (t *seidelGenerator) Size() int {
	if t.cHi < 0 || t.cLo < 0 {
		return 0
	}
	return t.cHi - t.cLo
}

func (t *seidelGenerator) Split() *sched.Node {
	mid := (t.cLo + t.cHi) / 2
	if mid == t.cLo {
		return nil
	}
	sibling := &seidelGenerator{
		st: t.st, window: t.window, burst: t.burst,
		l: t.l, cLo: mid, cHi: t.cHi, n: t.n,
		tokens: append([]seidelToken(nil), t.tokens...), nbTokens: t.nbTokens,
	}
	t.cHi = mid
	sched.PrepareNode(sibling, sched.InReady(), sched.OutNoop())
	return &sibling.Node
}

const (
	spEntry = iota
	spAllocFutures
	spStartIter
	spEndIter
	spDeallocFutures
	spIterTest
)

type seidelParallel struct {
	sched.Node
	st            *seidelState
	window, burst int
	iter          int
}

func (t *seidelParallel) Body() {
	switch t.Block() {
	case spEntry:
		t.iter = 0
		t.st.n = (t.st.N - 2) / t.st.blockSize
		t.st.futures = make([]sched.Outset, t.st.n*t.st.n)
		t.JumpTo(spAllocFutures)
	case spAllocFutures:
		futures := t.st.futures
		t.ParallelFor(0, int64(len(futures)), func(i int64) {
			futures[i] = sched.AllocateFuture()
		}, spStartIter)
	case spStartIter:
		t.ListenOn(t.st.fut(t.st.n-1, t.st.n-1))
		t.Call(newSeidelGenerator(t.st, t.window, t.burst), spEndIter)
	case spEndIter:
		t.Force(t.st.fut(t.st.n-1, t.st.n-1), spDeallocFutures)
	case spDeallocFutures:
		futures := t.st.futures
		t.iter++
		t.ParallelFor(0, int64(len(futures)), func(i int64) {
			futures[i].Destroy(nil)
			futures[i] = nil
		}, spIterTest)
	case spIterTest:
		if t.iter < t.st.numiters {
			t.JumpTo(spAllocFutures)
		}
	}
}

// SeidelSequential runs the row-order reference as a single node.
func SeidelSequential(numiters, N, blockSize int) *Scenario {
	if (N-2)%blockSize != 0 {
		panic("seidel: N-2 must be a multiple of the block size")
	}
	side := N
	data := make([]float64, side*side)
	gaussSeidelInit(side, data)
	root := sched.NewFuncTask(func() {
		GaussSeidelSequential(numiters, side, blockSize, data)
	})
	return &Scenario{
		Name:     "seidel_sequential",
		Root:     root,
		Check:    func() error { return nil },
		Counters: func() map[string]int64 { return map[string]int64{"cells": int64(side * side)} },
	}
}

// SeidelParallel runs the pipelined version and, when check is set,
// compares the grid against the wavefront-order reference.
func SeidelParallel(numiters, N, blockSize, window, burst int, epsilon float64, check bool) *Scenario {
	if (N-2)%blockSize != 0 {
		panic("seidel: N-2 must be a multiple of the block size")
	}
	st := &seidelState{
		numiters:  numiters,
		N:         N,
		blockSize: blockSize,
		data:      make([]float64, N*N),
	}
	gaussSeidelInit(N, st.data)
	return &Scenario{
		Name: "seidel_parallel",
		Root: &seidelParallel{st: st, window: window, burst: burst},
		Check: func() error {
			if !check {
				return nil
			}
			ref := make([]float64, N*N)
			gaussSeidelInit(N, ref)
			gaussSeidelByDiagonal(numiters, N, blockSize, ref)
			if diffs := countDiffs(st.data, ref, epsilon); diffs != 0 {
				return fmt.Errorf("seidel_parallel: %d cells differ from the reference", diffs)
			}
			return nil
		},
		Counters: func() map[string]int64 {
			return map[string]int64{"cells": int64(st.n * st.n), "iters": int64(numiters)}
		},
	}
}
