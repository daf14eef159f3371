// portseidel.go — the Gauss–Seidel pipeline on the port-passing engine
// ============================================================================
//
// Structurally the same wavefront as seidel.go.  The interesting
// differences are all port plumbing: the parallel node listens on the last
// cell's future so it can force it at the end of an iteration, the
// generator accumulates a port per future it spawns and hands forked
// copies down to each cell body.  Unlike the direct-engine generator, this
// one never splits (see below).

package bench

import (
	"fmt"

	"github.com/MunirAD/pasl/ports"
)

type pSeidelState struct {
	numiters  int
	N         int
	blockSize int
	data      []float64
	futures   []*ports.Outset
	n         int
}

func (st *pSeidelState) fut(i, j int) *ports.Outset { return st.futures[i*st.n+j] }

type pSeidelFutureBody struct {
	ports.Node
	st   *pSeidelState
	i, j int
}

func (t *pSeidelFutureBody) Body() {
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

type pSeidelGenerator struct {
	ports.Node
	st *pSeidelState

	l, cLo, cHi int
	n           int

	window, burst int

	tokens   []seidelToken
	nbTokens int
	nbToPop  int
}

func newPSeidelGenerator(st *pSeidelState, window, burst int) *pSeidelGenerator {
	return &pSeidelGenerator{
		st: st, window: window, burst: burst,
		l: seidelUninitialized, cLo: seidelUninitialized, cHi: seidelUninitialized,
	}
}

func (t *pSeidelGenerator) needToThrottle() bool { return t.nbTokens >= t.window }

func (t *pSeidelGenerator) pushToken(l, c int) {
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

func (t *pSeidelGenerator) popToken() *ports.Outset {
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

func (t *pSeidelGenerator) Body() {
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
		body := &pSeidelFutureBody{st: t.st, i: i, j: j}
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

// The port-passing generator deliberately does not split.  A sibling
// carved off mid-level advances to the next level on its own and would
// spawn cell bodies there without ports for the futures its counterpart
// spawned after the fork; a pending force without a port has no
// registration path.  The cell bodies themselves still spread across
// workers — spawning is cheap, relaxing is the work.

type pSeidelParallel struct {
	ports.Node
	st            *pSeidelState
	window, burst int
	iter          int
}

func (t *pSeidelParallel) Body() {
	switch t.Block() {
	case spEntry:
		t.iter = 0
		t.st.n = (t.st.N - 2) / t.st.blockSize
		t.st.futures = make([]*ports.Outset, t.st.n*t.st.n)
		t.JumpTo(spAllocFutures)
	case spAllocFutures:
		futures := t.st.futures
		t.ParallelFor(0, int64(len(futures)), func(i int64) {
			futures[i] = ports.AllocateFuture()
		}, spStartIter)
	case spStartIter:
		// Listening before the call keeps the port-map write inside the
		// block's single-owner window; the generator merely inherits one
		// more forked port it never uses.
		t.ListenOn(t.st.fut(t.st.n-1, t.st.n-1))
		t.Call(newPSeidelGenerator(t.st, t.window, t.burst), spEndIter)
	case spEndIter:
		t.Force(t.st.fut(t.st.n-1, t.st.n-1), spDeallocFutures)
	case spDeallocFutures:
		futures := t.st.futures
		t.iter++
		t.ParallelFor(0, int64(len(futures)), func(i int64) {
			ports.DestroyFuture(futures[i])
			futures[i] = nil
		}, spIterTest)
	case spIterTest:
		if t.iter < t.st.numiters {
			t.JumpTo(spAllocFutures)
		}
	}
}

// PortSeidelParallel is SeidelParallel on the port-passing engine.
func PortSeidelParallel(numiters, N, blockSize, window, burst int, epsilon float64, check bool) *PortScenario {
	if (N-2)%blockSize != 0 {
		panic("seidel: N-2 must be a multiple of the block size")
	}
	st := &pSeidelState{
		numiters:  numiters,
		N:         N,
		blockSize: blockSize,
		data:      make([]float64, N*N),
	}
	gaussSeidelInit(N, st.data)
	return &PortScenario{
		Name: "seidel_parallel",
		Root: &pSeidelParallel{st: st, window: window, burst: burst},
		Check: func() error {
			if !check {
				return nil
			}
			ref := make([]float64, N*N)
			gaussSeidelInit(N, ref)
			gaussSeidelByDiagonal(numiters, N, blockSize, ref)
			if diffs := countDiffs(st.data, ref, epsilon); diffs != 0 {
				return fmt.Errorf("seidel_parallel/ports: %d cells differ from the reference", diffs)
			}
			return nil
		},
		Counters: func() map[string]int64 {
			return map[string]int64{"cells": int64(st.n * st.n), "iters": int64(numiters)}
		},
	}
}
