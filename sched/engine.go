// engine.go — engine state and launch
// ============================================================================
//
// The direct engine keeps exactly two pieces of ambient state: the frozen
// configuration and the pool it schedules on.  Both are installed before
// any node runs and torn down after the pool quiesces, which is also what
// makes the package-level accessors safe: nothing mutates them while
// workers are alive.

package sched

import (
	"time"

	"github.com/MunirAD/pasl/config"
	"github.com/MunirAD/pasl/pool"
)

var (
	engCfg  *config.Config
	engPool *pool.Pool
)

func engineCfg() *config.Config {
	if engCfg == nil {
		panic("sched: engine not booted")
	}
	return engCfg
}

func enginePool() *pool.Pool {
	if engPool == nil {
		panic("sched: engine not booted")
	}
	return engPool
}

// Boot freezes the configuration and builds a fresh pool.  Call once per
// launch; the previous pool must have quiesced.
func Boot(c *config.Config) *pool.Pool {
	if err := c.Validate(); err != nil {
		panic(err)
	}
	engCfg = c
	engPool = pool.New(c.Workers, c.Pin)
	return engPool
}

// Launch boots the engine and runs each root to quiescence in order,
// returning the wall-clock time spent inside the pool.
func Launch(c *config.Config, roots ...Task) time.Duration {
	var total time.Duration
	for _, r := range roots {
		p := Boot(c)
		PrepareNode(r, InReady(), OutNoop())
		start := time.Now()
		p.Launch(r.base())
		total += time.Since(start)
	}
	return total
}

// FuncTask adapts a plain function to a single-block node; the sequential
// Gauss–Seidel scenario runs as one.
type FuncTask struct {
	Node
	Fn func()
}

func (t *FuncTask) Body() { t.Fn() }

// NewFuncTask wraps fn as a launchable task.
func NewFuncTask(fn func()) *FuncTask {
	return &FuncTask{Fn: fn}
}
