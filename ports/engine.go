// engine.go — engine state and launch for the port-passing variant
// ============================================================================

package ports

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
		panic("ports: engine not booted")
	}
	return engCfg
}

func enginePool() *pool.Pool {
	if engPool == nil {
		panic("ports: engine not booted")
	}
	return engPool
}

// Boot freezes the configuration and builds a fresh pool.
func Boot(c *config.Config) *pool.Pool {
	if err := c.Validate(); err != nil {
		panic(err)
	}
	engCfg = c
	engPool = pool.New(c.Workers, c.Pin)
	return engPool
}

// Launch boots the engine and runs each root to quiescence in order.
func Launch(c *config.Config, roots ...Task) time.Duration {
	var total time.Duration
	for _, r := range roots {
		p := Boot(c)
		PrepareNode(r, InReady(), OutUnary())
		start := time.Now()
		p.Launch(r.base())
		total += time.Since(start)
	}
	return total
}

// FuncTask adapts a plain function to a single-block node.
type FuncTask struct {
	Node
	Fn func()
}

func (t *FuncTask) Body() { t.Fn() }

// NewFuncTask wraps fn as a launchable task.
func NewFuncTask(fn func()) *FuncTask {
	return &FuncTask{Fn: fn}
}
