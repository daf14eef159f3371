// scenario.go — scenario plumbing
// ============================================================================
//
// Each scenario bundles a root task for the direct engine with a check
// over its counters.  The CLI runs the root through sched.Launch, prints
// the counters, and hands them to the harvester; the package tests run the
// same scenarios across every edge algorithm.

package bench

import (
	"sync/atomic"

	"github.com/MunirAD/pasl/sched"
)

// Scenario is one runnable benchmark.
type Scenario struct {
	Name     string
	Root     sched.Task
	Check    func() error
	Counters func() map[string]int64
}

// shard is one cache-line-isolated counter cell.
type shard struct {
	v atomic.Int64
	_ [56]byte
}

// ShardedCounter is a per-worker counter: hot scenario loops bump their
// own worker's cell and only the final report sums across the row.
type ShardedCounter struct {
	shards []shard
}

// NewShardedCounter sizes the counter for n workers.
func NewShardedCounter(n int) *ShardedCounter {
	if n < 1 {
		n = 1
	}
	return &ShardedCounter{shards: make([]shard, n)}
}

// Add bumps the cell of the given worker.
func (c *ShardedCounter) Add(worker int) {
	c.shards[worker%len(c.shards)].v.Add(1)
}

// Sum folds the row; call only after the run quiesced.
func (c *ShardedCounter) Sum() int64 {
	var total int64
	for i := range c.shards {
		total += c.shards[i].v.Load()
	}
	return total
}
