// control.go — global run control for timed scenarios
// ============================================================================
//
// The timed microbenchmarks run open-ended DAGs (self-regenerating async
// loops, reader generators) that must be told when to stop producing.
// This package is that signal: one process-wide stop flag, set by a timer
// or by hand, polled from scenario blocks with a single atomic load.  The
// flag deliberately lives outside either engine so the direct and the
// port-passing variants share one shutdown discipline.

package control

import (
	"sync/atomic"
	"time"
)

var stop atomic.Uint32

// Reset re-arms the flag before a scenario starts.
func Reset() { stop.Store(0) }

// Shutdown requests that open-ended producers stop regenerating.
func Shutdown() { stop.Store(1) }

// Stopped reports whether shutdown has been requested.
func Stopped() bool { return stop.Load() != 0 }

// ShutdownAfter arms a detached timer that fires Shutdown once d elapses.
func ShutdownAfter(d time.Duration) {
	go func() {
		time.Sleep(d)
		Shutdown()
	}()
}
