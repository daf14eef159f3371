package bench

import (
	"runtime"
	"testing"
	"time"

	"github.com/MunirAD/pasl/config"
	"github.com/MunirAD/pasl/ports"
	"github.com/MunirAD/pasl/sched"
)

var edgeAlgorithms = []config.EdgeAlgorithm{
	config.Simple,
	config.Distributed,
	config.Dyntree,
}

func testConfig(algo config.EdgeAlgorithm) *config.Config {
	c := config.Default()
	c.EdgeAlgorithm = algo
	c.Workers = runtime.GOMAXPROCS(0)
	return &c
}

func runDirect(t *testing.T, algo config.EdgeAlgorithm, s *Scenario) {
	t.Helper()
	sched.Launch(testConfig(algo), s.Root)
	if err := s.Check(); err != nil {
		t.Fatalf("%v: %v", algo, err)
	}
}

func runPorts(t *testing.T, s *PortScenario) {
	t.Helper()
	ports.Launch(testConfig(config.Dyntree), s.Root)
	if err := s.Check(); err != nil {
		t.Fatal(err)
	}
}

func bintreeSize(t *testing.T) int {
	if testing.Short() {
		return 64
	}
	return 1024
}

func TestAsyncBintree(t *testing.T) {
	for _, algo := range edgeAlgorithms {
		runDirect(t, algo, AsyncBintree(bintreeSize(t)))
	}
}

func TestFutureBintree(t *testing.T) {
	for _, algo := range edgeAlgorithms {
		runDirect(t, algo, FutureBintree(bintreeSize(t)))
	}
}

func TestFuturePool(t *testing.T) {
	fibInput := int64(22)
	if testing.Short() {
		fibInput = 15
	}
	for _, algo := range edgeAlgorithms {
		s := FuturePool(8, fibInput)
		runDirect(t, algo, s)
		if fibInput == 22 && s.Counters()["fib"] != 17711 {
			t.Fatalf("%v: fib(22) = %d, want 17711", algo, s.Counters()["fib"])
		}
	}
}

func TestParallelFor(t *testing.T) {
	n := int64(1_000_000)
	if testing.Short() {
		n = 10_000
	}
	for _, algo := range edgeAlgorithms {
		runDirect(t, algo, ParallelForTest(n))
	}
}

func TestAsyncMicrobench(t *testing.T) {
	for _, algo := range edgeAlgorithms {
		runDirect(t, algo, AsyncMicrobench(30*time.Millisecond, runtime.GOMAXPROCS(0)))
	}
}

func TestEdgeThroughputMicrobench(t *testing.T) {
	for _, algo := range edgeAlgorithms {
		runDirect(t, algo, EdgeThroughputMicrobench(20*time.Millisecond, runtime.GOMAXPROCS(0)))
	}
}

func TestSeidelParallelMatchesReference(t *testing.T) {
	numiters, interior, block := 2, 32, 2
	if !testing.Short() {
		interior = 64
	}
	for _, algo := range edgeAlgorithms {
		runDirect(t, algo, SeidelParallel(numiters, interior+2, block, 64, 8, 0.001, true))
	}
}

func TestSeidelSequentialReferencesAgree(t *testing.T) {
	const numiters, N, block = 3, 34, 2
	rows := make([]float64, N*N)
	diag := make([]float64, N*N)
	gaussSeidelInit(N, rows)
	gaussSeidelInit(N, diag)
	GaussSeidelSequential(numiters, N, block, rows)
	gaussSeidelByDiagonal(numiters, N, block, diag)
	if diffs := countDiffs(rows, diag, 1e-9); diffs != 0 {
		t.Fatalf("row-order and wavefront references differ in %d cells", diffs)
	}
}

func TestPortScenarios(t *testing.T) {
	n := bintreeSize(t)
	runPorts(t, PortAsyncBintree(n))
	runPorts(t, PortFutureBintree(n))
	runPorts(t, PortFuturePool(8, 15))
	pn := int64(100_000)
	if testing.Short() {
		pn = 5_000
	}
	runPorts(t, PortParallelForTest(pn))
	runPorts(t, PortAsyncMicrobench(30*time.Millisecond, runtime.GOMAXPROCS(0)))
	runPorts(t, PortEdgeThroughputMicrobench(20*time.Millisecond, runtime.GOMAXPROCS(0)))
}

func TestPortSeidelParallel(t *testing.T) {
	runPorts(t, PortSeidelParallel(2, 34, 2, 64, 8, 0.001, true))
}

// splitHungryConfig makes splitting all but certain instead of incidental:
// a communication delay of 1 turns every block boundary into a split
// point, and with at least two workers somebody is starving while the
// loop ramps up.
func splitHungryConfig() *config.Config {
	c := config.Default()
	c.Workers = runtime.GOMAXPROCS(0)
	if c.Workers < 2 {
		c.Workers = 2
	}
	c.CommunicationDelay = 1
	return &c
}

// TestPortParallelForSplitStress pins the port-passing split path: a shed
// sibling must carry a forked in-port for the join, or the join activates
// before the sibling's half of the range has executed.
func TestPortParallelForSplitStress(t *testing.T) {
	n := int64(20_000)
	if testing.Short() {
		n = 2_000
	}
	for round := 0; round < 3; round++ {
		s := PortParallelForTest(n)
		ports.Launch(splitHungryConfig(), s.Root)
		if err := s.Check(); err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
	}
}

// TestPortSeidelParallelSplitStress drives the same split path through the
// pipeline's future-allocation loop, where a lost join edge surfaces as a
// nil future at the listen step.
func TestPortSeidelParallelSplitStress(t *testing.T) {
	s := PortSeidelParallel(2, 18, 2, 16, 2, 0.001, true)
	ports.Launch(splitHungryConfig(), s.Root)
	if err := s.Check(); err != nil {
		t.Fatal(err)
	}
}

func TestIncounterMicrobenches(t *testing.T) {
	cfg := testConfig(config.Dyntree)
	for _, kind := range []string{"simple", "snzi", "dyntree"} {
		ops, err := IncounterMicrobench(cfg, kind, runtime.GOMAXPROCS(0), 20*time.Millisecond, 1)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if ops == 0 {
			t.Fatalf("%s: no operations", kind)
		}
	}
}

func TestOutsetMicrobenches(t *testing.T) {
	for _, algo := range edgeAlgorithms {
		ops, err := OutsetMicrobench(testConfig(algo), runtime.GOMAXPROCS(0), 20*time.Millisecond)
		if err != nil {
			t.Fatalf("%v: %v", algo, err)
		}
		if ops == 0 {
			t.Fatalf("%v: no operations", algo)
		}
	}
}

func BenchmarkAsyncBintreeDyntree(b *testing.B) {
	for i := 0; i < b.N; i++ {
		s := AsyncBintree(1024)
		sched.Launch(testConfig(config.Dyntree), s.Root)
	}
}

func BenchmarkParallelForDyntree(b *testing.B) {
	for i := 0; i < b.N; i++ {
		s := ParallelForTest(100_000)
		sched.Launch(testConfig(config.Dyntree), s.Root)
	}
}
