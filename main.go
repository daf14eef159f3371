// main.go — benchmark driver
// ============================================================================
//
// Selects an engine (direct or port-passing), an edge algorithm, and a
// scenario; runs it to quiescence; prints exectime and the scenario
// counters; optionally appends the run to the results database.
//
//	pasl -algo direct -edge dyntree -cmd async_bintree -n 1024
//	pasl -algo portpassing -cmd future_pool -n 8 -fib 22
//	pasl -cmd incounter_microbench -incounter snzi -ms 500
//	pasl -cmd seidel_parallel -N 130 -block-size 2 -consistency-check

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/MunirAD/pasl/bench"
	"github.com/MunirAD/pasl/config"
	"github.com/MunirAD/pasl/debug"
	"github.com/MunirAD/pasl/harvester"
	"github.com/MunirAD/pasl/ports"
	"github.com/MunirAD/pasl/sched"
)

var (
	flagAlgo       = flag.String("algo", "direct", "engine: direct or portpassing")
	flagCmd        = flag.String("cmd", "async_bintree", "scenario to run")
	flagEdge       = flag.String("edge", "dyntree", "edge algorithm: simple, distributed, dyntree")
	flagConfig     = flag.String("config", "", "JSON configuration file")
	flagResults    = flag.String("results", "", "SQLite results database (empty: don't record)")
	flagWorkers    = flag.Int("workers", 0, "worker count (0: GOMAXPROCS)")
	flagPin        = flag.Bool("pin", false, "pin workers to cores")
	flagDelay      = flag.Int("communication-delay", 0, "cooperative block size")
	flagBranching  = flag.Int("branching", 0, "SNZI and dyntree branching factor")
	flagSnziLevels = flag.Int("snzi-levels", 0, "SNZI tree levels")
	flagN          = flag.Int64("n", 1024, "scenario size")
	flagMS         = flag.Int("ms", 1000, "duration of timed scenarios, milliseconds")
	flagFib        = flag.Int64("fib", 22, "fib input of the future pool")
	flagIncounter  = flag.String("incounter", "simple", "incounter microbench kind")
	flagSeed       = flag.Int64("seed", 1, "seed of randomized microbenches")
	flagNumiters   = flag.Int("numiters", 1, "Gauss-Seidel iterations")
	flagGridN      = flag.Int("N", 128, "Gauss-Seidel interior grid side")
	flagBlockSize  = flag.Int("block-size", 2, "Gauss-Seidel block size")
	flagWindow     = flag.Int("window", 0, "pipeline window capacity")
	flagBurst      = flag.Int("burst", 0, "pipeline burst rate")
	flagEpsilon    = flag.Float64("epsilon", 0.001, "Gauss-Seidel comparison tolerance")
	flagCheck      = flag.Bool("consistency-check", false, "verify seidel_parallel against the reference")
)

func fatal(err error) {
	debug.DropError("pasl", err)
	os.Exit(1)
}

func buildConfig() config.Config {
	cfg := config.Default()
	if *flagConfig != "" {
		loaded, err := config.Load(*flagConfig)
		if err != nil {
			fatal(err)
		}
		cfg = loaded
	}
	algo, err := config.ParseEdgeAlgorithm(*flagEdge)
	if err != nil {
		fatal(err)
	}
	cfg.EdgeAlgorithm = algo
	if *flagWorkers > 0 {
		cfg.Workers = *flagWorkers
	}
	if *flagPin {
		cfg.Pin = true
	}
	if *flagDelay > 0 {
		cfg.CommunicationDelay = *flagDelay
	}
	if *flagBranching > 0 {
		cfg.SnziBranching = *flagBranching
		cfg.DyntreeBranching = *flagBranching
	}
	if *flagSnziLevels > 0 {
		cfg.SnziLevels = *flagSnziLevels
	}
	if *flagWindow > 0 {
		cfg.PipelineWindow = *flagWindow
	}
	if *flagBurst > 0 {
		cfg.PipelineBurst = *flagBurst
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}
	return cfg
}

func buildScenario(cfg *config.Config) *bench.Scenario {
	dur := time.Duration(*flagMS) * time.Millisecond
	switch *flagCmd {
	case "async_bintree":
		return bench.AsyncBintree(int(*flagN))
	case "future_bintree":
		return bench.FutureBintree(int(*flagN))
	case "future_pool":
		return bench.FuturePool(int(*flagN), *flagFib)
	case "parallel_for":
		return bench.ParallelForTest(*flagN)
	case "async_microbench":
		return bench.AsyncMicrobench(dur, cfg.Workers)
	case "edge_throughput_microbench":
		return bench.EdgeThroughputMicrobench(dur, cfg.Workers)
	case "seidel_sequential":
		return bench.SeidelSequential(*flagNumiters, *flagGridN+2, *flagBlockSize)
	case "seidel_parallel":
		return bench.SeidelParallel(*flagNumiters, *flagGridN+2, *flagBlockSize,
			cfg.PipelineWindow, cfg.PipelineBurst, *flagEpsilon, *flagCheck)
	}
	fatal(fmt.Errorf("unknown cmd %q", *flagCmd))
	return nil
}

func buildPortScenario(cfg *config.Config) *bench.PortScenario {
	dur := time.Duration(*flagMS) * time.Millisecond
	switch *flagCmd {
	case "async_bintree":
		return bench.PortAsyncBintree(int(*flagN))
	case "future_bintree":
		return bench.PortFutureBintree(int(*flagN))
	case "future_pool":
		return bench.PortFuturePool(int(*flagN), *flagFib)
	case "parallel_for":
		return bench.PortParallelForTest(*flagN)
	case "async_microbench":
		return bench.PortAsyncMicrobench(dur, cfg.Workers)
	case "edge_throughput_microbench":
		return bench.PortEdgeThroughputMicrobench(dur, cfg.Workers)
	case "seidel_parallel":
		return bench.PortSeidelParallel(*flagNumiters, *flagGridN+2, *flagBlockSize,
			cfg.PipelineWindow, cfg.PipelineBurst, *flagEpsilon, *flagCheck)
	}
	fatal(fmt.Errorf("unknown cmd %q for the port-passing engine", *flagCmd))
	return nil
}

func record(cfg *config.Config, name, algo string, exectime time.Duration, counters map[string]int64) {
	if *flagResults == "" {
		return
	}
	h, err := harvester.Open(*flagResults)
	if err != nil {
		fatal(err)
	}
	defer h.Close()
	fp, err := harvester.Fingerprint(cfg)
	if err != nil {
		fatal(err)
	}
	if _, err := h.Record(harvester.Run{
		Scenario:          name,
		Algo:              algo,
		EdgeAlgorithm:     cfg.EdgeAlgorithm.String(),
		Workers:           cfg.Workers,
		Exectime:          exectime,
		Counters:          counters,
		ConfigFingerprint: fp,
	}); err != nil {
		fatal(err)
	}
}

func report(exectime time.Duration, counters map[string]int64) {
	fmt.Printf("exectime %f\n", exectime.Seconds())
	for k, v := range counters {
		fmt.Printf("%s  %d\n", k, v)
	}
}

func main() {
	flag.Parse()
	cfg := buildConfig()

	switch *flagCmd {
	case "incounter_microbench":
		dur := time.Duration(*flagMS) * time.Millisecond
		start := time.Now()
		ops, err := bench.IncounterMicrobench(&cfg, *flagIncounter, cfg.Workers, dur, *flagSeed)
		if err != nil {
			fatal(err)
		}
		exectime := time.Since(start)
		report(exectime, map[string]int64{"nb_operations": ops})
		record(&cfg, *flagCmd, *flagIncounter, exectime, map[string]int64{"nb_operations": ops})
		return
	case "outset_microbench":
		dur := time.Duration(*flagMS) * time.Millisecond
		start := time.Now()
		ops, err := bench.OutsetMicrobench(&cfg, cfg.Workers, dur)
		if err != nil {
			fatal(err)
		}
		exectime := time.Since(start)
		report(exectime, map[string]int64{"nb_operations": ops})
		record(&cfg, *flagCmd, cfg.EdgeAlgorithm.String(), exectime, map[string]int64{"nb_operations": ops})
		return
	}

	switch *flagAlgo {
	case "direct":
		s := buildScenario(&cfg)
		exectime := sched.Launch(&cfg, s.Root)
		if err := s.Check(); err != nil {
			fatal(err)
		}
		report(exectime, s.Counters())
		record(&cfg, s.Name, "direct", exectime, s.Counters())
	case "portpassing":
		s := buildPortScenario(&cfg)
		exectime := ports.Launch(&cfg, s.Root)
		if err := s.Check(); err != nil {
			fatal(err)
		}
		report(exectime, s.Counters())
		record(&cfg, s.Name, "portpassing", exectime, s.Counters())
	default:
		fatal(fmt.Errorf("unknown algo %q", *flagAlgo))
	}
}
