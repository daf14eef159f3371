// config.go — run configuration for the DAG engines
// ============================================================================
//
// Every tunable the engines read is aggregated here and frozen before the
// pool starts; nothing in the hot path consults anything mutable.  Defaults
// are in code, a JSON file can override them, and the CLI layer overrides
// both.

package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/sugawarayuuta/sonnet"
)

// EdgeAlgorithm selects the in-counter / out-set family for the direct
// engine.
type EdgeAlgorithm int

const (
	// Simple is a process-wide fetch-add counter plus a Treiber-stack
	// out-set.
	Simple EdgeAlgorithm = iota
	// Distributed is an SNZI-backed in-counter with a dyntree out-set and
	// direct leaf addressing for unary edges.
	Distributed
	// Dyntree uses randomized k-ary trees on both sides.
	Dyntree
)

var edgeAlgorithmNames = map[EdgeAlgorithm]string{
	Simple:      "simple",
	Distributed: "distributed",
	Dyntree:     "dyntree",
}

func (a EdgeAlgorithm) String() string {
	if s, ok := edgeAlgorithmNames[a]; ok {
		return s
	}
	return fmt.Sprintf("edge_algorithm(%d)", int(a))
}

// ParseEdgeAlgorithm maps the CLI/JSON spelling to the enum.
func ParseEdgeAlgorithm(s string) (EdgeAlgorithm, error) {
	for a, name := range edgeAlgorithmNames {
		if s == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("config: unknown edge algorithm %q", s)
}

func (a EdgeAlgorithm) MarshalJSON() ([]byte, error) {
	return sonnet.Marshal(a.String())
}

func (a *EdgeAlgorithm) UnmarshalJSON(b []byte) error {
	var s string
	if err := sonnet.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseEdgeAlgorithm(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Config is the immutable tunable bundle.  Establish it fully before
// handing it to an engine; the engines share it by reference and never
// write it.
type Config struct {
	EdgeAlgorithm EdgeAlgorithm `json:"edge_algorithm"`

	// SNZI shape for the distributed in-counter.
	SnziBranching int `json:"snzi_branching"`
	SnziLevels    int `json:"snzi_levels"`

	// Branching factor of the dyntree in-counter and out-set.
	DyntreeBranching int `json:"dyntree_branching"`

	// CommunicationDelay is the cooperative block size: how many items a
	// loop or teardown walk processes before yielding a split point.
	CommunicationDelay int `json:"communication_delay"`

	// Pipeline throttle for the Gauss-Seidel scenario.
	PipelineWindow int `json:"pipeline_window_capacity"`
	PipelineBurst  int `json:"pipeline_burst_rate"`

	Workers int  `json:"workers"`
	Pin     bool `json:"pin"`
}

// Default returns the configuration the scenarios assume when nothing is
// overridden.
func Default() Config {
	window := 4096
	return Config{
		EdgeAlgorithm:      Dyntree,
		SnziBranching:      2,
		SnziLevels:         3,
		DyntreeBranching:   2,
		CommunicationDelay: 100,
		PipelineWindow:     window,
		PipelineBurst:      max(1, window/8),
		Workers:            runtime.GOMAXPROCS(0),
		Pin:                false,
	}
}

// Load reads a JSON override file on top of the defaults.
func Load(path string) (Config, error) {
	c := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	if err := sonnet.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return c, c.Validate()
}

// Marshal renders the configuration in its canonical JSON form; the
// harvester fingerprints runs with it.
func (c Config) Marshal() ([]byte, error) {
	return sonnet.Marshal(c)
}

// Validate rejects shapes the structures cannot be built with.
func (c Config) Validate() error {
	switch {
	case c.SnziBranching < 1 || c.SnziLevels < 1:
		return fmt.Errorf("config: snzi shape %dx%d is invalid", c.SnziBranching, c.SnziLevels)
	case c.DyntreeBranching < 2:
		return fmt.Errorf("config: dyntree branching %d is below 2", c.DyntreeBranching)
	case c.CommunicationDelay < 1:
		return fmt.Errorf("config: communication delay %d is below 1", c.CommunicationDelay)
	case c.PipelineWindow < 1 || c.PipelineBurst < 1:
		return fmt.Errorf("config: pipeline throttle %d/%d is invalid", c.PipelineWindow, c.PipelineBurst)
	case c.Workers < 1:
		return fmt.Errorf("config: worker count %d is below 1", c.Workers)
	}
	return nil
}
