package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"
)

func TestDefaultValidates(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	require.Equal(t, Dyntree, c.EdgeAlgorithm)
	require.Equal(t, 100, c.CommunicationDelay)
	require.Equal(t, c.PipelineWindow/8, c.PipelineBurst)
}

func TestParseEdgeAlgorithm(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want EdgeAlgorithm
	}{
		{"simple", Simple},
		{"distributed", Distributed},
		{"dyntree", Dyntree},
	} {
		got, err := ParseEdgeAlgorithm(tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
		require.Equal(t, tc.in, got.String())
	}
	_, err := ParseEdgeAlgorithm("treiber")
	require.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	c := Default()
	c.EdgeAlgorithm = Distributed
	c.SnziLevels = 4

	raw, err := c.Marshal()
	require.NoError(t, err)

	var back Config
	require.NoError(t, sonnet.Unmarshal(raw, &back))
	require.Equal(t, c, back)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"edge_algorithm":"simple","communication_delay":25,"workers":3}`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Simple, c.EdgeAlgorithm)
	require.Equal(t, 25, c.CommunicationDelay)
	require.Equal(t, 3, c.Workers)
	// untouched fields keep their defaults
	require.Equal(t, Default().SnziLevels, c.SnziLevels)
}

func TestLoadRejectsBadShapes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"dyntree_branching":1}`), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	for _, mutate := range []func(*Config){
		func(c *Config) { c.SnziBranching = 0 },
		func(c *Config) { c.DyntreeBranching = 1 },
		func(c *Config) { c.CommunicationDelay = 0 },
		func(c *Config) { c.PipelineBurst = 0 },
		func(c *Config) { c.Workers = 0 },
	} {
		c := Default()
		mutate(&c)
		require.Error(t, c.Validate())
	}
}
