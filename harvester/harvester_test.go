package harvester

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MunirAD/pasl/config"
)

func openTemp(t *testing.T) *Harvester {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, h.Close()) })
	return h
}

func TestRecordRoundTrip(t *testing.T) {
	h := openTemp(t)
	cfg := config.Default()
	fp, err := Fingerprint(&cfg)
	require.NoError(t, err)

	id, err := h.Record(Run{
		Scenario:          "async_bintree",
		Algo:              "direct",
		EdgeAlgorithm:     cfg.EdgeAlgorithm.String(),
		Workers:           cfg.Workers,
		Exectime:          125 * time.Millisecond,
		Counters:          map[string]int64{"leaves": 1024, "interiors": 1023},
		ConfigFingerprint: fp,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	runs, err := h.Runs("async_bintree")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	require.Equal(t, id, got.ID)
	require.Equal(t, "direct", got.Algo)
	require.Equal(t, fp, got.ConfigFingerprint)
	require.Equal(t, int64(1024), got.Counters["leaves"])
	require.Equal(t, int64(1023), got.Counters["interiors"])
	require.InDelta(t, 0.125, got.Exectime.Seconds(), 1e-9)
	require.False(t, got.StartedAt.IsZero())
}

func TestRunsFiltersByScenario(t *testing.T) {
	h := openTemp(t)
	for _, s := range []string{"a", "a", "b"} {
		_, err := h.Record(Run{Scenario: s, Algo: "direct", EdgeAlgorithm: "simple"})
		require.NoError(t, err)
	}
	runs, err := h.Runs("a")
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestFingerprintSeparatesConfigs(t *testing.T) {
	a := config.Default()
	b := config.Default()
	b.CommunicationDelay++

	fa, err := Fingerprint(&a)
	require.NoError(t, err)
	fb, err := Fingerprint(&b)
	require.NoError(t, err)
	require.NotEqual(t, fa, fb)

	fa2, err := Fingerprint(&a)
	require.NoError(t, err)
	require.Equal(t, fa, fa2)
}
