// harvester.go — benchmark result persistence
// ============================================================================
//
// Scenario runs are throwaway by nature; their numbers should not be.  The
// harvester appends every run to a SQLite file keyed by a fingerprint of
// the exact configuration it ran under, so result rows from different
// machines and flag spellings stay comparable.  Counters travel as a JSON
// blob — they differ per scenario and the schema should not care.

package harvester

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/crypto/blake2b"

	"github.com/MunirAD/pasl/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                 TEXT PRIMARY KEY,
	scenario           TEXT NOT NULL,
	algo               TEXT NOT NULL,
	edge_algorithm     TEXT NOT NULL,
	workers            INTEGER NOT NULL,
	exectime_seconds   REAL NOT NULL,
	counters           TEXT NOT NULL,
	config_fingerprint TEXT NOT NULL,
	started_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_by_scenario ON runs(scenario, config_fingerprint);`

// Run is one recorded scenario execution.
type Run struct {
	ID                string
	Scenario          string
	Algo              string // direct or portpassing
	EdgeAlgorithm     string
	Workers           int
	Exectime          time.Duration
	Counters          map[string]int64
	ConfigFingerprint string
	StartedAt         time.Time
}

// Harvester owns the results database.
type Harvester struct {
	db *sql.DB
}

// Open opens (creating if needed) the results database at path.
func Open(path string) (*Harvester, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("harvester: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("harvester: schema: %w", err)
	}
	return &Harvester{db: db}, nil
}

// Close releases the database.
func (h *Harvester) Close() error { return h.db.Close() }

// Fingerprint hashes the canonical JSON form of a configuration.  Two runs
// share a fingerprint iff every tunable matched.
func Fingerprint(c *config.Config) (string, error) {
	raw, err := c.Marshal()
	if err != nil {
		return "", fmt.Errorf("harvester: fingerprint: %w", err)
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:16]), nil
}

// Record appends one run, minting an id when the caller left it empty.
func (h *Harvester) Record(run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	counters, err := sonnet.Marshal(run.Counters)
	if err != nil {
		return "", fmt.Errorf("harvester: counters: %w", err)
	}
	_, err = h.db.Exec(
		`INSERT INTO runs (id, scenario, algo, edge_algorithm, workers,
			exectime_seconds, counters, config_fingerprint, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Scenario, run.Algo, run.EdgeAlgorithm, run.Workers,
		run.Exectime.Seconds(), string(counters), run.ConfigFingerprint,
		run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("harvester: record: %w", err)
	}
	return run.ID, nil
}

// Runs returns the recorded runs of one scenario, newest first.
func (h *Harvester) Runs(scenario string) ([]Run, error) {
	rows, err := h.db.Query(
		`SELECT id, scenario, algo, edge_algorithm, workers,
			exectime_seconds, counters, config_fingerprint, started_at
		 FROM runs WHERE scenario = ? ORDER BY started_at DESC`, scenario)
	if err != nil {
		return nil, fmt.Errorf("harvester: query: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var exectime float64
		var counters, started string
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Algo, &r.EdgeAlgorithm,
			&r.Workers, &exectime, &counters, &r.ConfigFingerprint, &started); err != nil {
			return nil, fmt.Errorf("harvester: scan: %w", err)
		}
		r.Exectime = time.Duration(exectime * float64(time.Second))
		if err := sonnet.Unmarshal([]byte(counters), &r.Counters); err != nil {
			return nil, fmt.Errorf("harvester: counters of %s: %w", r.ID, err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("harvester: timestamp of %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
