package orchestrator

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"inferd/pkg/types"
)

// PerfStore keeps per-tier performance records: counts plus a rolling
// average latency. Records are held in memory for reads and written through
// to SQLite so they survive restarts. Writers are serialized by the mutex,
// so no update is lost under concurrency.
type PerfStore struct {
	mu      sync.Mutex
	db      *sql.DB
	records map[string]*types.PerformanceRecord
}

// OpenPerfStore opens (or creates) the performance database at path.
func OpenPerfStore(path string) (*PerfStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open perf db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &PerfStore{db: db, records: make(map[string]*types.PerformanceRecord)}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.loadAll(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PerfStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS perf_records (
  tier_id        TEXT PRIMARY KEY,
  total          INTEGER NOT NULL DEFAULT 0,
  successes      INTEGER NOT NULL DEFAULT 0,
  failures       INTEGER NOT NULL DEFAULT 0,
  avg_latency_ms REAL    NOT NULL DEFAULT 0
);`)
	if err != nil {
		return fmt.Errorf("migrate perf db: %w", err)
	}
	return nil
}

func (s *PerfStore) loadAll() error {
	rows, err := s.db.Query(`SELECT tier_id, total, successes, failures, avg_latency_ms FROM perf_records`)
	if err != nil {
		return fmt.Errorf("load perf records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r types.PerformanceRecord
		if err := rows.Scan(&r.TierID, &r.Total, &r.Successes, &r.Failures, &r.AvgLatencyMS); err != nil {
			return fmt.Errorf("scan perf record: %w", err)
		}
		s.records[r.TierID] = &r
	}
	return rows.Err()
}

// Record folds one request outcome into the tier's record and persists it.
// Persistence failures are swallowed: losing a counter update must never
// fail the request path.
func (s *PerfStore) Record(tierID string, ok bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.records[tierID]
	if r == nil {
		r = &types.PerformanceRecord{TierID: tierID}
		s.records[tierID] = r
	}
	r.Total++
	if ok {
		r.Successes++
	} else {
		r.Failures++
	}
	lat := float64(latency.Milliseconds())
	r.AvgLatencyMS += (lat - r.AvgLatencyMS) / float64(r.Total)

	_, _ = s.db.Exec(`
INSERT INTO perf_records (tier_id, total, successes, failures, avg_latency_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(tier_id) DO UPDATE SET
  total = excluded.total,
  successes = excluded.successes,
  failures = excluded.failures,
  avg_latency_ms = excluded.avg_latency_ms`,
		r.TierID, r.Total, r.Successes, r.Failures, r.AvgLatencyMS)
}

// Get returns a copy of one tier's record.
func (s *PerfStore) Get(tierID string) (types.PerformanceRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[tierID]
	if !ok {
		return types.PerformanceRecord{}, false
	}
	return *r, true
}

// Snapshot returns copies of all records, sorted by tier id.
func (s *PerfStore) Snapshot() []types.PerformanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.PerformanceRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TierID < out[j].TierID })
	return out
}

// IntegrityCheck runs a quick consistency check over the database, for the
// health monitor's store probe.
func (s *PerfStore) IntegrityCheck() error {
	var res string
	if err := s.db.QueryRow(`PRAGMA quick_check`).Scan(&res); err != nil {
		return fmt.Errorf("perf db quick_check: %w", err)
	}
	if res != "ok" {
		return fmt.Errorf("perf db quick_check: %s", res)
	}
	return nil
}

// Close closes the underlying database.
func (s *PerfStore) Close() error { return s.db.Close() }
