package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"inferd/pkg/types"
)

// Ledger is the durable record of health activity: an append-only check log,
// an append-only incident event trail, and the incidents themselves.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (or creates) the health database at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open health db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	_, err := l.db.Exec(`
CREATE TABLE IF NOT EXISTS check_log (
  component TEXT NOT NULL,
  status    TEXT NOT NULL,
  message   TEXT NOT NULL DEFAULT '',
  at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_check_log_at ON check_log(at);

CREATE TABLE IF NOT EXISTS incidents (
  id          TEXT PRIMARY KEY,
  component   TEXT NOT NULL,
  severity    TEXT NOT NULL,
  detected_at INTEGER NOT NULL,
  resolved_at INTEGER,
  auto_fixed  INTEGER NOT NULL DEFAULT 0,
  attempts    INTEGER NOT NULL DEFAULT 0,
  resolution  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_incidents_detected ON incidents(detected_at);

CREATE TABLE IF NOT EXISTS incident_events (
  seq           INTEGER PRIMARY KEY AUTOINCREMENT,
  incident_id   TEXT NOT NULL,
  at            INTEGER NOT NULL,
  before_status TEXT NOT NULL,
  after_status  TEXT NOT NULL,
  note          TEXT NOT NULL DEFAULT ''
);`)
	if err != nil {
		return fmt.Errorf("migrate health db: %w", err)
	}
	return nil
}

// AppendChecks records one round of probe results. Best effort: callers do
// not fail on ledger errors.
func (l *Ledger) AppendChecks(ctx context.Context, results []types.CheckResult) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("check log: %w", err)
	}
	for _, r := range results {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO check_log (component, status, message, at) VALUES (?, ?, ?, ?)`,
			r.Component, string(r.Status), r.Message, r.Timestamp.Unix()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("check log: %w", err)
		}
	}
	return tx.Commit()
}

// OpenIncident creates a new incident and returns its id.
func (l *Ledger) OpenIncident(ctx context.Context, component string, severity types.HealthStatus, detectedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO incidents (id, component, severity, detected_at) VALUES (?, ?, ?, ?)`,
		id, component, string(severity), detectedAt.Unix())
	if err != nil {
		return "", fmt.Errorf("open incident: %w", err)
	}
	return id, nil
}

// EscalateIncident raises the recorded severity of an open incident.
func (l *Ledger) EscalateIncident(ctx context.Context, id string, severity types.HealthStatus) error {
	_, err := l.db.ExecContext(ctx, `UPDATE incidents SET severity = ? WHERE id = ?`, string(severity), id)
	if err != nil {
		return fmt.Errorf("escalate incident: %w", err)
	}
	return nil
}

// RecordAttempt increments an incident's remediation attempt counter.
func (l *Ledger) RecordAttempt(ctx context.Context, id string) error {
	_, err := l.db.ExecContext(ctx, `UPDATE incidents SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// ResolveIncident closes an incident.
func (l *Ledger) ResolveIncident(ctx context.Context, id string, at time.Time, autoFixed bool, resolution string) error {
	fixed := 0
	if autoFixed {
		fixed = 1
	}
	_, err := l.db.ExecContext(ctx,
		`UPDATE incidents SET resolved_at = ?, auto_fixed = ?, resolution = ? WHERE id = ?`,
		at.Unix(), fixed, resolution, id)
	if err != nil {
		return fmt.Errorf("resolve incident: %w", err)
	}
	return nil
}

// AppendEvent adds one audit event to an incident's trail.
func (l *Ledger) AppendEvent(ctx context.Context, incidentID string, at time.Time, before, after types.HealthStatus, note string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO incident_events (incident_id, at, before_status, after_status, note) VALUES (?, ?, ?, ?, ?)`,
		incidentID, at.Unix(), string(before), string(after), note)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// RecentIncidents lists incidents newest first.
func (l *Ledger) RecentIncidents(ctx context.Context, limit int) ([]types.Incident, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT id, component, severity, detected_at, resolved_at, auto_fixed, attempts, resolution
FROM incidents ORDER BY detected_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent incidents: %w", err)
	}
	defer rows.Close()
	var out []types.Incident
	for rows.Next() {
		var inc types.Incident
		var sev string
		var detected int64
		var resolved sql.NullInt64
		var fixed int
		if err := rows.Scan(&inc.ID, &inc.Component, &sev, &detected, &resolved, &fixed, &inc.Attempts, &inc.Resolution); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		inc.Severity = types.HealthStatus(sev)
		inc.DetectedAt = time.Unix(detected, 0)
		if resolved.Valid {
			t := time.Unix(resolved.Int64, 0)
			inc.ResolvedAt = &t
		}
		inc.AutoFixed = fixed == 1
		out = append(out, inc)
	}
	return out, rows.Err()
}

// IntegrityCheck runs a quick consistency check, for the store probe.
func (l *Ledger) IntegrityCheck() error {
	var res string
	if err := l.db.QueryRow(`PRAGMA quick_check`).Scan(&res); err != nil {
		return fmt.Errorf("health db quick_check: %w", err)
	}
	if res != "ok" {
		return fmt.Errorf("health db quick_check: %s", res)
	}
	return nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error { return l.db.Close() }
