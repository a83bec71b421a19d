package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// warmStore is the durable cache layer. SQLite serializes writes; readers
// run concurrently.
type warmStore struct {
	db *sql.DB
}

func openWarmStore(path string) (*warmStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &warmStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *warmStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS cache_entries (
  fingerprint   TEXT PRIMARY KEY,
  query         TEXT NOT NULL,
  tokens        TEXT NOT NULL,
  response      TEXT NOT NULL,
  created_at    INTEGER NOT NULL,
  last_accessed INTEGER NOT NULL,
  access_count  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_cache_last_accessed ON cache_entries(last_accessed);`)
	if err != nil {
		return fmt.Errorf("migrate cache db: %w", err)
	}
	return nil
}

func (s *warmStore) get(ctx context.Context, fingerprint string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT fingerprint, query, tokens, response, created_at, last_accessed, access_count
FROM cache_entries WHERE fingerprint = ?`, fingerprint)
	var e Entry
	var tokens string
	var created, accessed int64
	err := row.Scan(&e.Fingerprint, &e.Query, &tokens, &e.Response, &created, &accessed, &e.AccessCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	e.Tokens = strings.Fields(tokens)
	e.CreatedAt = time.Unix(created, 0)
	e.LastAccessed = time.Unix(accessed, 0)
	return &e, nil
}

func (s *warmStore) put(ctx context.Context, e *Entry) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cache_entries (fingerprint, query, tokens, response, created_at, last_accessed, access_count)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(fingerprint) DO UPDATE SET
  response = excluded.response,
  last_accessed = excluded.last_accessed`,
		e.Fingerprint, e.Query, strings.Join(e.Tokens, " "), e.Response,
		e.CreatedAt.Unix(), e.LastAccessed.Unix(), e.AccessCount)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (s *warmStore) touch(ctx context.Context, fingerprint string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE cache_entries SET last_accessed = ?, access_count = access_count + 1
WHERE fingerprint = ?`, at.Unix(), fingerprint)
	if err != nil {
		return fmt.Errorf("cache touch: %w", err)
	}
	return nil
}

func (s *warmStore) delete(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// candidate is the slim projection scanned for similarity matching.
type candidate struct {
	fingerprint  string
	tokens       string
	lastAccessed time.Time
}

// candidates returns recent entries, most recently accessed first. The scan
// is bounded so similarity lookup stays cheap on large stores.
func (s *warmStore) candidates(ctx context.Context, limit int) ([]candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT fingerprint, tokens, last_accessed
FROM cache_entries ORDER BY last_accessed DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("cache candidates: %w", err)
	}
	defer rows.Close()
	var out []candidate
	for rows.Next() {
		var c candidate
		var accessed int64
		if err := rows.Scan(&c.fingerprint, &c.tokens, &accessed); err != nil {
			return nil, fmt.Errorf("cache candidates scan: %w", err)
		}
		c.lastAccessed = time.Unix(accessed, 0)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *warmStore) count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return n, nil
}

// purgeExpired drops entries created before the cutoff.
func (s *warmStore) purgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("cache purge expired: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// purgeLRU keeps at most max entries, dropping the least recently accessed.
func (s *warmStore) purgeLRU(ctx context.Context, max int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM cache_entries WHERE fingerprint NOT IN (
  SELECT fingerprint FROM cache_entries ORDER BY last_accessed DESC LIMIT ?
)`, max)
	if err != nil {
		return 0, fmt.Errorf("cache purge lru: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *warmStore) integrityCheck() error {
	var res string
	if err := s.db.QueryRow(`PRAGMA quick_check`).Scan(&res); err != nil {
		return fmt.Errorf("cache db quick_check: %w", err)
	}
	if res != "ok" {
		return fmt.Errorf("cache db quick_check: %s", res)
	}
	return nil
}

// reinit drops and recreates the schema. Used by health remediation when the
// warm store is corrupt; cached data is expendable.
func (s *warmStore) reinit(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS cache_entries`); err != nil {
		return fmt.Errorf("cache reinit: %w", err)
	}
	return s.migrate()
}

func (s *warmStore) close() error { return s.db.Close() }
