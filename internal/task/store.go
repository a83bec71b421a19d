package task

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"inferd/pkg/types"
)

// Store persists tasks and their steps. Saves are transactional: a task and
// its steps are always written together, so a crash can never leave a task
// whose step list disagrees with its current_step.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the task database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open task db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS tasks (
  id           TEXT PRIMARY KEY,
  description  TEXT NOT NULL,
  status       TEXT NOT NULL,
  current_step INTEGER NOT NULL DEFAULT 0,
  result       TEXT NOT NULL DEFAULT '',
  error        TEXT NOT NULL DEFAULT '',
  created_at   INTEGER NOT NULL,
  updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE TABLE IF NOT EXISTS task_steps (
  task_id     TEXT NOT NULL,
  idx         INTEGER NOT NULL,
  id          TEXT NOT NULL,
  description TEXT NOT NULL,
  status      TEXT NOT NULL,
  result      TEXT NOT NULL DEFAULT '',
  error       TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (task_id, idx)
);`)
	if err != nil {
		return fmt.Errorf("migrate task db: %w", err)
	}
	return nil
}

// Save writes the full task state in one transaction.
func (s *Store) Save(ctx context.Context, t *types.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO tasks (id, description, status, current_step, result, error, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  status = excluded.status,
  current_step = excluded.current_step,
  result = excluded.result,
  error = excluded.error,
  updated_at = excluded.updated_at`,
		t.ID, t.Description, string(t.Status), t.CurrentStep, t.Result, t.Error,
		t.CreatedAt.Unix(), t.UpdatedAt.Unix())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("save task: %w", err)
	}
	for i, st := range t.Steps {
		_, err = tx.ExecContext(ctx, `
INSERT INTO task_steps (task_id, idx, id, description, status, result, error)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(task_id, idx) DO UPDATE SET
  status = excluded.status,
  result = excluded.result,
  error = excluded.error`,
			t.ID, i, st.ID, st.Description, string(st.Status), st.Result, st.Error)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("save task step: %w", err)
		}
	}
	return tx.Commit()
}

// Load reads one task with its steps in index order.
func (s *Store) Load(ctx context.Context, id string) (*types.Task, error) {
	t := &types.Task{ID: id}
	var status string
	var created, updated int64
	err := s.db.QueryRowContext(ctx, `
SELECT description, status, current_step, result, error, created_at, updated_at
FROM tasks WHERE id = ?`, id).
		Scan(&t.Description, &status, &t.CurrentStep, &t.Result, &t.Error, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, &notFoundError{id: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	t.Status = types.TaskStatus(status)
	t.CreatedAt = time.Unix(created, 0)
	t.UpdatedAt = time.Unix(updated, 0)

	rows, err := s.db.QueryContext(ctx, `
SELECT id, description, status, result, error
FROM task_steps WHERE task_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("load task steps: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st types.Step
		var ss string
		if err := rows.Scan(&st.ID, &st.Description, &ss, &st.Result, &st.Error); err != nil {
			return nil, fmt.Errorf("scan task step: %w", err)
		}
		st.Status = types.StepStatus(ss)
		t.Steps = append(t.Steps, st)
	}
	return t, rows.Err()
}

// List returns tasks newest first, without their steps.
func (s *Store) List(ctx context.Context, limit int) ([]types.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, description, status, current_step, result, error, created_at, updated_at
FROM tasks ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	var out []types.Task
	for rows.Next() {
		var t types.Task
		var status string
		var created, updated int64
		if err := rows.Scan(&t.ID, &t.Description, &status, &t.CurrentStep, &t.Result, &t.Error, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Status = types.TaskStatus(status)
		t.CreatedAt = time.Unix(created, 0)
		t.UpdatedAt = time.Unix(updated, 0)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Interrupted returns ids of tasks left in the running state, as after an
// unclean shutdown. Callers demote them to paused so they become resumable.
func (s *Store) Interrupted(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM tasks WHERE status = ?`, string(types.TaskRunning))
	if err != nil {
		return nil, fmt.Errorf("scan interrupted tasks: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan interrupted tasks: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IntegrityCheck runs a quick consistency check, for the store probe.
func (s *Store) IntegrityCheck() error {
	var res string
	if err := s.db.QueryRow(`PRAGMA quick_check`).Scan(&res); err != nil {
		return fmt.Errorf("task db quick_check: %w", err)
	}
	if res != "ok" {
		return fmt.Errorf("task db quick_check: %s", res)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
