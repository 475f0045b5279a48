// Package history records build runs in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded build run.
type Run struct {
	ID         int64
	JobID      string
	Latest     string
	Versions   []string
	Outcome    string // success|failed
	Error      string
	StartedAt  time.Time
	DurationMS int64
}

// Store persists build runs.
// Use ":memory:" for an in-memory database, or a file path for persistence.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (and initializes) the history database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		latest TEXT NOT NULL,
		versions TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends a build run.
func (s *Store) Record(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versionsJSON, err := json.Marshal(run.Versions)
	if err != nil {
		return fmt.Errorf("marshal versions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO runs (job_id, latest, versions, outcome, error, started_at, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?)",
		run.JobID, run.Latest, versionsJSON, run.Outcome, run.Error, run.StartedAt.Unix(), run.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, job_id, latest, versions, outcome, error, started_at, duration_ms FROM runs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var versionsJSON []byte
		var startedUnix int64
		if err := rows.Scan(&r.ID, &r.JobID, &r.Latest, &versionsJSON, &r.Outcome, &r.Error, &startedUnix, &r.DurationMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal(versionsJSON, &r.Versions); err != nil {
			return nil, fmt.Errorf("unmarshal versions: %w", err)
		}
		r.StartedAt = time.Unix(startedUnix, 0)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
