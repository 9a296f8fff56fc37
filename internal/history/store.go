// Package history persists a record of every orchestrator run in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run summarizes one orchestrator run.
type Run struct {
	ID           string
	Owner        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Outcome      string
	Success      int
	Failure      int
	ManifestHash string
	Error        string
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// RepositoryResult is the final state of one repository within a run.
type RepositoryResult struct {
	Repository string
	Slug       string
	State      string
	Duration   time.Duration
	Error      string
}

// SQLiteStore stores runs and per-repository results.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if needed) the history database at path.
// Use ":memory:" for an in-memory database.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serializes writers
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		success INTEGER NOT NULL,
		failure INTEGER NOT NULL,
		manifest_hash TEXT,
		error TEXT
	);
	CREATE TABLE IF NOT EXISTS repository_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		repository TEXT NOT NULL,
		slug TEXT NOT NULL,
		state TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_results_run ON repository_results(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores a run and its repository results in one transaction.
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run, results []RepositoryResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, owner, started_at, finished_at, outcome, success, failure, manifest_hash, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Owner, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		run.Outcome, run.Success, run.Failure, run.ManifestHash, run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for i, r := range results {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO repository_results (run_id, position, repository, slug, state, duration_ms, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, r.Repository, r.Slug, r.State, r.Duration.Milliseconds(), r.Error,
		)
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, started_at, finished_at, outcome, success, failure,
		        COALESCE(manifest_hash, ''), COALESCE(error, '')
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Owner, &started, &finished, &r.Outcome, &r.Success, &r.Failure, &r.ManifestHash, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.FinishedAt = time.UnixMilli(finished)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// Results returns the repository results of a run in listing order.
func (s *SQLiteStore) Results(ctx context.Context, runID string) ([]RepositoryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT repository, slug, state, duration_ms, COALESCE(error, '')
		 FROM repository_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []RepositoryResult
	for rows.Next() {
		var r RepositoryResult
		var ms int64
		if err := rows.Scan(&r.Repository, &r.Slug, &r.State, &ms, &r.Error); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
