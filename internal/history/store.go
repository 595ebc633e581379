package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"picshrink/internal/pipeline"
)

// Run is one workflow invocation over a candidate set.
type Run struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   time.Time
	Root         string
	TargetFormat string
	Quality      int
	Candidates   int
	Converted    int
	Preserved    int
	Skipped      int
	Aborted      int
	Failed       int
	BytesSaved   int64
}

// ArchiveResult is one archive's outcome within a run.
type ArchiveResult struct {
	RunID        int64
	Archive      string
	Outcome      string
	Reason       string
	OriginalSize int64
	NewSize      int64
	Ratio        float64
	ElapsedMS    int64
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	root TEXT NOT NULL,
	target_format TEXT NOT NULL,
	quality INTEGER NOT NULL,
	candidates INTEGER NOT NULL,
	converted INTEGER NOT NULL,
	preserved INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	aborted INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	bytes_saved INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS archive_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL REFERENCES runs(id),
	archive TEXT NOT NULL,
	outcome TEXT NOT NULL,
	reason TEXT NOT NULL,
	original_size INTEGER NOT NULL,
	new_size INTEGER NOT NULL,
	ratio REAL NOT NULL,
	elapsed_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_archive_results_run ON archive_results(run_id);
`

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// One writer at a time keeps sqlite happy under concurrency.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts a completed run and returns its id.
func (s *Store) RecordRun(ctx context.Context, run Run) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (started_at, finished_at, root, target_format, quality,
			candidates, converted, preserved, skipped, aborted, failed, bytes_saved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(time.RFC3339), run.FinishedAt.UTC().Format(time.RFC3339),
		run.Root, run.TargetFormat, run.Quality,
		run.Candidates, run.Converted, run.Preserved, run.Skipped, run.Aborted, run.Failed,
		run.BytesSaved)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}
	return id, nil
}

// RecordArchive inserts one archive outcome under a run.
func (s *Store) RecordArchive(ctx context.Context, runID int64, res pipeline.Result) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO archive_results (run_id, archive, outcome, reason,
			original_size, new_size, ratio, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, res.Archive, string(res.Outcome), res.Reason,
		res.OriginalSize, res.NewSize, res.Ratio, res.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert archive result: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, root, target_format, quality,
			candidates, converted, preserved, skipped, aborted, failed, bytes_saved
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished string
		if err := rows.Scan(&run.ID, &started, &finished, &run.Root, &run.TargetFormat,
			&run.Quality, &run.Candidates, &run.Converted, &run.Preserved,
			&run.Skipped, &run.Aborted, &run.Failed, &run.BytesSaved); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, started)
		run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListArchives returns the archive outcomes of a run in insertion order.
func (s *Store) ListArchives(ctx context.Context, runID int64) ([]ArchiveResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, archive, outcome, reason, original_size, new_size, ratio, elapsed_ms
		FROM archive_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query archive results: %w", err)
	}
	defer rows.Close()

	var results []ArchiveResult
	for rows.Next() {
		var r ArchiveResult
		if err := rows.Scan(&r.RunID, &r.Archive, &r.Outcome, &r.Reason,
			&r.OriginalSize, &r.NewSize, &r.Ratio, &r.ElapsedMS); err != nil {
			return nil, fmt.Errorf("scan archive result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
