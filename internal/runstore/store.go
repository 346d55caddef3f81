// Package runstore persists a history of completed conversion runs and their
// per-unit manifests in a local SQLite database.
//
// The store is optional: when no path is configured the pipeline runs
// without history and the caller simply skips construction. Nothing in the
// conversion path depends on the store succeeding — recording failures are
// logged and swallowed by the caller.
package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/voxdoc/voxdoc/internal/pipeline"
)

// Run is one recorded document conversion.
type Run struct {
	ID         string
	Document   string
	Status     string
	Units      int
	DurationMs int64
	CreatedAt  time.Time
}

// UnitRecord is the stored manifest entry for one unit of a run.
type UnitRecord struct {
	RunID           string
	Index           int
	CleaningStatus  string
	CleaningError   string
	SynthesisStatus string
	SynthesisError  string
}

// Store wraps a SQLite-backed run history.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

// Open initialises the run store at path, creating the database file and
// schema as needed. logger may be nil, in which case the default slog logger
// is used.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, log: logger, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	document    TEXT NOT NULL,
	status      TEXT NOT NULL,
	units       INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS run_units (
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	idx              INTEGER NOT NULL,
	cleaning_status  TEXT NOT NULL,
	cleaning_error   TEXT NOT NULL DEFAULT '',
	synthesis_status TEXT NOT NULL,
	synthesis_error  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, idx)
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// RecordRun persists one completed (or failed) run and its manifest inside a
// single transaction and returns the generated run ID.
func (s *Store) RecordRun(ctx context.Context, document, status string, manifest pipeline.Manifest, elapsed time.Duration) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, document, status, units, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, document, status, len(manifest), elapsed.Milliseconds(), s.clock().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, entry := range manifest {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_units (run_id, idx, cleaning_status, cleaning_error, synthesis_status, synthesis_error)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id, entry.Index, string(entry.CleaningStatus), entry.CleaningError,
			string(entry.SynthesisStatus), entry.SynthesisError,
		)
		if err != nil {
			return "", fmt.Errorf("insert unit %d: %w", entry.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, status, units, duration_ms, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Document, &r.Status, &r.Units, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Units returns the stored manifest entries for one run in sequence order.
func (s *Store) Units(ctx context.Context, runID string) ([]UnitRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, idx, cleaning_status, cleaning_error, synthesis_status, synthesis_error
		 FROM run_units WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var units []UnitRecord
	for rows.Next() {
		var u UnitRecord
		if err := rows.Scan(&u.RunID, &u.Index, &u.CleaningStatus, &u.CleaningError, &u.SynthesisStatus, &u.SynthesisError); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
