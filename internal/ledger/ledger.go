// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records batch runs and their per-item outcomes in a
// SQLite database so past retrievals can be audited and re-driven.
// Implements: prd006-ledger (R1-R3); docs/ARCHITECTURE § Ledger.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// Ledger owns the retrieval history database.
type Ledger struct {
	db *sql.DB
}

// Open opens or creates the ledger database at path, creating the schema
// when missing. WAL keeps concurrent batch workers from serializing on
// the writer; the busy timeout covers the brief writer handoffs.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			total INTEGER NOT NULL DEFAULT 0,
			succeeded INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			not_found INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			run_id TEXT NOT NULL REFERENCES runs(id),
			position INTEGER NOT NULL,
			identifier TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			pdf_path TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(status)`,
	}

	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Run is one batch being recorded. It satisfies resolver.Recorder so the
// batch coordinator can stream outcomes into it as they finish.
type Run struct {
	ID string

	ledger  *Ledger
	started time.Time
}

// BeginRun inserts a new run row and returns its handle (R2.1).
func (l *Ledger) BeginRun(ctx context.Context) (*Run, error) {
	run := &Run{
		ID:      uuid.NewString(),
		ledger:  l,
		started: time.Now().UTC(),
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`,
		run.ID, run.started.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}
	return run, nil
}

// RecordOutcome upserts the outcome at its input position (R2.2). Replays
// of the same position overwrite rather than duplicate.
func (r *Run) RecordOutcome(ctx context.Context, position int, outcome types.RetrievalOutcome) error {
	_, err := r.ledger.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO outcomes (run_id, position, identifier, kind, status, source, pdf_path, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, position,
		outcome.Identifier.Original, string(outcome.Identifier.Kind),
		string(outcome.Status), outcome.Source, outcome.PDFPath, outcome.Err,
	)
	if err != nil {
		return fmt.Errorf("recording outcome: %w", err)
	}
	return nil
}

// Finish stamps the run with its completion time and final tallies (R2.3).
func (r *Run) Finish(ctx context.Context, report types.BatchReport) error {
	_, err := r.ledger.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, total = ?, succeeded = ?, skipped = ?, not_found = ?, failed = ?
		 WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		report.Total, report.Succeeded, report.Skipped, report.NotFound, report.Failed,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero when the run never finished
	Total      int
	Succeeded  int
	Skipped    int
	NotFound   int
	Failed     int
}

// RecentRuns returns up to limit runs, newest first (R3.1). Runs are
// never re-inserted, so insert order is recency.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, total, succeeded, skipped, not_found, failed
		 FROM runs ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var rs RunSummary
		var started string
		var finished sql.NullString
		if err := rows.Scan(&rs.ID, &started, &finished,
			&rs.Total, &rs.Succeeded, &rs.Skipped, &rs.NotFound, &rs.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			rs.StartedAt = t
		}
		if finished.Valid {
			if t, err := time.Parse(time.RFC3339Nano, finished.String); err == nil {
				rs.FinishedAt = t
			}
		}
		runs = append(runs, rs)
	}
	return runs, rows.Err()
}

// OutcomeRow is one recorded outcome.
type OutcomeRow struct {
	Position   int
	Identifier string
	Kind       string
	Status     string
	Source     string
	PDFPath    string
	Error      string
}

// RunOutcomes returns a run's outcomes in input order (R3.2).
func (l *Ledger) RunOutcomes(ctx context.Context, runID string) ([]OutcomeRow, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT position, identifier, kind, status, source, pdf_path, error
		 FROM outcomes WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []OutcomeRow
	for rows.Next() {
		var o OutcomeRow
		if err := rows.Scan(&o.Position, &o.Identifier, &o.Kind, &o.Status,
			&o.Source, &o.PDFPath, &o.Error); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
