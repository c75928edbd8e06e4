// Package storage records update run history in SQLite. Device
// descriptors themselves are never persisted; only the terminal outcome
// of each device pipeline is kept for later inspection.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/sedrubal/brother-printer-fwupd/models"
)

// HistoryStore persists update runs and their per-device outcomes.
type HistoryStore struct {
	db *sql.DB
}

// RunRecord is one stored run with its outcomes.
type RunRecord struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Outcomes []OutcomeRecord
}

// OutcomeRecord is one stored per-device outcome.
type OutcomeRecord struct {
	Address  string
	Model    string
	State    string
	Reason   string
	Uploaded string
	Finished time.Time
}

// NewHistoryStore opens (and if needed creates) the history database.
// An empty path uses an in-memory database, which tests rely on.
func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragma: %w", err)
		}
	}

	store := &HistoryStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *HistoryStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS outcomes (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			address TEXT NOT NULL,
			model TEXT,
			state TEXT NOT NULL,
			reason TEXT,
			uploaded TEXT,
			finished_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// RecordRun stores one completed run and all its outcomes, returning the
// generated run ID.
func (s *HistoryStore) RecordRun(ctx context.Context, started time.Time, outcomes []models.Outcome) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at) VALUES (?, ?, ?)`,
		runID, started.UTC(), time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, o := range outcomes {
		uploaded := ""
		for i, p := range o.Uploaded {
			if i > 0 {
				uploaded += ","
			}
			uploaded += p.String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO outcomes (run_id, address, model, state, reason, uploaded, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, o.Device.Address, o.Model, string(o.State), o.Reason, uploaded, o.Finished.UTC(),
		); err != nil {
			return "", fmt.Errorf("failed to insert outcome: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// LastRuns returns the most recent runs, newest first, with outcomes.
func (s *HistoryStore) LastRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(&run.ID, &run.Started, &run.Finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		outcomes, err := s.runOutcomes(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Outcomes = outcomes
	}
	return runs, nil
}

func (s *HistoryStore) runOutcomes(ctx context.Context, runID string) ([]OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT address, model, state, reason, uploaded, finished_at
		 FROM outcomes WHERE run_id = ? ORDER BY address`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []OutcomeRecord
	for rows.Next() {
		var o OutcomeRecord
		if err := rows.Scan(&o.Address, &o.Model, &o.State, &o.Reason, &o.Uploaded, &o.Finished); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
