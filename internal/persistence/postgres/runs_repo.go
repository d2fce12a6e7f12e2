package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/topsisrun/internal/persistence"
)

// Schema creates the runs table. Weights, criteria and results are JSONB.
const Schema = `
CREATE TABLE IF NOT EXISTS topsis_runs (
	id           UUID PRIMARY KEY,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	source       TEXT NOT NULL,
	criteria     JSONB NOT NULL,
	weights      JSONB NOT NULL,
	impacts      TEXT NOT NULL,
	policy       TEXT NOT NULL,
	alternatives INTEGER NOT NULL CHECK (alternatives > 0),
	results      JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS topsis_runs_created_at_idx ON topsis_runs (created_at DESC);`

const selectColumns = `id, created_at, source, criteria, weights, impacts, policy, alternatives, results`

// runsRepo implements persistence.RunStore for PostgreSQL
type runsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunsRepo creates a new PostgreSQL run repository
func NewRunsRepo(db *sqlx.DB, timeout time.Duration) persistence.RunStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &runsRepo{
		db:      db,
		timeout: timeout,
	}
}

// Migrate applies Schema
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Save inserts a run
func (r *runsRepo) Save(ctx context.Context, run persistence.Run) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.Alternatives <= 0 {
		return fmt.Errorf("invalid alternatives count: %d", run.Alternatives)
	}

	criteriaJSON, err := json.Marshal(run.Criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria: %w", err)
	}
	weightsJSON, err := json.Marshal(run.Weights)
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}
	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	query := `
		INSERT INTO topsis_runs
		(id, created_at, source, criteria, weights, impacts, policy, alternatives, results)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.ExecContext(ctx, query,
		run.ID, run.CreatedAt, run.Source, criteriaJSON, weightsJSON,
		run.Impacts, run.Policy, run.Alternatives, resultsJSON)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Get retrieves a run by id
func (r *runsRepo) Get(ctx context.Context, id string) (*persistence.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `SELECT ` + selectColumns + ` FROM topsis_runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowxContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// List returns the newest runs first
func (r *runsRepo) List(ctx context.Context, limit int) ([]persistence.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + selectColumns + ` FROM topsis_runs ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []persistence.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*persistence.Run, error) {
	var run persistence.Run
	var criteriaJSON, weightsJSON, resultsJSON []byte

	err := s.Scan(&run.ID, &run.CreatedAt, &run.Source, &criteriaJSON, &weightsJSON,
		&run.Impacts, &run.Policy, &run.Alternatives, &resultsJSON)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(criteriaJSON, &run.Criteria); err != nil {
		return nil, fmt.Errorf("failed to unmarshal criteria: %w", err)
	}
	if err := json.Unmarshal(weightsJSON, &run.Weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	if err := json.Unmarshal(resultsJSON, &run.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results: %w", err)
	}
	return &run, nil
}
