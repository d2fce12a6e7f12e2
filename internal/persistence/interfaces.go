package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by RunStore.Get when no run has the given id.
var ErrNotFound = errors.New("persistence: run not found")

// RunResult is one ranked alternative of a stored run
type RunResult struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// Run is an archived ranking: the request parameters and the per-row
// outcome in input order.
type Run struct {
	ID           string      `json:"id" db:"id"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	Source       string      `json:"source" db:"source"` // input path, or "http"
	Criteria     []string    `json:"criteria" db:"criteria"`
	Weights      []float64   `json:"weights" db:"weights"`
	Impacts      string      `json:"impacts" db:"impacts"` // e.g. "+,+,-"
	Policy       string      `json:"policy" db:"policy"`
	Alternatives int         `json:"alternatives" db:"alternatives"`
	Results      []RunResult `json:"results" db:"results"`
}

// Best returns the top-ranked results; more than one on a tie.
func (r Run) Best() []RunResult {
	top := 0
	for _, res := range r.Results {
		if top == 0 || res.Rank < top {
			top = res.Rank
		}
	}
	var best []RunResult
	for _, res := range r.Results {
		if res.Rank == top {
			best = append(best, res)
		}
	}
	return best
}

// RunStore persists ranking runs
type RunStore interface {
	// Save stores a run; the id must be unique
	Save(ctx context.Context, run Run) error

	// Get retrieves a run by id, or ErrNotFound
	Get(ctx context.Context, id string) (*Run, error)

	// List returns the most recent runs, newest first
	List(ctx context.Context, limit int) ([]Run, error)
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for persistence layer
type RepositoryHealth interface {
	// Health returns current repository health status
	Health(ctx context.Context) HealthCheck

	// Ping tests basic connectivity to database
	Ping(ctx context.Context) error
}
