package handlers

import (
	"time"

	"github.com/sawpanic/topsisrun/internal/persistence"
)

// RankRequest is the JSON body of POST /rank. Weights and impacts use the
// same comma-separated form as the command line.
type RankRequest struct {
	Headers []string  `json:"headers"`
	Rows    []RankRow `json:"rows"`
	Weights string    `json:"weights"`
	Impacts string    `json:"impacts"`
}

// RankRow is one alternative in a RankRequest
type RankRow struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// ErrorResponse is returned for every non-2xx status
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Uptime    string                  `json:"uptime"`
	Cache     bool                    `json:"cache"`
	Database  persistence.HealthCheck `json:"database"`
}

// RunsResponse is the body of GET /runs
type RunsResponse struct {
	Count int               `json:"count"`
	Runs  []persistence.Run `json:"runs"`
}
