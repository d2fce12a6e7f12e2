package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/topsisrun/internal/application"
	"github.com/sawpanic/topsisrun/internal/persistence"
	"github.com/sawpanic/topsisrun/internal/table"
)

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID stores the request id on ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id stored by WithRequestID, or "unknown"
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return "unknown"
}

// Handlers manages all HTTP endpoint handlers
type Handlers struct {
	ranker  *application.Ranker
	health  persistence.RepositoryHealth
	format  table.Format
	maxBody int64
	cacheOn bool
	started time.Time
}

// Deps are the collaborators of the handlers. Health may be nil.
type Deps struct {
	Ranker       *application.Ranker
	Health       persistence.RepositoryHealth
	Format       table.Format
	MaxBodyBytes int64
	CacheEnabled bool
}

// NewHandlers creates a new handlers instance
func NewHandlers(d Deps) *Handlers {
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 8 << 20
	}
	return &Handlers{
		ranker:  d.Ranker,
		health:  d.Health,
		format:  d.Format,
		maxBody: d.MaxBodyBytes,
		cacheOn: d.CacheEnabled,
		started: time.Now(),
	}
}

// writeJSON writes JSON response with proper error handling
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes standardized error response
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     message,
		Kind:      kind,
		RequestID: RequestID(r.Context()),
	})
}

// NotFound handles 404 responses
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

// MethodNotAllowed handles 405 responses
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed",
		"Method "+r.Method+" is not allowed on "+r.URL.Path)
}
