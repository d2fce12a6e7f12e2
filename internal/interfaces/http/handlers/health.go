package handlers

import (
	"net/http"
	"time"

	"github.com/sawpanic/topsisrun/internal/persistence"
)

// Health handles GET /health. An unreachable database answers 503.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Cache:     h.cacheOn,
		Database: persistence.HealthCheck{
			Healthy:   true,
			Errors:    []string{"Database persistence disabled"},
			LastCheck: time.Now(),
		},
	}
	if h.health != nil {
		resp.Database = h.health.Health(r.Context())
	}

	status := http.StatusOK
	if !resp.Database.Healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, resp)
}
