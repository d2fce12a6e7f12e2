package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/topsisrun/internal/persistence"
)

const maxListLimit = 100

// Run handles GET /runs/{id}
func (h *Handlers) Run(w http.ResponseWriter, r *http.Request) {
	store := h.ranker.Store()
	if store == nil {
		h.writeError(w, r, http.StatusNotFound, "history_disabled", "Run history is not enabled")
		return
	}

	id := mux.Vars(r)["id"]
	run, err := store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, run)
}

// Runs handles GET /runs?limit=N
func (h *Handlers) Runs(w http.ResponseWriter, r *http.Request) {
	store := h.ranker.Store()
	if store == nil {
		h.writeError(w, r, http.StatusNotFound, "history_disabled", "Run history is not enabled")
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxListLimit {
			h.writeError(w, r, http.StatusBadRequest, "invalid_limit",
				"limit must be an integer between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
		limit = n
	}

	runs, err := store.List(r.Context(), limit)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if runs == nil {
		runs = []persistence.Run{}
	}
	h.writeJSON(w, http.StatusOK, RunsResponse{Count: len(runs), Runs: runs})
}

func (h *Handlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "run_not_found", "Run not found")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		h.writeError(w, r, http.StatusServiceUnavailable, "history_unavailable", "Run history is temporarily unavailable")
	default:
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("Run store query failed")
		h.writeError(w, r, http.StatusInternalServerError, "internal", "Run store query failed")
	}
}
