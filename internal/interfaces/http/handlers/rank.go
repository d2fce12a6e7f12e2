package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/topsisrun/internal/table"
	"github.com/sawpanic/topsisrun/internal/topsis"
)

// Rank handles POST /rank. A text/csv body is ranked with the weights and
// impacts query parameters and answered as CSV; anything else is decoded
// as a RankRequest and answered with a JSON report.
func (h *Handlers) Rank(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/csv" {
		h.rankCSV(w, r)
		return
	}

	var req RankRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeBodyError(w, r, err)
		return
	}

	t, err := table.FromRecords(req.records())
	if err != nil {
		h.writeRankError(w, r, err)
		return
	}

	out, err := h.ranker.RankTable(r.Context(), t, req.Weights, req.Impacts)
	if err != nil {
		h.writeRankError(w, r, err)
		return
	}

	w.Header().Set("X-Run-ID", out.RunID)
	h.writeJSON(w, http.StatusOK, out.Report())
}

func (h *Handlers) rankCSV(w http.ResponseWriter, r *http.Request) {
	t, err := table.Parse(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeBodyError(w, r, err)
			return
		}
		h.writeRankError(w, r, err)
		return
	}

	q := r.URL.Query()
	out, err := h.ranker.RankTable(r.Context(), t, q.Get("weights"), q.Get("impacts"))
	if err != nil {
		h.writeRankError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("X-Run-ID", out.RunID)
	w.WriteHeader(http.StatusOK)
	if err := table.Encode(w, t, out.Result, h.format); err != nil {
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("Failed to write CSV response")
	}
}

// records renders the request as CSV records so that it goes through the
// same table checks as a file.
func (req RankRequest) records() [][]string {
	if len(req.Headers) == 0 {
		return nil
	}
	records := make([][]string, 0, len(req.Rows)+1)
	records = append(records, req.Headers)
	for _, row := range req.Rows {
		rec := make([]string, 0, len(row.Values)+1)
		rec = append(rec, row.Label)
		for _, v := range row.Values {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		records = append(records, rec)
	}
	return records
}

func (h *Handlers) writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.writeError(w, r, http.StatusRequestEntityTooLarge, "body_too_large",
			"Request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
		return
	}
	h.writeError(w, r, http.StatusBadRequest, "bad_request", "Invalid JSON body: "+err.Error())
}

func (h *Handlers) writeRankError(w http.ResponseWriter, r *http.Request, err error) {
	if kind, ok := topsis.KindOf(err); ok {
		h.writeError(w, r, http.StatusUnprocessableEntity, string(kind), err.Error())
		return
	}
	if errors.Is(err, topsis.ErrDegenerate) {
		h.writeError(w, r, http.StatusUnprocessableEntity, "degenerate", err.Error())
		return
	}

	log.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("Ranking failed")
	h.writeError(w, r, http.StatusInternalServerError, "internal", "Ranking failed")
}
