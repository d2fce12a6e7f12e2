package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/sawpanic/topsisrun/internal/atomicio"
	"github.com/sawpanic/topsisrun/internal/topsis"
)

// Format controls how the appended result columns are rendered.
type Format struct {
	// Precision is the number of decimals for scores; negative means the
	// shortest representation that round-trips.
	Precision   int
	ScoreColumn string
	RankColumn  string
}

// DefaultFormat appends "Topsis Score" and "Rank" with scores in their
// shortest exact form.
func DefaultFormat() Format {
	return Format{Precision: -1, ScoreColumn: "Topsis Score", RankColumn: "Rank"}
}

// Encode writes the table with score and rank columns appended, in input
// row order.
func Encode(w io.Writer, t *Table, res *topsis.Result, f Format) error {
	if len(res.Scores) != t.Rows() || len(res.Ranks) != t.Rows() {
		return fmt.Errorf("result has %d scores for %d rows", len(res.Scores), t.Rows())
	}

	cw := csv.NewWriter(w)
	header := append(append([]string(nil), t.Headers...), f.ScoreColumn, f.RankColumn)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i, label := range t.Labels {
		record := make([]string, 0, len(header))
		record = append(record, label)
		record = append(record, t.Raw[i]...)
		record = append(record, FormatScore(res.Scores[i], f.Precision), strconv.Itoa(res.Ranks[i]))
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Save writes the scored table to path atomically; a failed save leaves no
// output file behind.
func Save(path string, t *Table, res *topsis.Result, f Format) error {
	return atomicio.WriteAtomic(path, func(w io.Writer) error {
		return Encode(w, t, res, f)
	})
}

// Stage writes the result table to a temp file beside path and leaves the
// rename to the caller.
func Stage(path string, t *Table, res *topsis.Result, f Format) (*atomicio.Pending, error) {
	return atomicio.Stage(path, func(w io.Writer) error {
		return Encode(w, t, res, f)
	})
}

// FormatScore renders a score with a fixed number of decimals, or the
// shortest round-trip form when precision is negative.
func FormatScore(v float64, precision int) string {
	if precision < 0 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}
