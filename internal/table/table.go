// Package table holds the label + numeric criteria record set that TOPSIS
// runs over, and reads and writes it as CSV.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/sawpanic/topsisrun/internal/topsis"
)

const utf8BOM = "\ufeff"

// Table is a rectangular record set: a label column followed by at least two
// numeric criteria columns. Raw keeps the criteria cells as read so output can
// reproduce them verbatim.
type Table struct {
	Headers []string
	Labels  []string
	Raw     [][]string
	Matrix  *mat.Dense
}

// Rows returns the number of alternatives.
func (t *Table) Rows() int { return len(t.Labels) }

// Criteria returns the number of criteria columns.
func (t *Table) Criteria() int { return len(t.Headers) - 1 }

// CriteriaNames returns the criteria headers, excluding the label header.
func (t *Table) CriteriaNames() []string { return t.Headers[1:] }

// Load reads a CSV table from path.
func Load(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, topsis.NewValidationError(topsis.KindFileNotFound, path, err)
		}
		return nil, topsis.NewValidationError(topsis.KindUnreadable, path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, topsis.NewValidationError(topsis.KindUnreadable, path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a CSV table from r. The first record is the header row.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, topsis.NewValidationError(topsis.KindUnreadable, "csv", err)
	}
	return FromRecords(records)
}

// FromRecords builds a Table from a header record followed by data records.
// Checks run in order: non-empty and rectangular, at least three columns,
// every criteria cell numeric and finite, at least one data row.
func FromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, topsis.NewValidationError(topsis.KindUnreadable, "no header row", nil)
	}

	headers := append([]string(nil), records[0]...)
	headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	width := len(headers)
	for i, rec := range records[1:] {
		if len(rec) != width {
			detail := fmt.Sprintf("row %d has %d fields, header has %d", i+1, len(rec), width)
			return nil, topsis.NewValidationError(topsis.KindUnreadable, detail, nil)
		}
	}

	if width < 3 {
		return nil, topsis.NewValidationError(topsis.KindTooFewColumns, fmt.Sprintf("%d columns", width), nil)
	}

	rows := records[1:]
	m := width - 1
	t := &Table{
		Headers: headers,
		Labels:  make([]string, len(rows)),
		Raw:     make([][]string, len(rows)),
	}
	data := make([]float64, 0, len(rows)*m)
	for i, rec := range rows {
		t.Labels[i] = rec[0]
		t.Raw[i] = append([]string(nil), rec[1:]...)
		for j, cell := range rec[1:] {
			v, err := parseCell(cell)
			if err != nil {
				detail := fmt.Sprintf("row %d, column %q: %q", i+1, headers[j+1], cell)
				return nil, topsis.NewValidationError(topsis.KindNonNumeric, detail, err)
			}
			data = append(data, v)
		}
	}

	if len(rows) == 0 {
		return nil, topsis.NewValidationError(topsis.KindNoRows, "", nil)
	}

	t.Matrix = mat.NewDense(len(rows), m, data)
	return t, nil
}

// parseCell accepts integers and floats with surrounding blanks. Empty cells,
// NaN and infinities are rejected.
func parseCell(cell string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", cell)
	}
	return v, nil
}
