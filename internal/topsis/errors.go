package topsis

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for every input failure mode. ValidationError and
// DegenerateInputError match them via errors.Is.
var (
	ErrFileNotFound     = errors.New("topsis: input file not found")
	ErrUnreadable       = errors.New("topsis: input is not a readable table")
	ErrTooFewColumns    = errors.New("topsis: fewer than three columns")
	ErrNonNumeric       = errors.New("topsis: non-numeric criteria value")
	ErrNoRows           = errors.New("topsis: table has no data rows")
	ErrEmptyList        = errors.New("topsis: empty weight or impact list")
	ErrCountMismatch    = errors.New("topsis: weights, impacts and criteria count mismatch")
	ErrWeightNotNumeric = errors.New("topsis: non-numeric weight")
	ErrBadImpact        = errors.New("topsis: impact is not + or -")
	ErrDegenerate       = errors.New("topsis: degenerate input")
)

// Kind identifies a validation failure.
type Kind string

const (
	KindFileNotFound     Kind = "file_not_found"
	KindUnreadable       Kind = "unreadable"
	KindTooFewColumns    Kind = "too_few_columns"
	KindNonNumeric       Kind = "non_numeric"
	KindNoRows           Kind = "no_rows"
	KindEmptyList        Kind = "empty_list"
	KindCountMismatch    Kind = "count_mismatch"
	KindWeightNotNumeric Kind = "weight_not_numeric"
	KindBadImpact        Kind = "bad_impact"
)

var kinds = map[Kind]struct {
	sentinel error
	message  string
}{
	KindFileNotFound:     {ErrFileNotFound, "File not found."},
	KindUnreadable:       {ErrUnreadable, "Unable to read the input file."},
	KindTooFewColumns:    {ErrTooFewColumns, "Input file must contain three or more columns."},
	KindNonNumeric:       {ErrNonNumeric, "From 2nd to last columns must contain numeric values only."},
	KindNoRows:           {ErrNoRows, "Input file must contain at least one data row."},
	KindEmptyList:        {ErrEmptyList, "Impacts and weights must be separated by ',' (comma)."},
	KindCountMismatch:    {ErrCountMismatch, "Number of weights, impacts and criteria columns must be same."},
	KindWeightNotNumeric: {ErrWeightNotNumeric, "Weights must be numeric."},
	KindBadImpact:        {ErrBadImpact, "Impacts must be either '+' or '-'."},
}

// ValidationError reports the first input check that failed. Error returns
// the fixed user-facing diagnostic for the kind; Detail locates the offending
// value for logs.
type ValidationError struct {
	Kind   Kind
	Detail string
	Err    error
}

// NewValidationError builds a ValidationError of the given kind.
func NewValidationError(kind Kind, detail string, cause error) *ValidationError {
	return &ValidationError{Kind: kind, Detail: detail, Err: cause}
}

func (e *ValidationError) Error() string {
	if k, ok := kinds[e.Kind]; ok {
		return k.message
	}
	return string(e.Kind)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is matches the sentinel that belongs to the error's kind.
func (e *ValidationError) Is(target error) bool {
	k, ok := kinds[e.Kind]
	return ok && target == k.sentinel
}

// DegenerateInputError is returned under PolicyStrict when the criteria
// matrix cannot produce a finite score for every row. Columns and Rows are
// zero-based indices into the criteria matrix.
type DegenerateInputError struct {
	Columns []int
	Rows    []int
}

func (e *DegenerateInputError) Error() string {
	var parts []string
	if len(e.Columns) > 0 {
		parts = append(parts, "criteria column(s) "+joinPositions(e.Columns)+" contain only zeros")
	}
	if len(e.Rows) > 0 {
		parts = append(parts, "row(s) "+joinPositions(e.Rows)+" coincide with both ideal points")
	}
	if len(parts) == 0 {
		return "Degenerate input."
	}
	return "Degenerate input: " + strings.Join(parts, "; ") + "."
}

func (e *DegenerateInputError) Is(target error) bool { return target == ErrDegenerate }

// joinPositions renders zero-based indices as one-based positions.
func joinPositions(idx []int) string {
	s := make([]string, len(idx))
	for i, v := range idx {
		s[i] = fmt.Sprintf("%d", v+1)
	}
	return strings.Join(s, ", ")
}

// KindOf returns the validation kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind, true
	}
	return "", false
}
