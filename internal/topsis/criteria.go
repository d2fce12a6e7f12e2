package topsis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Impact is the preferred direction of a criterion.
type Impact int

const (
	Maximize Impact = iota + 1
	Minimize
)

func (i Impact) String() string {
	switch i {
	case Maximize:
		return "+"
	case Minimize:
		return "-"
	default:
		return "?"
	}
}

// Negate flips the direction.
func (i Impact) Negate() Impact {
	if i == Maximize {
		return Minimize
	}
	return Maximize
}

// ParseImpact accepts exactly "+" or "-".
func ParseImpact(tok string) (Impact, error) {
	switch tok {
	case "+":
		return Maximize, nil
	case "-":
		return Minimize, nil
	}
	return 0, NewValidationError(KindBadImpact, fmt.Sprintf("impact %q", tok), nil)
}

// ParseCriteria validates comma-separated weight and impact lists against the
// number of criteria columns. Checks run in a fixed order and the first
// failure is returned: empty lists, count mismatch, weight syntax, impact
// symbols.
func ParseCriteria(weights, impacts string, columns int) ([]float64, []Impact, error) {
	wTokens := splitList(weights)
	iTokens := splitList(impacts)
	if len(wTokens) < 1 || len(iTokens) < 1 {
		return nil, nil, NewValidationError(KindEmptyList, "", nil)
	}

	if len(wTokens) != columns || len(iTokens) != columns {
		detail := fmt.Sprintf("%d weights, %d impacts, %d criteria columns", len(wTokens), len(iTokens), columns)
		return nil, nil, NewValidationError(KindCountMismatch, detail, nil)
	}

	w := make([]float64, columns)
	for j, tok := range wTokens {
		v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
			err = strconv.ErrSyntax
		}
		if err != nil {
			return nil, nil, NewValidationError(KindWeightNotNumeric, fmt.Sprintf("weight %d: %q", j+1, tok), err)
		}
		w[j] = v
	}

	d := make([]Impact, columns)
	for j, tok := range iTokens {
		impact, err := ParseImpact(tok)
		if err != nil {
			return nil, nil, err
		}
		d[j] = impact
	}

	return w, d, nil
}

// splitList splits on commas. A blank string yields no tokens.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// FormatImpacts renders impacts back to the CLI form, e.g. "+,+,-".
func FormatImpacts(d []Impact) string {
	s := make([]string, len(d))
	for i, v := range d {
		s[i] = v.String()
	}
	return strings.Join(s, ",")
}
