package topsis

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DegeneratePolicy decides what happens when a column norm or a row's total
// distance is zero.
type DegeneratePolicy string

const (
	// PolicyStrict rejects degenerate input with a DegenerateInputError.
	PolicyStrict DegeneratePolicy = "strict"
	// PolicyFallback zeroes all-zero columns and scores rows that sit on both
	// ideal points at FallbackScore.
	PolicyFallback DegeneratePolicy = "fallback"
)

// FallbackScore is assigned under PolicyFallback when distBest+distWorst == 0.
const FallbackScore = 0.5

// ParsePolicy maps a config or flag value to a DegeneratePolicy.
func ParsePolicy(s string) (DegeneratePolicy, error) {
	switch DegeneratePolicy(s) {
	case PolicyStrict, PolicyFallback:
		return DegeneratePolicy(s), nil
	case "":
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("unknown degenerate policy %q (want strict|fallback)", s)
}

// Result holds the per-row outputs of a scoring pass, in input row order,
// together with the intermediate vectors for explanation.
type Result struct {
	Scores     []float64 `json:"scores"`
	Ranks      []int     `json:"ranks"`
	DistBest   []float64 `json:"dist_best"`
	DistWorst  []float64 `json:"dist_worst"`
	IdealBest  []float64 `json:"ideal_best"`
	IdealWorst []float64 `json:"ideal_worst"`
	Norms      []float64 `json:"norms"`
}

// Scorer computes TOPSIS closeness scores. It holds no state between calls
// and is safe for concurrent use.
type Scorer struct {
	policy DegeneratePolicy
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithPolicy sets the degenerate-input policy.
func WithPolicy(p DegeneratePolicy) Option {
	return func(s *Scorer) { s.policy = p }
}

// NewScorer returns a Scorer using PolicyStrict unless overridden.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{policy: PolicyStrict}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy reports the configured degenerate-input policy.
func (s *Scorer) Policy() DegeneratePolicy { return s.policy }

// Score runs normalization, weighting, ideal-point selection, distance and
// closeness over the n×m criteria matrix c. The input matrix is not modified.
func (s *Scorer) Score(c mat.Matrix, weights []float64, impacts []Impact) (*Result, error) {
	n, m := c.Dims()
	if n == 0 {
		return nil, NewValidationError(KindNoRows, "", nil)
	}
	if m == 0 {
		return nil, NewValidationError(KindTooFewColumns, "no criteria columns", nil)
	}
	if len(weights) != m || len(impacts) != m {
		detail := fmt.Sprintf("%d weights, %d impacts, %d criteria columns", len(weights), len(impacts), m)
		return nil, NewValidationError(KindCountMismatch, detail, nil)
	}

	res := &Result{
		Scores:     make([]float64, n),
		DistBest:   make([]float64, n),
		DistWorst:  make([]float64, n),
		IdealBest:  make([]float64, m),
		IdealWorst: make([]float64, m),
		Norms:      make([]float64, m),
	}

	// V = (C / ‖C_j‖) · w_j, built column by column
	v := mat.NewDense(n, m, nil)
	col := make([]float64, n)
	var zeroCols []int
	for j := 0; j < m; j++ {
		mat.Col(col, j, c)
		norm := floats.Norm(col, 2)
		res.Norms[j] = norm
		if norm == 0 {
			zeroCols = append(zeroCols, j)
			continue
		}
		floats.Scale(weights[j]/norm, col)
		v.SetCol(j, col)

		hi, lo := floats.Max(col), floats.Min(col)
		if impacts[j] == Minimize {
			hi, lo = lo, hi
		}
		res.IdealBest[j], res.IdealWorst[j] = hi, lo
	}
	if len(zeroCols) > 0 && s.policy == PolicyStrict {
		return nil, &DegenerateInputError{Columns: zeroCols}
	}

	row := make([]float64, m)
	var flatRows []int
	for i := 0; i < n; i++ {
		mat.Row(row, i, v)
		dBest := floats.Distance(row, res.IdealBest, 2)
		dWorst := floats.Distance(row, res.IdealWorst, 2)
		res.DistBest[i], res.DistWorst[i] = dBest, dWorst

		total := dBest + dWorst
		if total == 0 {
			flatRows = append(flatRows, i)
			res.Scores[i] = FallbackScore
			continue
		}
		res.Scores[i] = dWorst / total
	}
	if len(flatRows) > 0 && s.policy == PolicyStrict {
		return nil, &DegenerateInputError{Rows: flatRows}
	}

	res.Ranks = Rank(res.Scores)
	return res, nil
}

// Rank assigns 1 to the highest score. Rows with equal scores all take the
// largest ordinal position of their group, so two rows tied for first both
// get rank 2. The returned slice is in input order.
func Rank(scores []float64) []int {
	n := len(scores)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	ranks := make([]int, n)
	for start := 0; start < n; {
		end := start
		for end+1 < n && scores[order[end+1]] == scores[order[start]] {
			end++
		}
		for k := start; k <= end; k++ {
			ranks[order[k]] = end + 1
		}
		start = end + 1
	}
	return ranks
}
