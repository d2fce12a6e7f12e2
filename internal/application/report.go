package application

import "github.com/sawpanic/topsisrun/internal/topsis"

// Report is the JSON rendering of an Outcome, used by --explain and the
// HTTP API.
type Report struct {
	RunID      string      `json:"run_id"`
	Criteria   []string    `json:"criteria"`
	Weights    []float64   `json:"weights"`
	Impacts    string      `json:"impacts"`
	Policy     string      `json:"policy"`
	Cached     bool        `json:"cached"`
	Rows       []ReportRow `json:"rows"`
	Norms      []float64   `json:"norms"`
	IdealBest  []float64   `json:"ideal_best"`
	IdealWorst []float64   `json:"ideal_worst"`
}

// ReportRow is one alternative with its distances, score and rank.
type ReportRow struct {
	Label     string    `json:"label"`
	Values    []float64 `json:"values"`
	DistBest  float64   `json:"dist_best"`
	DistWorst float64   `json:"dist_worst"`
	Score     float64   `json:"score"`
	Rank      int       `json:"rank"`
}

// Report builds the explanation document, rows in input order.
func (o *Outcome) Report() Report {
	res := o.Result
	rep := Report{
		RunID:      o.RunID,
		Criteria:   o.Table.CriteriaNames(),
		Weights:    o.Weights,
		Impacts:    topsis.FormatImpacts(o.Impacts),
		Policy:     string(o.Policy),
		Cached:     o.Cached,
		Rows:       make([]ReportRow, o.Table.Rows()),
		Norms:      res.Norms,
		IdealBest:  res.IdealBest,
		IdealWorst: res.IdealWorst,
	}
	for i, label := range o.Table.Labels {
		values := make([]float64, o.Table.Criteria())
		copy(values, o.Table.Matrix.RawRowView(i))
		rep.Rows[i] = ReportRow{
			Label:     label,
			Values:    values,
			DistBest:  res.DistBest[i],
			DistWorst: res.DistWorst[i],
			Score:     res.Scores[i],
			Rank:      res.Ranks[i],
		}
	}
	return rep
}
