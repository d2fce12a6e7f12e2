package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/topsisrun/internal/atomicio"
	"github.com/sawpanic/topsisrun/internal/cache"
	"github.com/sawpanic/topsisrun/internal/metrics"
	"github.com/sawpanic/topsisrun/internal/persistence"
	"github.com/sawpanic/topsisrun/internal/table"
	"github.com/sawpanic/topsisrun/internal/topsis"
)

// Request is one file-to-file ranking.
type Request struct {
	InputPath  string
	Weights    string
	Impacts    string
	OutputPath string
	// ExplainPath, when set, receives the JSON report. It is committed
	// before the result so a failure leaves neither file behind.
	ExplainPath string
}

// Outcome is a completed ranking.
type Outcome struct {
	RunID    string
	Table    *table.Table
	Weights  []float64
	Impacts  []topsis.Impact
	Policy   topsis.DegeneratePolicy
	Result   *topsis.Result
	Cached   bool
	Stored   bool
	Duration time.Duration
}

// Ranker runs load, validate, score and save for a request, timing each
// step and recording the run when a store is configured.
type Ranker struct {
	scorer   *topsis.Scorer
	format   table.Format
	metrics  *metrics.Registry
	store    persistence.RunStore
	cache    cache.Cache
	cacheTTL time.Duration

	now   func() time.Time
	newID func() string
}

// Option configures a Ranker
type Option func(*Ranker)

// WithScorer replaces the default strict scorer
func WithScorer(s *topsis.Scorer) Option { return func(r *Ranker) { r.scorer = s } }

// WithFormat sets output column names and score precision
func WithFormat(f table.Format) Option { return func(r *Ranker) { r.format = f } }

// WithMetrics records step timings and outcomes into m
func WithMetrics(m *metrics.Registry) Option { return func(r *Ranker) { r.metrics = m } }

// WithStore archives every successful run
func WithStore(s persistence.RunStore) Option { return func(r *Ranker) { r.store = s } }

// WithCache reuses scores for identical in-memory requests
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(r *Ranker) {
		r.cache = c
		r.cacheTTL = ttl
	}
}

// NewRanker creates a ranker. Without WithMetrics it records into a
// throwaway registry.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{
		scorer: topsis.NewScorer(),
		format: table.DefaultFormat(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.New(false)
	}
	return r
}

// Store returns the configured run store, or nil
func (r *Ranker) Store() persistence.RunStore { return r.store }

// Rank reads req.InputPath, scores it and writes req.OutputPath. Nothing
// is written unless every check and the computation succeed.
func (r *Ranker) Rank(ctx context.Context, req Request) (out *Outcome, err error) {
	start := r.now()
	logger := log.With().Str("input", req.InputPath).Str("output", req.OutputPath).Logger()
	defer func() { r.finish(out, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timer := r.metrics.StartStep(metrics.StepLoad)
	t, err := table.Load(req.InputPath)
	timer.Stop(err)
	if err != nil {
		logger.Debug().Err(err).Msg("Input table rejected")
		return nil, err
	}

	out, err = r.score(ctx, t, req.Weights, req.Impacts, false)
	if err != nil {
		return nil, err
	}

	timer = r.metrics.StartStep(metrics.StepSave)
	err = r.save(req, out)
	timer.Stop(err)
	if err != nil {
		return nil, err
	}

	out.Duration = r.now().Sub(start)
	out.Stored = r.record(ctx, out, req.InputPath)

	logger.Info().
		Int("alternatives", t.Rows()).
		Int("criteria", t.Criteria()).
		Str("run_id", out.RunID).
		Dur("duration", out.Duration).
		Msg("Ranking completed")
	return out, nil
}

// save stages the result and the optional report, then renames both into
// place. The report goes first; if the result rename fails the report is
// removed again.
func (r *Ranker) save(req Request, out *Outcome) error {
	result, err := table.Stage(req.OutputPath, out.Table, out.Result, r.format)
	if err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if req.ExplainPath == "" {
		if err := result.Commit(); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
		return nil
	}

	report, err := atomicio.StageJSON(req.ExplainPath, out.Report())
	if err != nil {
		result.Discard()
		return fmt.Errorf("failed to write explanation: %w", err)
	}
	if err := report.Commit(); err != nil {
		result.Discard()
		return fmt.Errorf("failed to write explanation: %w", err)
	}
	if err := result.Commit(); err != nil {
		os.Remove(req.ExplainPath)
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// RankTable validates and scores an already parsed table, consulting the
// cache when one is configured. Nothing is written to disk.
func (r *Ranker) RankTable(ctx context.Context, t *table.Table, weights, impacts string) (out *Outcome, err error) {
	start := r.now()
	defer func() { r.finish(out, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err = r.score(ctx, t, weights, impacts, true)
	if err != nil {
		return nil, err
	}

	out.Duration = r.now().Sub(start)
	out.Stored = r.record(ctx, out, "http")
	return out, nil
}

func (r *Ranker) score(ctx context.Context, t *table.Table, weights, impacts string, useCache bool) (*Outcome, error) {
	timer := r.metrics.StartStep(metrics.StepValidate)
	w, d, err := topsis.ParseCriteria(weights, impacts, t.Criteria())
	timer.Stop(err)
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		RunID:   r.newID(),
		Table:   t,
		Weights: w,
		Impacts: d,
		Policy:  r.scorer.Policy(),
	}

	var key string
	if useCache && r.cache != nil {
		key = cache.Key(t.Headers, t.Labels, flatten(t), w, d, out.Policy)
		if res, ok := r.lookup(ctx, key); ok {
			out.Result = res
			out.Cached = true
			return out, nil
		}
	}

	timer = r.metrics.StartStep(metrics.StepScore)
	res, err := r.scorer.Score(t.Matrix, w, d)
	timer.Stop(err)
	if err != nil {
		return nil, err
	}
	out.Result = res

	if key != "" {
		r.remember(ctx, key, res)
	}
	return out, nil
}

func (r *Ranker) lookup(ctx context.Context, key string) (*topsis.Result, bool) {
	data, found, err := r.cache.Get(ctx, key)
	switch {
	case err != nil:
		r.metrics.RecordCache("error")
		log.Warn().Err(err).Msg("Result cache lookup failed")
		return nil, false
	case !found:
		r.metrics.RecordCache("miss")
		return nil, false
	}

	var res topsis.Result
	if err := json.Unmarshal(data, &res); err != nil {
		r.metrics.RecordCache("error")
		log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return nil, false
	}
	r.metrics.RecordCache("hit")
	return &res, true
}

func (r *Ranker) remember(ctx context.Context, key string, res *topsis.Result) {
	data, err := json.Marshal(res)
	if err == nil {
		err = r.cache.Set(ctx, key, data, r.cacheTTL)
	}
	if err != nil {
		log.Warn().Err(err).Msg("Result cache write failed")
	}
}

// record archives a successful run. Store errors are logged only.
func (r *Ranker) record(ctx context.Context, out *Outcome, source string) bool {
	if r.store == nil {
		return false
	}

	run := persistence.Run{
		ID:           out.RunID,
		CreatedAt:    r.now().UTC(),
		Source:       source,
		Criteria:     out.Table.CriteriaNames(),
		Weights:      out.Weights,
		Impacts:      topsis.FormatImpacts(out.Impacts),
		Policy:       string(out.Policy),
		Alternatives: out.Table.Rows(),
		Results:      make([]persistence.RunResult, out.Table.Rows()),
	}
	for i, label := range out.Table.Labels {
		run.Results[i] = persistence.RunResult{
			Label: label,
			Score: out.Result.Scores[i],
			Rank:  out.Result.Ranks[i],
		}
	}

	if err := r.store.Save(ctx, run); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to record run history")
		return false
	}
	return true
}

func (r *Ranker) finish(out *Outcome, err error) {
	switch {
	case err == nil:
		r.metrics.RecordRun(metrics.ResultSuccess, out.Table.Rows())
	case errors.Is(err, topsis.ErrDegenerate):
		r.metrics.RecordRun(metrics.ResultDegenerate, 0)
	default:
		if kind, ok := topsis.KindOf(err); ok {
			r.metrics.RecordValidationFailure(string(kind))
			r.metrics.RecordRun(metrics.ResultValidationError, 0)
			return
		}
		r.metrics.RecordRun(metrics.ResultIOError, 0)
	}
}

func flatten(t *table.Table) []float64 {
	rows, cols := t.Matrix.Dims()
	values := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		values = append(values, t.Matrix.RawRowView(i)...)
	}
	return values
}
