package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Step names a ranking pipeline stage
type Step string

const (
	StepLoad     Step = "load"
	StepValidate Step = "validate"
	StepScore    Step = "score"
	StepSave     Step = "save"
)

// Result labels a finished run
type Result string

const (
	ResultSuccess         Result = "success"
	ResultValidationError Result = "validation_error"
	ResultDegenerate      Result = "degenerate"
	ResultIOError         Result = "io_error"
)

// Registry holds all Prometheus metrics for topsis runs on a private
// prometheus.Registry.
type Registry struct {
	reg *prometheus.Registry

	Runs               *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	StepDuration       *prometheus.HistogramVec
	Alternatives       prometheus.Histogram
	CacheRequests      *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
}

// New creates a registry with all topsis metrics registered. Go runtime
// and process collectors are included when withRuntime is set.
func New(withRuntime bool) *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topsis_runs_total",
				Help: "Total number of ranking runs by result",
			},
			[]string{"result"},
		),

		ValidationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topsis_validation_failures_total",
				Help: "Total number of rejected inputs by failure kind",
			},
			[]string{"kind"},
		),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "topsis_step_duration_seconds",
				Help:    "Duration of each pipeline step in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"step", "result"},
		),

		Alternatives: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "topsis_alternatives",
				Help:    "Number of alternatives ranked per run",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topsis_cache_requests_total",
				Help: "Result cache lookups by outcome (hit, miss, error)",
			},
			[]string{"result"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "topsis_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	r.reg.MustRegister(
		r.Runs,
		r.ValidationFailures,
		r.StepDuration,
		r.Alternatives,
		r.CacheRequests,
		r.HTTPRequests,
	)
	if withRuntime {
		r.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// StepTimer tracks execution time for a pipeline step
type StepTimer struct {
	metrics *Registry
	step    Step
	start   time.Time
}

// StartStep begins timing a pipeline step
func (r *Registry) StartStep(step Step) *StepTimer {
	return &StepTimer{metrics: r, step: step, start: time.Now()}
}

// Stop records the step duration under ok or error
func (st *StepTimer) Stop(err error) time.Duration {
	d := time.Since(st.start)
	result := "ok"
	if err != nil {
		result = "error"
	}
	st.metrics.StepDuration.WithLabelValues(string(st.step), result).Observe(d.Seconds())

	log.Debug().
		Str("step", string(st.step)).
		Str("result", result).
		Dur("duration", d).
		Msg("Pipeline step completed")
	return d
}

// RecordRun counts a finished run and, on success, its size.
func (r *Registry) RecordRun(result Result, alternatives int) {
	r.Runs.WithLabelValues(string(result)).Inc()
	if result == ResultSuccess {
		r.Alternatives.Observe(float64(alternatives))
	}
}

// RecordValidationFailure counts a rejected input by kind.
func (r *Registry) RecordValidationFailure(kind string) {
	r.ValidationFailures.WithLabelValues(kind).Inc()
}

// RecordCache counts a cache lookup outcome.
func (r *Registry) RecordCache(result string) {
	r.CacheRequests.WithLabelValues(result).Inc()
}

// RecordHTTP counts a served request.
func (r *Registry) RecordHTTP(route string, code int) {
	r.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
