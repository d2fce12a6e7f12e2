package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/topsisrun/internal/application"
	"github.com/sawpanic/topsisrun/internal/cache"
	"github.com/sawpanic/topsisrun/internal/config"
	"github.com/sawpanic/topsisrun/internal/interfaces/http/handlers"
	"github.com/sawpanic/topsisrun/internal/metrics"
	"github.com/sawpanic/topsisrun/internal/persistence"
	"github.com/sawpanic/topsisrun/internal/table"
)

const sampleJSON = `{
  "headers": ["Model", "Price", "Storage", "Camera", "Looks"],
  "rows": [
    {"label": "A", "values": [250, 16, 12, 5]},
    {"label": "B", "values": [200, 16, 8, 3]},
    {"label": "C", "values": [300, 32, 16, 4]},
    {"label": "D", "values": [275, 32, 8, 4]},
    {"label": "E", "values": [225, 16, 16, 2]}
  ],
  "weights": "0.25,0.25,0.25,0.25",
  "impacts": "+,+,+,-"
}`

const sampleCSV = "Model,Price,Storage,Camera,Looks\nA,250,16,12,5\nB,200,16,8,3\nC,300,32,16,4\nD,275,32,8,4\nE,225,16,16,2\n"

type fixture struct {
	srv     *Server
	metrics *metrics.Registry
	store   *persistence.MemoryStore
}

type fixtureOpts struct {
	cfg     config.ServerConfig
	noStore bool
	health  persistence.RepositoryHealth
	maxBody int64
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()
	m := metrics.New(false)
	f := &fixture{metrics: m}

	opts := []application.Option{application.WithMetrics(m), application.WithCache(cache.NewMemory(), time.Minute)}
	if !o.noStore {
		f.store = persistence.NewMemoryStore()
		opts = append(opts, application.WithStore(f.store))
	}

	h := handlers.NewHandlers(handlers.Deps{
		Ranker:       application.NewRanker(opts...),
		Health:       o.health,
		Format:       table.DefaultFormat(),
		MaxBodyBytes: o.maxBody,
		CacheEnabled: true,
	})
	f.srv = newServer(o.cfg, h, m)
	return f
}

func (f *fixture) do(method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return resp
}

func TestRank_JSON(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	rr := f.do(http.MethodPost, "/rank", "application/json", sampleJSON)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var rep application.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.Equal(t, rr.Header().Get("X-Run-ID"), rep.RunID)
	assert.Equal(t, []string{"Price", "Storage", "Camera", "Looks"}, rep.Criteria)
	require.Len(t, rep.Rows, 5)
	ranks := make([]int, len(rep.Rows))
	for i, row := range rep.Rows {
		ranks[i] = row.Rank
	}
	assert.Equal(t, []int{5, 4, 1, 3, 2}, ranks)
	assert.InDelta(t, 0.6614872283175406, rep.Rows[2].Score, 1e-12)
	assert.False(t, rep.Cached)

	rr = f.do(http.MethodPost, "/rank", "application/json", sampleJSON)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.True(t, rep.Cached)
}

func TestRank_JSONValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		kind    string
		message string
	}{
		{
			name:    "count mismatch",
			body:    `{"headers":["n","a","b"],"rows":[{"label":"x","values":[1,2]}],"weights":"1","impacts":"+,+"}`,
			kind:    "count_mismatch",
			message: "Number of weights, impacts and criteria columns must be same.",
		},
		{
			name:    "bad impact",
			body:    `{"headers":["n","a","b"],"rows":[{"label":"x","values":[1,2]}],"weights":"1,1","impacts":"+,x"}`,
			kind:    "bad_impact",
			message: "Impacts must be either '+' or '-'.",
		},
		{
			name:    "too few columns",
			body:    `{"headers":["n","a"],"rows":[{"label":"x","values":[1]}],"weights":"1","impacts":"+"}`,
			kind:    "too_few_columns",
			message: "Input file must contain three or more columns.",
		},
		{
			name:    "no rows",
			body:    `{"headers":["n","a","b"],"rows":[],"weights":"1,1","impacts":"+,+"}`,
			kind:    "no_rows",
			message: "Input file must contain at least one data row.",
		},
		{
			name:    "ragged row",
			body:    `{"headers":["n","a","b"],"rows":[{"label":"x","values":[1]}],"weights":"1,1","impacts":"+,+"}`,
			kind:    "unreadable",
			message: "Unable to read the input file.",
		},
		{
			name: "degenerate",
			body: `{"headers":["n","a","b"],"rows":[{"label":"x","values":[0,1]},{"label":"y","values":[0,2]}],"weights":"1,1","impacts":"+,+"}`,
			kind: "degenerate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fixtureOpts{})
			rr := f.do(http.MethodPost, "/rank", "application/json", tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())

			resp := decodeError(t, rr)
			assert.Equal(t, tt.kind, resp.Kind)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Error)
			}
			assert.Equal(t, rr.Header().Get("X-Request-ID"), resp.RequestID)
		})
	}
}

func TestRank_BadBody(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	rr := f.do(http.MethodPost, "/rank", "application/json", `{"headers":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "bad_request", decodeError(t, rr).Kind)

	rr = f.do(http.MethodPost, "/rank", "application/json", `{"unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRank_BodyTooLarge(t *testing.T) {
	f := newFixture(t, fixtureOpts{maxBody: 16})

	rr := f.do(http.MethodPost, "/rank", "application/json", sampleJSON)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, "body_too_large", decodeError(t, rr).Kind)

	rr = f.do(http.MethodPost, "/rank?weights=1,1,1,1&impacts=%2B,%2B,%2B,-", "text/csv", sampleCSV)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestRank_CSV(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	rr := f.do(http.MethodPost, "/rank?weights=0.25,0.25,0.25,0.25&impacts=%2B,%2B,%2B,-", "text/csv; charset=utf-8", sampleCSV)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Run-ID"))

	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "Model,Price,Storage,Camera,Looks,Topsis Score,Rank", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "A,250,16,12,5,"), lines[1])
	assert.True(t, strings.HasSuffix(lines[1], ",5"), lines[1])
}

func TestRank_CSVNonNumeric(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	rr := f.do(http.MethodPost, "/rank?weights=1,1&impacts=%2B,%2B", "text/csv", "n,a,b\nx,1,high\n")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	resp := decodeError(t, rr)
	assert.Equal(t, "non_numeric", resp.Kind)
	assert.Equal(t, "From 2nd to last columns must contain numeric values only.", resp.Error)
}

func TestRuns(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	rr := f.do(http.MethodPost, "/rank", "application/json", sampleJSON)
	require.Equal(t, http.StatusOK, rr.Code)
	id := rr.Header().Get("X-Run-ID")

	rr = f.do(http.MethodGet, "/runs/"+id, "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var run persistence.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "http", run.Source)
	assert.Equal(t, 5, run.Alternatives)

	rr = f.do(http.MethodGet, "/runs/does-not-exist", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "run_not_found", decodeError(t, rr).Kind)

	rr = f.do(http.MethodGet, "/runs?limit=5", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list handlers.RunsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	rr = f.do(http.MethodGet, "/runs?limit=0", "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRuns_HistoryDisabled(t *testing.T) {
	f := newFixture(t, fixtureOpts{noStore: true})

	rr := f.do(http.MethodGet, "/runs/abc", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "history_disabled", decodeError(t, rr).Kind)
}

type staticHealth struct{ healthy bool }

func (s staticHealth) Health(context.Context) persistence.HealthCheck {
	hc := persistence.HealthCheck{Healthy: s.healthy, LastCheck: time.Now()}
	if !s.healthy {
		hc.Errors = []string{"ping failed: connection refused"}
	}
	return hc
}

func (s staticHealth) Ping(context.Context) error { return nil }

func TestHealth(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	rr := f.do(http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp handlers.HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.Cache)

	f = newFixture(t, fixtureOpts{health: staticHealth{healthy: false}})
	rr = f.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.do(http.MethodPost, "/rank", "application/json", sampleJSON)

	rr := f.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `topsis_runs_total{result="success"} 1`)
	assert.Contains(t, body, `topsis_http_requests_total{code="200",route="/rank"} 1`)
}

func TestRouting(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	rr := f.do(http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "endpoint_not_found", decodeError(t, rr).Kind)

	rr = f.do(http.MethodGet, "/rank", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-42")
	rr := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, "trace-42", rr.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, fixtureOpts{cfg: config.ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 1}})

	rr := f.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "rate_limited", decodeError(t, rr).Kind)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestServer_StartShutdown(t *testing.T) {
	m := metrics.New(false)
	h := handlers.NewHandlers(handlers.Deps{Ranker: application.NewRanker(application.WithMetrics(m))})
	srv, err := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second}, h, m)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-done)
}

func TestNewServer_PortBusy(t *testing.T) {
	m := metrics.New(false)
	h := handlers.NewHandlers(handlers.Deps{Ranker: application.NewRanker()})
	first, err := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, h, m)
	require.NoError(t, err)
	defer first.listener.Close()

	_, port, _ := strings.Cut(first.Addr(), ":")
	cfg := config.ServerConfig{Host: "127.0.0.1"}
	cfg.Port, err = strconv.Atoi(port)
	require.NoError(t, err)
	_, err = NewServer(cfg, h, m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy")
}
