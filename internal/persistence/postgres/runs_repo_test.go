package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/topsisrun/internal/config"
	"github.com/sawpanic/topsisrun/internal/persistence"
)

var runColumns = []string{"id", "created_at", "source", "criteria", "weights", "impacts", "policy", "alternatives", "results"}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestRunsRepo_Save(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunsRepo(db, time.Second)

	run := persistence.Run{
		ID:           "9b2f7c1e-2a43-4f0e-8a55-0c3f5d1e7a10",
		CreatedAt:    time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC),
		Source:       "http",
		Criteria:     []string{"Price", "Storage"},
		Weights:      []float64{0.5, 0.5},
		Impacts:      "-,+",
		Policy:       "strict",
		Alternatives: 2,
		Results:      []persistence.RunResult{{Label: "A", Score: 1, Rank: 1}, {Label: "B", Score: 0, Rank: 2}},
	}

	mock.ExpectExec("INSERT INTO topsis_runs").
		WithArgs(run.ID, run.CreatedAt, "http", []byte(`["Price","Storage"]`), []byte(`[0.5,0.5]`),
			"-,+", "strict", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepo_SaveRejectsInvalid(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunsRepo(db, time.Second)

	assert.Error(t, repo.Save(context.Background(), persistence.Run{Alternatives: 1}))
	assert.Error(t, repo.Save(context.Background(), persistence.Run{ID: "x"}))
	assert.NoError(t, mock.ExpectationsWereMet(), "nothing reaches the database")
}

func TestRunsRepo_SaveError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunsRepo(db, time.Second)

	mock.ExpectExec("INSERT INTO topsis_runs").WillReturnError(errors.New("duplicate key"))

	err := repo.Save(context.Background(), persistence.Run{ID: "x", Alternatives: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert run")
}

func TestRunsRepo_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunsRepo(db, time.Second)
	ts := time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(runColumns).AddRow(
		"r1", ts, "data.csv", []byte(`["Price","Storage"]`), []byte(`[1,2]`),
		"+,-", "fallback", 2, []byte(`[{"label":"A","score":0.25,"rank":2},{"label":"B","score":0.75,"rank":1}]`))
	mock.ExpectQuery(`SELECT .+ FROM topsis_runs WHERE id = \$1`).WithArgs("r1").WillReturnRows(rows)

	run, err := repo.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", run.ID)
	assert.Equal(t, ts, run.CreatedAt)
	assert.Equal(t, []string{"Price", "Storage"}, run.Criteria)
	assert.Equal(t, []float64{1, 2}, run.Weights)
	assert.Equal(t, "fallback", run.Policy)
	assert.Equal(t, 2, run.Alternatives)
	require.Len(t, run.Results, 2)
	assert.Equal(t, persistence.RunResult{Label: "B", Score: 0.75, Rank: 1}, run.Results[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepo_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunsRepo(db, time.Second)

	mock.ExpectQuery(`SELECT .+ FROM topsis_runs WHERE id = \$1`).WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(runColumns))

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunsRepo_GetCorruptJSON(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunsRepo(db, time.Second)

	rows := sqlmock.NewRows(runColumns).AddRow(
		"r1", time.Now(), "http", []byte(`not json`), []byte(`[]`), "+", "strict", 1, []byte(`[]`))
	mock.ExpectQuery("SELECT .+ FROM topsis_runs").WillReturnRows(rows)

	_, err := repo.Get(context.Background(), "r1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "criteria")
}

func TestRunsRepo_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRunsRepo(db, time.Second)
	ts := time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(runColumns).
		AddRow("r2", ts.Add(time.Hour), "http", []byte(`["a"]`), []byte(`[1]`), "+", "strict", 1, []byte(`[{"label":"x","score":0.5,"rank":1}]`)).
		AddRow("r1", ts, "http", []byte(`["a"]`), []byte(`[1]`), "+", "strict", 1, []byte(`[{"label":"y","score":0.5,"rank":1}]`))
	mock.ExpectQuery(`SELECT .+ FROM topsis_runs ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(int64(20)).WillReturnRows(rows)

	runs, err := repo.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, "y", runs[1].Results[0].Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_Disabled(t *testing.T) {
	m, err := NewManager(context.Background(), config.DatabaseConfig{Enabled: false})
	require.NoError(t, err)

	assert.False(t, m.IsEnabled())
	assert.Nil(t, m.Runs())
	assert.NoError(t, m.Health().Ping(context.Background()))
	assert.True(t, m.Health().Health(context.Background()).Healthy)
	assert.NoError(t, m.Close())
}

func TestManager_RequiresDSN(t *testing.T) {
	_, err := NewManager(context.Background(), config.DatabaseConfig{Enabled: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN")
}

func TestManager_FromDB(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "postgres")

	mock.ExpectPing()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS topsis_runs").WillReturnResult(sqlmock.NewResult(0, 0))

	m, err := NewManagerFromDB(context.Background(), db, config.DatabaseConfig{QueryTimeout: time.Second})
	require.NoError(t, err)
	assert.True(t, m.IsEnabled())
	assert.NotNil(t, m.Runs())

	mock.ExpectPing()
	hc := m.Health().Health(context.Background())
	assert.True(t, hc.Healthy)
	assert.Contains(t, hc.ConnectionPool, "open")

	mock.ExpectPing().WillReturnError(errors.New("server closed"))
	hc = m.Health().Health(context.Background())
	assert.False(t, hc.Healthy)
	require.Len(t, hc.Errors, 1)
	assert.Contains(t, hc.Errors[0], "ping failed")

	mock.ExpectClose()
	require.NoError(t, m.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_FromDBPingFailure(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer raw.Close()

	mock.ExpectPing().WillReturnError(errors.New("no route to host"))

	_, err = NewManagerFromDB(context.Background(), sqlx.NewDb(raw, "postgres"), config.DatabaseConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping database")
}
