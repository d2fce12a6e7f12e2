package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/sawpanic/topsisrun/internal/config"
	"github.com/sawpanic/topsisrun/internal/persistence"
)

// Manager owns the connection pool and the run repository
type Manager struct {
	db     *sqlx.DB
	cfg    config.DatabaseConfig
	runs   persistence.RunStore
	health *healthChecker
}

// NewManager opens and pings the database described by cfg and applies
// the schema. A disabled config yields a Manager with no store.
func NewManager(ctx context.Context, cfg config.DatabaseConfig) (*Manager, error) {
	if !cfg.Enabled {
		return &Manager{cfg: cfg, health: &healthChecker{enabled: false}}, nil
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required when enabled")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	m, err := newManager(ctx, db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// NewManagerFromDB wraps an already opened handle
func NewManagerFromDB(ctx context.Context, db *sqlx.DB, cfg config.DatabaseConfig) (*Manager, error) {
	cfg.Enabled = true
	return newManager(ctx, db, cfg)
}

func newManager(ctx context.Context, db *sqlx.DB, cfg config.DatabaseConfig) (*Manager, error) {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := Migrate(pingCtx, db); err != nil {
		return nil, err
	}

	return &Manager{
		db:     db,
		cfg:    cfg,
		runs:   NewRunsRepo(db, cfg.QueryTimeout),
		health: &healthChecker{enabled: true, db: db, timeout: cfg.QueryTimeout},
	}, nil
}

// Runs returns the run store, or nil if the database is disabled
func (m *Manager) Runs() persistence.RunStore {
	return m.runs
}

// Health returns the health checker
func (m *Manager) Health() persistence.RepositoryHealth {
	return m.health
}

// IsEnabled reports whether persistence is active
func (m *Manager) IsEnabled() bool {
	return m.cfg.Enabled && m.db != nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}

// healthChecker implements persistence.RepositoryHealth
type healthChecker struct {
	enabled bool
	db      *sqlx.DB
	timeout time.Duration
}

func (h *healthChecker) Health(ctx context.Context) persistence.HealthCheck {
	if !h.enabled {
		return persistence.HealthCheck{
			Healthy:        true,
			Errors:         []string{"Database persistence disabled"},
			ConnectionPool: map[string]int{"status": 0},
			LastCheck:      time.Now(),
		}
	}

	start := time.Now()
	var errs []string
	healthy := true

	if err := h.Ping(ctx); err != nil {
		errs = append(errs, fmt.Sprintf("ping failed: %v", err))
		healthy = false
	}

	stats := h.db.Stats()
	return persistence.HealthCheck{
		Healthy: healthy,
		Errors:  errs,
		ConnectionPool: map[string]int{
			"max_open":   stats.MaxOpenConnections,
			"open":       stats.OpenConnections,
			"in_use":     stats.InUse,
			"idle":       stats.Idle,
			"wait_count": int(stats.WaitCount),
		},
		LastCheck:      time.Now(),
		ResponseTimeMS: time.Since(start).Milliseconds(),
	}
}

func (h *healthChecker) Ping(ctx context.Context) error {
	if !h.enabled {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.db.PingContext(pingCtx)
}
