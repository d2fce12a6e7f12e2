package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/topsisrun/internal/atomicio"
	"github.com/sawpanic/topsisrun/internal/topsis"
)

// Config is the full topsis runtime configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Output   OutputConfig   `yaml:"output"`
	Server   ServerConfig   `yaml:"server"`
	Cache    CacheConfig    `yaml:"cache"`
	Database DatabaseConfig `yaml:"database"`
}

// LogConfig selects log verbosity and encoding
type LogConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // console|json
}

// ScoringConfig controls numeric edge-case handling
type ScoringConfig struct {
	DegeneratePolicy string `yaml:"degenerate_policy"` // strict|fallback
}

// OutputConfig controls the appended result columns
type OutputConfig struct {
	Precision   int    `yaml:"precision"` // -1 = shortest round-trip
	ScoreColumn string `yaml:"score_column"`
	RankColumn  string `yaml:"rank_column"`
}

// ServerConfig holds serve-mode settings
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
}

// CacheConfig enables the result cache; Redis is used when RedisAddr is set
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

// DatabaseConfig holds run-history persistence settings
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// Default returns a configuration that runs the CLI with no external
// services.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Scoring: ScoringConfig{
			DegeneratePolicy: string(topsis.PolicyStrict),
		},
		Output: OutputConfig{
			Precision:   -1,
			ScoreColumn: "Topsis Score",
			RankColumn:  "Rank",
		},
		Server: ServerConfig{
			Host:           "127.0.0.1", // Local-only by default
			Port:           8080,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxBodyBytes:   8 << 20,
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Cache: CacheConfig{
			Enabled: false,
			TTL:     10 * time.Minute,
		},
		Database: DatabaseConfig{
			Enabled:         false, // Disabled by default - requires explicit configuration
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    5 * time.Second,
		},
	}
}

// DefaultPath returns the config file looked up when --config is not given.
func DefaultPath() string {
	return filepath.Join("config", "topsis.yaml")
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path if given. With an empty path it tries
// DefaultPath and falls back to Default when that file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg, err := Load(DefaultPath())
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes the configuration as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := atomicio.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	var errs []error

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q not in trace|debug|info|warn|error", c.Log.Level))
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q not in console|json", c.Log.Format))
	}

	if _, err := topsis.ParsePolicy(c.Scoring.DegeneratePolicy); err != nil {
		errs = append(errs, fmt.Errorf("scoring.degenerate_policy: %w", err))
	}

	if c.Output.Precision < -1 || c.Output.Precision > 17 {
		errs = append(errs, fmt.Errorf("output.precision %d outside [-1, 17]", c.Output.Precision))
	}
	if c.Output.ScoreColumn == "" || c.Output.RankColumn == "" {
		errs = append(errs, errors.New("output.score_column and output.rank_column must be set"))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d outside [0, 65535]", c.Server.Port))
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		errs = append(errs, errors.New("server rate limit must not be negative"))
	}

	if c.Database.Enabled && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required when database.enabled"))
	}

	return errors.Join(errs...)
}

// Policy returns the parsed degenerate policy. Call after Validate.
func (c *Config) Policy() topsis.DegeneratePolicy {
	p, _ := topsis.ParsePolicy(c.Scoring.DegeneratePolicy)
	return p
}
