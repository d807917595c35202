// Package config loads docdb configuration from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-docdb/pkg/validation"
)

// Backend types
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// BackendTypes lists the supported backend types
var BackendTypes = []string{BackendMemory, BackendSQLite, BackendPostgres}

// Default configuration values
const (
	DefaultSnapshotThreshold = 10000
	DefaultSQLitePath        = "docdb.sqlite"
	DefaultBusyTimeout       = 5 * time.Second
	DefaultOpTimeout         = 30 * time.Second
	DefaultPostgresMaxConns  = 4
	DefaultLogLevel          = "info"
)

// Config is the top-level configuration
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// BackendConfig selects and configures a storage backend
type BackendConfig struct {
	// Type is one of memory, sqlite or postgres
	Type string `yaml:"type" validate:"oneof=memory sqlite postgres"`

	Memory   MemoryConfig   `yaml:"memory"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// MemoryConfig configures the in-memory WAL-backed store
type MemoryConfig struct {
	// DataDir holds the WAL and snapshots. Empty keeps everything in memory.
	DataDir string `yaml:"data_dir"`

	CompressWAL       bool `yaml:"compress_wal"`
	SnapshotThreshold int  `yaml:"snapshot_threshold" validate:"min=0"`
}

// SQLiteConfig configures the SQLite store
type SQLiteConfig struct {
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	OpTimeout   time.Duration `yaml:"op_timeout"`
}

// PostgresConfig configures the PostgreSQL store
type PostgresConfig struct {
	URL       string        `yaml:"url"`
	MaxConns  int           `yaml:"max_conns" validate:"min=0"`
	OpTimeout time.Duration `yaml:"op_timeout"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr to serve /metrics on. Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Type: BackendMemory,
			Memory: MemoryConfig{
				SnapshotThreshold: DefaultSnapshotThreshold,
			},
			SQLite: SQLiteConfig{
				Path:        DefaultSQLitePath,
				BusyTimeout: DefaultBusyTimeout,
				OpTimeout:   DefaultOpTimeout,
			},
			Postgres: PostgresConfig{
				MaxConns:  DefaultPostgresMaxConns,
				OpTimeout: DefaultOpTimeout,
			},
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// Load reads a YAML file over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from DOCDB_* variables and LOG_LEVEL
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("DOCDB_BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("DOCDB_DATA_DIR"); v != "" {
		c.Backend.Memory.DataDir = v
	}
	if v := os.Getenv("DOCDB_COMPRESS_WAL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DOCDB_COMPRESS_WAL %q: %w", v, err)
		}
		c.Backend.Memory.CompressWAL = b
	}
	if v := os.Getenv("DOCDB_SQLITE_PATH"); v != "" {
		c.Backend.SQLite.Path = v
	}
	if v := os.Getenv("DOCDB_POSTGRES_URL"); v != "" {
		c.Backend.Postgres.URL = v
	}
	if v := os.Getenv("DOCDB_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// applyDefaults fills zero values a partial YAML file may leave behind
func (c *Config) applyDefaults() {
	c.Backend.Type = validation.DefaultOr(c.Backend.Type, BackendMemory)
	c.Backend.SQLite.Path = validation.DefaultOr(c.Backend.SQLite.Path, DefaultSQLitePath)
	c.Backend.SQLite.BusyTimeout = validation.DefaultOrDuration(c.Backend.SQLite.BusyTimeout, DefaultBusyTimeout)
	c.Log.Level = validation.DefaultOr(c.Log.Level, DefaultLogLevel)
}

// Validate checks the configuration
func (c *Config) Validate() error {
	cv := validation.NewConfigValidator("Config")
	cv.Struct(c)

	b := c.Backend
	cv.When(b.Type == BackendSQLite, func(cv *validation.ConfigValidator) {
		cv.Required("Backend.SQLite.Path", b.SQLite.Path).
			MinDuration("Backend.SQLite.BusyTimeout", b.SQLite.BusyTimeout, time.Millisecond).
			MinDuration("Backend.SQLite.OpTimeout", b.SQLite.OpTimeout, 0)
	})
	cv.When(b.Type == BackendPostgres, func(cv *validation.ConfigValidator) {
		cv.Required("Backend.Postgres.URL", b.Postgres.URL).
			MinDuration("Backend.Postgres.OpTimeout", b.Postgres.OpTimeout, 0)
	})
	cv.When(b.Type == BackendMemory && b.Memory.CompressWAL, func(cv *validation.ConfigValidator) {
		cv.Required("Backend.Memory.DataDir", b.Memory.DataDir)
	})

	return cv.Validate()
}
