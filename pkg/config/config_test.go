package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DOCDB_BACKEND", "DOCDB_DATA_DIR", "DOCDB_COMPRESS_WAL", "DOCDB_SQLITE_PATH",
		"DOCDB_POSTGRES_URL", "DOCDB_METRICS_ADDR", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend.Type)
	assert.Equal(t, DefaultSnapshotThreshold, cfg.Backend.Memory.SnapshotThreshold)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
backend:
  type: sqlite
  sqlite:
    path: /tmp/docs.db
    op_timeout: 2s
log:
  level: debug
metrics:
  addr: ":9102"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend.Type)
	assert.Equal(t, "/tmp/docs.db", cfg.Backend.SQLite.Path)
	assert.Equal(t, 2*time.Second, cfg.Backend.SQLite.OpTimeout)
	assert.Equal(t, DefaultBusyTimeout, cfg.Backend.SQLite.BusyTimeout, "unset fields keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "backend:\n  type: sqlite\n")

	t.Setenv("DOCDB_BACKEND", "memory")
	t.Setenv("DOCDB_DATA_DIR", "/var/lib/docdb")
	t.Setenv("DOCDB_COMPRESS_WAL", "true")
	t.Setenv("LOG_LEVEL", "WARN")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend.Type)
	assert.Equal(t, "/var/lib/docdb", cfg.Backend.Memory.DataDir)
	assert.True(t, cfg.Backend.Memory.CompressWAL)
	assert.Equal(t, "WARN", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "unknown backend", body: "backend:\n  type: mysql\n"},
		{name: "postgres without url", body: "backend:\n  type: postgres\n"},
		{name: "negative threshold", body: "backend:\n  memory:\n    snapshot_threshold: -1\n"},
		{name: "bad log level", body: "log:\n  level: loud\n"},
		{name: "compressed wal without dir", body: "backend:\n  memory:\n    compress_wal: true\n"},
		{name: "malformed yaml", body: "backend: [\n"},
		{name: "bad bool env", body: "", env: map[string]string{"DOCDB_COMPRESS_WAL": "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
