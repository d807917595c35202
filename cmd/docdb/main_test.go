package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-docdb/pkg/backend/memstore"
	"github.com/dd0wney/cluso-docdb/pkg/config"
	"github.com/dd0wney/cluso-docdb/pkg/health"
	"github.com/dd0wney/cluso-docdb/pkg/logging"
)

func TestLoadConfig_FlagsOverride(t *testing.T) {
	for _, key := range []string{"DOCDB_BACKEND", "DOCDB_DATA_DIR", "DOCDB_METRICS_ADDR", "DOCDB_COMPRESS_WAL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()

	cfg, err := loadConfig("", "memory", dir, "127.0.0.1:0")
	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, cfg.Backend.Type)
	assert.Equal(t, dir, cfg.Backend.Memory.DataDir)
	assert.Equal(t, "127.0.0.1:0", cfg.Metrics.Addr)

	_, err = loadConfig("", "mysql", "", "")
	assert.Error(t, err)
}

func TestNewHealthChecker(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Backend.Memory.DataDir = dir
	checker := newHealthChecker(cfg, memstore.New(memstore.Config{DataDir: dir}))
	resp := checker.CheckReadiness()
	assert.Equal(t, health.StatusHealthy, resp.Status)
	assert.Contains(t, resp.Checks, "backend")
	assert.Equal(t, config.BackendMemory, resp.Backend)

	cfg = config.Default()
	cfg.Backend.Type = config.BackendSQLite
	cfg.Backend.SQLite.Path = filepath.Join(dir, "missing", "docs.db")
	checker = newHealthChecker(cfg, memstore.New(memstore.Config{}))
	assert.Equal(t, health.StatusDegraded, checker.CheckReadiness().Status)
}

func TestReloadLogLevel(t *testing.T) {
	for _, key := range []string{"DOCDB_BACKEND", "DOCDB_DATA_DIR", "DOCDB_METRICS_ADDR", "DOCDB_COMPRESS_WAL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	path := filepath.Join(t.TempDir(), "docdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	var out bytes.Buffer
	logger := logging.NewJSONLogger(&out, logging.InfoLevel)
	reload := reloadLogLevel(path, logger)

	require.NoError(t, reload())
	assert.Equal(t, logging.DebugLevel, logger.GetLevel())
	assert.Contains(t, out.String(), `"to":"DEBUG"`)

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o644))
	assert.Error(t, reload())
	assert.Equal(t, logging.DebugLevel, logger.GetLevel(), "a bad file keeps the current level")
}
