package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-docdb/pkg/backend"
	"github.com/dd0wney/cluso-docdb/pkg/config"
	"github.com/dd0wney/cluso-docdb/pkg/docdb"
	"github.com/dd0wney/cluso-docdb/pkg/health"
	"github.com/dd0wney/cluso-docdb/pkg/logging"
	"github.com/dd0wney/cluso-docdb/pkg/metrics"
	"github.com/dd0wney/cluso-docdb/pkg/server"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	backendType := flag.String("backend", "", "Backend type (memory, sqlite, postgres); overrides config")
	dataDir := flag.String("data", "", "Data directory for the memory backend; overrides config")
	metricsAddr := flag.String("metrics-addr", "", "Address to serve /metrics on; overrides config")
	flag.Parse()

	if err := run(*configPath, *backendType, *dataDir, *metricsAddr); err != nil {
		fmt.Fprintf(os.Stderr, "docdb: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path, backendType, dataDir, metricsAddr string) (*config.Config, error) {
	if backendType != "" {
		os.Setenv("DOCDB_BACKEND", backendType)
	}
	if dataDir != "" {
		os.Setenv("DOCDB_DATA_DIR", dataDir)
	}
	if metricsAddr != "" {
		os.Setenv("DOCDB_METRICS_ADDR", metricsAddr)
	}
	return config.Load(path)
}

// newHealthChecker registers a readiness check suited to the backend
func newHealthChecker(cfg *config.Config, store docdb.Store) *health.HealthChecker {
	checker := health.NewHealthChecker(cfg.Backend.Type)
	checker.RegisterCheck("process", health.SimpleCheck())

	if p, ok := store.(pinger); ok {
		checker.RegisterReadinessCheck("backend", health.PingCheck(p.Ping, 5*time.Second))
		return checker
	}

	switch cfg.Backend.Type {
	case config.BackendSQLite:
		checker.RegisterReadinessCheck("backend", health.DirCheck(filepath.Dir(cfg.Backend.SQLite.Path)))
	case config.BackendMemory:
		if dir := cfg.Backend.Memory.DataDir; dir != "" {
			checker.RegisterReadinessCheck("backend", health.DirCheck(dir))
		} else {
			checker.RegisterReadinessCheck("backend", health.SimpleCheck())
		}
	}
	return checker
}

// reloadLogLevel re-reads the config file and applies its log level. Other
// settings need a restart.
func reloadLogLevel(configPath string, logger logging.Logger) func() error {
	return func() error {
		reloaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		level, err := logging.LookupLevel(reloaded.Log.Level)
		if err != nil {
			return err
		}
		if old := logger.GetLevel(); old != level {
			logger.SetLevel(level)
			logger.Info("log level changed", logging.Any("from", old), logging.Any("to", level))
		}
		return nil
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func run(configPath, backendType, dataDir, metricsAddr string) error {
	cfg, err := loadConfig(configPath, backendType, dataDir, metricsAddr)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(os.Stderr, cfg.Log.Level)
	logging.SetDefaultLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metrics.DefaultRegistry()

	store, err := backend.Open(ctx, cfg.Backend, backend.Options{Logger: logger, Metrics: registry})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close backend", logging.Error(err))
		}
	}()

	if cfg.Metrics.Addr != "" {
		srv := server.NewMetricsServer(cfg.Metrics.Addr, registry, newHealthChecker(cfg, store), logger)
		srv.SetConfigReloadFunc(reloadLogLevel(configPath, logger))
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("metrics server failed", logging.Error(err))
			}
		}()
		defer srv.Shutdown(server.DefaultShutdownTimeout)
	}

	db := docdb.New(store, docdb.WithLogger(logger), docdb.WithMetrics(registry))
	logger.Info("docdb ready", logging.Backend(cfg.Backend.Type))

	cli := NewCLI(db, store, os.Stdout)
	fmt.Fprintln(os.Stdout, "Type 'help' for available commands, 'exit' to quit")
	runErr := cli.Run(ctx, os.Stdin)

	// Ends any session, cancelling an uncommitted transaction
	if err := db.Close(); err != nil {
		logger.Error("failed to end session", logging.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
