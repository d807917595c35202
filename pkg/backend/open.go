// Package backend builds a docdb.Store from configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/dd0wney/cluso-docdb/pkg/backend/memstore"
	"github.com/dd0wney/cluso-docdb/pkg/backend/pgstore"
	"github.com/dd0wney/cluso-docdb/pkg/backend/sqlitestore"
	"github.com/dd0wney/cluso-docdb/pkg/config"
	"github.com/dd0wney/cluso-docdb/pkg/docdb"
	"github.com/dd0wney/cluso-docdb/pkg/logging"
	"github.com/dd0wney/cluso-docdb/pkg/metrics"
)

// Options carries the ambient dependencies handed to every backend
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Registry
}

// Open creates the store selected by cfg.Type. Only the postgres backend
// connects eagerly; the others touch storage when a session opens.
func Open(ctx context.Context, cfg config.BackendConfig, opts Options) (docdb.Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	switch cfg.Type {
	case config.BackendMemory, "":
		return memstore.New(memstore.Config{
			DataDir:           cfg.Memory.DataDir,
			CompressWAL:       cfg.Memory.CompressWAL,
			SnapshotThreshold: cfg.Memory.SnapshotThreshold,
			Logger:            logger,
			Metrics:           opts.Metrics,
		}), nil

	case config.BackendSQLite:
		return sqlitestore.New(sqlitestore.Config{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
			OpTimeout:   cfg.SQLite.OpTimeout,
			Logger:      logger,
		}), nil

	case config.BackendPostgres:
		store, err := pgstore.New(ctx, pgstore.Config{
			URL:       cfg.Postgres.URL,
			MaxConns:  int32(cfg.Postgres.MaxConns),
			OpTimeout: cfg.Postgres.OpTimeout,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres backend: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown backend type %q (want one of %v)", cfg.Type, config.BackendTypes)
	}
}
