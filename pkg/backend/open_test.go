package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-docdb/pkg/backend/memstore"
	"github.com/dd0wney/cluso-docdb/pkg/backend/sqlitestore"
	"github.com/dd0wney/cluso-docdb/pkg/config"
	"github.com/dd0wney/cluso-docdb/pkg/docdb"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := Open(ctx, config.BackendConfig{Type: config.BackendMemory}, Options{})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &memstore.Store{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := config.Default().Backend
		cfg.Type = config.BackendSQLite
		cfg.SQLite.Path = filepath.Join(t.TempDir(), "docs.db")

		store, err := Open(ctx, cfg, Options{})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &sqlitestore.Store{}, store)

		db := docdb.New(store)
		_, err = db.AddDocument(docdb.Document{Data: []byte(`{}`)})
		require.NoError(t, err)
		require.NoError(t, db.Close())
	})

	t.Run("postgres unreachable", func(t *testing.T) {
		cfg := config.BackendConfig{Type: config.BackendPostgres}
		cfg.Postgres.URL = "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"
		_, err := Open(ctx, cfg, Options{})
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Open(ctx, config.BackendConfig{Type: "mysql"}, Options{})
		assert.ErrorContains(t, err, "mysql")
	})
}
