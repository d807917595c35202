package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
	"github.com/dd0wney/cluso-docdb/pkg/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(Config{Path: filepath.Join(t.TempDir(), "docs.db"), OpTimeout: 5 * time.Second})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenDB(t *testing.T) {
	db, err := openDB(context.Background(), filepath.Join(t.TempDir(), "test.db"), time.Second)
	require.NoError(t, err)
	defer db.Close()

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := openDB(ctx, filepath.Join(t.TempDir(), "test.db"), time.Second)
	require.NoError(t, err)
	defer db.Close()

	logger := logging.NewNopLogger()
	require.NoError(t, migrate(ctx, db, logger))
	require.NoError(t, migrate(ctx, db, logger))

	version, err := schemaVersion(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"001_documents.sql", 1, false},
		{"012_indexes.sql", 12, false},
		{"documents.sql", 0, true},
		{"abc_documents.sql", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVersion(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_RequiresSession(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddDocument(docdb.Document{Data: []byte("a")})
	assert.ErrorIs(t, err, docdb.ErrSessionNotOpen)
	assert.ErrorIs(t, s.DeleteDocument(1), docdb.ErrSessionNotOpen)
	assert.ErrorIs(t, s.OpenTransaction(), docdb.ErrSessionNotOpen)
	assert.ErrorIs(t, s.FlushSession(), docdb.ErrSessionNotOpen)
	assert.NoError(t, s.CancelTransaction())
	assert.NoError(t, s.CloseSession())
}

func TestStore_DocumentLifecycle(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.OpenSession())

	id, err := s.AddDocument(docdb.Document{Data: []byte("one"), Values: map[string]string{"lang": "en"}})
	require.NoError(t, err)
	assert.Equal(t, docdb.DocID(1), id)

	got, err := s.Document(id)
	require.NoError(t, err)
	assert.Equal(t, "one", string(got.Data))
	assert.Equal(t, "en", got.Values["lang"])

	require.NoError(t, s.ReplaceDocument(id, docdb.Document{Data: []byte("uno")}))
	got, err = s.Document(id)
	require.NoError(t, err)
	assert.Equal(t, "uno", string(got.Data))
	assert.Nil(t, got.Values)

	require.NoError(t, s.ReplaceDocument(7, docdb.Document{Data: []byte("seven")}))
	next, err := s.AddDocument(docdb.Document{Data: []byte("eight")})
	require.NoError(t, err)
	assert.Equal(t, docdb.DocID(8), next)

	require.NoError(t, s.DeleteDocument(7))
	assert.True(t, docdb.IsNotFound(s.DeleteDocument(7)))
	_, err = s.Document(7)
	assert.True(t, docdb.IsNotFound(err))

	assert.ErrorIs(t, s.ReplaceDocument(0, docdb.Document{}), docdb.ErrInvalidDocument)

	require.NoError(t, s.FlushSession())
	require.NoError(t, s.CloseSession())

	// Reads work outside a session
	n, err := s.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_Transactions(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.OpenSession())

	require.NoError(t, s.OpenTransaction())
	_, err := s.AddDocument(docdb.Document{Data: []byte("rolled back")})
	require.NoError(t, err)

	n, err := s.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "reads see the open transaction")

	// Flush inside a transaction is a no-op
	require.NoError(t, s.FlushSession())
	require.NoError(t, s.CancelTransaction())

	n, err = s.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.OpenTransaction())
	id, err := s.AddDocument(docdb.Document{Data: []byte("committed")})
	require.NoError(t, err)
	require.NoError(t, s.CommitTransaction())

	require.NoError(t, s.OpenTransaction())
	require.NoError(t, s.DeleteDocument(id))
	require.NoError(t, s.CloseSession(), "close rolls back the open transaction")

	n, err = s.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_WithDatabase(t *testing.T) {
	s := newTestStore(t)
	db := docdb.New(s)

	require.NoError(t, db.BeginTransaction())
	id, err := db.AddDocument(docdb.Document{Data: []byte("via controller")})
	require.NoError(t, err)
	require.NoError(t, db.CommitTransaction())

	require.NoError(t, db.DeleteDocument(id))
	err = db.DeleteDocument(id)
	assert.True(t, docdb.IsNotFound(err))
	assert.Equal(t, docdb.StateOpen, db.State())

	require.NoError(t, db.Close())
	n, err := s.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
