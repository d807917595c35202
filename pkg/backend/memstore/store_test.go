package memstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
	"github.com/dd0wney/cluso-docdb/pkg/wal"
)

func doc(data string) docdb.Document {
	return docdb.Document{Data: []byte(data)}
}

func openStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	s := New(cfg)
	require.NoError(t, s.OpenSession())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RequiresSession(t *testing.T) {
	s := New(Config{})

	_, err := s.AddDocument(doc("a"))
	assert.ErrorIs(t, err, docdb.ErrSessionNotOpen)
	assert.ErrorIs(t, s.DeleteDocument(1), docdb.ErrSessionNotOpen)
	assert.ErrorIs(t, s.ReplaceDocument(1, doc("a")), docdb.ErrSessionNotOpen)
	assert.ErrorIs(t, s.OpenTransaction(), docdb.ErrSessionNotOpen)
	assert.ErrorIs(t, s.FlushSession(), docdb.ErrSessionNotOpen)

	// Cleanup hooks never fail on a closed store
	assert.NoError(t, s.CancelTransaction())
	assert.NoError(t, s.CloseSession())
}

func TestStore_DocumentLifecycle(t *testing.T) {
	s := openStore(t, Config{})

	id1, err := s.AddDocument(doc("one"))
	require.NoError(t, err)
	id2, err := s.AddDocument(doc("two"))
	require.NoError(t, err)
	assert.Equal(t, docdb.DocID(1), id1)
	assert.Equal(t, docdb.DocID(2), id2)

	require.NoError(t, s.ReplaceDocument(id1, doc("uno")))
	got, err := s.Document(id1)
	require.NoError(t, err)
	assert.Equal(t, "uno", string(got.Data))

	require.NoError(t, s.DeleteDocument(id2))
	_, err = s.Document(id2)
	assert.True(t, docdb.IsNotFound(err))
	assert.True(t, docdb.IsNotFound(s.DeleteDocument(id2)))

	n, err := s.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_ReplaceMissingCreates(t *testing.T) {
	s := openStore(t, Config{})

	require.NoError(t, s.ReplaceDocument(10, doc("ten")))
	got, err := s.Document(10)
	require.NoError(t, err)
	assert.Equal(t, "ten", string(got.Data))

	id, err := s.AddDocument(doc("next"))
	require.NoError(t, err)
	assert.Equal(t, docdb.DocID(11), id, "allocation continues past replaced ids")

	assert.ErrorIs(t, s.ReplaceDocument(0, doc("zero")), docdb.ErrInvalidDocument)
}

func TestStore_DocumentsAreCopied(t *testing.T) {
	s := openStore(t, Config{})

	d := docdb.Document{Data: []byte("abc"), Values: map[string]string{"k": "v"}}
	id, err := s.AddDocument(d)
	require.NoError(t, err)

	d.Data[0] = 'x'
	d.Values["k"] = "changed"

	got, err := s.Document(id)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got.Data))
	assert.Equal(t, "v", got.Values["k"])
}

func TestStore_TransactionOverlay(t *testing.T) {
	s := openStore(t, Config{})

	keep, err := s.AddDocument(doc("keep"))
	require.NoError(t, err)

	require.NoError(t, s.OpenTransaction())
	assert.ErrorIs(t, s.OpenTransaction(), ErrTransactionOpen)

	staged, err := s.AddDocument(doc("staged"))
	require.NoError(t, err)
	require.NoError(t, s.DeleteDocument(keep))

	// Staged changes are visible before commit
	_, err = s.Document(keep)
	assert.True(t, docdb.IsNotFound(err))
	got, err := s.Document(staged)
	require.NoError(t, err)
	assert.Equal(t, "staged", string(got.Data))
	n, _ := s.DocCount()
	assert.Equal(t, 1, n)

	require.NoError(t, s.CancelTransaction())

	_, err = s.Document(staged)
	assert.True(t, docdb.IsNotFound(err))
	_, err = s.Document(keep)
	assert.NoError(t, err)

	require.NoError(t, s.OpenTransaction())
	_, err = s.AddDocument(doc("committed"))
	require.NoError(t, err)
	require.NoError(t, s.DeleteDocument(keep))
	require.NoError(t, s.CommitTransaction())

	n, _ = s.DocCount()
	assert.Equal(t, 1, n)
	_, err = s.Document(keep)
	assert.True(t, docdb.IsNotFound(err))
}

func TestStore_CloseSessionDiscardsTransaction(t *testing.T) {
	s := openStore(t, Config{})

	require.NoError(t, s.OpenTransaction())
	_, err := s.AddDocument(doc("lost"))
	require.NoError(t, err)
	require.NoError(t, s.CloseSession())

	n, _ := s.DocCount()
	assert.Equal(t, 0, n)

	// In-memory stores keep committed state across sessions
	require.NoError(t, s.OpenSession())
	_, err = s.AddDocument(doc("kept"))
	require.NoError(t, err)
	require.NoError(t, s.CloseSession())
	require.NoError(t, s.OpenSession())
	n, _ = s.DocCount()
	assert.Equal(t, 1, n)
}

func TestStore_PersistsAcrossSessions(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "raw", true: "compressed"}[compress], func(t *testing.T) {
			dir := t.TempDir()
			cfg := Config{DataDir: dir, CompressWAL: compress}

			s := openStore(t, cfg)
			id, err := s.AddDocument(doc("durable"))
			require.NoError(t, err)
			require.NoError(t, s.OpenTransaction())
			_, err = s.AddDocument(doc("in txn"))
			require.NoError(t, err)
			require.NoError(t, s.CommitTransaction())
			require.NoError(t, s.ReplaceDocument(id, doc("replaced")))
			require.NoError(t, s.FlushSession())
			require.NoError(t, s.CloseSession())

			reopened := openStore(t, cfg)
			n, err := reopened.DocCount()
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			got, err := reopened.Document(id)
			require.NoError(t, err)
			assert.Equal(t, "replaced", string(got.Data))

			next, err := reopened.AddDocument(doc("third"))
			require.NoError(t, err)
			assert.Equal(t, docdb.DocID(3), next)
		})
	}
}

func TestStore_IgnoresUncommittedGroup(t *testing.T) {
	dir := t.TempDir()

	committed, err := encodeRecord(wal.OpAddDocument, 1, &docdb.Document{Data: []byte("committed")})
	require.NoError(t, err)
	orphan, err := encodeRecord(wal.OpAddDocument, 2, &docdb.Document{Data: []byte("orphan")})
	require.NoError(t, err)

	w, err := wal.NewWAL(dir)
	require.NoError(t, err)
	_, err = w.AppendBatch([]wal.Record{
		{OpType: wal.OpBegin}, committed, {OpType: wal.OpCommit},
		{OpType: wal.OpBegin}, orphan,
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	s := openStore(t, Config{DataDir: dir})

	_, err = s.Document(1)
	assert.NoError(t, err)
	_, err = s.Document(2)
	assert.True(t, docdb.IsNotFound(err))

	// Writes after recovery must not be swallowed by the dropped group
	id, err := s.AddDocument(doc("after recovery"))
	require.NoError(t, err)
	assert.Equal(t, docdb.DocID(2), id)
	require.NoError(t, s.FlushSession())
	require.NoError(t, s.CloseSession())

	reopened := openStore(t, Config{DataDir: dir})
	got, err := reopened.Document(2)
	require.NoError(t, err)
	assert.Equal(t, "after recovery", string(got.Data))
	n, err := reopened.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_TornCommitKeepsLaterWrites(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "raw", true: "compressed"}[compress], func(t *testing.T) {
			dir := t.TempDir()
			cfg := Config{DataDir: dir, CompressWAL: compress}
			walPath := filepath.Join(dir, "wal.log")
			if compress {
				walPath = filepath.Join(dir, "wal_compressed.log")
			}

			s := New(cfg)
			require.NoError(t, s.OpenSession())
			require.NoError(t, s.OpenTransaction())
			_, err := s.AddDocument(doc("a"))
			require.NoError(t, err)
			require.NoError(t, s.CommitTransaction())
			require.NoError(t, s.Close())

			// Crash while the commit record was being written
			size, err := wal.FileSize(walPath)
			require.NoError(t, err)
			require.NoError(t, os.Truncate(walPath, size-3))

			s2 := New(cfg)
			require.NoError(t, s2.OpenSession())
			n, err := s2.DocCount()
			require.NoError(t, err)
			assert.Equal(t, 0, n, "group without commit is not applied")

			id, err := s2.AddDocument(doc("c"))
			require.NoError(t, err)
			assert.Equal(t, docdb.DocID(1), id)
			require.NoError(t, s2.FlushSession())
			require.NoError(t, s2.CloseSession())
			require.NoError(t, s2.Close())

			s3 := openStore(t, cfg)
			got, err := s3.Document(1)
			require.NoError(t, err)
			assert.Equal(t, "c", string(got.Data))
			n, err = s3.DocCount()
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestStore_SnapshotTruncatesWAL(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{DataDir: dir, SnapshotThreshold: 3}

	s := openStore(t, cfg)
	for _, d := range []string{"a", "b", "c"} {
		_, err := s.AddDocument(doc(d))
		require.NoError(t, err)
	}
	require.NoError(t, s.DeleteDocument(3))
	require.NoError(t, s.FlushSession())

	_, err := os.Stat(filepath.Join(dir, snapshotFileName))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), s.log.GetCurrentLSN())
	assert.Equal(t, 0, s.sinceSnapshot)

	_, err = s.AddDocument(doc("after snapshot"))
	require.NoError(t, err)
	require.NoError(t, s.FlushSession())
	require.NoError(t, s.CloseSession())

	reopened := openStore(t, cfg)
	n, err := reopened.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := reopened.Document(4)
	require.NoError(t, err)
	assert.Equal(t, "after snapshot", string(got.Data))

	// The highest id was deleted before the snapshot and is not reused
	next, err := reopened.AddDocument(doc("e"))
	require.NoError(t, err)
	assert.Equal(t, docdb.DocID(5), next)
}

func TestStore_CorruptSnapshotFailsOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFileName), []byte("{not json"), 0o644))

	s := New(Config{DataDir: dir})
	assert.Error(t, s.OpenSession())
	assert.NoError(t, s.Close())
}

// failingLog fails group commits
type failingLog struct {
	wal.WriteAheadLog
}

var errBatch = errors.New("disk full")

func (failingLog) AppendBatch([]wal.Record) (uint64, error) { return 0, errBatch }

func TestStore_CommitFailureEndsTransaction(t *testing.T) {
	s := New(Config{DataDir: t.TempDir()})
	s.openWAL = func() (wal.WriteAheadLog, error) {
		w, err := s.defaultOpenWAL()
		if err != nil {
			return nil, err
		}
		return failingLog{WriteAheadLog: w}, nil
	}
	require.NoError(t, s.OpenSession())
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.OpenTransaction())
	_, err := s.AddDocument(doc("never"))
	require.NoError(t, err)

	assert.ErrorIs(t, s.CommitTransaction(), errBatch)
	n, _ := s.DocCount()
	assert.Equal(t, 0, n)

	// A new transaction can start after the failed commit
	assert.NoError(t, s.OpenTransaction())
}

func TestStore_WithDatabase(t *testing.T) {
	s := New(Config{DataDir: t.TempDir()})
	db := docdb.New(s)

	id, err := db.AddDocument(doc("via controller"))
	require.NoError(t, err)
	assert.Equal(t, docdb.StateOpen, db.State())

	require.NoError(t, db.BeginTransaction())
	require.NoError(t, db.ReplaceDocument(id, doc("updated")))
	require.NoError(t, db.CommitTransaction())
	require.NoError(t, db.Flush())
	require.NoError(t, db.Close())

	assert.False(t, s.sessionOpen)
	got, err := s.Document(id)
	require.NoError(t, err)
	assert.Equal(t, "updated", string(got.Data))
	require.NoError(t, s.Close())
}
