// Package memstore is a docdb backend that keeps documents in memory and
// journals every mutation through a write-ahead log.
//
// A session opens the WAL and rebuilds state from the last snapshot plus the
// log. Mutations outside a transaction are appended to the log immediately
// and become durable on flush. A transaction is staged in an overlay and
// written as a single group, bracketed by begin and commit records, when it
// commits. Replay ignores groups without a commit record.
package memstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
	"github.com/dd0wney/cluso-docdb/pkg/logging"
	"github.com/dd0wney/cluso-docdb/pkg/metrics"
	"github.com/dd0wney/cluso-docdb/pkg/wal"
)

// Config holds memstore configuration
type Config struct {
	// DataDir holds the WAL and snapshot. Empty means purely in memory.
	DataDir string

	// CompressWAL stores WAL payloads snappy-compressed
	CompressWAL bool

	// SnapshotThreshold is the number of WAL records after which a flush
	// writes a snapshot and truncates the log. Zero disables snapshots.
	SnapshotThreshold int

	Logger  logging.Logger
	Metrics *metrics.Registry
}

// ErrTransactionOpen is returned by OpenTransaction when one is already open
var ErrTransactionOpen = errors.New("memstore: transaction already open")

// Store is an in-memory document backend
type Store struct {
	cfg     Config
	logger  logging.Logger
	openWAL func() (wal.WriteAheadLog, error)

	mu            sync.RWMutex
	log           wal.WriteAheadLog
	sessionOpen   bool
	docs          map[docdb.DocID]docdb.Document
	lastDocID     docdb.DocID
	txn           *transaction
	sinceSnapshot int
}

var _ docdb.Store = (*Store)(nil)

// New creates a memstore. No files are touched until a session opens.
func New(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	s := &Store{
		cfg:    cfg,
		logger: logger.With(logging.Backend("memory")),
		docs:   make(map[docdb.DocID]docdb.Document),
	}
	s.openWAL = s.defaultOpenWAL
	return s
}

func (s *Store) defaultOpenWAL() (wal.WriteAheadLog, error) {
	opts := []wal.Option{wal.WithLogger(s.logger), wal.WithMetrics(s.cfg.Metrics)}
	if s.cfg.CompressWAL {
		return wal.NewCompressedWAL(s.cfg.DataDir, opts...)
	}
	return wal.NewWAL(s.cfg.DataDir, opts...)
}

func (s *Store) persistent() bool {
	return s.cfg.DataDir != ""
}

// Close releases the WAL if a session was left open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sessionOpen {
		return nil
	}

	s.logger.Warn("closing store with a session still open")
	s.txn = nil
	s.sessionOpen = false
	return s.closeLogLocked()
}

func (s *Store) closeLogLocked() error {
	if s.log == nil {
		return nil
	}
	err := s.log.Close()
	s.log = nil
	if err != nil {
		return fmt.Errorf("memstore: close WAL: %w", err)
	}
	return nil
}

// Document returns the document with the given id, including changes staged
// in an open transaction.
func (s *Store) Document(id docdb.DocID) (docdb.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.lookupLocked(id)
	if !ok {
		return docdb.Document{}, notFound(id)
	}
	return doc.Clone(), nil
}

// DocCount returns the number of documents, including staged changes.
func (s *Store) DocCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.docs)
	if s.txn != nil {
		for id, doc := range s.txn.changes {
			_, committed := s.docs[id]
			switch {
			case doc == nil && committed:
				n--
			case doc != nil && !committed:
				n++
			}
		}
	}
	return n, nil
}

func (s *Store) lookupLocked(id docdb.DocID) (docdb.Document, bool) {
	if s.txn != nil {
		if doc, staged := s.txn.changes[id]; staged {
			if doc == nil {
				return docdb.Document{}, false
			}
			return *doc, true
		}
	}
	doc, ok := s.docs[id]
	return doc, ok
}

func notFound(id docdb.DocID) error {
	return fmt.Errorf("memstore: document %d: %w", id, docdb.ErrDocNotFound)
}
