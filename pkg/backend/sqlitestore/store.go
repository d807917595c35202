package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
	"github.com/dd0wney/cluso-docdb/pkg/logging"
)

// Config holds sqlitestore configuration
type Config struct {
	Path        string
	BusyTimeout time.Duration

	// OpTimeout bounds each statement. Zero means no deadline.
	OpTimeout time.Duration

	Logger logging.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a SQLite document backend. The database is open only while a
// session is.
type Store struct {
	cfg    Config
	logger logging.Logger

	mu sync.Mutex
	db *sql.DB
	tx *sql.Tx
}

var _ docdb.Store = (*Store)(nil)

// New creates a sqlitestore for the database file at cfg.Path.
func New(cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	return &Store{
		cfg:    cfg,
		logger: logger.With(logging.Backend("sqlite"), logging.Path(cfg.Path)),
	}
}

func (s *Store) opContext() (context.Context, context.CancelFunc) {
	if s.cfg.OpTimeout > 0 {
		return context.WithTimeout(context.Background(), s.cfg.OpTimeout)
	}
	return context.WithCancel(context.Background())
}

func (s *Store) querierLocked() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// OpenSession opens the database and applies pending migrations.
func (s *Store) OpenSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return fmt.Errorf("sqlitestore: session already open")
	}

	ctx, cancel := s.opContext()
	defer cancel()

	db, err := openDB(ctx, s.cfg.Path, s.cfg.BusyTimeout)
	if err != nil {
		return fmt.Errorf("sqlitestore: %w", err)
	}
	if err := migrate(ctx, db, s.logger); err != nil {
		db.Close()
		return fmt.Errorf("sqlitestore: %w", err)
	}

	s.db = db
	s.logger.Debug("session opened")
	return nil
}

// CloseSession rolls back any open transaction and closes the database.
func (s *Store) CloseSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeLocked()
}

func (s *Store) closeLocked() error {
	if s.db == nil {
		return nil
	}

	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Warn("rollback at session close failed", logging.Error(err))
		}
		s.tx = nil
	}

	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("sqlitestore: close: %w", err)
	}
	return nil
}

// FlushSession checkpoints the SQLite WAL into the main database file. With
// a transaction open there is nothing committed left to flush.
func (s *Store) FlushSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return docdb.ErrSessionNotOpen
	}
	if s.tx != nil {
		return nil
	}

	ctx, cancel := s.opContext()
	defer cancel()

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("sqlitestore: checkpoint: %w", err)
	}
	return nil
}

// OpenTransaction begins a SQL transaction that subsequent mutations join.
func (s *Store) OpenTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return docdb.ErrSessionNotOpen
	}
	if s.tx != nil {
		return fmt.Errorf("sqlitestore: transaction already open")
	}

	// The transaction outlives any per-call deadline; a cancelled context
	// would roll it back.
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin: %w", err)
	}
	s.tx = tx
	return nil
}

// CommitTransaction commits the open transaction.
func (s *Store) CommitTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.tx
	s.tx = nil
	if tx == nil {
		return fmt.Errorf("sqlitestore: no transaction to commit")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitestore: commit: %w", err)
	}
	return nil
}

// CancelTransaction rolls back the open transaction, if any.
func (s *Store) CancelTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.tx
	s.tx = nil
	if tx == nil {
		return nil
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("sqlitestore: rollback: %w", err)
	}
	return nil
}

// Close closes the database if a session was left open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		s.logger.Warn("closing store with a session still open")
	}
	return s.closeLocked()
}

func encodeValues(values map[string]string) (sql.NullString, error) {
	if len(values) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal values: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeValues(raw sql.NullString) (map[string]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(raw.String), &values); err != nil {
		return nil, fmt.Errorf("unmarshal values: %w", err)
	}
	return values, nil
}

func notFound(id docdb.DocID) error {
	return fmt.Errorf("sqlitestore: document %d: %w", id, docdb.ErrDocNotFound)
}
