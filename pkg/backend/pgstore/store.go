// Package pgstore is a docdb backend persisting documents in PostgreSQL.
//
// The Store owns a connection pool. Each session holds one connection from
// the pool so that a transaction and the mutations inside it share it.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dd0wney/cluso-docdb/pkg/docdb"
	"github.com/dd0wney/cluso-docdb/pkg/logging"
)

// Config holds pgstore configuration
type Config struct {
	URL      string
	MaxConns int32

	// OpTimeout bounds each statement. Zero means no deadline.
	OpTimeout time.Duration

	Logger logging.Logger
}

// querier is satisfied by the pool, a pooled connection and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL document backend
type Store struct {
	cfg    Config
	logger logging.Logger
	pool   *pgxpool.Pool

	mu   sync.Mutex
	conn *pgxpool.Conn
	tx   pgx.Tx
}

var (
	_ docdb.Store      = (*Store)(nil)
	_ docdb.KeepAliver = (*Store)(nil)
)

// New connects to PostgreSQL and creates the schema if needed.
func New(ctx context.Context, cfg Config) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	s := &Store{
		cfg:    cfg,
		logger: logger.With(logging.Backend("postgres")),
		pool:   pool,
	}

	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return s, nil
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
	if s.conn != nil {
		return s.conn
	}
	return s.pool
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// OpenSession acquires the session connection.
func (s *Store) OpenSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return errors.New("pgstore: session already open")
	}

	ctx, cancel := s.opContext()
	defer cancel()

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: acquire connection: %w", err)
	}
	s.conn = conn
	s.logger.Debug("session opened")
	return nil
}

// CloseSession rolls back any open transaction and releases the connection.
func (s *Store) CloseSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeLocked()
}

func (s *Store) closeLocked() error {
	if s.conn == nil {
		return nil
	}

	var err error
	if s.tx != nil {
		ctx, cancel := s.opContext()
		if rbErr := s.tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = fmt.Errorf("pgstore: rollback at close: %w", rbErr)
		}
		cancel()
		s.tx = nil
	}

	s.conn.Release()
	s.conn = nil
	return err
}

// FlushSession is a no-op: committed PostgreSQL transactions are durable.
func (s *Store) FlushSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return docdb.ErrSessionNotOpen
	}
	return nil
}

// KeepAlive pings the session connection so it is not reaped while idle.
func (s *Store) KeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	ctx, cancel := s.opContext()
	defer cancel()

	if err := s.conn.Ping(ctx); err != nil {
		return fmt.Errorf("pgstore: keep alive: %w", err)
	}
	return nil
}

// OpenTransaction begins a transaction on the session connection.
func (s *Store) OpenTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return docdb.ErrSessionNotOpen
	}
	if s.tx != nil {
		return errors.New("pgstore: transaction already open")
	}

	// Begin is bounded by the per-call deadline; the transaction itself is not
	ctx, cancel := s.opContext()
	defer cancel()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: begin: %w", err)
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
		return errors.New("pgstore: no transaction to commit")
	}

	ctx, cancel := s.opContext()
	defer cancel()

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgstore: commit: %w", err)
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

	ctx, cancel := s.opContext()
	defer cancel()

	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("pgstore: rollback: %w", err)
	}
	return nil
}

// Close releases any session connection and closes the pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.logger.Warn("closing store with a session still open")
	}
	err := s.closeLocked()
	s.pool.Close()
	return err
}
