package docdb

import (
	"errors"
	"time"

	"github.com/dd0wney/cluso-docdb/pkg/logging"
	"github.com/dd0wney/cluso-docdb/pkg/metrics"
)

// Public operation names, used in errors, logs and metric labels
const (
	opEndSession        = "end_session"
	opFlush             = "flush"
	opBeginTransaction  = "begin_transaction"
	opCommitTransaction = "commit_transaction"
	opCancelTransaction = "cancel_transaction"
	opAddDocument       = "add_document"
	opDeleteDocument    = "delete_document"
	opReplaceDocument   = "replace_document"
	opClose             = "close"
)

// State is the externally visible session state of a Database
type State int

const (
	StateClosed State = iota
	StateOpen
	StateOpenWithTxn
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateOpenWithTxn:
		return "open_with_txn"
	default:
		return "unknown"
	}
}

// Database is the session controller for one open database handle.
type Database struct {
	backend Backend
	logger  logging.Logger
	metrics *metrics.Registry

	sessionInProgress     bool
	transactionInProgress bool
	sessionID             string
	closed                bool
}

// Option configures a Database
type Option func(*Database)

// WithLogger sets the logger. The default discards all output.
func WithLogger(logger logging.Logger) Option {
	return func(db *Database) {
		if logger != nil {
			db.logger = logger
		}
	}
}

// WithMetrics records session, transaction and operation metrics in r.
func WithMetrics(r *metrics.Registry) Option {
	return func(db *Database) {
		db.metrics = r
	}
}

// New creates a Database over backend with no session open.
func New(backend Backend, opts ...Option) *Database {
	db := &Database{
		backend: backend,
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.logger = db.logger.With(logging.Component("docdb"))
	return db
}

// SessionInProgress reports whether a write session is open on the backend.
func (db *Database) SessionInProgress() bool {
	return db.sessionInProgress
}

// TransactionInProgress reports whether a transaction is open.
func (db *Database) TransactionInProgress() bool {
	return db.transactionInProgress
}

// State returns the current position in the session state machine.
func (db *Database) State() State {
	switch {
	case db.transactionInProgress:
		return StateOpenWithTxn
	case db.sessionInProgress:
		return StateOpen
	default:
		return StateClosed
	}
}

// SessionID returns the correlation id of the open session, or "" when closed.
func (db *Database) SessionID() string {
	return db.sessionID
}

// Close ends any open session and makes the Database terminal. Later
// mutations fail with ErrDatabaseClosed. The backend is not closed.
//
// Close must be called before the backend releases its resources: once the
// backend is gone its hooks can no longer tear the session down.
func (db *Database) Close() error {
	if db.closed {
		return nil
	}

	err := db.EndSession()
	db.closed = true

	if db.sessionInProgress {
		db.violate(opClose, "session must be closed before the database is released")
	}

	return err
}

// observe records the outcome of a public operation
func (db *Database) observe(op string, start time.Time, err error) {
	status := metrics.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidOperation), errors.Is(err, ErrDatabaseClosed):
		status = metrics.StatusInvalid
	default:
		status = metrics.StatusError
	}

	if db.metrics != nil {
		db.metrics.RecordOperation(op, status, time.Since(start))
	}

	if err != nil {
		db.logger.Debug("operation failed",
			logging.Operation(op),
			logging.String("state", db.State().String()),
			logging.Error(err),
		)
	}
}

func (db *Database) recordTransaction(outcome string) {
	if db.metrics != nil {
		db.metrics.RecordTransaction(outcome)
	}
}
