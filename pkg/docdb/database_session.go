package docdb

import (
	"time"

	"github.com/dd0wney/cluso-docdb/pkg/logging"
	"github.com/dd0wney/cluso-docdb/pkg/metrics"
	"github.com/google/uuid"
)

// ensureSessionOpen opens a backend session unless one is already open. If
// the backend fails the session stays closed and its error is returned as is.
func (db *Database) ensureSessionOpen(op string) error {
	if db.closed {
		return &OperationError{Op: op, Err: ErrDatabaseClosed}
	}
	if db.sessionInProgress {
		return nil
	}

	if err := db.backend.OpenSession(); err != nil {
		return err
	}
	db.sessionInProgress = true
	db.sessionID = uuid.NewString()

	if db.metrics != nil {
		db.metrics.RecordSessionOpened()
	}
	db.logger.Debug("session opened", logging.SessionID(db.sessionID), logging.Operation(op))

	return nil
}

// EndSession tears down the open session, cancelling any live transaction
// first. It is a no-op when no session is open.
//
// If the cancel fails the session is still considered closed: CloseSession is
// attempted for cleanup, its error is discarded, and the cancel error is
// returned.
func (db *Database) EndSession() error {
	if !db.sessionInProgress {
		return nil
	}

	start := time.Now()
	err := db.endSession()
	db.observe(opEndSession, start, err)
	return err
}

func (db *Database) endSession() error {
	if db.transactionInProgress {
		db.transactionInProgress = false
		if cancelErr := db.backend.CancelTransaction(); cancelErr != nil {
			db.recordTransaction(metrics.OutcomeFailed)

			db.sessionInProgress = false
			if closeErr := db.backend.CloseSession(); closeErr != nil {
				// The first error wins.
				db.logger.Warn("discarding session close error after failed cancel",
					logging.SessionID(db.sessionID),
					logging.Error(closeErr),
					logging.String("cancel_error", cancelErr.Error()),
				)
				if db.metrics != nil {
					db.metrics.RecordDiscardedCleanupError()
				}
			}
			db.sessionEnded(cancelErr)
			return cancelErr
		}
		db.recordTransaction(metrics.OutcomeCancelled)
	}

	db.sessionInProgress = false
	err := db.backend.CloseSession()
	db.sessionEnded(err)
	return err
}

func (db *Database) sessionEnded(err error) {
	if db.metrics != nil {
		db.metrics.RecordSessionClosed()
	}
	if err != nil {
		db.logger.Warn("session ended with error", logging.SessionID(db.sessionID), logging.Error(err))
	} else {
		db.logger.Debug("session closed", logging.SessionID(db.sessionID))
	}
	db.sessionID = ""
}

// Flush asks the backend to make the session's changes durable. It is a
// no-op when no session is open.
func (db *Database) Flush() error {
	if !db.sessionInProgress {
		return nil
	}

	start := time.Now()
	err := db.backend.FlushSession()
	db.observe(opFlush, start, err)
	return err
}

// KeepAlive pings backends that implement KeepAliver.
func (db *Database) KeepAlive() error {
	if ka, ok := db.backend.(KeepAliver); ok {
		return ka.KeepAlive()
	}
	return nil
}
