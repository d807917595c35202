package docdb

import (
	"time"

	"github.com/dd0wney/cluso-docdb/pkg/metrics"
)

// BeginTransaction opens a transaction, opening a session first if needed.
// It fails with ErrInvalidOperation when a transaction is already open. If
// the backend fails no transaction is started, though the session may have
// been opened.
func (db *Database) BeginTransaction() error {
	start := time.Now()
	err := db.beginTransaction()
	db.observe(opBeginTransaction, start, err)
	return err
}

func (db *Database) beginTransaction() error {
	if err := db.ensureSessionOpen(opBeginTransaction); err != nil {
		return err
	}
	if db.transactionInProgress {
		return invalidOperation(opBeginTransaction, "transaction already in progress")
	}

	if err := db.backend.OpenTransaction(); err != nil {
		return err
	}
	db.transactionInProgress = true
	db.recordTransaction(metrics.OutcomeBegun)
	db.checkInvariants(opBeginTransaction)

	return nil
}

// CommitTransaction commits the open transaction. The transaction slot is
// released before the backend is called, so it is free afterwards even if
// the commit fails.
func (db *Database) CommitTransaction() error {
	start := time.Now()
	err := db.finishTransaction(opCommitTransaction, db.backend.CommitTransaction, metrics.OutcomeCommitted)
	db.observe(opCommitTransaction, start, err)
	return err
}

// CancelTransaction discards the open transaction. Like CommitTransaction it
// releases the transaction slot before calling the backend.
func (db *Database) CancelTransaction() error {
	start := time.Now()
	err := db.finishTransaction(opCancelTransaction, db.backend.CancelTransaction, metrics.OutcomeCancelled)
	db.observe(opCancelTransaction, start, err)
	return err
}

func (db *Database) finishTransaction(op string, hook func() error, outcome string) error {
	if !db.transactionInProgress {
		return invalidOperation(op, "no transaction currently in progress")
	}
	db.transactionInProgress = false
	db.assertSessionOpen(op)

	if err := hook(); err != nil {
		db.recordTransaction(metrics.OutcomeFailed)
		return err
	}
	db.recordTransaction(outcome)
	return nil
}
