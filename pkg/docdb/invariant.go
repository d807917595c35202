package docdb

import "github.com/dd0wney/cluso-docdb/pkg/logging"

// checkInvariants panics when the transaction flag is set without a session.
func (db *Database) checkInvariants(op string) {
	if db.transactionInProgress && !db.sessionInProgress {
		db.violate(op, "transaction in progress without a session")
	}
}

func (db *Database) assertSessionOpen(op string) {
	if !db.sessionInProgress {
		db.violate(op, "session expected to be open")
	}
}

func (db *Database) violate(op, invariant string) {
	err := &InvariantError{Op: op, Invariant: invariant, State: db.State()}
	db.logger.Error("invariant violated",
		logging.Operation(op),
		logging.String("invariant", invariant),
	)
	panic(err)
}
