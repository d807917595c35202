// Package docdb implements the session and transaction lifecycle of a
// document database on top of a pluggable storage backend.
//
// A Database owns two flags: whether a write session is open on the backend
// and whether a transaction is open inside that session. Every public call
// is expressed as ordering rules over those flags plus calls into the
// backend's primitive hooks (see Backend). The Database does not interpret
// backend errors; it returns them unchanged.
//
// Session and transaction state machine:
//
//	Closed --(first mutation or BeginTransaction)--> Open
//	Open --BeginTransaction--> OpenWithTxn
//	OpenWithTxn --CommitTransaction / CancelTransaction--> Open
//	Open | OpenWithTxn --EndSession--> Closed
//
// Commit and cancel release the transaction slot before calling the backend,
// so a failed commit still leaves the Database in Open. Callers must not retry
// a commit or cancel after a failure.
//
// When EndSession has to cancel a live transaction and the cancel fails, the
// session is torn down anyway and any error from closing it is discarded, so
// the caller always sees the cancel failure.
//
// A Database is not safe for concurrent use. Owners must call Close before
// releasing the backend.
package docdb
