package docdb

import "io"

// Backend is the set of primitive hooks a storage backend supplies. The
// Database calls them only in the orders it permits:
//
//   - OpenSession is never called while a session is open, and CloseSession
//     never while none is.
//   - OpenTransaction, CommitTransaction and CancelTransaction are only called
//     inside a session.
//   - CancelTransaction and CloseSession may be called during cleanup after
//     an earlier hook failed, and must not depend on that hook's success.
//
// Hooks may block on I/O. Errors are returned to callers unchanged.
type Backend interface {
	OpenSession() error
	CloseSession() error
	FlushSession() error

	OpenTransaction() error
	CommitTransaction() error
	CancelTransaction() error

	AddDocument(doc Document) (DocID, error)
	DeleteDocument(id DocID) error
	ReplaceDocument(id DocID, doc Document) error
}

// KeepAliver is implemented by backends that hold remote resources which
// expire when idle. Local backends need not implement it.
type KeepAliver interface {
	KeepAlive() error
}

// Reader gives read access to the documents a backend holds. Reads are not
// part of the session contract and may be served outside a session.
type Reader interface {
	Document(id DocID) (Document, error)
	DocCount() (int, error)
}

// Store is a complete backend as built by the backend factory.
type Store interface {
	Backend
	Reader
	io.Closer
}
