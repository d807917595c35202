package wal

// WALAppender is the interface for appending entries to a WAL.
type WALAppender interface {
	// Append buffers a new entry and returns its LSN. The entry is not
	// durable until Sync or AppendBatch returns.
	Append(opType OpType, data []byte) (uint64, error)

	// AppendBatch writes records as a group and syncs once. Returns the
	// LSN of the last record.
	AppendBatch(records []Record) (uint64, error)

	// Sync flushes buffered entries and fsyncs the log file.
	Sync() error
}

// WALReader is the interface for reading entries from a WAL.
type WALReader interface {
	// Replay iterates through all valid WAL entries in order.
	Replay(handler func(*Entry) error) error
}

// WALManager is the interface for WAL lifecycle management.
type WALManager interface {
	// Truncate removes all entries, typically after a snapshot.
	Truncate() error

	// Rewind drops every entry after lsn.
	Rewind(lsn uint64) error

	Close() error

	GetCurrentLSN() uint64
}

// WriteAheadLog is the complete interface for a Write-Ahead Log implementation.
type WriteAheadLog interface {
	WALAppender
	WALReader
	WALManager
}

var _ WriteAheadLog = (*WAL)(nil)
