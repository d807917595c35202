package docdb

import (
	"errors"
	"fmt"
)

// Usage errors returned by the Database itself
var (
	ErrInvalidOperation = errors.New("invalid operation")
	ErrDatabaseClosed   = errors.New("database is closed")
)

// Errors backends report for conditions callers are expected to handle
var (
	ErrDocNotFound     = errors.New("document not found")
	ErrInvalidDocument = errors.New("invalid document")
	ErrSessionNotOpen  = errors.New("no session open")
)

// OperationError describes a usage error raised before any backend call.
type OperationError struct {
	Op     string // public operation, e.g. "commit_transaction"
	Reason string
	Err    error
}

func (e *OperationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
}

// Unwrap returns the underlying sentinel for errors.Is support.
func (e *OperationError) Unwrap() error {
	return e.Err
}

func invalidOperation(op, reason string) error {
	return &OperationError{Op: op, Reason: reason, Err: ErrInvalidOperation}
}

// IsInvalidOperation returns true if err is a usage error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsNotFound returns true if a backend reported a missing document
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDocNotFound)
}

// InvariantError signals that a collaborator broke the session contract.
// It is raised with panic and is not meant to be recovered by callers.
type InvariantError struct {
	Op        string
	Invariant string
	State     State
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("docdb: invariant violated in %s: %s (state %s)", e.Op, e.Invariant, e.State)
}
