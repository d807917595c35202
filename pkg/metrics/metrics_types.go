package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the document database
type Registry struct {
	// Session metrics
	SessionsOpenedTotal prometheus.Counter
	SessionsClosedTotal prometheus.Counter
	SessionOpen         prometheus.Gauge

	// Transaction metrics
	TransactionsTotal *prometheus.CounterVec

	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// CleanupErrorsDiscarded counts close failures swallowed while unwinding
	// a failed transaction cancel.
	CleanupErrorsDiscarded prometheus.Counter

	// WAL metrics
	WALBytesTotal   *prometheus.CounterVec
	WALRecordsTotal prometheus.Counter
	SnapshotsTotal  prometheus.Counter

	registry *prometheus.Registry
}

// Transaction outcomes used as the "outcome" label
const (
	OutcomeBegun     = "begun"
	OutcomeCommitted = "committed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Operation statuses used as the "status" label
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusInvalid = "invalid"
)

var (
	defaultRegistry *Registry
	once            sync.Once
)
