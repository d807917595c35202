package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initSessionMetrics()
	r.initOperationMetrics()
	r.initWALMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordSessionOpened records a successful backend session open
func (r *Registry) RecordSessionOpened() {
	r.SessionsOpenedTotal.Inc()
	r.SessionOpen.Set(1)
}

// RecordSessionClosed records a session teardown, successful or not
func (r *Registry) RecordSessionClosed() {
	r.SessionsClosedTotal.Inc()
	r.SessionOpen.Set(0)
}

// RecordTransaction records a transaction lifecycle event
func (r *Registry) RecordTransaction(outcome string) {
	r.TransactionsTotal.WithLabelValues(outcome).Inc()
}

// RecordOperation records a public database operation
func (r *Registry) RecordOperation(operation, status string, duration time.Duration) {
	r.OperationsTotal.WithLabelValues(operation, status).Inc()
	r.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDiscardedCleanupError records a secondary failure that was swallowed
func (r *Registry) RecordDiscardedCleanupError() {
	r.CleanupErrorsDiscarded.Inc()
}

// RecordWALWrite records one appended WAL record: raw is the payload size,
// stored is the size written after encoding.
func (r *Registry) RecordWALWrite(raw, stored int) {
	r.WALRecordsTotal.Inc()
	r.WALBytesTotal.WithLabelValues("raw").Add(float64(raw))
	r.WALBytesTotal.WithLabelValues("stored").Add(float64(stored))
}

// RecordSnapshot records a completed snapshot
func (r *Registry) RecordSnapshot() {
	r.SnapshotsTotal.Inc()
}
