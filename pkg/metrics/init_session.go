package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSessionMetrics() {
	r.SessionsOpenedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "docdb_sessions_opened_total",
			Help: "Total number of backend sessions opened",
		},
	)

	r.SessionsClosedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "docdb_sessions_closed_total",
			Help: "Total number of backend sessions torn down",
		},
	)

	r.SessionOpen = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "docdb_session_open",
			Help: "Whether a write session is currently open (1) or not (0)",
		},
	)

	r.TransactionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "docdb_transactions_total",
			Help: "Transaction lifecycle events by outcome",
		},
		[]string{"outcome"},
	)

	r.CleanupErrorsDiscarded = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "docdb_cleanup_errors_discarded_total",
			Help: "Session close failures discarded to preserve an earlier cancel failure",
		},
	)
}
