package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initWALMetrics() {
	r.WALBytesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "docdb_wal_bytes_total",
			Help: "Bytes appended to the write-ahead log",
		},
		[]string{"kind"},
	)

	r.WALRecordsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "docdb_wal_records_total",
			Help: "Records appended to the write-ahead log",
		},
	)

	r.SnapshotsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "docdb_snapshots_total",
			Help: "Snapshots written by the in-memory backend",
		},
	)
}
