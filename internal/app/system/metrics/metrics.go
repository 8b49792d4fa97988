// Package metrics provides Prometheus metrics for the assignment engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssignAttemptsTotal tracks resolved assign attempts by outcome
	// (confirmed, already_assigned, failed, discarded, rejected_in_flight, invalid).
	AssignAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assignhub",
			Subsystem: "reconcile",
			Name:      "assign_attempts_total",
			Help:      "Total number of assign attempts by outcome",
		},
		[]string{"outcome"},
	)

	// UnassignsTotal tracks local unassign actions.
	UnassignsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assignhub",
			Subsystem: "reconcile",
			Name:      "unassigns_total",
			Help:      "Total number of local unassign actions",
		},
	)

	// StoreLoadsTotal tracks store loads by source (remote, cache, none) and result.
	StoreLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assignhub",
			Subsystem: "store",
			Name:      "loads_total",
			Help:      "Total number of assignment store loads by source and result",
		},
		[]string{"source", "result"},
	)

	// CacheWritesTotal tracks persisted snapshot writes by result (ok, error, skipped_empty).
	CacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assignhub",
			Subsystem: "store",
			Name:      "cache_writes_total",
			Help:      "Total number of persisted snapshot writes by result",
		},
		[]string{"result"},
	)

	// RemoteRequestDuration tracks outbound calls to the assignment backend.
	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "assignhub",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound backend requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "status_code"},
	)
)
