// Package metrics exposes Prometheus instrumentation for the ingestion and
// alerting pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "leakwatch"

var (
	connectorRunBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

	// Connector pipeline metrics
	ConnectorRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "connector_run_duration_seconds",
		Help:      "Time taken for a single connector fetch-and-store to complete.",
		Buckets:   connectorRunBuckets,
	}, []string{"connector_kind"})

	ConnectorRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connector_runs_total",
		Help:      "Count of connector executions.",
	}, []string{"connector_kind", "status"})

	FindingsStoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "findings_stored_total",
		Help:      "Number of new findings persisted after deduplication.",
	}, []string{"source"})

	FindingsDedupedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "findings_deduped_total",
		Help:      "Number of candidate findings skipped as duplicates.",
	}, []string{"source"})

	// Alert metrics
	AlertRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_runs_total",
		Help:      "Count of alert rule executions.",
	}, []string{"status"})

	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Number of successful channel deliveries.",
	}, []string{"channel"})

	DeliveryFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_failures_total",
		Help:      "Number of failed channel deliveries.",
	}, []string{"channel"})
)
