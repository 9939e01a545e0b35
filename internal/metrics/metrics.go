// Package metrics holds the Prometheus instruments shared across the
// ingestion pipeline and the reputation job. All collectors register on
// the default registry; the /metrics route serves them with promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsProcessed counts firehose events applied, by collection and action.
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadline_firehose_events_processed_total",
		Help: "Firehose events successfully applied to the index.",
	}, []string{"collection", "action"})

	// EventsSkipped counts events dropped before indexing (validation
	// failures, unknown collections).
	EventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadline_firehose_events_skipped_total",
		Help: "Firehose events skipped before indexing.",
	}, []string{"reason"})

	// EventsFailed counts events whose apply returned an error.
	EventsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "threadline_firehose_events_failed_total",
		Help: "Firehose events that failed to apply.",
	})

	// FirehoseCursor tracks the last applied upstream event id.
	FirehoseCursor = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "threadline_firehose_cursor",
		Help: "Last applied firehose event id.",
	})

	// FirehoseConnected is 1 while the upstream subscription is live.
	FirehoseConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "threadline_firehose_connected",
		Help: "Whether the firehose subscription is connected (0 or 1).",
	})

	// ReputationRuns counts reputation recomputations by scope and outcome.
	ReputationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadline_reputation_runs_total",
		Help: "Reputation recomputation runs, by scope and outcome.",
	}, []string{"scope", "outcome"})

	// ReputationDuration observes how long a full scope recomputation takes.
	ReputationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "threadline_reputation_run_duration_seconds",
		Help:    "Duration of reputation recomputation runs.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// SybilClustersFlagged counts clusters newly flagged by detection runs.
	SybilClustersFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "threadline_sybil_clusters_flagged_total",
		Help: "Sybil clusters newly flagged by detection runs.",
	})
)
