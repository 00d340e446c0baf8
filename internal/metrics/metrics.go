// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inboxintel"

// Ingest outcomes.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

var (
	// MessagesIngested counts ingest calls by source and outcome.
	MessagesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_ingested_total",
		Help:      "Messages received by the ingestion gateway, by source and outcome.",
	}, []string{"source", "outcome"})

	// MessagesClassified counts successful classifications by category.
	MessagesClassified = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_classified_total",
		Help:      "Messages classified, by category.",
	}, []string{"category"})

	// ClassificationFailures counts messages left unclassified after a run.
	ClassificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "classification_failures_total",
		Help:      "Classification attempts that failed and will be retried.",
	})

	// AlertsSent counts alert dispatch attempts by channel and result.
	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification deliveries, by channel and result.",
	}, []string{"channel", "result"})

	// TaskDuration observes scheduled task run time in seconds.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Scheduled task run time.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"task", "result"})

	// MessagesByState reports the stored message count per processing state.
	MessagesByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "messages",
		Help:      "Stored messages, by processing state.",
	}, []string{"state"})
)

// Result returns the label value for an operation outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
