package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "email_broker",
			Name:      "messages_processed_total",
			Help:      "Total queue messages processed, by outcome.",
		},
		[]string{"outcome"}, // "delivered", "skip", "skip_message", "retry"
	)

	messageProcessingDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "email_broker",
			Name:      "message_processing_duration_seconds",
			Help:      "Duration of processing one queue message.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	batchOutcomeCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "email_broker",
			Name:      "batches_total",
			Help:      "Total poll batches reconciled, by result.",
		},
		[]string{"result"}, // "success", "batch_failure", "partial_batch_failure", "delete_request_failed"
	)

	emailsReleasedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "email_broker",
			Name:      "stuck_emails_released_total",
			Help:      "Total stuck Sending records released back to Pending by the sweeper.",
		},
	)
)
