package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crispwave/email-broker/internal/emailbroker/queue"
)

var (
	// ErrBatchFailure reports a poll batch in which no message produced a
	// deletable entry.
	ErrBatchFailure = errors.New("no messages in batch could be reconciled")
	// ErrPartialBatchFailure reports a poll batch in which some but not
	// all messages produced deletable entries. The deletable ones were
	// still deleted so they are not redelivered.
	ErrPartialBatchFailure = errors.New("some messages in batch could not be reconciled")
	// ErrDeleteRequestFailed reports that the batch delete call itself
	// errored, regardless of how many entries were collected. Operators
	// should read this as "the queue service is failing", not "some
	// emails are stuck".
	ErrDeleteRequestFailed = errors.New("queue delete request failed")
)

// MessageProcessor produces one outcome per raw queue message.
type MessageProcessor interface {
	Process(ctx context.Context, msg queue.Message) queue.Outcome
}

// Reconciler runs the processor over a poll batch, collects the deletable
// entries, issues a single batch delete, and classifies the batch result.
type Reconciler struct {
	processor MessageProcessor
	consumer  queue.Consumer
	dryRun    bool
	logger    *slog.Logger
}

// NewReconciler creates a Reconciler. With dryRun set, deletion is skipped
// entirely and only the classification is reported.
func NewReconciler(processor MessageProcessor, consumer queue.Consumer, dryRun bool, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		processor: processor,
		consumer:  consumer,
		dryRun:    dryRun,
		logger:    logger.With("component", "reconciler"),
	}
}

// ProcessBatch processes every message in the batch sequentially, then
// reconciles the queue. Entries are collected for Delivered, Skip and
// SkipMessage outcomes; Retry withholds the entry so visibility timeout
// expiry redelivers it. The delete request is issued for whatever was
// collected even when the batch partially failed.
func (r *Reconciler) ProcessBatch(ctx context.Context, msgs []queue.Message) error {
	if len(msgs) == 0 {
		r.logger.DebugContext(ctx, "empty batch, nothing to reconcile")
		return nil
	}

	entries := make([]queue.DeleteEntry, 0, len(msgs))
	for _, msg := range msgs {
		started := time.Now()
		outcome := r.processor.Process(ctx, msg)
		messageProcessingDurationHist.Observe(time.Since(started).Seconds())
		messagesProcessedCounter.WithLabelValues(outcome.Kind.String()).Inc()

		if entry, ok := outcome.DeleteEntry(); ok {
			entries = append(entries, entry)
		}
	}

	if len(entries) > 0 {
		if r.dryRun {
			r.logger.InfoContext(ctx, "dry run, skipping queue delete", "deletable", len(entries))
		} else if err := r.consumer.DeleteBatch(ctx, entries); err != nil {
			batchOutcomeCounter.WithLabelValues("delete_request_failed").Inc()
			return fmt.Errorf("%w: %w", ErrDeleteRequestFailed, err)
		}
	}

	switch {
	case len(entries) == len(msgs):
		batchOutcomeCounter.WithLabelValues("success").Inc()
		r.logger.InfoContext(ctx, "batch reconciled", "received", len(msgs), "deleted", len(entries))
		return nil
	case len(entries) == 0:
		batchOutcomeCounter.WithLabelValues("batch_failure").Inc()
		return fmt.Errorf("%w: received %d", ErrBatchFailure, len(msgs))
	default:
		batchOutcomeCounter.WithLabelValues("partial_batch_failure").Inc()
		return fmt.Errorf("%w: %d of %d deletable", ErrPartialBatchFailure, len(entries), len(msgs))
	}
}
