// Package queue defines the broker's view of the work queue: the raw
// message shape, the parsed pointer extracted from it, the per-message
// processing outcome, and the consumer contract the SQS adapter implements.
package queue

import "context"

// Message is one raw queue entry as received from the queue service.
// Adapters map absent fields to the empty string; the queue service never
// hands out empty ids or receipt handles, so "" reads as missing.
type Message struct {
	// ID is the queue service's identifier for this receive.
	ID string
	// ReceiptHandle removes the entry from the queue. It is only valid
	// until the visibility timeout expires.
	ReceiptHandle string
	// Body is the raw payload, expected to be an email pointer document.
	Body string
}

// DeleteEntry identifies one queue entry in a batch delete request.
type DeleteEntry struct {
	ID            string
	ReceiptHandle string
}

// Consumer is the work queue as the reconciler sees it: one poll produces a
// batch of messages, and one batch delete removes the reconciled entries.
type Consumer interface {
	Receive(ctx context.Context) ([]Message, error)
	DeleteBatch(ctx context.Context, entries []DeleteEntry) error
}
