// Package sqs adapts Amazon SQS to the broker's queue.Consumer contract.
package sqs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/crispwave/email-broker/internal/emailbroker/queue"
)

// API is the subset of the SQS client the consumer uses.
type API interface {
	ReceiveMessage(ctx context.Context, params *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *awssqs.DeleteMessageBatchInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageBatchOutput, error)
}

// Config holds the receive contract parameters. The visibility timeout must
// cover fetch + deliver + both transitions for one message.
type Config struct {
	QueueURL          string
	MaxMessages       int32
	VisibilityTimeout int32
	WaitTimeSeconds   int32
}

// Consumer reads email pointer messages from a single SQS queue.
type Consumer struct {
	client API
	cfg    Config
	logger *slog.Logger
}

// NewConsumer creates a Consumer for the queue named in cfg.
func NewConsumer(client API, cfg Config, logger *slog.Logger) *Consumer {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 1
	}
	if cfg.MaxMessages > 10 {
		cfg.MaxMessages = 10 // SQS batch ceiling
	}
	return &Consumer{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "sqs_consumer"),
	}
}

// Receive long-polls the queue for one batch of messages. An empty batch is
// not an error.
func (c *Consumer) Receive(ctx context.Context) ([]queue.Message, error) {
	out, err := c.client.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.cfg.QueueURL),
		MaxNumberOfMessages: c.cfg.MaxMessages,
		VisibilityTimeout:   c.cfg.VisibilityTimeout,
		WaitTimeSeconds:     c.cfg.WaitTimeSeconds,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameMessageGroupId,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("receive message: %w", err)
	}

	msgs := make([]queue.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, queue.Message{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
		})
	}
	c.logger.DebugContext(ctx, "received batch", "count", len(msgs))
	return msgs, nil
}

// DeleteBatch removes the given entries from the queue in one request. The
// call is treated as succeed or fail at the batch level; per-entry failures
// reported by SQS are folded into the returned error.
func (c *Consumer) DeleteBatch(ctx context.Context, entries []queue.DeleteEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := make([]types.DeleteMessageBatchRequestEntry, 0, len(entries))
	for _, e := range entries {
		batch = append(batch, types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(e.ID),
			ReceiptHandle: aws.String(e.ReceiptHandle),
		})
	}
	out, err := c.client.DeleteMessageBatch(ctx, &awssqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(c.cfg.QueueURL),
		Entries:  batch,
	})
	if err != nil {
		return fmt.Errorf("delete message batch: %w", err)
	}
	if len(out.Failed) > 0 {
		first := out.Failed[0]
		return fmt.Errorf("delete message batch: %d of %d entries failed, first: %s (%s)",
			len(out.Failed), len(entries), aws.ToString(first.Code), aws.ToString(first.Message))
	}
	c.logger.DebugContext(ctx, "deleted batch", "count", len(entries))
	return nil
}
