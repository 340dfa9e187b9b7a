package sqs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crispwave/email-broker/internal/emailbroker/queue"
)

type fakeSQS struct {
	receive func(*awssqs.ReceiveMessageInput) (*awssqs.ReceiveMessageOutput, error)
	delete  func(*awssqs.DeleteMessageBatchInput) (*awssqs.DeleteMessageBatchOutput, error)
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, params *awssqs.ReceiveMessageInput, _ ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error) {
	return f.receive(params)
}

func (f *fakeSQS) DeleteMessageBatch(_ context.Context, params *awssqs.DeleteMessageBatchInput, _ ...func(*awssqs.Options)) (*awssqs.DeleteMessageBatchOutput, error) {
	return f.delete(params)
}

func testConsumer(client API, cfg Config) *Consumer {
	if cfg.QueueURL == "" {
		cfg.QueueURL = "https://sqs.test/queue"
	}
	return NewConsumer(client, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestReceiveBuildsRequestFromConfig(t *testing.T) {
	var captured *awssqs.ReceiveMessageInput
	client := &fakeSQS{
		receive: func(in *awssqs.ReceiveMessageInput) (*awssqs.ReceiveMessageOutput, error) {
			captured = in
			return &awssqs.ReceiveMessageOutput{}, nil
		},
	}
	c := testConsumer(client, Config{
		QueueURL:          "https://sqs.test/queue",
		MaxMessages:       1,
		VisibilityTimeout: 30,
		WaitTimeSeconds:   20,
	})

	msgs, err := c.Receive(context.Background())

	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, "https://sqs.test/queue", *captured.QueueUrl)
	assert.Equal(t, int32(1), captured.MaxNumberOfMessages)
	assert.Equal(t, int32(30), captured.VisibilityTimeout)
	assert.Equal(t, int32(20), captured.WaitTimeSeconds)
	assert.Contains(t, captured.MessageSystemAttributeNames, types.MessageSystemAttributeNameMessageGroupId)
}

func TestReceiveMapsMessages(t *testing.T) {
	client := &fakeSQS{
		receive: func(*awssqs.ReceiveMessageInput) (*awssqs.ReceiveMessageOutput, error) {
			return &awssqs.ReceiveMessageOutput{Messages: []types.Message{
				{
					MessageId:     aws.String("msg-1"),
					ReceiptHandle: aws.String("handle-1"),
					Body:          aws.String(`{"email_id":"e1"}`),
				},
				{
					// Absent fields map to empty strings.
					Body: aws.String("orphan"),
				},
			}}, nil
		},
	}
	c := testConsumer(client, Config{})

	msgs, err := c.Receive(context.Background())

	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, queue.Message{ID: "msg-1", ReceiptHandle: "handle-1", Body: `{"email_id":"e1"}`}, msgs[0])
	assert.Equal(t, queue.Message{Body: "orphan"}, msgs[1])
}

func TestMaxMessagesIsClamped(t *testing.T) {
	var captured *awssqs.ReceiveMessageInput
	client := &fakeSQS{
		receive: func(in *awssqs.ReceiveMessageInput) (*awssqs.ReceiveMessageOutput, error) {
			captured = in
			return &awssqs.ReceiveMessageOutput{}, nil
		},
	}

	_, err := testConsumer(client, Config{MaxMessages: 50}).Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(10), captured.MaxNumberOfMessages)

	_, err = testConsumer(client, Config{}).Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), captured.MaxNumberOfMessages)
}

func TestDeleteBatchEmptyIsNoop(t *testing.T) {
	called := false
	client := &fakeSQS{
		delete: func(*awssqs.DeleteMessageBatchInput) (*awssqs.DeleteMessageBatchOutput, error) {
			called = true
			return &awssqs.DeleteMessageBatchOutput{}, nil
		},
	}

	err := testConsumer(client, Config{}).DeleteBatch(context.Background(), nil)

	assert.NoError(t, err)
	assert.False(t, called)
}

func TestDeleteBatchBuildsEntries(t *testing.T) {
	var captured *awssqs.DeleteMessageBatchInput
	client := &fakeSQS{
		delete: func(in *awssqs.DeleteMessageBatchInput) (*awssqs.DeleteMessageBatchOutput, error) {
			captured = in
			return &awssqs.DeleteMessageBatchOutput{}, nil
		},
	}

	err := testConsumer(client, Config{}).DeleteBatch(context.Background(), []queue.DeleteEntry{
		{ID: "msg-1", ReceiptHandle: "handle-1"},
		{ID: "msg-2", ReceiptHandle: "handle-2"},
	})

	require.NoError(t, err)
	require.Len(t, captured.Entries, 2)
	assert.Equal(t, "msg-1", *captured.Entries[0].Id)
	assert.Equal(t, "handle-1", *captured.Entries[0].ReceiptHandle)
	assert.Equal(t, "msg-2", *captured.Entries[1].Id)
}

func TestDeleteBatchPartialFailureIsError(t *testing.T) {
	client := &fakeSQS{
		delete: func(*awssqs.DeleteMessageBatchInput) (*awssqs.DeleteMessageBatchOutput, error) {
			return &awssqs.DeleteMessageBatchOutput{
				Failed: []types.BatchResultErrorEntry{
					{
						Id:      aws.String("msg-2"),
						Code:    aws.String("ReceiptHandleIsInvalid"),
						Message: aws.String("expired"),
					},
				},
			}, nil
		},
	}

	err := testConsumer(client, Config{}).DeleteBatch(context.Background(), []queue.DeleteEntry{
		{ID: "msg-1", ReceiptHandle: "handle-1"},
		{ID: "msg-2", ReceiptHandle: "handle-2"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ReceiptHandleIsInvalid")
}

func TestDeleteBatchRequestError(t *testing.T) {
	client := &fakeSQS{
		delete: func(*awssqs.DeleteMessageBatchInput) (*awssqs.DeleteMessageBatchOutput, error) {
			return nil, errors.New("service unavailable")
		},
	}

	err := testConsumer(client, Config{}).DeleteBatch(context.Background(), []queue.DeleteEntry{
		{ID: "msg-1", ReceiptHandle: "handle-1"},
	})

	assert.Error(t, err)
}
