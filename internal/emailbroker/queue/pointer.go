package queue

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNoMessageID indicates the queue service delivered a message
	// without an id.
	ErrNoMessageID = errors.New("queue message has no message id")
	// ErrNoReceiptHandle indicates the message cannot be deleted because
	// no receipt handle was delivered with it.
	ErrNoReceiptHandle = errors.New("queue message has no receipt handle")
	// ErrBadPointerBody indicates the message body is not a parseable
	// email pointer document.
	ErrBadPointerBody = errors.New("queue message body is not an email pointer")
)

// emailPointer is the expected shape of a queue message body.
type emailPointer struct {
	EmailID string `json:"email_id"`
}

// PointerMessage is the parsed reference extracted from one raw queue
// message: the email record key plus everything needed to later delete the
// queue entry. It is only constructible through ParsePointer and is scoped
// to a single processing attempt.
type PointerMessage struct {
	MessageID     string
	ReceiptHandle string
	EmailID       string
}

// ParsePointer extracts a PointerMessage from a raw queue message. It fails
// if the message id, receipt handle, or a parseable body with a non-empty
// email_id is absent. These failures are permanent: a malformed message
// will never become well-formed on redelivery, so the caller should delete
// the entry using the raw message's own id and handle.
func ParsePointer(msg Message) (PointerMessage, error) {
	if msg.ID == "" {
		return PointerMessage{}, ErrNoMessageID
	}
	if msg.ReceiptHandle == "" {
		return PointerMessage{}, ErrNoReceiptHandle
	}
	var ptr emailPointer
	if err := json.Unmarshal([]byte(msg.Body), &ptr); err != nil {
		return PointerMessage{}, fmt.Errorf("%w: %v", ErrBadPointerBody, err)
	}
	if ptr.EmailID == "" {
		return PointerMessage{}, fmt.Errorf("%w: empty email_id", ErrBadPointerBody)
	}
	return PointerMessage{
		MessageID:     msg.ID,
		ReceiptHandle: msg.ReceiptHandle,
		EmailID:       ptr.EmailID,
	}, nil
}

// DeleteEntry returns the batch delete entry for the queue entry this
// pointer was extracted from.
func (p PointerMessage) DeleteEntry() DeleteEntry {
	return DeleteEntry{ID: p.MessageID, ReceiptHandle: p.ReceiptHandle}
}
