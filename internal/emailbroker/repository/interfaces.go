// Package repository defines the persistence contract for email records.
package repository

import (
	"context"
	"time"

	"github.com/crispwave/email-broker/internal/emailbroker/domain"
)

// EmailRepository is the durable record store. Conditional status
// transitions are the only synchronization primitive between concurrent
// brokers; implementations must make TransitionStatus atomic per key.
type EmailRepository interface {
	// GetEmail fetches the record for emailID. It returns
	// domain.ErrEmailNotFound if the record does not exist,
	// a *domain.FieldMissingError if a required field (id, subject,
	// status) is absent from the stored representation, and
	// domain.ErrStoreUnreachable for backend failures.
	GetEmail(ctx context.Context, emailID string) (domain.EmailMessage, error)

	// TransitionStatus sets the record's status to "to" only if the
	// stored status equals "from" at write time. A mismatch returns
	// domain.ErrStatusConflict without side effect.
	TransitionStatus(ctx context.Context, emailID string, from, to domain.EmailStatus) error

	// ListStuck returns the ids of records sitting in the given status
	// since before olderThan. Used by the sweeper to recover records a
	// crashed broker left in Sending.
	ListStuck(ctx context.Context, status domain.EmailStatus, olderThan time.Time) ([]string, error)
}
