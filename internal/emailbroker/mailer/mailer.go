// Package mailer holds the delivery collaborator contract. The broker only
// orchestrates around it; the concrete transport integration lives behind
// the Mailer interface.
package mailer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/crispwave/email-broker/internal/emailbroker/domain"
)

// Mailer transmits one fully materialized email record.
type Mailer interface {
	Send(ctx context.Context, email domain.EmailMessage) error
}

// ErrTransportNotConfigured is returned by the stub mailer on every send.
var ErrTransportNotConfigured = errors.New("email transport not configured")

// StubMailer is a Mailer with no transport behind it. Every send fails, so
// the broker leaves the record in Sending and the queue entry undeleted for
// redelivery. Used until a real provider integration is wired in.
type StubMailer struct {
	logger *slog.Logger
}

// NewStubMailer creates a StubMailer.
func NewStubMailer(logger *slog.Logger) *StubMailer {
	return &StubMailer{logger: logger.With("component", "stub_mailer")}
}

// Send implements Mailer.
func (m *StubMailer) Send(ctx context.Context, email domain.EmailMessage) error {
	m.logger.InfoContext(ctx, "send requested",
		"email_id", email.EmailID,
		"subject", email.Subject,
		"recipients_to", len(email.RecipientsTo),
	)
	return ErrTransportNotConfigured
}
