package app

import (
	"context"
	"log/slog"

	"github.com/crispwave/email-broker/internal/emailbroker/domain"
	"github.com/crispwave/email-broker/internal/emailbroker/mailer"
	"github.com/crispwave/email-broker/internal/emailbroker/queue"
	"github.com/crispwave/email-broker/internal/emailbroker/repository"
)

// Processor runs one queue message through the delivery state machine:
// parse the pointer, fetch the record, claim it with Pending->Sending,
// hand it to the mailer, then seal it with Sending->Sent.
type Processor struct {
	emailRepo repository.EmailRepository
	mailer    mailer.Mailer
	logger    *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(emailRepo repository.EmailRepository, sender mailer.Mailer, logger *slog.Logger) *Processor {
	return &Processor{
		emailRepo: emailRepo,
		mailer:    sender,
		logger:    logger.With("component", "processor"),
	}
}

// Process handles a single raw queue message and reports one of four
// outcomes. It never returns an error: every failure mode maps to either a
// deletable skip or a retry that withholds deletion so the queue service
// redelivers the entry after its visibility timeout.
//
// Fetch failures are all treated as retryable, including "record not found"
// and "required field missing". A record that is malformed today may be
// corrected by external intervention before the next redelivery, and
// deleting the entry would silently drop the email.
func (p *Processor) Process(ctx context.Context, msg queue.Message) queue.Outcome {
	pointer, err := queue.ParsePointer(msg)
	if err != nil {
		p.logger.WarnContext(ctx, "unparsable queue message, will delete",
			"message_id", msg.ID, "error", err)
		return queue.SkipMessage(msg)
	}

	log := p.logger.With("message_id", pointer.MessageID, "email_id", pointer.EmailID)

	email, err := p.emailRepo.GetEmail(ctx, pointer.EmailID)
	if err != nil {
		log.ErrorContext(ctx, "failed to fetch email record", "error", err)
		return queue.Retry(err)
	}

	if email.Status != domain.StatusPending {
		// Another consumer is sending it or already has. Correct
		// at-most-one-sender behavior, not a fault.
		log.InfoContext(ctx, "email not actionable, skipping", "status", email.Status.String())
		return queue.Skip(pointer)
	}

	if err := p.emailRepo.TransitionStatus(ctx, pointer.EmailID, domain.StatusPending, domain.StatusSending); err != nil {
		log.WarnContext(ctx, "failed to claim email for sending", "error", err)
		return queue.Retry(err)
	}

	if err := p.mailer.Send(ctx, email); err != nil {
		// The record stays in Sending until the sweeper releases it.
		log.ErrorContext(ctx, "delivery failed, email left in Sending", "error", err)
		return queue.Retry(err)
	}

	if err := p.emailRepo.TransitionStatus(ctx, pointer.EmailID, domain.StatusSending, domain.StatusSent); err != nil {
		log.ErrorContext(ctx, "failed to mark email as sent", "error", err)
		return queue.Retry(err)
	}

	log.InfoContext(ctx, "email delivered", "status", domain.StatusSent.String())
	return queue.Delivered(pointer)
}
