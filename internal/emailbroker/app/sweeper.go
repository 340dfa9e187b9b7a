package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crispwave/email-broker/internal/emailbroker/domain"
	"github.com/crispwave/email-broker/internal/emailbroker/repository"
)

// Sweeper releases records stuck in Sending. A broker that crashes between
// claiming a record and completing delivery leaves it in Sending forever,
// because Pending->Sending will never again succeed for it. The sweep moves
// such records back to Pending once they have sat in Sending longer than
// maxAge, which must comfortably exceed the longest plausible delivery
// attempt so a live sender is never clobbered.
type Sweeper struct {
	emailRepo repository.EmailRepository
	maxAge    time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewSweeper creates a Sweeper.
func NewSweeper(emailRepo repository.EmailRepository, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		emailRepo: emailRepo,
		maxAge:    maxAge,
		logger:    logger.With("component", "sweeper"),
		now:       time.Now,
	}
}

// Sweep runs one pass and returns how many records it released. Each
// release is a conditional Sending->Pending transition, so a record that a
// live broker advanced between the listing and the write is left alone.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxAge)
	ids, err := s.emailRepo.ListStuck(ctx, domain.StatusSending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stuck emails: %w", err)
	}
	if len(ids) == 0 {
		s.logger.InfoContext(ctx, "no stuck emails", "cutoff", cutoff)
		return 0, nil
	}

	released := 0
	for _, id := range ids {
		err := s.emailRepo.TransitionStatus(ctx, id, domain.StatusSending, domain.StatusPending)
		switch {
		case errors.Is(err, domain.ErrStatusConflict):
			s.logger.DebugContext(ctx, "record advanced since listing, leaving alone", "email_id", id)
		case err != nil:
			s.logger.ErrorContext(ctx, "failed to release stuck email", "email_id", id, "error", err)
		default:
			released++
			emailsReleasedCounter.Inc()
			s.logger.InfoContext(ctx, "released stuck email", "email_id", id)
		}
	}

	s.logger.InfoContext(ctx, "sweep finished", "listed", len(ids), "released", released)
	return released, nil
}
