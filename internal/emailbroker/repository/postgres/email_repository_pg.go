// Package postgres implements the email record store on PostgreSQL. It is
// the local development backend; a single conditional UPDATE gives the same
// compare-and-swap semantics as the DynamoDB condition expression.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/crispwave/email-broker/internal/emailbroker/domain"
)

// DBPool is the subset of pgxpool.Pool the repository uses. pgxmock
// satisfies it in tests.
type DBPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgEmailRepository reads and conditionally mutates email records in the
// emails table.
type PgEmailRepository struct {
	db     DBPool
	logger *slog.Logger
}

// NewPgEmailRepository creates a PgEmailRepository backed by the given pool.
func NewPgEmailRepository(db DBPool, logger *slog.Logger) *PgEmailRepository {
	return &PgEmailRepository{
		db:     db,
		logger: logger.With("component", "pg_email_repository"),
	}
}

const getEmailQuery = `
SELECT email_id, subject, body_html, body_text, sender,
       recipients_to, recipients_cc, recipients_bcc,
       status, provider, provider_response,
       failed_count, sent_count, sent_at, updated_at
FROM emails
WHERE email_id = $1`

// GetEmail implements repository.EmailRepository.
func (r *PgEmailRepository) GetEmail(ctx context.Context, emailID string) (domain.EmailMessage, error) {
	var (
		id               *string
		subject          *string
		status           *string
		bodyHTML         *string
		bodyText         *string
		sender           *string
		provider         *string
		providerResponse *string
		failedCount      *int
		sentCount        *int
		sentAt           *time.Time
		updatedAt        *time.Time
		email            domain.EmailMessage
	)

	row := r.db.QueryRow(ctx, getEmailQuery, emailID)
	err := row.Scan(
		&id, &subject, &bodyHTML, &bodyText, &sender,
		&email.RecipientsTo, &email.RecipientsCc, &email.RecipientsBcc,
		&status, &provider, &providerResponse,
		&failedCount, &sentCount, &sentAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EmailMessage{}, domain.ErrEmailNotFound
		}
		return domain.EmailMessage{}, fmt.Errorf("%w: query email: %v", domain.ErrStoreUnreachable, err)
	}

	switch {
	case id == nil || *id == "":
		return domain.EmailMessage{}, &domain.FieldMissingError{Field: "email_id"}
	case subject == nil:
		return domain.EmailMessage{}, &domain.FieldMissingError{Field: "subject"}
	case status == nil:
		return domain.EmailMessage{}, &domain.FieldMissingError{Field: "status"}
	}

	email.EmailID = *id
	email.Subject = *subject
	email.Status = domain.ParseEmailStatus(*status)
	email.ProviderResponse = providerResponse
	email.SentAt = sentAt
	email.UpdatedAt = updatedAt
	if bodyHTML != nil {
		email.BodyHTML = *bodyHTML
	}
	if bodyText != nil {
		email.BodyText = *bodyText
	}
	if sender != nil {
		email.Sender = *sender
	}
	if provider != nil {
		email.Provider = *provider
	}
	if failedCount != nil {
		email.FailedCount = *failedCount
	}
	if sentCount != nil {
		email.SentCount = *sentCount
	}
	return email, nil
}

const transitionStatusQuery = `
UPDATE emails
SET status = $3, updated_at = now()
WHERE email_id = $1 AND status = $2`

// TransitionStatus implements repository.EmailRepository. Zero rows
// affected means the stored status differed from the expected one at write
// time (or the record is gone), which is a conflict either way.
func (r *PgEmailRepository) TransitionStatus(ctx context.Context, emailID string, from, to domain.EmailStatus) error {
	tag, err := r.db.Exec(ctx, transitionStatusQuery, emailID, from.String(), to.String())
	if err != nil {
		return fmt.Errorf("%w: update status: %v", domain.ErrStoreUnreachable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transition %s to %s: %w", from, to, domain.ErrStatusConflict)
	}
	r.logger.DebugContext(ctx, "status transitioned", "email_id", emailID, "from", from.String(), "to", to.String())
	return nil
}

const listStuckQuery = `
SELECT email_id
FROM emails
WHERE status = $1 AND updated_at < $2
ORDER BY updated_at`

// ListStuck implements repository.EmailRepository.
func (r *PgEmailRepository) ListStuck(ctx context.Context, status domain.EmailStatus, olderThan time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, listStuckQuery, status.String(), olderThan)
	if err != nil {
		return nil, fmt.Errorf("%w: query stuck emails: %v", domain.ErrStoreUnreachable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stuck email id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate stuck emails: %v", domain.ErrStoreUnreachable, err)
	}
	return ids, nil
}
