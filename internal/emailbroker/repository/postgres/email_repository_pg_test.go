package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crispwave/email-broker/internal/emailbroker/domain"
)

var emailColumns = []string{
	"email_id", "subject", "body_html", "body_text", "sender",
	"recipients_to", "recipients_cc", "recipients_bcc",
	"status", "provider", "provider_response",
	"failed_count", "sent_count", "sent_at", "updated_at",
}

func setupRepoTest(t *testing.T) (*PgEmailRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	repo := NewPgEmailRepository(mockPool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return repo, mockPool
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestPgGetEmailSuccess(t *testing.T) {
	repo, mockPool := setupRepoTest(t)
	updatedAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	mockPool.ExpectQuery(regexp.QuoteMeta(getEmailQuery)).
		WithArgs("e1").
		WillReturnRows(pgxmock.NewRows(emailColumns).AddRow(
			strPtr("e1"), strPtr("hello"), strPtr("<p>hi</p>"), strPtr("hi"), strPtr("from@example.com"),
			[]string{"to@example.com"}, []string(nil), []string(nil),
			strPtr("Pending"), strPtr("smtp"), (*string)(nil),
			intPtr(0), intPtr(0), (*time.Time)(nil), &updatedAt,
		))

	email, err := repo.GetEmail(context.Background(), "e1")

	require.NoError(t, err)
	assert.Equal(t, "e1", email.EmailID)
	assert.Equal(t, "hello", email.Subject)
	assert.Equal(t, domain.StatusPending, email.Status)
	assert.Equal(t, []string{"to@example.com"}, email.RecipientsTo)
	require.NotNil(t, email.UpdatedAt)
	assert.Equal(t, updatedAt, *email.UpdatedAt)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgGetEmailNotFound(t *testing.T) {
	repo, mockPool := setupRepoTest(t)
	mockPool.ExpectQuery(regexp.QuoteMeta(getEmailQuery)).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetEmail(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrEmailNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgGetEmailMissingSubject(t *testing.T) {
	repo, mockPool := setupRepoTest(t)
	mockPool.ExpectQuery(regexp.QuoteMeta(getEmailQuery)).
		WithArgs("e1").
		WillReturnRows(pgxmock.NewRows(emailColumns).AddRow(
			strPtr("e1"), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
			[]string(nil), []string(nil), []string(nil),
			strPtr("Pending"), (*string)(nil), (*string)(nil),
			(*int)(nil), (*int)(nil), (*time.Time)(nil), (*time.Time)(nil),
		))

	_, err := repo.GetEmail(context.Background(), "e1")

	var missing *domain.FieldMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "subject", missing.Field)
}

func TestPgGetEmailQueryErrorIsUnreachable(t *testing.T) {
	repo, mockPool := setupRepoTest(t)
	mockPool.ExpectQuery(regexp.QuoteMeta(getEmailQuery)).
		WithArgs("e1").
		WillReturnError(errors.New("connection refused"))

	_, err := repo.GetEmail(context.Background(), "e1")

	assert.ErrorIs(t, err, domain.ErrStoreUnreachable)
}

func TestPgTransitionStatusSuccess(t *testing.T) {
	repo, mockPool := setupRepoTest(t)
	mockPool.ExpectExec(regexp.QuoteMeta(transitionStatusQuery)).
		WithArgs("e1", "Pending", "Sending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.TransitionStatus(context.Background(), "e1", domain.StatusPending, domain.StatusSending)

	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgTransitionStatusConflict(t *testing.T) {
	repo, mockPool := setupRepoTest(t)
	mockPool.ExpectExec(regexp.QuoteMeta(transitionStatusQuery)).
		WithArgs("e1", "Pending", "Sending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.TransitionStatus(context.Background(), "e1", domain.StatusPending, domain.StatusSending)

	assert.ErrorIs(t, err, domain.ErrStatusConflict)
}

func TestPgTransitionStatusExecErrorIsUnreachable(t *testing.T) {
	repo, mockPool := setupRepoTest(t)
	mockPool.ExpectExec(regexp.QuoteMeta(transitionStatusQuery)).
		WithArgs("e1", "Sending", "Sent").
		WillReturnError(errors.New("connection refused"))

	err := repo.TransitionStatus(context.Background(), "e1", domain.StatusSending, domain.StatusSent)

	assert.ErrorIs(t, err, domain.ErrStoreUnreachable)
}

func TestPgListStuck(t *testing.T) {
	repo, mockPool := setupRepoTest(t)
	cutoff := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mockPool.ExpectQuery(regexp.QuoteMeta(listStuckQuery)).
		WithArgs("Sending", cutoff).
		WillReturnRows(pgxmock.NewRows([]string{"email_id"}).
			AddRow("e1").
			AddRow("e2"))

	ids, err := repo.ListStuck(context.Background(), domain.StatusSending, cutoff)

	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, ids)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
