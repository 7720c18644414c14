package registrations

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventflow/backend/internal/models"
)

var regColumns = []string{"id", "user_id", "event_id", "status", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func regRow(r models.Registration) *pgxmock.Rows {
	return pgxmock.NewRows(regColumns).AddRow(r.ID, r.UserID, r.EventID, r.Status, r.CreatedAt, r.UpdatedAt)
}

func sampleRegistration() models.Registration {
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	return models.Registration{ID: uuid.New(), UserID: uuid.New(), EventID: uuid.New(),
		Status: models.RegistrationStatusRegistered, CreatedAt: now, UpdatedAt: now}
}

func TestInsertUnique_Inserts(t *testing.T) {
	repo, mock := newMockRepo(t)
	reg := sampleRegistration()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO registrations (user_id, event_id, status)")).
		WithArgs(reg.UserID, reg.EventID).
		WillReturnRows(regRow(reg))

	got, err := repo.InsertUnique(context.Background(), reg.UserID, reg.EventID)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, got.ID)
	assert.Equal(t, models.RegistrationStatusRegistered, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertUnique_UniqueViolationIsDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID, eventID := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO registrations")).
		WithArgs(userID, eventID).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "registrations_user_event_key"})

	_, err := repo.InsertUnique(context.Background(), userID, eventID)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertUnique_OtherErrorPassesThrough(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection refused")

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO registrations")).WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).WillReturnError(boom)

	_, err := repo.InsertUnique(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDuplicate)
}

func TestFindByUserAndEvent_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID, eventID := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM registrations WHERE user_id = $1 AND event_id = $2")).
		WithArgs(userID, eventID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindByUserAndEvent(context.Background(), userID, eventID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	reg := sampleRegistration()

	mock.ExpectQuery(regexp.QuoteMeta("FROM registrations WHERE id = $1")).
		WithArgs(reg.ID).
		WillReturnRows(regRow(reg))

	got, err := repo.FindByID(context.Background(), reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, got.UserID)
}

func TestDelete(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM registrations WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM registrations WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.NoError(t, repo.Delete(context.Background(), id))
	assert.ErrorIs(t, repo.Delete(context.Background(), id), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	reg := sampleRegistration()
	reg.Status = models.RegistrationStatusAttended

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE registrations SET status = $2")).
		WithArgs(reg.ID, models.RegistrationStatusAttended).
		WillReturnRows(regRow(reg))

	got, err := repo.SetStatus(context.Background(), reg.ID, models.RegistrationStatusAttended)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusAttended, got.Status)
}
