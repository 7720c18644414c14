package events

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventflow/backend/internal/models"
)

var columns = []string{"id", "title", "description", "date", "time", "location", "category", "image_url",
	"capacity", "registered", "status", "created_at", "updated_at"}

func eventRows(e models.Event) *pgxmock.Rows {
	return pgxmock.NewRows(columns).AddRow(e.ID, e.Title, e.Description, e.Date, e.Time, e.Location, e.Category,
		e.ImageURL, e.Capacity, e.Registered, e.Status, e.CreatedAt, e.UpdatedAt)
}

func sampleEvent(capacity, registered int) models.Event {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return models.Event{
		ID:         uuid.New(),
		Title:      "Hackathon",
		Date:       "2025-03-10",
		Time:       "09:00",
		Location:   "Block A",
		Category:   "Technical",
		Capacity:   capacity,
		Registered: registered,
		Status:     models.EventStatusUpcoming,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func TestIncrementRegistered_Applies(t *testing.T) {
	repo, mock := newMockRepo(t)
	e := sampleEvent(2, 1)

	mock.ExpectQuery(regexp.QuoteMeta("registered + $2 <= capacity")).
		WithArgs(e.ID, 1).
		WillReturnRows(eventRows(e))

	got, err := repo.IncrementRegistered(context.Background(), e.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Registered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementRegistered_Full(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("registered + $2 <= capacity")).
		WithArgs(id, 1).
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.IncrementRegistered(context.Background(), id, 1)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementRegistered(t *testing.T) {
	repo, mock := newMockRepo(t)
	e := sampleEvent(2, 0)

	mock.ExpectQuery(regexp.QuoteMeta("SET registered = registered - $2")).
		WithArgs(e.ID, 1).
		WillReturnRows(eventRows(e))

	got, err := repo.DecrementRegistered(context.Background(), e.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Registered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementRegistered_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SET registered = registered - $2")).
		WithArgs(id, 1).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.DecrementRegistered(context.Background(), id, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_CapacityBelowRegistered(t *testing.T) {
	repo, mock := newMockRepo(t)
	stored := sampleEvent(10, 8)
	upd := stored
	upd.Capacity = 5

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND registered <= $8")).
		WithArgs(upd.ID, upd.Title, upd.Description, upd.Date, upd.Time, upd.Location, upd.Category, 5, upd.Status, upd.ImageURL).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE id = $1")).
		WithArgs(upd.ID).
		WillReturnRows(eventRows(stored))

	err := repo.Update(context.Background(), &upd)
	assert.ErrorIs(t, err, ErrCapacityBelowRegistered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	upd := sampleEvent(10, 0)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND registered <= $8")).
		WithArgs(upd.ID, upd.Title, upd.Description, upd.Date, upd.Time, upd.Location, upd.Category, upd.Capacity, upd.Status, upd.ImageURL).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM events WHERE id = $1")).
		WithArgs(upd.ID).
		WillReturnError(pgx.ErrNoRows)

	assert.ErrorIs(t, repo.Update(context.Background(), &upd), ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM events WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), id), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	repo, mock := newMockRepo(t)
	a, b := sampleEvent(5, 1), sampleEvent(3, 3)
	rows := eventRows(a).AddRow(b.ID, b.Title, b.Description, b.Date, b.Time, b.Location, b.Category,
		b.ImageURL, b.Capacity, b.Registered, b.Status, b.CreatedAt, b.UpdatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).WillReturnRows(rows)

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, 0, list[1].Available())
}
