package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eventflow/backend/internal/models"
	"github.com/eventflow/backend/pkg/database"
)

var (
	// ErrNotFound is returned when no event has the given id.
	ErrNotFound = errors.New("event not found")
	// ErrFull is returned by IncrementRegistered when the seat condition did not hold.
	ErrFull = errors.New("event is full")
	// ErrCapacityBelowRegistered rejects an update that would leave more registrations than seats.
	ErrCapacityBelowRegistered = errors.New("capacity is below current registrations")
)

const eventColumns = `id, title, description, date, time, location, category, image_url, capacity, registered, status, created_at, updated_at`

// Repository handles event persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates an event repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Date, &e.Time, &e.Location, &e.Category,
		&e.ImageURL, &e.Capacity, &e.Registered, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event. Registered always starts at zero.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	if e.Status == "" {
		e.Status = models.EventStatusUpcoming
	}
	const q = `INSERT INTO events (title, description, date, time, location, category, image_url, capacity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, registered, created_at, updated_at`
	return r.db.QueryRow(ctx, q, e.Title, e.Description, e.Date, e.Time, e.Location, e.Category, e.ImageURL, e.Capacity, e.Status).
		Scan(&e.ID, &e.Registered, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// List returns all events, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Event, error) {
	rows, err := r.db.Query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Update overwrites the editable fields; an empty ImageURL keeps the stored one.
// Registered is never written here, and a capacity below the current registered
// count leaves the row untouched.
func (r *Repository) Update(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET title = $2, description = $3, date = $4, time = $5, location = $6,
			category = $7, capacity = $8, status = $9, image_url = COALESCE(NULLIF($10, ''), image_url), updated_at = NOW()
		WHERE id = $1 AND registered <= $8
		RETURNING ` + eventColumns
	updated, err := scanEvent(r.db.QueryRow(ctx, q, e.ID, e.Title, e.Description, e.Date, e.Time, e.Location,
		e.Category, e.Capacity, e.Status, e.ImageURL))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, e.ID); getErr != nil {
			return getErr
		}
		return ErrCapacityBelowRegistered
	}
	if err != nil {
		return err
	}
	*e = *updated
	return nil
}

// SetImageURL stores the public image URL of an event.
func (r *Repository) SetImageURL(ctx context.Context, id uuid.UUID, url string) error {
	tag, err := r.db.Exec(ctx, `UPDATE events SET image_url = $2, updated_at = NOW() WHERE id = $1`, id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an event; its registrations cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementRegistered adds delta seats in one statement, only while the result stays within capacity.
// It returns ErrFull when the condition did not hold (or the event vanished).
func (r *Repository) IncrementRegistered(ctx context.Context, id uuid.UUID, delta int) (*models.Event, error) {
	const q = `UPDATE events SET registered = registered + $2, updated_at = NOW()
		WHERE id = $1 AND registered + $2 <= capacity
		RETURNING ` + eventColumns
	e, err := scanEvent(r.db.QueryRow(ctx, q, id, delta))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFull
	}
	return e, err
}

// DecrementRegistered releases delta seats unconditionally. The registered >= 0 table check
// rejects an underflow.
func (r *Repository) DecrementRegistered(ctx context.Context, id uuid.UUID, delta int) (*models.Event, error) {
	const q = `UPDATE events SET registered = registered - $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + eventColumns
	e, err := scanEvent(r.db.QueryRow(ctx, q, id, delta))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}
