package registrations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eventflow/backend/internal/models"
	"github.com/eventflow/backend/pkg/database"
)

const registrationColumns = `id, user_id, event_id, status, created_at, updated_at`

// Repository handles registration persistence.
type Repository struct {
	db database.DB
}

// NewRepository creates a registrations repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.Status, &reg.CreatedAt, &reg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// InsertUnique inserts a registration. There is no ON CONFLICT clause: the
// registrations_user_event_key violation surfaces as ErrDuplicate.
func (r *Repository) InsertUnique(ctx context.Context, userID, eventID uuid.UUID) (*models.Registration, error) {
	const q = `INSERT INTO registrations (user_id, event_id, status)
		VALUES ($1, $2, 'registered')
		RETURNING ` + registrationColumns
	reg, err := scanRegistration(r.db.QueryRow(ctx, q, userID, eventID))
	if database.IsUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	return reg, err
}

// FindByID returns a registration by ID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	return scanRegistration(r.db.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
}

// FindByUserAndEvent returns the user's registration for an event.
func (r *Repository) FindByUserAndEvent(ctx context.Context, userID, eventID uuid.UUID) (*models.Registration, error) {
	return scanRegistration(r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 AND event_id = $2`, userID, eventID))
}

// Delete removes a registration.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns the user's registrations with their events, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.RegistrationWithEvent, error) {
	const q = `SELECT r.id, r.user_id, r.event_id, r.status, r.created_at, r.updated_at,
			e.id, e.title, e.description, e.date, e.time, e.location, e.category, e.image_url,
			e.capacity, e.registered, e.status, e.created_at, e.updated_at
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.RegistrationWithEvent{}
	for rows.Next() {
		var x models.RegistrationWithEvent
		e := &x.Event
		if err := rows.Scan(&x.ID, &x.UserID, &x.EventID, &x.Status, &x.CreatedAt, &x.UpdatedAt,
			&e.ID, &e.Title, &e.Description, &e.Date, &e.Time, &e.Location, &e.Category, &e.ImageURL,
			&e.Capacity, &e.Registered, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, x)
	}
	return list, rows.Err()
}

// SetStatus moves a registration to status (administrative transitions such as attended).
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status models.RegistrationStatus) (*models.Registration, error) {
	const q = `UPDATE registrations SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + registrationColumns
	return scanRegistration(r.db.QueryRow(ctx, q, id, status))
}
