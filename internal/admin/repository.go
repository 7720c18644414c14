package admin

import (
	"context"

	"github.com/eventflow/backend/internal/models"
	"github.com/eventflow/backend/pkg/database"
)

// RecentLimit is the number of rows in the recent registrations report.
const RecentLimit = 5

// Overview holds the headline dashboard counts.
type Overview struct {
	TotalStudents      int `json:"total_students"`
	ActiveEvents       int `json:"active_events"`
	TotalRegistrations int `json:"total_registrations"`
}

// CategoryCount is the number of registrations for events in one category.
type CategoryCount struct {
	Category      string `json:"category"`
	Registrations int    `json:"registrations"`
}

// EventReportRow is one event in the exported registration report.
type EventReportRow struct {
	Title      string
	Category   string
	Date       string
	Status     models.EventStatus
	Capacity   int
	Registered int
	Attended   int
}

// Repository runs the read-only admin aggregations.
type Repository struct {
	db database.DB
}

// NewRepository creates an admin repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Students returns every student with their registration count, newest accounts first.
func (r *Repository) Students(ctx context.Context) ([]models.StudentSummary, error) {
	const q = `SELECT u.id, u.name, u.email, u.role, COALESCE(u.department, ''), COALESCE(u.student_id, ''), u.created_at,
			COUNT(r.id)
		FROM users u
		LEFT JOIN registrations r ON r.user_id = u.id
		WHERE u.role = 'student'
		GROUP BY u.id
		ORDER BY u.created_at DESC`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.StudentSummary{}
	for rows.Next() {
		var s models.StudentSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.Role, &s.Department, &s.StudentID, &s.CreatedAt,
			&s.RegistrationCount); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Overview returns the dashboard totals. Active events are Upcoming or Ongoing.
func (r *Repository) Overview(ctx context.Context) (Overview, error) {
	const q = `SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'student'),
			(SELECT COUNT(*) FROM events WHERE status IN ('Upcoming', 'Ongoing')),
			(SELECT COUNT(*) FROM registrations)`
	var o Overview
	err := r.db.QueryRow(ctx, q).Scan(&o.TotalStudents, &o.ActiveEvents, &o.TotalRegistrations)
	return o, err
}

// CategoryCounts returns registrations per category for every entry of models.Categories,
// including categories with none.
func (r *Repository) CategoryCounts(ctx context.Context) ([]CategoryCount, error) {
	const q = `SELECT e.category, COUNT(r.id)
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		GROUP BY e.category`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, err
		}
		counts[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]CategoryCount, 0, len(models.Categories))
	for _, c := range models.Categories {
		out = append(out, CategoryCount{Category: c, Registrations: counts[c]})
	}
	return out, nil
}

// RecentRegistrations returns the latest registrations with student and event details.
func (r *Repository) RecentRegistrations(ctx context.Context, limit int) ([]models.RecentRegistration, error) {
	const q = `SELECT r.id, u.name, u.email, e.title, e.category, e.date, r.created_at
		FROM registrations r
		JOIN users u ON u.id = r.user_id
		JOIN events e ON e.id = r.event_id
		ORDER BY r.created_at DESC
		LIMIT $1`
	rows, err := r.db.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.RecentRegistration{}
	for rows.Next() {
		var x models.RecentRegistration
		if err := rows.Scan(&x.ID, &x.StudentName, &x.StudentEmail, &x.EventTitle, &x.EventCategory, &x.EventDate,
			&x.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, x)
	}
	return list, rows.Err()
}

// EventReport returns one row per event with its seat and attendance counts.
func (r *Repository) EventReport(ctx context.Context) ([]EventReportRow, error) {
	const q = `SELECT e.title, e.category, e.date, e.status, e.capacity, e.registered,
			COUNT(r.id) FILTER (WHERE r.status = 'attended')
		FROM events e
		LEFT JOIN registrations r ON r.event_id = e.id
		GROUP BY e.id
		ORDER BY e.date, e.title`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []EventReportRow{}
	for rows.Next() {
		var x EventReportRow
		if err := rows.Scan(&x.Title, &x.Category, &x.Date, &x.Status, &x.Capacity, &x.Registered, &x.Attended); err != nil {
			return nil, err
		}
		list = append(list, x)
	}
	return list, rows.Err()
}
