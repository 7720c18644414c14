package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus of a student's seat.
type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "registered"
	RegistrationStatusAttended   RegistrationStatus = "attended"
	RegistrationStatusCancelled  RegistrationStatus = "cancelled"
)

// Registration binds one user to one event. (user_id, event_id) is unique.
type Registration struct {
	ID        uuid.UUID          `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	EventID   uuid.UUID          `json:"event_id"`
	Status    RegistrationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// RegistrationWithEvent is a registration joined with its event for "my registrations".
type RegistrationWithEvent struct {
	Registration
	Event Event `json:"event"`
}

// RecentRegistration is a row of the admin "recent registrations" report.
type RecentRegistration struct {
	ID            uuid.UUID `json:"id"`
	StudentName   string    `json:"student_name"`
	StudentEmail  string    `json:"student_email"`
	EventTitle    string    `json:"event_title"`
	EventCategory string    `json:"event_category"`
	EventDate     string    `json:"event_date"`
	CreatedAt     time.Time `json:"created_at"`
}
