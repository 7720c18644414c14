package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "Upcoming"
	EventStatusOngoing   EventStatus = "Ongoing"
	EventStatusCompleted EventStatus = "Completed"
	EventStatusCancelled EventStatus = "Cancelled"
)

// Categories reported on by the admin dashboard.
var Categories = []string{"Academic", "Cultural", "Sports", "Technical"}

// Event is a scheduled university event with a seat limit.
// Registered only moves through the conditional increment and the decrement in the event repository.
type Event struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	Time        string      `json:"time"`
	Location    string      `json:"location"`
	Category    string      `json:"category"`
	ImageURL    string      `json:"image_url,omitempty"`
	Capacity    int         `json:"capacity"`
	Registered  int         `json:"registered"`
	Status      EventStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Available returns the number of open seats.
func (e *Event) Available() int {
	if n := e.Capacity - e.Registered; n > 0 {
		return n
	}
	return 0
}

// Seats is the seat-count view of an event.
type Seats struct {
	EventID    uuid.UUID `json:"event_id"`
	Capacity   int       `json:"capacity"`
	Registered int       `json:"registered"`
	Available  int       `json:"available"`
}

// Seats returns the current seat counts.
func (e *Event) Seats() Seats {
	return Seats{EventID: e.ID, Capacity: e.Capacity, Registered: e.Registered, Available: e.Available()}
}
