package registrations

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eventflow/backend/internal/events"
	"github.com/eventflow/backend/internal/models"
)

type pair struct{ user, event uuid.UUID }

// memStore models the two store guarantees the controller relies on: the
// conditional increment is one atomic step and (user, event) is unique.
type memStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*models.Event
	regs   map[uuid.UUID]*models.Registration
	byPair map[pair]uuid.UUID

	beforeInsert func(userID, eventID uuid.UUID)
	insertErr    error
	deleteErr    error
	decrements   int
}

func newMemStore() *memStore {
	return &memStore{
		events: map[uuid.UUID]*models.Event{},
		regs:   map[uuid.UUID]*models.Registration{},
		byPair: map[pair]uuid.UUID{},
	}
}

func (s *memStore) addEvent(capacity int) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.events[id] = &models.Event{ID: id, Title: "Robotics Workshop", Date: "2025-02-14", Time: "10:00",
		Location: "Lab 3", Category: "Technical", Capacity: capacity, Status: models.EventStatusUpcoming}
	return id
}

func (s *memStore) registered(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id].Registered
}

func (s *memStore) rowCount(eventID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.regs {
		if r.EventID == eventID {
			n++
		}
	}
	return n
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) IncrementRegistered(_ context.Context, id uuid.UUID, delta int) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok || e.Registered+delta > e.Capacity {
		return nil, events.ErrFull
	}
	e.Registered += delta
	cp := *e
	return &cp, nil
}

func (s *memStore) DecrementRegistered(_ context.Context, id uuid.UUID, delta int) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	e.Registered -= delta
	s.decrements++
	cp := *e
	return &cp, nil
}

func (s *memStore) InsertUnique(_ context.Context, userID, eventID uuid.UUID) (*models.Registration, error) {
	if s.beforeInsert != nil {
		s.beforeInsert(userID, eventID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	if _, dup := s.byPair[pair{userID, eventID}]; dup {
		return nil, ErrDuplicate
	}
	now := time.Now()
	reg := &models.Registration{ID: uuid.New(), UserID: userID, EventID: eventID,
		Status: models.RegistrationStatusRegistered, CreatedAt: now, UpdatedAt: now}
	s.regs[reg.ID] = reg
	s.byPair[pair{userID, eventID}] = reg.ID
	cp := *reg
	return &cp, nil
}

// insertRaw stores a row without touching the counter, as a concurrent winner would have.
func (s *memStore) insertRaw(userID, eventID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg := &models.Registration{ID: uuid.New(), UserID: userID, EventID: eventID, Status: models.RegistrationStatusRegistered}
	s.regs[reg.ID] = reg
	s.byPair[pair{userID, eventID}] = reg.ID
}

func (s *memStore) FindByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) FindByUserAndEvent(_ context.Context, userID, eventID uuid.UUID) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPair[pair{userID, eventID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.regs[id]
	return &cp, nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	r, ok := s.regs[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.regs, id)
	delete(s.byPair, pair{r.UserID, r.EventID})
	return nil
}

func (s *memStore) ListByUser(_ context.Context, userID uuid.UUID) ([]models.RegistrationWithEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.RegistrationWithEvent{}
	for _, r := range s.regs {
		if r.UserID == userID {
			out = append(out, models.RegistrationWithEvent{Registration: *r, Event: *s.events[r.EventID]})
		}
	}
	return out, nil
}
