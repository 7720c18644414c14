package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventflow/backend/internal/events"
	"github.com/eventflow/backend/internal/metrics"
	"github.com/eventflow/backend/internal/models"
	"github.com/eventflow/backend/pkg/queue"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already registered for this event")
	ErrCapacityExceeded = errors.New("event is full")
	ErrUnauthorized     = errors.New("not authorized to cancel this registration")

	// ErrDuplicate is returned by RegistrationStore.InsertUnique when (user, event) already exists.
	ErrDuplicate = errors.New("duplicate registration")
)

// EventCounter is the event side of the store. IncrementRegistered must apply in a single
// conditional statement and return events.ErrFull when the seat predicate fails.
type EventCounter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	IncrementRegistered(ctx context.Context, id uuid.UUID, delta int) (*models.Event, error)
	DecrementRegistered(ctx context.Context, id uuid.UUID, delta int) (*models.Event, error)
}

// RegistrationStore persists registrations. InsertUnique relies on the store's
// (user_id, event_id) uniqueness and returns ErrDuplicate on violation.
type RegistrationStore interface {
	InsertUnique(ctx context.Context, userID, eventID uuid.UUID) (*models.Registration, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	FindByUserAndEvent(ctx context.Context, userID, eventID uuid.UUID) (*models.Registration, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SeatPublisher announces seat counts after a change.
type SeatPublisher interface {
	PublishSeats(ctx context.Context, seats models.Seats)
}

// CacheInvalidator drops cached event listings.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// EmailEnqueuer schedules confirmation and cancellation emails.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// UserLookup resolves the recipient of a registration email.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Result is a successful registration.
type Result struct {
	Registration *models.Registration `json:"registration"`
	Event        *models.Event        `json:"event"`
}

// Options are the optional collaborators notified after a successful call.
type Options struct {
	Seats   SeatPublisher
	Cache   CacheInvalidator
	Emails  EmailEnqueuer
	Users   UserLookup
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Controller admits and cancels registrations without locks: the seat bound comes from the
// conditional increment and uniqueness from the registrations constraint.
type Controller struct {
	events EventCounter
	regs   RegistrationStore
	opts   Options
	logger *zap.Logger
}

// NewController creates the registration controller.
func NewController(ev EventCounter, regs RegistrationStore, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{events: ev, regs: regs, opts: opts, logger: logger}
}

// Register admits userID to eventID.
// Errors: ErrNotFound, ErrConflict, ErrCapacityExceeded, or a wrapped store error.
func (c *Controller) Register(ctx context.Context, userID, eventID uuid.UUID) (*Result, error) {
	res, err := c.register(ctx, userID, eventID)
	c.opts.Metrics.RegistrationOutcome(outcome(err, metrics.OutcomeRegistered))
	if err != nil {
		return nil, err
	}
	c.afterChange(ctx, res.Event, res.Registration, userID, queue.EmailRegistrationConfirmed)
	return res, nil
}

func (c *Controller) register(ctx context.Context, userID, eventID uuid.UUID) (*Result, error) {
	if _, err := c.events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, events.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find event: %w", err)
	}

	// Advisory only; InsertUnique is the real guard.
	existing, err := c.regs.FindByUserAndEvent(ctx, userID, eventID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	if existing != nil {
		return nil, ErrConflict
	}

	ev, err := c.events.IncrementRegistered(ctx, eventID, 1)
	if err != nil {
		if errors.Is(err, events.ErrFull) {
			return nil, ErrCapacityExceeded
		}
		return nil, fmt.Errorf("increment registered: %w", err)
	}

	reg, err := c.regs.InsertUnique(ctx, userID, eventID)
	if err != nil {
		if compensated := c.compensate(ctx, eventID); compensated != nil {
			ev = compensated
		}
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}
	return &Result{Registration: reg, Event: ev}, nil
}

// compensate gives back the seat taken by a registration that was never stored.
// It runs even if ctx was cancelled after the increment.
func (c *Controller) compensate(ctx context.Context, eventID uuid.UUID) *models.Event {
	c.opts.Metrics.Compensation()
	ev, err := c.events.DecrementRegistered(context.WithoutCancel(ctx), eventID, 1)
	if err != nil {
		c.logger.Error("compensating decrement failed, registered count is one too high",
			zap.String("event_id", eventID.String()), zap.Error(err))
		return nil
	}
	return ev
}

// Cancel removes registrationID on behalf of userID.
// The decrement and the delete are separate writes; a failure between them leaves the
// seat released while the row remains.
func (c *Controller) Cancel(ctx context.Context, registrationID, userID uuid.UUID) error {
	ev, reg, err := c.cancel(ctx, registrationID, userID)
	c.opts.Metrics.RegistrationOutcome(outcome(err, metrics.OutcomeCancelled))
	if err != nil {
		return err
	}
	c.afterChange(ctx, ev, reg, userID, queue.EmailRegistrationCancelled)
	return nil
}

func (c *Controller) cancel(ctx context.Context, registrationID, userID uuid.UUID) (*models.Event, *models.Registration, error) {
	reg, err := c.regs.FindByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("find registration: %w", err)
	}
	if reg.UserID != userID {
		return nil, nil, ErrUnauthorized
	}

	ev, err := c.events.DecrementRegistered(ctx, reg.EventID, 1)
	if err != nil {
		if errors.Is(err, events.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("decrement registered: %w", err)
	}
	if err := c.regs.Delete(ctx, reg.ID); err != nil {
		c.logger.Error("registration delete failed after decrement",
			zap.String("registration_id", reg.ID.String()), zap.String("event_id", reg.EventID.String()), zap.Error(err))
		return nil, nil, fmt.Errorf("delete registration: %w", err)
	}
	return ev, reg, nil
}

// afterChange runs the best-effort notifications. None of them can fail the call.
func (c *Controller) afterChange(ctx context.Context, ev *models.Event, reg *models.Registration, userID uuid.UUID, emailType string) {
	if c.opts.Seats != nil {
		c.opts.Seats.PublishSeats(ctx, ev.Seats())
	}
	if c.opts.Cache != nil {
		c.opts.Cache.Invalidate(ctx)
	}
	if c.opts.Emails == nil || c.opts.Users == nil {
		return
	}
	user, err := c.opts.Users.GetByID(ctx, userID)
	if err != nil {
		c.logger.Warn("email recipient lookup failed", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	payload := queue.EmailPayload{
		EmailType:      emailType,
		EventID:        ev.ID,
		RegistrationID: reg.ID,
		RecipientEmail: user.Email,
		RecipientName:  user.Name,
		EventTitle:     ev.Title,
		EventDate:      ev.Date,
		EventTime:      ev.Time,
		EventLocation:  ev.Location,
	}
	if err := c.opts.Emails.EnqueueEmail(ctx, payload); err != nil {
		c.logger.Warn("enqueue registration email failed", zap.String("registration_id", reg.ID.String()), zap.Error(err))
	}
}

func outcome(err error, success string) string {
	switch {
	case err == nil:
		return success
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrCapacityExceeded):
		return metrics.OutcomeCapacityExceeded
	case errors.Is(err, ErrUnauthorized):
		return metrics.OutcomeUnauthorized
	default:
		return metrics.OutcomeError
	}
}
