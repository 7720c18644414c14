package registrations

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventflow/backend/internal/middleware"
	"github.com/eventflow/backend/internal/models"
	"github.com/eventflow/backend/pkg/response"
)

// Error codes returned next to the message so clients can tell the 409s apart.
const (
	CodeEventNotFound        = "EVENT_NOT_FOUND"
	CodeRegistrationNotFound = "REGISTRATION_NOT_FOUND"
	CodeAlreadyRegistered    = "ALREADY_REGISTERED"
	CodeEventFull            = "EVENT_FULL"
	CodeNotOwner             = "NOT_OWNER"
)

// Lister reads a user's registrations.
type Lister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.RegistrationWithEvent, error)
}

// CreateRequest is the body for POST /api/registrations.
type CreateRequest struct {
	EventID string `json:"event_id" binding:"required,uuid"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	ctrl   *Controller
	list   Lister
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(ctrl *Controller, list Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ctrl: ctrl, list: list, logger: logger}
}

// Create handles POST /api/registrations.
func (h *Handler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "event_id is required")
		return
	}
	eventID := uuid.MustParse(req.EventID)

	res, err := h.ctrl.Register(c.Request.Context(), userID, eventID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.Fail(c, http.StatusNotFound, CodeEventNotFound, "event not found")
		case errors.Is(err, ErrConflict):
			response.Fail(c, http.StatusConflict, CodeAlreadyRegistered, "already registered for this event")
		case errors.Is(err, ErrCapacityExceeded):
			response.Fail(c, http.StatusConflict, CodeEventFull, "event is full")
		default:
			h.logger.Error("register", zap.String("event_id", eventID.String()), zap.Error(err))
			response.Internal(c, "failed to register")
		}
		return
	}
	response.Created(c, res)
}

// Cancel handles DELETE /api/registrations/:id.
func (h *Handler) Cancel(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}

	if err := h.ctrl.Cancel(c.Request.Context(), id, userID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.Fail(c, http.StatusNotFound, CodeRegistrationNotFound, "registration not found")
		case errors.Is(err, ErrUnauthorized):
			response.Fail(c, http.StatusUnauthorized, CodeNotOwner, "not authorized to cancel this registration")
		default:
			h.logger.Error("cancel registration", zap.String("registration_id", id.String()), zap.Error(err))
			response.Internal(c, "failed to cancel registration")
		}
		return
	}
	response.OK(c, gin.H{"id": id, "message": "registration cancelled"})
}

// Mine handles GET /api/registrations.
func (h *Handler) Mine(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.list.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list registrations", zap.Error(err))
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}
