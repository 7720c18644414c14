package emaillogs

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventflow/backend/internal/models"
	"github.com/eventflow/backend/pkg/response"
)

// Lister reads email logs.
type Lister interface {
	List(ctx context.Context, limit int) ([]*models.EmailLog, error)
}

// DeadLetters reports jobs that exhausted their retries.
type DeadLetters interface {
	DeadLetterCount(ctx context.Context) (int64, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	logs   Lister
	dlq    DeadLetters
	logger *zap.Logger
}

// NewHandler creates an email logs handler. dlq may be nil.
func NewHandler(logs Lister, dlq DeadLetters, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logs: logs, dlq: dlq, logger: logger}
}

// ListResponse is the body of GET /api/admin/emails.
type ListResponse struct {
	Logs        []*models.EmailLog `json:"logs"`
	DeadLetters int64              `json:"dead_letters"`
}

// List handles GET /api/admin/emails?limit=N.
func (h *Handler) List(c *gin.Context) {
	limit := DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = n
	}
	ctx := c.Request.Context()
	logs, err := h.logs.List(ctx, limit)
	if err != nil {
		h.logger.Error("list email logs", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	out := ListResponse{Logs: logs}
	if h.dlq != nil {
		n, err := h.dlq.DeadLetterCount(ctx)
		if err != nil {
			h.logger.Warn("dead letter count", zap.Error(err))
		}
		out.DeadLetters = n
	}
	response.OK(c, out)
}
