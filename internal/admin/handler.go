package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventflow/backend/internal/models"
	"github.com/eventflow/backend/internal/registrations"
	"github.com/eventflow/backend/pkg/export"
	"github.com/eventflow/backend/pkg/response"
)

// Store is the read side used by the admin dashboard.
type Store interface {
	Students(ctx context.Context) ([]models.StudentSummary, error)
	Overview(ctx context.Context) (Overview, error)
	CategoryCounts(ctx context.Context) ([]CategoryCount, error)
	RecentRegistrations(ctx context.Context, limit int) ([]models.RecentRegistration, error)
	EventReport(ctx context.Context) ([]EventReportRow, error)
}

// StatusSetter applies administrative registration transitions.
type StatusSetter interface {
	SetStatus(ctx context.Context, id uuid.UUID, status models.RegistrationStatus) (*models.Registration, error)
}

// Handler serves /api/admin.
type Handler struct {
	store  Store
	regs   StatusSetter
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates an admin handler.
func NewHandler(store Store, regs StatusSetter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, regs: regs, logger: logger, now: time.Now}
}

// ReportResponse is the body of GET /api/admin/reports.
type ReportResponse struct {
	Overview   Overview                    `json:"overview"`
	Categories []CategoryCount             `json:"categories"`
	Recent     []models.RecentRegistration `json:"recent_registrations"`
}

// Students handles GET /api/admin/students.
func (h *Handler) Students(c *gin.Context) {
	list, err := h.store.Students(c.Request.Context())
	if err != nil {
		h.logger.Error("list students", zap.Error(err))
		response.Internal(c, "failed to load students")
		return
	}
	response.OK(c, list)
}

// Reports handles GET /api/admin/reports.
func (h *Handler) Reports(c *gin.Context) {
	ctx := c.Request.Context()
	overview, err := h.store.Overview(ctx)
	if err != nil {
		h.logger.Error("report overview", zap.Error(err))
		response.Internal(c, "failed to load reports")
		return
	}
	categories, err := h.store.CategoryCounts(ctx)
	if err != nil {
		h.logger.Error("report categories", zap.Error(err))
		response.Internal(c, "failed to load reports")
		return
	}
	recent, err := h.store.RecentRegistrations(ctx, RecentLimit)
	if err != nil {
		h.logger.Error("report recent registrations", zap.Error(err))
		response.Internal(c, "failed to load reports")
		return
	}
	response.OK(c, ReportResponse{Overview: overview, Categories: categories, Recent: recent})
}

// Export handles GET /api/admin/reports/export?format=csv|pdf.
func (h *Handler) Export(c *gin.Context) {
	renderer, err := export.ForFormat(c.Query("format"))
	if err != nil {
		response.BadRequest(c, "format must be csv or pdf")
		return
	}
	rows, err := h.store.EventReport(c.Request.Context())
	if err != nil {
		h.logger.Error("event report", zap.Error(err))
		response.Internal(c, "failed to build report")
		return
	}
	doc, err := renderer.Render(reportTable(rows))
	if err != nil {
		h.logger.Error("render report", zap.Error(err))
		response.Internal(c, "failed to render report")
		return
	}
	filename := fmt.Sprintf("registrations-%s%s", h.now().Format("20060102"), renderer.Extension())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, renderer.ContentType(), doc)
}

func reportTable(rows []EventReportRow) export.Table {
	t := export.Table{
		Title:   "Event registrations",
		Headers: []string{"Event", "Category", "Date", "Status", "Capacity", "Registered", "Available", "Attended"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		available := r.Capacity - r.Registered
		if available < 0 {
			available = 0
		}
		t.Rows = append(t.Rows, []string{
			r.Title, r.Category, r.Date, string(r.Status),
			strconv.Itoa(r.Capacity), strconv.Itoa(r.Registered), strconv.Itoa(available), strconv.Itoa(r.Attended),
		})
	}
	return t
}

// MarkAttended handles PATCH /api/admin/registrations/:id/attended.
func (h *Handler) MarkAttended(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.regs.SetStatus(c.Request.Context(), id, models.RegistrationStatusAttended)
	if err != nil {
		if errors.Is(err, registrations.ErrNotFound) {
			response.NotFound(c, "registration not found")
			return
		}
		h.logger.Error("mark attended", zap.String("registration_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to update registration")
		return
	}
	response.OK(c, reg)
}
