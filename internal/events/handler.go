package events

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventflow/backend/internal/models"
	"github.com/eventflow/backend/pkg/response"
	"github.com/eventflow/backend/pkg/storage"
)

// DefaultImageURL is used for events created without an image.
const DefaultImageURL = "https://images.unsplash.com/photo-1540575467063-178a50c2df87?auto=format&fit=crop&q=80"

// Store is the persistence the handler needs.
type Store interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context) ([]models.Event, error)
	Update(ctx context.Context, e *models.Event) error
	SetImageURL(ctx context.Context, id uuid.UUID, url string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ImageStore issues upload URLs and stores event images.
type ImageStore interface {
	PresignImageUpload(ctx context.Context, key, contentType string) (string, error)
	PublicObjectURL(key string) string
	UploadImage(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	DeleteImage(ctx context.Context, key string) error
	KeyFromURL(url string) string
}

// SeatPublisher pushes seat counts to realtime subscribers.
type SeatPublisher interface {
	PublishSeats(ctx context.Context, seats models.Seats)
}

// EventRequest is the body for POST and PUT /api/events.
type EventRequest struct {
	Title       string             `json:"title" binding:"required"`
	Description string             `json:"description"`
	Date        string             `json:"date" binding:"required"`
	Time        string             `json:"time" binding:"required"`
	Location    string             `json:"location" binding:"required"`
	Category    string             `json:"category" binding:"required"`
	ImageURL    string             `json:"image_url" binding:"omitempty,url"`
	Capacity    int                `json:"capacity" binding:"required,min=1"`
	Status      models.EventStatus `json:"status" binding:"omitempty,oneof=Upcoming Ongoing Completed Cancelled"`
}

// ImageUploadRequest is the body for POST /api/events/:id/image-upload-url.
type ImageUploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	store  Store
	cache  *Cache
	images ImageStore
	seats  SeatPublisher
	logger *zap.Logger
}

// NewHandler creates an event handler. cache, images and seats may be nil.
func NewHandler(store Store, cache *Cache, images ImageStore, seats SeatPublisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, cache: cache, images: images, seats: seats, logger: logger}
}

func parseEventID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /api/events.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	if list, err := h.cache.GetList(ctx); err == nil {
		response.OK(c, list)
		return
	} else if !errors.Is(err, ErrCacheMiss) {
		h.logger.Warn("event cache read", zap.Error(err))
	}

	list, err := h.store.List(ctx)
	if err != nil {
		h.logger.Error("list events", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	if err := h.cache.SetList(ctx, list); err != nil {
		h.logger.Warn("event cache write", zap.Error(err))
	}
	response.OK(c, list)
}

// GetByID handles GET /api/events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseEventID(c)
	if !ok {
		return
	}
	e, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, e)
}

// Seats handles GET /api/events/:id/seats.
func (h *Handler) Seats(c *gin.Context) {
	id, ok := parseEventID(c)
	if !ok {
		return
	}
	e, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, e.Seats())
}

// Create handles POST /api/events (admin).
func (h *Handler) Create(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e := req.toEvent()
	if e.ImageURL == "" {
		e.ImageURL = DefaultImageURL
	}
	if err := h.store.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	h.cache.Invalidate(c.Request.Context())
	response.Created(c, e)
}

// Update handles PUT /api/events/:id (admin). The registered count is not writable.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseEventID(c)
	if !ok {
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e := req.toEvent()
	e.ID = id
	if err := h.store.Update(c.Request.Context(), e); err != nil {
		h.respondError(c, err)
		return
	}
	h.cache.Invalidate(c.Request.Context())
	if h.seats != nil {
		h.seats.PublishSeats(c.Request.Context(), e.Seats())
	}
	response.OK(c, e)
}

// Delete handles DELETE /api/events/:id (admin).
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseEventID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	e, err := h.store.GetByID(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.store.Delete(ctx, id); err != nil {
		h.respondError(c, err)
		return
	}
	if h.images != nil {
		if key := h.images.KeyFromURL(e.ImageURL); key != "" {
			if err := h.images.DeleteImage(ctx, key); err != nil {
				h.logger.Warn("delete event image", zap.String("key", key), zap.Error(err))
			}
		}
	}
	h.cache.Invalidate(ctx)
	response.OK(c, gin.H{"id": id})
}

// ImageUploadURL handles POST /api/events/:id/image-upload-url (admin). It returns a
// pre-signed PUT URL and records the object's public URL on the event.
func (h *Handler) ImageUploadURL(c *gin.Context) {
	if h.images == nil {
		response.ServiceUnavailable(c, "image storage is not configured")
		return
	}
	id, ok := parseEventID(c)
	if !ok {
		return
	}
	var req ImageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !storage.ValidateImageType(req.ContentType, req.Filename) {
		response.BadRequest(c, "unsupported image type")
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(req.Filename)
	}
	ctx := c.Request.Context()
	key := storage.EventImageKey(id.String(), uuid.NewString()+"-"+req.Filename)
	uploadURL, err := h.images.PresignImageUpload(ctx, key, contentType)
	if err != nil {
		h.logger.Error("presign event image", zap.Error(err))
		response.Internal(c, "failed to create upload url")
		return
	}
	publicURL := h.images.PublicObjectURL(key)
	if err := h.store.SetImageURL(ctx, id, publicURL); err != nil {
		h.respondError(c, err)
		return
	}
	h.cache.Invalidate(ctx)
	response.OK(c, gin.H{"upload_url": uploadURL, "image_url": publicURL, "key": key})
}

// UploadImage handles POST /api/events/:id/image (admin, multipart field "image").
func (h *Handler) UploadImage(c *gin.Context) {
	if h.images == nil {
		response.ServiceUnavailable(c, "image storage is not configured")
		return
	}
	id, ok := parseEventID(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxImageSize+1024)
	fh, err := c.FormFile("image")
	if err != nil {
		response.BadRequest(c, "image file is required")
		return
	}
	if fh.Size > storage.MaxImageSize {
		response.BadRequest(c, "image too large")
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if !storage.ValidateImageType(contentType, fh.Filename) {
		response.BadRequest(c, "unsupported image type")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable image")
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	if _, err := h.store.GetByID(ctx, id); err != nil {
		h.respondError(c, err)
		return
	}
	key := storage.EventImageKey(id.String(), uuid.NewString()+"-"+fh.Filename)
	url, err := h.images.UploadImage(ctx, key, storage.ContentTypeForFilename(fh.Filename), f)
	if err != nil {
		h.logger.Error("upload event image", zap.Error(err))
		response.Internal(c, "failed to upload image")
		return
	}
	if err := h.store.SetImageURL(ctx, id, url); err != nil {
		h.respondError(c, err)
		return
	}
	h.cache.Invalidate(ctx)
	response.OK(c, gin.H{"image_url": url})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "event not found")
	case errors.Is(err, ErrCapacityBelowRegistered):
		response.Fail(c, http.StatusConflict, "CAPACITY_BELOW_REGISTERED", err.Error())
	default:
		h.logger.Error("event request failed", zap.Error(err))
		response.Internal(c, "internal error")
	}
}

func (r EventRequest) toEvent() *models.Event {
	status := r.Status
	if status == "" {
		status = models.EventStatusUpcoming
	}
	return &models.Event{
		Title:       r.Title,
		Description: r.Description,
		Date:        r.Date,
		Time:        r.Time,
		Location:    r.Location,
		Category:    r.Category,
		ImageURL:    r.ImageURL,
		Capacity:    r.Capacity,
		Status:      status,
	}
}
