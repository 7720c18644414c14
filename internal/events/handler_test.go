package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eventflow/backend/internal/models"
)

type fakeStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*models.Event
}

func newFakeStore(list ...models.Event) *fakeStore {
	s := &fakeStore{events: map[uuid.UUID]*models.Event{}}
	for i := range list {
		e := list[i]
		s.events[e.ID] = &e
	}
	return s
}

func (s *fakeStore) Create(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.New()
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *fakeStore) List(_ context.Context) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Event{}
	for _, e := range s.events {
		out = append(out, *e)
	}
	return out, nil
}

func (s *fakeStore) Update(_ context.Context, e *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[e.ID]
	if !ok {
		return ErrNotFound
	}
	if e.Capacity < cur.Registered {
		return ErrCapacityBelowRegistered
	}
	e.Registered = cur.Registered
	if e.ImageURL == "" {
		e.ImageURL = cur.ImageURL
	}
	cp := *e
	s.events[e.ID] = &cp
	return nil
}

func (s *fakeStore) SetImageURL(_ context.Context, id uuid.UUID, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	e.ImageURL = url
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	return nil
}

type fakeImages struct {
	deleted []string
}

func (f *fakeImages) PresignImageUpload(_ context.Context, key, _ string) (string, error) {
	return "https://signed.example/" + key, nil
}
func (f *fakeImages) PublicObjectURL(key string) string { return "https://public.example/" + key }
func (f *fakeImages) UploadImage(_ context.Context, key, _ string, _ io.Reader) (string, error) {
	return "https://public.example/" + key, nil
}
func (f *fakeImages) DeleteImage(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}
func (f *fakeImages) KeyFromURL(url string) string {
	const prefix = "https://public.example/"
	if len(url) > len(prefix) && url[:len(prefix)] == prefix {
		return url[len(prefix):]
	}
	return ""
}

type recordedSeats struct {
	seats []models.Seats
}

func (r *recordedSeats) PublishSeats(_ context.Context, s models.Seats) { r.seats = append(r.seats, s) }

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/events", h.List)
	r.GET("/api/events/:id", h.GetByID)
	r.GET("/api/events/:id/seats", h.Seats)
	r.POST("/api/events", h.Create)
	r.PUT("/api/events/:id", h.Update)
	r.DELETE("/api/events/:id", h.Delete)
	r.POST("/api/events/:id/image-upload-url", h.ImageUploadURL)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func validRequest(capacity int) EventRequest {
	return EventRequest{
		Title:    "Tech Talk",
		Date:     "2025-04-01",
		Time:     "15:00",
		Location: "Seminar Hall",
		Category: "Technical",
		Capacity: capacity,
	}
}

func TestCreate_DefaultsImageAndStatus(t *testing.T) {
	store := newFakeStore()
	r := newRouter(NewHandler(store, nil, nil, nil, zap.NewNop()))

	rec := do(r, http.MethodPost, "/api/events", validRequest(50))
	require.Equal(t, http.StatusCreated, rec.Code)

	var e models.Event
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &e))
	assert.Equal(t, DefaultImageURL, e.ImageURL)
	assert.Equal(t, models.EventStatusUpcoming, e.Status)
	assert.Equal(t, 0, e.Registered)
}

func TestCreate_RejectsZeroCapacity(t *testing.T) {
	r := newRouter(NewHandler(newFakeStore(), nil, nil, nil, nil))
	rec := do(r, http.MethodPost, "/api/events", validRequest(0))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreate_IgnoresClientRegistered(t *testing.T) {
	store := newFakeStore()
	r := newRouter(NewHandler(store, nil, nil, nil, nil))

	body := map[string]any{
		"title": "Fest", "date": "2025-05-01", "time": "10:00", "location": "Ground",
		"category": "Cultural", "capacity": 10, "registered": 9,
	}
	rec := do(r, http.MethodPost, "/api/events", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var e models.Event
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &e))
	assert.Equal(t, 0, e.Registered)
}

func TestUpdate_CapacityBelowRegisteredConflict(t *testing.T) {
	e := sampleEvent(10, 8)
	seats := &recordedSeats{}
	r := newRouter(NewHandler(newFakeStore(e), nil, nil, seats, nil))

	rec := do(r, http.MethodPut, "/api/events/"+e.ID.String(), validRequest(5))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CAPACITY_BELOW_REGISTERED", decode(t, rec).Code)
	assert.Empty(t, seats.seats)
}

func TestUpdate_PublishesSeats(t *testing.T) {
	e := sampleEvent(10, 4)
	seats := &recordedSeats{}
	r := newRouter(NewHandler(newFakeStore(e), nil, nil, seats, nil))

	rec := do(r, http.MethodPut, "/api/events/"+e.ID.String(), validRequest(20))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, seats.seats, 1)
	assert.Equal(t, models.Seats{EventID: e.ID, Capacity: 20, Registered: 4, Available: 16}, seats.seats[0])
}

func TestGetByID(t *testing.T) {
	e := sampleEvent(3, 1)
	r := newRouter(NewHandler(newFakeStore(e), nil, nil, nil, nil))

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/events/"+e.ID.String(), nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/events/"+uuid.NewString(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/events/nope", nil).Code)
}

func TestSeats(t *testing.T) {
	e := sampleEvent(3, 1)
	r := newRouter(NewHandler(newFakeStore(e), nil, nil, nil, nil))

	rec := do(r, http.MethodGet, "/api/events/"+e.ID.String()+"/seats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var s models.Seats
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &s))
	assert.Equal(t, 2, s.Available)
}

func TestList_WithoutCache(t *testing.T) {
	r := newRouter(NewHandler(newFakeStore(sampleEvent(1, 0), sampleEvent(2, 0)), nil, nil, nil, nil))

	rec := do(r, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Event
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &list))
	assert.Len(t, list, 2)
}

func TestImageUploadURL(t *testing.T) {
	e := sampleEvent(3, 0)
	store := newFakeStore(e)
	r := newRouter(NewHandler(store, nil, &fakeImages{}, nil, nil))

	rec := do(r, http.MethodPost, "/api/events/"+e.ID.String()+"/image-upload-url",
		ImageUploadRequest{Filename: "poster.png", ContentType: "image/png"})
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]string
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &out))
	assert.Contains(t, out["upload_url"], "https://signed.example/events/"+e.ID.String()+"/")
	stored, _ := store.GetByID(context.Background(), e.ID)
	assert.Equal(t, out["image_url"], stored.ImageURL)
}

func TestImageUploadURL_RejectsType(t *testing.T) {
	e := sampleEvent(3, 0)
	r := newRouter(NewHandler(newFakeStore(e), nil, &fakeImages{}, nil, nil))

	rec := do(r, http.MethodPost, "/api/events/"+e.ID.String()+"/image-upload-url",
		ImageUploadRequest{Filename: "malware.exe", ContentType: "application/x-msdownload"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImageUploadURL_StorageDisabled(t *testing.T) {
	e := sampleEvent(3, 0)
	r := newRouter(NewHandler(newFakeStore(e), nil, nil, nil, nil))

	rec := do(r, http.MethodPost, "/api/events/"+e.ID.String()+"/image-upload-url",
		ImageUploadRequest{Filename: "poster.png"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDelete_RemovesStoredImage(t *testing.T) {
	e := sampleEvent(3, 0)
	e.ImageURL = "https://public.example/events/x/poster.png"
	images := &fakeImages{}
	store := newFakeStore(e)
	r := newRouter(NewHandler(store, nil, images, nil, nil))

	rec := do(r, http.MethodDelete, "/api/events/"+e.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"events/x/poster.png"}, images.deleted)
	_, err := store.GetByID(context.Background(), e.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}
