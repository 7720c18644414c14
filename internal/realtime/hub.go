package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eventflow/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second

	// EventSeatsUpdated carries a models.Seats payload.
	EventSeatsUpdated = "seats_updated"
)

// Publisher publishes room events to other instances.
type Publisher interface {
	PublishEvent(ctx context.Context, eventID uuid.UUID, name string, payload []byte) error
}

// Subscriber delivers room events published by any instance, this one included.
type Subscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(name string, payload []byte)) (cancel func(), err error)
}

// Hub maintains event_id -> set of connections and broadcasts messages to them.
type Hub struct {
	rooms  map[uuid.UUID]map[string]*Client
	subs   map[uuid.UUID]func()
	mu     sync.RWMutex
	pub    Publisher
	sub    Subscriber
	logger *zap.Logger
}

// NewHub creates a hub. With a nil publisher messages stay on this instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[uuid.UUID]map[string]*Client),
		subs:   make(map[uuid.UUID]func()),
		pub:    pub,
		sub:    sub,
		logger: logger,
	}
}

// Register adds a client to its event room, subscribing to the room channel for the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[c.EventID]
	if room == nil {
		room = make(map[string]*Client)
		h.rooms[c.EventID] = room
		if h.sub != nil {
			eventID := c.EventID
			cancel, err := h.sub.SubscribeEvent(eventID, func(name string, payload []byte) {
				h.BroadcastToRoom(eventID, name, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("room subscribe failed", zap.String("event_id", eventID.String()), zap.Error(err))
			} else {
				h.subs[eventID] = cancel
			}
		}
	}
	room[c.ID] = c
	h.logger.Debug("client joined event room", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Unregister removes a client and closes its send channel. The last client out cancels the subscription.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.EventID]
	if !ok {
		return
	}
	if _, ok := room[c.ID]; !ok {
		return
	}
	delete(room, c.ID)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.EventID)
		if cancel, ok := h.subs[c.EventID]; ok {
			cancel()
			delete(h.subs, c.EventID)
		}
	}
	h.logger.Debug("client left event room", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// BroadcastToRoom sends a message to local clients of one event. Slow clients drop the message.
func (h *Hub) BroadcastToRoom(eventID uuid.UUID, name string, payload any) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode room message", zap.String("event", name), zap.Error(err))
		return
	}
	msg := WSMessage{Event: name, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("client buffer full, message dropped", zap.String("client_id", c.ID))
		}
	}
}

// Publish delivers a room message on every instance. With a publisher the subscription
// callback does the local broadcast, so local clients get it exactly once.
func (h *Hub) Publish(ctx context.Context, eventID uuid.UUID, name string, payload any) {
	if h.pub == nil {
		h.BroadcastToRoom(eventID, name, payload)
		return
	}
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode room message", zap.String("event", name), zap.Error(err))
		return
	}
	if err := h.pub.PublishEvent(ctx, eventID, name, data); err != nil {
		h.logger.Warn("publish room message failed, broadcasting locally", zap.Error(err))
		h.BroadcastToRoom(eventID, name, json.RawMessage(data))
	}
}

// PublishSeats announces new seat counts for an event.
func (h *Hub) PublishSeats(ctx context.Context, seats models.Seats) {
	h.Publish(ctx, seats.EventID, EventSeatsUpdated, seats)
}

// RoomSize returns the number of local connections for an event.
func (h *Hub) RoomSize(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

func encode(payload any) (json.RawMessage, error) {
	switch v := payload.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
