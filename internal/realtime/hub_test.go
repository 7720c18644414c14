package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eventflow/backend/internal/models"
)

// loopback stands in for Redis: published messages reach every subscriber of the channel.
type loopback struct {
	mu       sync.Mutex
	handlers map[uuid.UUID]func(string, []byte)
	fail     bool
	canceled int
}

func newLoopback() *loopback {
	return &loopback{handlers: map[uuid.UUID]func(string, []byte){}}
}

func (l *loopback) PublishEvent(_ context.Context, eventID uuid.UUID, name string, payload []byte) error {
	l.mu.Lock()
	h := l.handlers[eventID]
	fail := l.fail
	l.mu.Unlock()
	if fail {
		return errors.New("redis down")
	}
	if h != nil {
		h(name, payload)
	}
	return nil
}

func (l *loopback) SubscribeEvent(eventID uuid.UUID, handler func(string, []byte)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[eventID] = handler
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.handlers, eventID)
		l.canceled++
	}, nil
}

func testClient(hub *Hub, eventID uuid.UUID) *Client {
	return newClient(hub, nil, eventID, uuid.New(), "student", zap.NewNop())
}

func receive(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return WSMessage{}
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message %s", msg.Event)
	default:
	}
}

func TestHub_BroadcastToRoomOnly(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	eventA, eventB := uuid.New(), uuid.New()
	a, b := testClient(hub, eventA), testClient(hub, eventB)
	hub.Register(a)
	hub.Register(b)

	hub.PublishSeats(context.Background(), models.Seats{EventID: eventA, Capacity: 10, Registered: 3, Available: 7})

	msg := receive(t, a)
	assert.Equal(t, EventSeatsUpdated, msg.Event)
	var seats models.Seats
	require.NoError(t, json.Unmarshal(msg.Data, &seats))
	assert.Equal(t, 7, seats.Available)
	assertNoMessage(t, b)
}

func TestHub_PublishGoesThroughSubscriptionOnce(t *testing.T) {
	bus := newLoopback()
	hub := NewHub(zap.NewNop(), bus, bus)
	eventID := uuid.New()
	c := testClient(hub, eventID)
	hub.Register(c)

	hub.PublishSeats(context.Background(), models.Seats{EventID: eventID, Capacity: 2, Registered: 2})

	assert.Equal(t, EventSeatsUpdated, receive(t, c).Event)
	assertNoMessage(t, c)
}

func TestHub_PublishFailureFallsBackToLocal(t *testing.T) {
	bus := newLoopback()
	hub := NewHub(zap.NewNop(), bus, bus)
	eventID := uuid.New()
	c := testClient(hub, eventID)
	hub.Register(c)
	bus.fail = true

	hub.PublishSeats(context.Background(), models.Seats{EventID: eventID, Capacity: 2, Registered: 1, Available: 1})

	assert.Equal(t, EventSeatsUpdated, receive(t, c).Event)
}

func TestHub_UnregisterClosesAndCancels(t *testing.T) {
	bus := newLoopback()
	hub := NewHub(zap.NewNop(), bus, bus)
	eventID := uuid.New()
	a, b := testClient(hub, eventID), testClient(hub, eventID)
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.RoomSize(eventID))

	hub.Unregister(a)
	_, open := <-a.send
	assert.False(t, open)
	assert.Equal(t, 0, bus.canceled)

	hub.Unregister(b)
	hub.Unregister(b)
	assert.Equal(t, 0, hub.RoomSize(eventID))
	assert.Equal(t, 1, bus.canceled)
}

func TestHub_FullBufferDrops(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	c := testClient(hub, eventID)
	hub.Register(c)

	for i := 0; i < sendBuffer+5; i++ {
		hub.BroadcastToRoom(eventID, EventSeatsUpdated, models.Seats{EventID: eventID})
	}
	assert.Len(t, c.send, sendBuffer)
}

func TestChannel(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	assert.Equal(t, "event:11111111-2222-3333-4444-555555555555", Channel(id))
}
