// Package realtime implements the best-effort push channel: per-user
// private events plus public broadcasts to every connected client.
// Delivery is non-blocking; slow consumers drop messages and no send
// ever fails the originating request.
package realtime

import (
	"context"
	"sync"
	"time"
)

const (
	EventNotification = "notification"
	EventUserStats    = "user-stats"
)

// Event is a named payload pushed to a live connection.
type Event struct {
	Name      string      `json:"event"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub fans events out to subscribed connections.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uint]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	userID uint
	stream chan Event
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uint]map[int64]*subscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a connection for the given user. A zero userID is
// an anonymous connection receiving public broadcasts only. The
// subscription is removed when ctx is done or cleanup is called.
func (h *Hub) Subscribe(ctx context.Context, userID uint) (<-chan Event, func()) {
	sub := &subscriber{
		id:     h.nextSequence(),
		userID: userID,
		stream: make(chan Event, h.bufferSize),
	}
	h.register(userID, sub)
	cleanup := func() {
		h.unregister(userID, sub.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// PushToUser delivers an event to the user's private connections only.
func (h *Hub) PushToUser(userID uint, name string, payload interface{}) {
	if userID == 0 || name == "" {
		return
	}
	event := Event{Name: name, Payload: payload, Timestamp: time.Now().UTC()}

	h.mu.RLock()
	subs := h.subscribers[userID]
	copies := make([]*subscriber, 0, len(subs))
	for _, sub := range subs {
		copies = append(copies, sub)
	}
	h.mu.RUnlock()

	for _, sub := range copies {
		select {
		case sub.stream <- event:
		default:
		}
	}
}

// BroadcastPublic delivers an event to every connected client.
func (h *Hub) BroadcastPublic(name string, payload interface{}) {
	if name == "" {
		return
	}
	event := Event{Name: name, Payload: payload, Timestamp: time.Now().UTC()}

	h.mu.RLock()
	copies := make([]*subscriber, 0)
	for _, subs := range h.subscribers {
		for _, sub := range subs {
			copies = append(copies, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range copies {
		select {
		case sub.stream <- event:
		default:
		}
	}
}

func (h *Hub) nextSequence() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	return h.nextID
}

func (h *Hub) register(userID uint, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[userID]; !ok {
		h.subscribers[userID] = make(map[int64]*subscriber)
	}
	h.subscribers[userID][sub.id] = sub
}

func (h *Hub) unregister(userID uint, subscriberID int64) {
	h.mu.Lock()
	subs := h.subscribers[userID]
	if subs != nil {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(h.subscribers, userID)
		}
	}
	h.mu.Unlock()
}
