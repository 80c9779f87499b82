package feed

import (
	"sync"

	"github.com/google/uuid"

	"github.com/0xmhha/agentpulse/pkg/logger"
)

// DefaultBuffer is the per-subscriber event buffer.
const DefaultBuffer = 64

// Subscription is one registered subscriber.
type Subscription struct {
	// ID is an opaque identifier assigned by the hub.
	ID string

	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Events returns the subscriber's event channel. It is never closed;
// select on Done to learn that the subscription ended.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed when the subscription is removed from the hub.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans events out to a dynamic set of subscribers.
//
// Delivery never blocks: a subscriber whose buffer is full is dropped and
// the others still receive the event.
type Hub struct {
	name   string
	buffer int
	logger logger.Logger

	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewHub creates an empty hub. A buffer <= 0 means DefaultBuffer.
func NewHub(name string, buffer int, log logger.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		name:   name,
		buffer: buffer,
		logger: log,
		subs:   make(map[string]*Subscription),
	}
}

// Name returns the agent the hub serves.
func (h *Hub) Name() string {
	return h.name
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		events: make(chan Event, h.buffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	count := len(h.subs)
	h.mu.Unlock()

	h.logger.Debug("subscriber added", "agent", h.name, "client_id", sub.ID, "subscribers", count)
	return sub
}

// Unsubscribe removes a subscriber. It reports whether id was registered.
func (h *Hub) Unsubscribe(id string) bool {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	count := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return false
	}
	sub.close()
	h.logger.Debug("subscriber removed", "agent", h.name, "client_id", id, "subscribers", count)
	return true
}

// Broadcast delivers ev to every subscriber and returns how many received it.
func (h *Hub) Broadcast(ev Event) int {
	var dropped []string
	delivered := 0

	h.mu.RLock()
	for id, sub := range h.subs {
		select {
		case sub.events <- ev:
			delivered++
		default:
			dropped = append(dropped, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range dropped {
		if h.Unsubscribe(id) {
			h.logger.Warn("dropping slow subscriber", "agent", h.name, "client_id", id)
		}
	}
	return delivered
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close removes every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
