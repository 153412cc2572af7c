package api

import (
	"sync"
	"time"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// Event types published to /events subscribers.
const (
	EventLoaded    = "loaded"
	EventRefreshed = "refreshed"
)

// Event announces new committed versions.
type Event struct {
	Type     string            `json:"type"`
	RunID    string            `json:"run_id,omitempty"`
	Status   core.RunStatus    `json:"status,omitempty"`
	Versions map[string]uint64 `json:"versions,omitempty"`
	Time     time.Time         `json:"time"`
}

// Hub broadcasts events to every subscriber.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan Event]struct{})}
}

// Subscribe returns a channel receiving future events.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, 8)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish sends ev to every subscriber. A subscriber whose buffer is full
// misses the event.
func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
