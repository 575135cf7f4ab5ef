package sse

import (
	"sync"

	"github.com/tidycrew/fieldops-backend-go/internal/domain/attendance"
)

// Event represents an SSE event to be sent to subscribers
type Event struct {
	CleanerID string
	Event     string
	Data      interface{}
}

// Hub manages SSE subscribers and event broadcasting
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
}

// NewHub creates a new SSE Hub instance
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers a new subscriber for a cleaner and returns the event channel and cleanup function
func (h *Hub) Subscribe(cleanerID string) (chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, 10)

	if h.subscribers[cleanerID] == nil {
		h.subscribers[cleanerID] = make(map[chan Event]struct{})
	}
	h.subscribers[cleanerID][ch] = struct{}{}

	cleanup := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subscribers[cleanerID], ch)
		close(ch)
		if len(h.subscribers[cleanerID]) == 0 {
			delete(h.subscribers, cleanerID)
		}
	}

	return ch, cleanup
}

// Publish sends an event to all subscribers of a specific cleaner
func (h *Hub) Publish(cleanerID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if subs, ok := h.subscribers[cleanerID]; ok {
		for ch := range subs {
			select {
			case ch <- event:
			default:
				// Skip if channel is full (non-blocking to prevent deadlock)
			}
		}
	}
}

// SubscriberCount returns the number of active subscribers for a cleaner
func (h *Hub) SubscriberCount(cleanerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if subs, ok := h.subscribers[cleanerID]; ok {
		return len(subs)
	}
	return 0
}

// NotifyAutoClockOut pushes the automatic clock-out notice to the cleaner's
// open streams. The worker must learn why they were clocked out even when no
// request of theirs is in flight.
func (h *Hub) NotifyAutoClockOut(cleanerID string, record attendance.Record, message string) {
	h.Publish(cleanerID, Event{
		CleanerID: cleanerID,
		Event:     "auto_clock_out",
		Data: map[string]interface{}{
			"message": message,
			"record":  attendance.MapRecordToResponse(record),
		},
	})
}
