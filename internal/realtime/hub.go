// Package realtime implements the lesson change-notification feed: an
// in-process hub that fans row-change events out to SSE subscribers, plus a
// Bus abstraction for cross-instance delivery (see bus.go).
package realtime

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Event types emitted on the feed.
const (
	EventLessonCreated = "lesson.created"
	EventLessonUpdated = "lesson.updated"
)

// Event is a change notification for a single lesson row. Clients re-read
// the lesson list on any event, so the payload stays intentionally small.
type Event struct {
	Type     string `json:"type"`
	LessonID string `json:"lesson_id"`
	Status   string `json:"status"`
}

// subscriberBuffer bounds the per-subscriber channel; a subscriber that
// falls this far behind is dropped rather than blocking the hub.
const subscriberBuffer = 16

// Hub fans events out to subscribers. Safe for concurrent use.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber and returns its event channel plus a
// cancel function. The channel is closed by cancel (and by a forced drop),
// so receivers must handle channel close.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Broadcast delivers ev to every subscriber without blocking. Subscribers
// whose buffers are full are disconnected; an SSE client that stopped
// reading reconnects and re-reads the list anyway.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			delete(h.subs, ch)
			close(ch)
			log.Warn().
				Str("event", ev.Type).
				Str("lesson_id", ev.LessonID).
				Msg("dropping slow feed subscriber")
		}
	}
}

// Len returns the current subscriber count (used by tests and metrics).
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
