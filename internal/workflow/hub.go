package workflow

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/drfirst/go-referral/internal/domain/referral"
)

// Hub fans domain events out to in-process subscribers. Slow subscribers
// miss events rather than block publishers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan *referral.Event
	nextID int
	logger *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[int]chan *referral.Event), logger: logger}
}

// Publish delivers the event to every subscriber
func (h *Hub) Publish(_ context.Context, event *referral.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			h.logger.Warn("subscriber lagging, event dropped",
				zap.Int("subscriber", id),
				zap.String("event_type", string(event.EventType)),
			)
		}
	}
	return nil
}

// Subscribe registers a subscriber and returns its channel and cancel func
func (h *Hub) Subscribe(buffer int) (<-chan *referral.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan *referral.Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
