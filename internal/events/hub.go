// Package events provides the in-process pub/sub hub feeding the WebSocket
// event stream. Delivery is best-effort: a subscriber that falls behind has
// events dropped rather than blocking publishers
package events

import (
	"sync"
	"time"

	"github.com/siderealworks/meridian/internal/util"
	"github.com/siderealworks/meridian/pkg/api"
)

// Hub fans orchestrator events out to subscribers
type Hub struct {
	mu   sync.RWMutex
	subs util.Set[chan *api.Event]
}

const subscriberBuffer = 64

// NewHub creates an event hub with no subscribers
func NewHub() *Hub {
	return &Hub{
		subs: util.Set[chan *api.Event]{},
	}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called to release the subscription; the channel is closed afterward
func (h *Hub) Subscribe() (<-chan *api.Event, func()) {
	ch := make(chan *api.Event, subscriberBuffer)

	h.mu.Lock()
	h.subs.Add(ch)
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			h.subs.Remove(ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking
func (h *Hub) Publish(ev *api.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subs.Len()
}
