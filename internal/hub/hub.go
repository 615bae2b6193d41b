// Package hub fans freshly discovered download groups out to stream
// subscribers. The producer never blocks: a subscriber that falls more than
// a buffer's worth of messages behind is cut off and told it lagged.
package hub

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/anisub/anisub/internal/model"
)

// BufferSize is the per-subscriber channel capacity.
const BufferSize = 32

// Subscription is one subscriber's view of the broadcast stream.
type Subscription struct {
	hub    *Hub
	ch     chan model.DownloadGroup
	lagged chan struct{}
	once   sync.Once
}

// Updates delivers broadcast groups in publish order.
func (s *Subscription) Updates() <-chan model.DownloadGroup {
	return s.ch
}

// Lagged is closed when the subscriber was dropped for falling behind.
// After it fires, Updates delivers nothing further.
func (s *Subscription) Lagged() <-chan struct{} {
	return s.lagged
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub is the broadcast fan-out point shared by the SSE, WebSocket and gRPC
// surfaces.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Hub {
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		logger: logger.With().Str("component", "hub").Logger(),
	}
}

// Subscribe attaches a new subscriber with a BufferSize deep queue.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{
		hub:    h,
		ch:     make(chan model.DownloadGroup, BufferSize),
		lagged: make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()

	h.logger.Debug().Int("subscribers", count).Msg("subscriber attached")
	return s
}

// Broadcast delivers group to every live subscriber. Subscribers with a
// full queue are detached and signalled via Lagged.
func (h *Hub) Broadcast(group model.DownloadGroup) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		select {
		case s.ch <- group:
		default:
			delete(h.subs, s)
			s.once.Do(func() { close(s.lagged) })
			h.logger.Warn().
				Str("title", group.Title).
				Msg("dropping slow subscriber")
		}
	}
}

// SubscriberCount reports the number of attached subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}
