package poller

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/anisub/anisub/internal/hub"
	"github.com/anisub/anisub/internal/model"
	"github.com/anisub/anisub/internal/requestcache"
)

// GroupStore is the slice of the repository the persistent handler needs.
type GroupStore interface {
	InsertGroups(ctx context.Context, groups []model.DownloadGroup) ([]uuid.UUID, error)
}

// TransientHandler broadcasts fresh groups without persisting anything.
type TransientHandler struct {
	hub *hub.Hub
}

func NewTransientHandler(h *hub.Hub) *TransientHandler {
	return &TransientHandler{hub: h}
}

func (t *TransientHandler) Handle(_ context.Context, groups []model.DownloadGroup) error {
	for _, g := range groups {
		t.hub.Broadcast(g)
	}
	return nil
}

// PersistentHandler stores fresh groups, broadcasts them, then evicts
// cached responses that predate the newest group. Persistence comes first:
// a failed insert leaves subscribers and cache untouched so the tick can
// be retried.
type PersistentHandler struct {
	store GroupStore
	hub   *hub.Hub
	cache *requestcache.Cache[[]model.DownloadGroup]
}

func NewPersistentHandler(store GroupStore, h *hub.Hub, cache *requestcache.Cache[[]model.DownloadGroup]) *PersistentHandler {
	return &PersistentHandler{store: store, hub: h, cache: cache}
}

func (p *PersistentHandler) Handle(ctx context.Context, groups []model.DownloadGroup) error {
	if _, err := p.store.InsertGroups(ctx, groups); err != nil {
		return err
	}

	var newest time.Time
	for _, g := range groups {
		p.hub.Broadcast(g)
		if g.UpdatedAt.After(newest) {
			newest = g.UpdatedAt
		}
	}

	if p.cache != nil {
		p.cache.InvalidateStale(newest)
	}
	return nil
}
