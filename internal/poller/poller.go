// Package poller drives the periodic feed sweep. Each tick fetches the
// release feed, keeps only groups updated since the watermark, hands them
// to a handler, and advances the watermark only after the handler
// succeeds.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/anisub/anisub/internal/model"
)

const (
	// fetchTimeout bounds a single feed request.
	fetchTimeout = 10 * time.Second

	// defaultLookback seeds the watermark when there is no stored state.
	defaultLookback = 7 * 24 * time.Hour
)

// Fetcher produces the current feed state.
type Fetcher interface {
	Groups(ctx context.Context, title string) ([]model.DownloadGroup, error)
}

// Handler consumes the groups of one tick that passed the watermark.
type Handler interface {
	Handle(ctx context.Context, groups []model.DownloadGroup) error
}

// LastUpdater reports the newest stored content time, used to seed the
// watermark of a persistent poller.
type LastUpdater interface {
	LastUpdated(ctx context.Context) (time.Time, bool, error)
}

// Poller owns the feed watermark.
type Poller struct {
	fetcher Fetcher
	handler Handler
	logger  zerolog.Logger

	running atomic.Bool

	mu        sync.RWMutex
	watermark time.Time
}

func newPoller(fetcher Fetcher, handler Handler, watermark time.Time, logger zerolog.Logger) *Poller {
	return &Poller{
		fetcher:   fetcher,
		handler:   handler,
		logger:    logger.With().Str("component", "poller").Logger(),
		watermark: watermark,
	}
}

// NewTransient creates a poller with no stored state. The watermark starts
// a week back so the first sweep replays recent releases.
func NewTransient(fetcher Fetcher, handler Handler, logger zerolog.Logger) *Poller {
	return newPoller(fetcher, handler, time.Now().Add(-defaultLookback), logger)
}

// NewPersistent seeds the watermark from the newest stored group, falling
// back to the current time when the store is empty.
func NewPersistent(ctx context.Context, fetcher Fetcher, store LastUpdater, handler Handler, logger zerolog.Logger) (*Poller, error) {
	last, ok, err := store.LastUpdated(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		last = time.Now()
	}
	return newPoller(fetcher, handler, last, logger), nil
}

// Watermark returns the newest content time the poller has handled.
func (p *Poller) Watermark() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.watermark
}

func (p *Poller) setWatermark(t time.Time) {
	p.mu.Lock()
	p.watermark = t
	p.mu.Unlock()
}

// Run executes one tick. Overlapping ticks are coalesced: a tick arriving
// while another is in flight is skipped. The watermark does not move when
// the fetch or the handler fails.
func (p *Poller) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Debug().Msg("previous sweep still running, skipping tick")
		return nil
	}
	defer p.running.Store(false)

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	groups, err := p.fetcher.Groups(fetchCtx, "")
	if err != nil {
		p.logger.Error().Err(err).Msg("feed fetch failed")
		return err
	}

	watermark := p.Watermark()
	newest := watermark
	fresh := make([]model.DownloadGroup, 0, len(groups))
	for _, g := range groups {
		if !g.UpdatedAt.After(watermark) {
			continue
		}
		fresh = append(fresh, g)
		if g.UpdatedAt.After(newest) {
			newest = g.UpdatedAt
		}
	}

	if len(fresh) == 0 {
		p.logger.Debug().Time("watermark", watermark).Msg("no new releases")
		return nil
	}

	if err := p.handler.Handle(ctx, fresh); err != nil {
		p.logger.Error().Err(err).Int("groups", len(fresh)).Msg("handler failed, keeping watermark")
		return err
	}

	p.setWatermark(newest)
	p.logger.Info().
		Int("groups", len(fresh)).
		Time("watermark", newest).
		Msg("sweep complete")
	return nil
}
