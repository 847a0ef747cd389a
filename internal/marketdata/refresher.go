// refresher.go - background poll loop that keeps the cache warm. Every tick
// it fans out to all exchanges for every configured symbol.
package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nipdog001/memebot3-sub002/internal/exchange"
)

// Refresher polls the registry on an interval and writes into the cache
type Refresher struct {
	registry *exchange.Registry
	cache    *Cache
	symbols  []string
	interval time.Duration

	running bool
	stopCh  chan struct{}
}

// NewRefresher creates a refresher for the given symbols
func NewRefresher(registry *exchange.Registry, cache *Cache, symbols []string, interval time.Duration) *Refresher {
	return &Refresher{
		registry: registry,
		cache:    cache,
		symbols:  symbols,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the poll loop. The first refresh runs immediately so the
// cache is usable before the first tick.
func (r *Refresher) Start(ctx context.Context) {
	r.running = true
	go r.loop(ctx)
	log.Info().
		Int("symbols", len(r.symbols)).
		Dur("interval", r.interval).
		Msg("🔄 Price refresher started")
}

// Stop halts the poll loop
func (r *Refresher) Stop() {
	if !r.running {
		return
	}
	r.running = false
	close(r.stopCh)
	log.Info().Msg("Price refresher stopped")
}

// Ingest accepts a streamed ticker, for wiring as the websocket callback
func (r *Refresher) Ingest(t exchange.Ticker) {
	r.cache.Put(t)
}

func (r *Refresher) loop(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.refresh(ctx)
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	start := time.Now()
	updated := 0

	for _, symbol := range r.symbols {
		for _, t := range r.registry.FetchAll(ctx, symbol) {
			r.cache.Put(*t)
			updated++
		}
		if ctx.Err() != nil {
			return
		}
	}

	log.Debug().
		Int("samples", updated).
		Dur("took", time.Since(start)).
		Msg("Cache refreshed")
}
