// snapshot.go - order-book derived market snapshots used by the confidence
// scorer. Snapshots are cached for 30 seconds per (exchange, symbol) since
// they feed slow-moving risk factors, not the price path itself.
package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nipdog001/memebot3-sub002/internal/exchange"
)

const (
	snapshotTTL   = 30 * time.Second
	bookDepth     = 10
	trendWindow   = 5 * time.Minute
	minLiquidity  = 10000 // USD of top-of-book depth plus volume considered tradable
	maxTradeShare = 0.02  // max trade size as share of visible book depth
)

// Market trend buckets, derived from the 24h change
const (
	TrendStrongBullish = "strong_bullish"
	TrendBullish       = "bullish"
	TrendNeutral       = "neutral"
	TrendBearish       = "bearish"
	TrendStrongBearish = "strong_bearish"
)

// Liquidity describes whether the visible book supports the trade size
type Liquidity struct {
	Sufficient   bool
	MaxTradeSize decimal.Decimal
}

// Snapshot is a point-in-time view of one market's microstructure
type Snapshot struct {
	Exchange       string
	Symbol         string
	SpreadPct      decimal.Decimal
	OrderBookDepth decimal.Decimal // quote value of the top levels, both sides
	QuoteVolume    decimal.Decimal
	Volatility     float64 // stddev of recent returns
	Trend          string
	Liquidity      Liquidity
	FromOrderBook  bool // false when degraded to cache-only estimates
	Timestamp      time.Time
}

// Snapshotter builds and caches market snapshots
type Snapshotter struct {
	registry *exchange.Registry
	cache    *Cache

	mu        sync.Mutex
	snapshots map[string]*Snapshot
}

// NewSnapshotter creates a snapshotter over the registry and price cache
func NewSnapshotter(registry *exchange.Registry, cache *Cache) *Snapshotter {
	return &Snapshotter{
		registry:  registry,
		cache:     cache,
		snapshots: make(map[string]*Snapshot),
	}
}

// Snapshot returns the current snapshot for a market, refreshing it when the
// cached one has expired. The order-book fetch is best effort; on failure the
// snapshot degrades to cache-derived estimates.
func (s *Snapshotter) Snapshot(ctx context.Context, ex, symbol string) *Snapshot {
	key := historyKey(symbol, ex)

	s.mu.Lock()
	if snap, ok := s.snapshots[key]; ok && time.Since(snap.Timestamp) < snapshotTTL {
		s.mu.Unlock()
		return snap
	}
	s.mu.Unlock()

	snap := s.build(ctx, ex, symbol)

	s.mu.Lock()
	s.snapshots[key] = snap
	s.mu.Unlock()

	return snap
}

func (s *Snapshotter) build(ctx context.Context, ex, symbol string) *Snapshot {
	snap := &Snapshot{
		Exchange:   ex,
		Symbol:     symbol,
		Volatility: s.cache.Volatility(ex, symbol),
		Trend:      TrendNeutral,
		Timestamp:  time.Now(),
	}

	if ticker, ok := s.cache.GetTicker(ex, symbol); ok {
		snap.QuoteVolume = ticker.QuoteVolume
		snap.Trend = trendBucket(ticker.ChangePct24h)
		if !ticker.Bid.IsZero() && !ticker.Ask.IsZero() {
			mid := ticker.Bid.Add(ticker.Ask).Div(decimal.NewFromInt(2))
			if !mid.IsZero() {
				snap.SpreadPct = ticker.Ask.Sub(ticker.Bid).Div(mid).Mul(decimal.NewFromInt(100))
			}
		}
	}

	book, err := s.registry.FetchOrderBook(ctx, ex, symbol, bookDepth)
	if err != nil {
		log.Debug().Str("exchange", ex).Str("symbol", symbol).Err(err).
			Msg("Order book unavailable, degraded snapshot")
		snap.Liquidity = assessLiquidity(snap.QuoteVolume)
		return snap
	}

	snap.FromOrderBook = true
	snap.OrderBookDepth = book.DepthQuote(bookDepth)
	if spread := book.SpreadPct(); !spread.IsZero() {
		snap.SpreadPct = spread
	}
	snap.Liquidity = assessLiquidity(snap.OrderBookDepth.Add(snap.QuoteVolume))
	return snap
}

// assessLiquidity marks a market tradable above the minimum visible value
// and caps trade size at a small share of it
func assessLiquidity(visibleValue decimal.Decimal) Liquidity {
	return Liquidity{
		Sufficient:   visibleValue.GreaterThan(decimal.NewFromInt(minLiquidity)),
		MaxTradeSize: visibleValue.Mul(decimal.NewFromFloat(maxTradeShare)),
	}
}

// trendBucket classifies the 24h change percentage
func trendBucket(changePct decimal.Decimal) string {
	switch {
	case changePct.GreaterThan(decimal.NewFromInt(2)):
		return TrendStrongBullish
	case changePct.GreaterThan(decimal.NewFromFloat(0.5)):
		return TrendBullish
	case changePct.LessThan(decimal.NewFromInt(-2)):
		return TrendStrongBearish
	case changePct.LessThan(decimal.NewFromFloat(-0.5)):
		return TrendBearish
	default:
		return TrendNeutral
	}
}
