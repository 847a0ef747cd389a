// Package marketdata maintains the shared view of live exchange prices.
//
// cache.go  - in-memory price cache fed by the refresher and the websocket
// stream. Entries are replaced whole, never mutated in place, so readers
// holding a sample are never surprised mid-cycle.
package marketdata

import (
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nipdog001/memebot3-sub002/internal/exchange"
)

const historyLimit = 200

// PricePoint is one cached price observation, kept for volatility and
// trend estimates
type PricePoint struct {
	Price     decimal.Decimal
	Timestamp time.Time
}

// Cache holds the latest ticker per (symbol, exchange) plus a short price
// history per pair
type Cache struct {
	mu      sync.RWMutex
	tickers map[string]map[string]*exchange.Ticker // symbol -> exchange -> latest
	history map[string][]PricePoint                // symbol|exchange -> recent prices
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{
		tickers: make(map[string]map[string]*exchange.Ticker),
		history: make(map[string][]PricePoint),
	}
}

func historyKey(symbol, ex string) string {
	return symbol + "|" + ex
}

// Put stores a ticker, replacing the previous sample for its
// (symbol, exchange) slot
func (c *Cache) Put(t exchange.Ticker) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byExchange, ok := c.tickers[t.Symbol]
	if !ok {
		byExchange = make(map[string]*exchange.Ticker)
		c.tickers[t.Symbol] = byExchange
	}
	sample := t
	byExchange[t.Exchange] = &sample

	key := historyKey(t.Symbol, t.Exchange)
	points := append(c.history[key], PricePoint{Price: t.Price, Timestamp: t.Timestamp})
	if len(points) > historyLimit {
		points = points[len(points)-historyLimit:]
	}
	c.history[key] = points
}

// Get returns every exchange's latest sample for a symbol
func (c *Cache) Get(symbol string) []exchange.Ticker {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byExchange := c.tickers[symbol]
	out := make([]exchange.Ticker, 0, len(byExchange))
	for _, t := range byExchange {
		out = append(out, *t)
	}
	return out
}

// GetTicker returns one exchange's latest sample for a symbol
func (c *Cache) GetTicker(ex, symbol string) (exchange.Ticker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if byExchange, ok := c.tickers[symbol]; ok {
		if t, ok := byExchange[ex]; ok {
			return *t, true
		}
	}
	return exchange.Ticker{}, false
}

// Symbols returns every symbol with at least one cached sample
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.tickers))
	for sym := range c.tickers {
		out = append(out, sym)
	}
	return out
}

// SampleCount returns how many (symbol, exchange) slots hold a sample
func (c *Cache) SampleCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, byExchange := range c.tickers {
		n += len(byExchange)
	}
	return n
}

// Volatility estimates recent volatility for a pair as the standard
// deviation of simple returns over the cached history. Returns zero when
// there is not enough history.
func (c *Cache) Volatility(ex, symbol string) float64 {
	c.mu.RLock()
	points := c.history[historyKey(symbol, ex)]
	c.mu.RUnlock()

	if len(points) < 3 {
		return 0
	}

	returns := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev, _ := points[i-1].Price.Float64()
		curr, _ := points[i].Price.Float64()
		if prev > 0 {
			returns = append(returns, (curr-prev)/prev)
		}
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	return math.Sqrt(variance)
}

// ChangePct returns the percent move for a pair over the given window,
// from the cached history
func (c *Cache) ChangePct(ex, symbol string, window time.Duration) decimal.Decimal {
	c.mu.RLock()
	points := c.history[historyKey(symbol, ex)]
	c.mu.RUnlock()

	if len(points) < 2 {
		return decimal.Zero
	}

	cutoff := time.Now().Add(-window)
	oldPrice := points[0].Price
	for _, p := range points {
		if p.Timestamp.After(cutoff) {
			break
		}
		oldPrice = p.Price
	}
	if oldPrice.IsZero() {
		return decimal.Zero
	}

	current := points[len(points)-1].Price
	return current.Sub(oldPrice).Div(oldPrice).Mul(decimal.NewFromInt(100))
}
