package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// takerFees holds the spot taker fee rate per exchange. Exchanges not in
// the table fall back to defaultTakerFee.
var takerFees = map[string]decimal.Decimal{
	"coinbase":  decimal.NewFromFloat(0.006),
	"kraken":    decimal.NewFromFloat(0.0026),
	"gemini":    decimal.NewFromFloat(0.0035),
	"binanceus": decimal.NewFromFloat(0.001),
	"cryptocom": decimal.NewFromFloat(0.004),
	"binance":   decimal.NewFromFloat(0.001),
	"kucoin":    decimal.NewFromFloat(0.001),
}

var defaultTakerFee = decimal.NewFromFloat(0.0025)

// TakerFee returns the taker fee rate for an exchange
func TakerFee(exchange string) decimal.Decimal {
	if fee, ok := takerFees[exchange]; ok {
		return fee
	}
	return defaultTakerFee
}

// Registry wraps the exchange adapters with retries, connection status
// tracking and batch fetching
type Registry struct {
	clients map[string]Client
	order   []string // stable iteration order
	hasKeys map[string]bool

	status   map[string]*Status
	statusMu sync.RWMutex

	maxRetries int
	retryDelay time.Duration
}

// NewRegistry creates a registry over the given adapters. hasKeys marks
// exchanges with configured API credentials (public data works without them).
func NewRegistry(clients []Client, hasKeys map[string]bool) *Registry {
	r := &Registry{
		clients:    make(map[string]Client, len(clients)),
		order:      make([]string, 0, len(clients)),
		hasKeys:    hasKeys,
		status:     make(map[string]*Status, len(clients)),
		maxRetries: 3,
		retryDelay: time.Second,
	}
	for _, c := range clients {
		name := c.Name()
		r.clients[name] = c
		r.order = append(r.order, name)
		r.status[name] = &Status{Exchange: name, HasAPIKeys: hasKeys[name]}
	}
	return r
}

// Exchanges returns the registered exchange names in registration order
func (r *Registry) Exchanges() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Client returns the adapter for an exchange
func (r *Registry) Client(exchange string) (Client, error) {
	c, ok := r.clients[exchange]
	if !ok {
		return nil, fmt.Errorf("%s: %w", exchange, ErrNotConnected)
	}
	return c, nil
}

// Connect probes every exchange by listing its markets and records the
// connection status. It returns the number of exchanges that responded.
func (r *Registry) Connect(ctx context.Context, quote string) int {
	connected := 0
	for _, name := range r.order {
		client := r.clients[name]
		symbols, err := client.ListSymbols(ctx, quote)

		r.statusMu.Lock()
		st := r.status[name]
		st.LastChecked = time.Now()
		if err != nil {
			st.Connected = false
			st.LastError = err.Error()
			log.Warn().Str("exchange", name).Err(err).Msg("⚠️ Exchange connection failed")
		} else {
			st.Connected = true
			st.LastError = ""
			st.MarketCount = len(symbols)
			connected++
			log.Info().Str("exchange", name).Int("markets", len(symbols)).Msg("🔌 Exchange connected")
		}
		r.statusMu.Unlock()
	}
	return connected
}

// FetchTicker fetches a ticker with retries. Transient failures back off
// linearly: 1s after the first attempt, 2s after the second.
func (r *Registry) FetchTicker(ctx context.Context, exchange, symbol string) (*Ticker, error) {
	client, err := r.Client(exchange)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		ticker, err := client.FetchTicker(ctx, symbol)
		if err == nil {
			r.markHealthy(exchange)
			return ticker, nil
		}
		lastErr = err

		log.Debug().
			Str("exchange", exchange).
			Str("symbol", symbol).
			Int("attempt", attempt).
			Err(err).
			Msg("Ticker fetch failed")

		if attempt < r.maxRetries {
			select {
			case <-time.After(r.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	r.markFailed(exchange, lastErr)
	return nil, fmt.Errorf("fetch %s on %s after %d attempts: %w", symbol, exchange, r.maxRetries, lastErr)
}

// FetchAll fetches a symbol's ticker from every exchange concurrently.
// Exchanges that fail are skipped; the slice only contains real samples.
func (r *Registry) FetchAll(ctx context.Context, symbol string) []*Ticker {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		tickers = make([]*Ticker, 0, len(r.order))
	)
	for _, name := range r.order {
		wg.Add(1)
		go func(exchange string) {
			defer wg.Done()
			ticker, err := r.FetchTicker(ctx, exchange, symbol)
			if err != nil {
				return
			}
			mu.Lock()
			tickers = append(tickers, ticker)
			mu.Unlock()
		}(name)
	}
	wg.Wait()
	return tickers
}

// FetchOrderBook fetches the order book without retries; snapshot data is
// advisory and the caller degrades gracefully on failure
func (r *Registry) FetchOrderBook(ctx context.Context, exchange, symbol string, depth int) (*OrderBook, error) {
	client, err := r.Client(exchange)
	if err != nil {
		return nil, err
	}
	return client.FetchOrderBook(ctx, symbol, depth)
}

// Status returns a snapshot of every exchange's connection status
func (r *Registry) Status() map[string]Status {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()

	out := make(map[string]Status, len(r.status))
	for name, st := range r.status {
		out[name] = *st
	}
	return out
}

// ConnectedCount returns how many exchanges are currently healthy
func (r *Registry) ConnectedCount() int {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()

	n := 0
	for _, st := range r.status {
		if st.Connected {
			n++
		}
	}
	return n
}

func (r *Registry) markHealthy(exchange string) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	if st, ok := r.status[exchange]; ok {
		st.Connected = true
		st.LastError = ""
		st.LastChecked = time.Now()
	}
}

func (r *Registry) markFailed(exchange string, err error) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	if st, ok := r.status[exchange]; ok {
		st.Connected = false
		if err != nil {
			st.LastError = err.Error()
		}
		st.LastChecked = time.Now()
	}
}
