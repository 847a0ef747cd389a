// Package exchange provides market data adapters for centralized exchanges.
//
// Each adapter speaks the exchange's public REST API and normalizes tickers,
// order books and symbol listings into common types. The Registry wraps the
// adapters with retry, connection status tracking and the taker fee table.
package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Typed errors surfaced by adapters and the registry
var (
	ErrExchangeUnreachable = errors.New("exchange unreachable")
	ErrSymbolNotFound      = errors.New("symbol not listed on exchange")
	ErrRateLimited         = errors.New("exchange rate limit exceeded")
	ErrNotConnected        = errors.New("exchange not connected")
)

// Ticker is a normalized price sample from one exchange
type Ticker struct {
	Symbol       string // unified form, e.g. "DOGE/USDT"
	Exchange     string
	Price        decimal.Decimal
	Bid          decimal.Decimal
	Ask          decimal.Decimal
	QuoteVolume  decimal.Decimal // 24h volume in quote currency
	ChangePct24h decimal.Decimal
	Timestamp    time.Time
	IsRealData   bool
	DataSource   string
}

// Age returns how stale this sample is
func (t *Ticker) Age() time.Duration {
	return time.Since(t.Timestamp)
}

// BookLevel is a single price level of an order book
type BookLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook holds the top levels of an exchange order book
type OrderBook struct {
	Symbol    string
	Exchange  string
	Bids      []BookLevel
	Asks      []BookLevel
	Timestamp time.Time
}

// DepthQuote sums the quote-currency value of the top levels on both sides
func (b *OrderBook) DepthQuote(levels int) decimal.Decimal {
	total := decimal.Zero
	for i, lvl := range b.Bids {
		if i >= levels {
			break
		}
		total = total.Add(lvl.Price.Mul(lvl.Quantity))
	}
	for i, lvl := range b.Asks {
		if i >= levels {
			break
		}
		total = total.Add(lvl.Price.Mul(lvl.Quantity))
	}
	return total
}

// SpreadPct returns the bid/ask spread as a percentage of the mid price
func (b *OrderBook) SpreadPct() decimal.Decimal {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return decimal.Zero
	}
	bid := b.Bids[0].Price
	ask := b.Asks[0].Price
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	if mid.IsZero() {
		return decimal.Zero
	}
	return ask.Sub(bid).Div(mid).Mul(decimal.NewFromInt(100))
}

// Client is implemented by each exchange adapter
type Client interface {
	// Name returns the exchange identifier, e.g. "kraken"
	Name() string
	// FetchTicker fetches the current 24h ticker for a unified symbol
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)
	// FetchOrderBook fetches the top levels of the order book
	FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error)
	// ListSymbols returns active spot symbols quoted in the given currency
	ListSymbols(ctx context.Context, quote string) ([]string, error)
}

// Status describes the health of one exchange connection
type Status struct {
	Exchange    string    `json:"exchange"`
	Connected   bool      `json:"connected"`
	HasAPIKeys  bool      `json:"has_api_keys"`
	MarketCount int       `json:"market_count"`
	LastError   string    `json:"last_error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}
