package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Coinbase talks to the Coinbase Exchange public REST API
type Coinbase struct {
	restURL string
	http    *http.Client
}

// NewCoinbase creates a Coinbase adapter
func NewCoinbase(timeout time.Duration) *Coinbase {
	return &Coinbase{
		restURL: "https://api.exchange.coinbase.com",
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Coinbase) Name() string { return "coinbase" }

// coinbaseProduct maps "DOGE/USDT" to "DOGE-USDT"
func coinbaseProduct(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "-")
}

// FetchTicker combines the ticker and stats endpoints. Coinbase reports
// base-currency volume; it is converted to quote volume at the last price so
// liquidity thresholds compare like with like across exchanges.
func (c *Coinbase) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	product := coinbaseProduct(symbol)

	var tick struct {
		Price  string `json:"price"`
		Bid    string `json:"bid"`
		Ask    string `json:"ask"`
		Volume string `json:"volume"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/products/%s/ticker", c.restURL, product), &tick); err != nil {
		return nil, err
	}

	price := parseDecimal(tick.Price)
	if price.IsZero() {
		return nil, fmt.Errorf("coinbase: bad price for %s: %w", symbol, ErrSymbolNotFound)
	}

	var stats struct {
		Open   string `json:"open"`
		Volume string `json:"volume"`
	}
	changePct := decimal.Zero
	baseVolume := parseDecimal(tick.Volume)
	if err := c.getJSON(ctx, fmt.Sprintf("%s/products/%s/stats", c.restURL, product), &stats); err == nil {
		if open := parseDecimal(stats.Open); !open.IsZero() {
			changePct = price.Sub(open).Div(open).Mul(decimal.NewFromInt(100))
		}
		if v := parseDecimal(stats.Volume); !v.IsZero() {
			baseVolume = v
		}
	}

	return &Ticker{
		Symbol:       symbol,
		Exchange:     c.Name(),
		Price:        price,
		Bid:          parseDecimal(tick.Bid),
		Ask:          parseDecimal(tick.Ask),
		QuoteVolume:  baseVolume.Mul(price),
		ChangePct24h: changePct,
		Timestamp:    time.Now(),
		IsRealData:   true,
		DataSource:   "EXCHANGE_REST",
	}, nil
}

// FetchOrderBook fetches the level-2 aggregated book
func (c *Coinbase) FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	url := fmt.Sprintf("%s/products/%s/book?level=2", c.restURL, coinbaseProduct(symbol))

	var raw struct {
		Bids [][]json.RawMessage `json:"bids"`
		Asks [][]json.RawMessage `json:"asks"`
	}
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}

	book := &OrderBook{
		Symbol:    symbol,
		Exchange:  c.Name(),
		Bids:      make([]BookLevel, 0, depth),
		Asks:      make([]BookLevel, 0, depth),
		Timestamp: time.Now(),
	}
	for i, lvl := range raw.Bids {
		if i >= depth {
			break
		}
		if entry, ok := coinbaseBookLevel(lvl); ok {
			book.Bids = append(book.Bids, entry)
		}
	}
	for i, lvl := range raw.Asks {
		if i >= depth {
			break
		}
		if entry, ok := coinbaseBookLevel(lvl); ok {
			book.Asks = append(book.Asks, entry)
		}
	}
	return book, nil
}

// coinbaseBookLevel parses [price, size, num_orders]
func coinbaseBookLevel(lvl []json.RawMessage) (BookLevel, bool) {
	if len(lvl) < 2 {
		return BookLevel{}, false
	}
	var priceStr, sizeStr string
	if err := json.Unmarshal(lvl[0], &priceStr); err != nil {
		return BookLevel{}, false
	}
	if err := json.Unmarshal(lvl[1], &sizeStr); err != nil {
		return BookLevel{}, false
	}
	return BookLevel{Price: parseDecimal(priceStr), Quantity: parseDecimal(sizeStr)}, true
}

// ListSymbols returns active spot products quoted in the given currency
func (c *Coinbase) ListSymbols(ctx context.Context, quote string) ([]string, error) {
	var products []struct {
		BaseCurrency    string `json:"base_currency"`
		QuoteCurrency   string `json:"quote_currency"`
		Status          string `json:"status"`
		TradingDisabled bool   `json:"trading_disabled"`
	}
	if err := c.getJSON(ctx, c.restURL+"/products", &products); err != nil {
		return nil, err
	}

	symbols := make([]string, 0, 64)
	for _, p := range products {
		if p.Status == "online" && !p.TradingDisabled && p.QuoteCurrency == quote {
			symbols = append(symbols, p.BaseCurrency+"/"+p.QuoteCurrency)
		}
	}
	return symbols, nil
}

func (c *Coinbase) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "memebot/3.0")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("coinbase: %v: %w", err, ErrExchangeUnreachable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("coinbase: status %d: %w", resp.StatusCode, ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("coinbase: status %d: %w", resp.StatusCode, ErrSymbolNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("coinbase: status %d: %w", resp.StatusCode, ErrExchangeUnreachable)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
