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

// BinanceUS talks to the Binance.US public REST API
type BinanceUS struct {
	restURL string
	http    *http.Client
}

// NewBinanceUS creates a Binance.US adapter
func NewBinanceUS(timeout time.Duration) *BinanceUS {
	return &BinanceUS{
		restURL: "https://api.binance.us",
		http:    &http.Client{Timeout: timeout},
	}
}

func (b *BinanceUS) Name() string { return "binanceus" }

// binanceSymbol maps "DOGE/USDT" to "DOGEUSDT"
func binanceSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// FetchTicker fetches the 24h ticker
func (b *BinanceUS) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", b.restURL, binanceSymbol(symbol))

	var raw struct {
		LastPrice          string `json:"lastPrice"`
		BidPrice           string `json:"bidPrice"`
		AskPrice           string `json:"askPrice"`
		QuoteVolume        string `json:"quoteVolume"`
		PriceChangePercent string `json:"priceChangePercent"`
	}
	if err := b.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(raw.LastPrice)
	if err != nil || price.IsZero() {
		return nil, fmt.Errorf("binanceus: bad price for %s: %w", symbol, ErrSymbolNotFound)
	}

	return &Ticker{
		Symbol:       symbol,
		Exchange:     b.Name(),
		Price:        price,
		Bid:          parseDecimal(raw.BidPrice),
		Ask:          parseDecimal(raw.AskPrice),
		QuoteVolume:  parseDecimal(raw.QuoteVolume),
		ChangePct24h: parseDecimal(raw.PriceChangePercent),
		Timestamp:    time.Now(),
		IsRealData:   true,
		DataSource:   "EXCHANGE_REST",
	}, nil
}

// FetchOrderBook fetches the top levels of the book
func (b *BinanceUS) FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	url := fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=%d", b.restURL, binanceSymbol(symbol), depth)

	var raw struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	if err := b.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}

	book := &OrderBook{
		Symbol:    symbol,
		Exchange:  b.Name(),
		Bids:      make([]BookLevel, 0, len(raw.Bids)),
		Asks:      make([]BookLevel, 0, len(raw.Asks)),
		Timestamp: time.Now(),
	}
	for _, lvl := range raw.Bids {
		if len(lvl) >= 2 {
			book.Bids = append(book.Bids, BookLevel{Price: parseDecimal(lvl[0]), Quantity: parseDecimal(lvl[1])})
		}
	}
	for _, lvl := range raw.Asks {
		if len(lvl) >= 2 {
			book.Asks = append(book.Asks, BookLevel{Price: parseDecimal(lvl[0]), Quantity: parseDecimal(lvl[1])})
		}
	}
	return book, nil
}

// ListSymbols returns active spot symbols quoted in the given currency
func (b *BinanceUS) ListSymbols(ctx context.Context, quote string) ([]string, error) {
	url := b.restURL + "/api/v3/exchangeInfo"

	var raw struct {
		Symbols []struct {
			Status     string `json:"status"`
			BaseAsset  string `json:"baseAsset"`
			QuoteAsset string `json:"quoteAsset"`
		} `json:"symbols"`
	}
	if err := b.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}

	symbols := make([]string, 0, 64)
	for _, s := range raw.Symbols {
		if s.Status == "TRADING" && s.QuoteAsset == quote {
			symbols = append(symbols, s.BaseAsset+"/"+s.QuoteAsset)
		}
	}
	return symbols, nil
}

func (b *BinanceUS) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("binanceus: %v: %w", err, ErrExchangeUnreachable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418:
		return fmt.Errorf("binanceus: status %d: %w", resp.StatusCode, ErrRateLimited)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("binanceus: status %d: %w", resp.StatusCode, ErrSymbolNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("binanceus: status %d: %w", resp.StatusCode, ErrExchangeUnreachable)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func parseDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}
