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

// Kraken talks to the Kraken public REST API
type Kraken struct {
	restURL string
	http    *http.Client
}

// NewKraken creates a Kraken adapter
func NewKraken(timeout time.Duration) *Kraken {
	return &Kraken{
		restURL: "https://api.kraken.com",
		http:    &http.Client{Timeout: timeout},
	}
}

func (k *Kraken) Name() string { return "kraken" }

// krakenAliases maps unified asset codes to Kraken's legacy codes
var krakenAliases = map[string]string{
	"BTC":  "XBT",
	"DOGE": "XDG",
}

// krakenSymbol maps "DOGE/USDT" to "XDGUSDT"
func krakenSymbol(symbol string) string {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) != 2 {
		return strings.ReplaceAll(symbol, "/", "")
	}
	base, quote := parts[0], parts[1]
	if alias, ok := krakenAliases[base]; ok {
		base = alias
	}
	if alias, ok := krakenAliases[quote]; ok {
		quote = alias
	}
	return base + quote
}

type krakenEnvelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// FetchTicker fetches the current ticker. Kraken reports last price,
// best bid/ask, 24h volume and the day's open; the 24h change is derived
// from the open.
func (k *Kraken) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	url := fmt.Sprintf("%s/0/public/Ticker?pair=%s", k.restURL, krakenSymbol(symbol))

	result := map[string]struct {
		C []string `json:"c"` // last trade [price, lot volume]
		B []string `json:"b"` // best bid [price, whole lot, lot]
		A []string `json:"a"` // best ask
		V []string `json:"v"` // volume [today, 24h], base currency
		P []string `json:"p"` // vwap [today, 24h]
		O string   `json:"o"` // today's opening price
	}{}
	if err := k.getJSON(ctx, url, &result); err != nil {
		return nil, err
	}

	// Kraken keys the result by its own pair name, take the first entry
	for _, data := range result {
		if len(data.C) == 0 {
			break
		}
		price := parseDecimal(data.C[0])
		if price.IsZero() {
			break
		}

		open := parseDecimal(data.O)
		changePct := decimal.Zero
		if !open.IsZero() {
			changePct = price.Sub(open).Div(open).Mul(decimal.NewFromInt(100))
		}

		// 24h base volume at 24h vwap gives quote volume
		quoteVolume := decimal.Zero
		if len(data.V) > 1 && len(data.P) > 1 {
			quoteVolume = parseDecimal(data.V[1]).Mul(parseDecimal(data.P[1]))
		}

		t := &Ticker{
			Symbol:       symbol,
			Exchange:     k.Name(),
			Price:        price,
			QuoteVolume:  quoteVolume,
			ChangePct24h: changePct,
			Timestamp:    time.Now(),
			IsRealData:   true,
			DataSource:   "EXCHANGE_REST",
		}
		if len(data.B) > 0 {
			t.Bid = parseDecimal(data.B[0])
		}
		if len(data.A) > 0 {
			t.Ask = parseDecimal(data.A[0])
		}
		return t, nil
	}
	return nil, fmt.Errorf("kraken: no ticker for %s: %w", symbol, ErrSymbolNotFound)
}

// FetchOrderBook fetches the top levels of the book
func (k *Kraken) FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	url := fmt.Sprintf("%s/0/public/Depth?pair=%s&count=%d", k.restURL, krakenSymbol(symbol), depth)

	result := map[string]struct {
		Bids [][]json.RawMessage `json:"bids"`
		Asks [][]json.RawMessage `json:"asks"`
	}{}
	if err := k.getJSON(ctx, url, &result); err != nil {
		return nil, err
	}

	for _, data := range result {
		book := &OrderBook{
			Symbol:    symbol,
			Exchange:  k.Name(),
			Bids:      make([]BookLevel, 0, len(data.Bids)),
			Asks:      make([]BookLevel, 0, len(data.Asks)),
			Timestamp: time.Now(),
		}
		for _, lvl := range data.Bids {
			if entry, ok := krakenBookLevel(lvl); ok {
				book.Bids = append(book.Bids, entry)
			}
		}
		for _, lvl := range data.Asks {
			if entry, ok := krakenBookLevel(lvl); ok {
				book.Asks = append(book.Asks, entry)
			}
		}
		return book, nil
	}
	return nil, fmt.Errorf("kraken: no book for %s: %w", symbol, ErrSymbolNotFound)
}

// krakenBookLevel parses [price, volume, timestamp]; price and volume are
// JSON strings
func krakenBookLevel(lvl []json.RawMessage) (BookLevel, bool) {
	if len(lvl) < 2 {
		return BookLevel{}, false
	}
	var priceStr, qtyStr string
	if err := json.Unmarshal(lvl[0], &priceStr); err != nil {
		return BookLevel{}, false
	}
	if err := json.Unmarshal(lvl[1], &qtyStr); err != nil {
		return BookLevel{}, false
	}
	return BookLevel{Price: parseDecimal(priceStr), Quantity: parseDecimal(qtyStr)}, true
}

// ListSymbols returns active spot symbols quoted in the given currency
func (k *Kraken) ListSymbols(ctx context.Context, quote string) ([]string, error) {
	url := k.restURL + "/0/public/AssetPairs"

	result := map[string]struct {
		WSName string `json:"wsname"` // e.g. "XDG/USDT"
		Status string `json:"status"`
	}{}
	if err := k.getJSON(ctx, url, &result); err != nil {
		return nil, err
	}

	// Reverse alias lookup so callers see unified codes
	reverse := make(map[string]string, len(krakenAliases))
	for unified, alias := range krakenAliases {
		reverse[alias] = unified
	}

	symbols := make([]string, 0, 64)
	for _, pair := range result {
		if pair.Status != "online" || pair.WSName == "" {
			continue
		}
		parts := strings.SplitN(pair.WSName, "/", 2)
		if len(parts) != 2 || parts[1] != quote {
			continue
		}
		base := parts[0]
		if unified, ok := reverse[base]; ok {
			base = unified
		}
		symbols = append(symbols, base+"/"+quote)
	}
	return symbols, nil
}

func (k *Kraken) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := k.http.Do(req)
	if err != nil {
		return fmt.Errorf("kraken: %v: %w", err, ErrExchangeUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("kraken: status %d: %w", resp.StatusCode, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kraken: status %d: %w", resp.StatusCode, ErrExchangeUnreachable)
	}

	var env krakenEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return err
	}
	if len(env.Error) > 0 {
		msg := strings.Join(env.Error, "; ")
		if strings.Contains(msg, "Unknown asset pair") {
			return fmt.Errorf("kraken: %s: %w", msg, ErrSymbolNotFound)
		}
		if strings.Contains(msg, "Rate limit") {
			return fmt.Errorf("kraken: %s: %w", msg, ErrRateLimited)
		}
		return fmt.Errorf("kraken: %s: %w", msg, ErrExchangeUnreachable)
	}
	return json.Unmarshal(env.Result, out)
}
