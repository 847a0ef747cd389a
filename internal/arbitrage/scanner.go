package arbitrage

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nipdog001/memebot3-sub002/internal/exchange"
	"github.com/nipdog001/memebot3-sub002/internal/marketdata"
)

// minSpreadPct is the raw spread below which a pair is not worth listing
var minSpreadPct = decimal.NewFromFloat(0.1)

// Gate blocks scanning until live exchange data has been verified
type Gate interface {
	Require() error
}

// Scanner finds fee-adjusted spreads from the live price cache
type Scanner struct {
	cache *marketdata.Cache
	gate  Gate
}

// NewScanner creates a scanner over the cache, behind the real-data gate
func NewScanner(cache *marketdata.Cache, gate Gate) *Scanner {
	return &Scanner{cache: cache, gate: gate}
}

// FindOpportunities scans one symbol across all cached exchanges.
// amount is the USD notional of the buy leg. The result is sorted by net
// profit, best first. Fewer than two exchanges with data yields an empty
// slice, not an error; a closed real-data gate is an error.
func (s *Scanner) FindOpportunities(symbol string, amount decimal.Decimal) ([]Opportunity, error) {
	if err := s.gate.Require(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", symbol, err)
	}

	// Only samples flagged as verified real data are eligible legs
	tickers := make([]exchange.Ticker, 0)
	for _, t := range s.cache.Get(symbol) {
		if t.IsRealData {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) < 2 {
		return []Opportunity{}, nil
	}

	// Cheapest exchange first so every pair (i, j) buys low and sells high
	sort.Slice(tickers, func(i, j int) bool {
		return tickers[i].Price.LessThan(tickers[j].Price)
	})

	now := time.Now()
	opportunities := make([]Opportunity, 0)

	for i := 0; i < len(tickers); i++ {
		for j := i + 1; j < len(tickers); j++ {
			buy, sell := tickers[i], tickers[j]
			if opp, ok := buildOpportunity(buy, sell, amount, now); ok {
				opportunities = append(opportunities, opp)
			}
		}
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].NetProfit.GreaterThan(opportunities[j].NetProfit)
	})

	if len(opportunities) > 0 {
		log.Debug().
			Str("symbol", symbol).
			Int("count", len(opportunities)).
			Str("best", opportunities[0].String()).
			Msg("Spreads found")
	}

	return opportunities, nil
}

// buildOpportunity computes the economics of buying on one exchange and
// selling on another. Pairs whose raw spread is at or under the minimum, or
// whose net profit after taker fees is not positive, are discarded.
func buildOpportunity(buy, sell exchange.Ticker, amount decimal.Decimal, now time.Time) (Opportunity, bool) {
	if buy.Price.LessThanOrEqual(decimal.Zero) || sell.Price.LessThanOrEqual(buy.Price) {
		return Opportunity{}, false
	}

	priceDiff := sell.Price.Sub(buy.Price)
	profitPct := priceDiff.Div(buy.Price).Mul(decimal.NewFromInt(100))
	if profitPct.LessThanOrEqual(minSpreadPct) {
		return Opportunity{}, false
	}

	// Units bought with the USD notional, then sold on the other venue
	units := amount.Div(buy.Price)
	grossProfit := units.Mul(priceDiff)
	buyFee := amount.Mul(exchange.TakerFee(buy.Exchange))
	sellFee := units.Mul(sell.Price).Mul(exchange.TakerFee(sell.Exchange))
	netProfit := grossProfit.Sub(buyFee).Sub(sellFee)

	if netProfit.LessThanOrEqual(decimal.Zero) {
		return Opportunity{}, false
	}

	// The opportunity is only as fresh as its older leg
	detectedAt := buy.Timestamp
	if sell.Timestamp.Before(detectedAt) {
		detectedAt = sell.Timestamp
	}

	return Opportunity{
		ID:           fmt.Sprintf("%s-%s-%s-%d", buy.Symbol, buy.Exchange, sell.Exchange, now.UnixMilli()),
		Symbol:       buy.Symbol,
		BuyExchange:  buy.Exchange,
		SellExchange: sell.Exchange,
		BuyPrice:     buy.Price,
		SellPrice:    sell.Price,
		Amount:       amount,
		ProfitPct:    profitPct,
		GrossProfit:  grossProfit,
		BuyFee:       buyFee,
		SellFee:      sellFee,
		NetProfit:    netProfit,
		IsRealData:   buy.IsRealData && sell.IsRealData,
		DataSource:   buy.DataSource,
		DetectedAt:   detectedAt,
	}, true
}
