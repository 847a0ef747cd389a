package arbitrage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nipdog001/memebot3-sub002/internal/exchange"
	"github.com/nipdog001/memebot3-sub002/internal/marketdata"
)

type openGate struct{}

func (openGate) Require() error { return nil }

type closedGate struct{}

func (closedGate) Require() error { return marketdata.ErrRealDataUnavailable }

func ticker(ex string, price float64) exchange.Ticker {
	return exchange.Ticker{
		Symbol:     "DOGE/USDT",
		Exchange:   ex,
		Price:      decimal.NewFromFloat(price),
		Timestamp:  time.Now(),
		IsRealData: true,
		DataSource: "EXCHANGE_REST",
	}
}

func TestScanner_FindOpportunities(t *testing.T) {
	amount := decimal.NewFromInt(1000)

	t.Run("closed gate is an error", func(t *testing.T) {
		scanner := NewScanner(marketdata.NewCache(), closedGate{})
		_, err := scanner.FindOpportunities("DOGE/USDT", amount)
		require.ErrorIs(t, err, marketdata.ErrRealDataUnavailable)
	})

	t.Run("fewer than two exchanges yields empty", func(t *testing.T) {
		cache := marketdata.NewCache()
		cache.Put(ticker("binanceus", 0.10))
		scanner := NewScanner(cache, openGate{})

		opps, err := scanner.FindOpportunities("DOGE/USDT", amount)
		require.NoError(t, err)
		assert.Empty(t, opps)
	})

	t.Run("two cent spread on DOGE", func(t *testing.T) {
		cache := marketdata.NewCache()
		cache.Put(ticker("binanceus", 0.10))
		cache.Put(ticker("kraken", 0.102))
		scanner := NewScanner(cache, openGate{})

		opps, err := scanner.FindOpportunities("DOGE/USDT", amount)
		require.NoError(t, err)
		require.Len(t, opps, 1)

		opp := opps[0]
		assert.Equal(t, "binanceus", opp.BuyExchange)
		assert.Equal(t, "kraken", opp.SellExchange)
		assert.True(t, opp.BuyPrice.LessThan(opp.SellPrice))
		assert.True(t, opp.ProfitPct.Equal(decimal.NewFromInt(2)), "spread should be 2%%, got %s", opp.ProfitPct)

		// $1000 buys 10000 DOGE: gross $20, buy fee $1, sell fee $2.652
		assert.True(t, opp.GrossProfit.Equal(decimal.NewFromInt(20)), "gross %s", opp.GrossProfit)
		assert.True(t, opp.NetProfit.Equal(decimal.NewFromFloat(16.348)), "net %s", opp.NetProfit)
		assert.True(t, opp.NetProfit.GreaterThan(decimal.Zero))
		assert.True(t, opp.IsRealData)
	})

	t.Run("results sorted by net profit descending", func(t *testing.T) {
		cache := marketdata.NewCache()
		cache.Put(ticker("binanceus", 0.10))
		cache.Put(ticker("kraken", 0.102))
		cache.Put(ticker("coinbase", 0.104))
		scanner := NewScanner(cache, openGate{})

		opps, err := scanner.FindOpportunities("DOGE/USDT", amount)
		require.NoError(t, err)
		require.Len(t, opps, 3)

		for i := 1; i < len(opps); i++ {
			assert.True(t, opps[i-1].NetProfit.GreaterThanOrEqual(opps[i].NetProfit),
				"opps[%d] should not beat opps[%d]", i, i-1)
		}
		assert.Equal(t, "binanceus", opps[0].BuyExchange)
		assert.Equal(t, "coinbase", opps[0].SellExchange)

		for _, opp := range opps {
			assert.True(t, opp.BuyPrice.LessThan(opp.SellPrice))
			assert.True(t, opp.NetProfit.GreaterThan(decimal.Zero))
		}
	})

	t.Run("unverified samples are not eligible legs", func(t *testing.T) {
		cache := marketdata.NewCache()
		cache.Put(ticker("binanceus", 0.10))
		fake := ticker("kraken", 0.102)
		fake.IsRealData = false
		cache.Put(fake)
		scanner := NewScanner(cache, openGate{})

		opps, err := scanner.FindOpportunities("DOGE/USDT", amount)
		require.NoError(t, err)
		assert.Empty(t, opps)
	})

	t.Run("spread eaten by fees is dropped", func(t *testing.T) {
		cache := marketdata.NewCache()
		// 0.15% raw spread passes the listing filter but not the fee math
		cache.Put(ticker("binanceus", 0.10))
		cache.Put(ticker("kraken", 0.10015))
		scanner := NewScanner(cache, openGate{})

		opps, err := scanner.FindOpportunities("DOGE/USDT", amount)
		require.NoError(t, err)
		assert.Empty(t, opps)
	})

	t.Run("equal prices yield nothing", func(t *testing.T) {
		cache := marketdata.NewCache()
		cache.Put(ticker("binanceus", 0.10))
		cache.Put(ticker("kraken", 0.10))
		scanner := NewScanner(cache, openGate{})

		opps, err := scanner.FindOpportunities("DOGE/USDT", amount)
		require.NoError(t, err)
		assert.Empty(t, opps)
	})
}
