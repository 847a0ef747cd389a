package ml

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nipdog001/memebot3-sub002/internal/arbitrage"
	"github.com/nipdog001/memebot3-sub002/internal/marketdata"
)

func scoredOpp() *arbitrage.Opportunity {
	return &arbitrage.Opportunity{
		Symbol:       "DOGE/USDT",
		BuyExchange:  "binanceus",
		SellExchange: "kraken",
		Amount:       decimal.NewFromInt(1000),
		ProfitPct:    decimal.NewFromInt(2),
		NetProfit:    decimal.NewFromFloat(16.348),
		IsRealData:   true,
		DetectedAt:   time.Now(),
	}
}

func calmSnapshot() *marketdata.Snapshot {
	return &marketdata.Snapshot{
		Exchange:    "binanceus",
		Symbol:      "DOGE/USDT",
		Volatility:  0.01,
		Trend:       marketdata.TrendBullish,
		QuoteVolume: decimal.NewFromInt(1000000),
	}
}

func TestEnsembleScorer_Thresholds(t *testing.T) {
	scorer := NewEnsembleScorer(rand.New(rand.NewSource(1)), nil)

	assert.Equal(t, defaultThreshold, scorer.Threshold())
	assert.Equal(t, 95.0, scorer.SetThreshold(200))
	assert.Equal(t, 50.0, scorer.SetThreshold(10))
	assert.Equal(t, 80.0, scorer.SetThreshold(80))
	assert.Equal(t, 80.0, scorer.Threshold())
}

func TestEnsembleScorer_Score(t *testing.T) {
	t.Run("deterministic with a pinned seed", func(t *testing.T) {
		a := NewEnsembleScorer(rand.New(rand.NewSource(42)), nil)
		b := NewEnsembleScorer(rand.New(rand.NewSource(42)), nil)

		first := a.Score(scoredOpp(), calmSnapshot())
		second := b.Score(scoredOpp(), calmSnapshot())

		assert.Equal(t, first.Confidence, second.Confidence)
		assert.Equal(t, first.RiskAdjusted, second.RiskAdjusted)
		assert.Equal(t, first.DecidingModels, second.DecidingModels)
	})

	t.Run("confidence stays within bounds", func(t *testing.T) {
		scorer := NewEnsembleScorer(rand.New(rand.NewSource(7)), nil)

		for i := 0; i < 50; i++ {
			analysis := scorer.Score(scoredOpp(), calmSnapshot())
			assert.LessOrEqual(t, analysis.Confidence, maxConfidence)
			assert.GreaterOrEqual(t, analysis.Confidence, 0.0)
			assert.LessOrEqual(t, analysis.RiskAdjusted, analysis.Confidence)
			for _, ms := range analysis.ModelScores {
				assert.GreaterOrEqual(t, ms.Confidence, minConfidence)
				assert.LessOrEqual(t, ms.Confidence, maxConfidence)
			}
		}
	})

	t.Run("favorable market scores all risk factors neutral", func(t *testing.T) {
		scorer := NewEnsembleScorer(rand.New(rand.NewSource(3)), nil)

		analysis := scorer.Score(scoredOpp(), calmSnapshot())
		require.Len(t, analysis.RiskFactors, 6)
		for name, f := range analysis.RiskFactors {
			assert.Equal(t, 1.0, f, "factor %s", name)
		}
		assert.Equal(t, analysis.Confidence, analysis.RiskAdjusted)
	})

	t.Run("stale opportunity loses the freshness factor", func(t *testing.T) {
		scorer := NewEnsembleScorer(rand.New(rand.NewSource(3)), nil)

		opp := scoredOpp()
		opp.DetectedAt = time.Now().Add(-15 * time.Second)
		analysis := scorer.Score(opp, calmSnapshot())

		assert.Equal(t, 0.9, analysis.RiskFactors["data_freshness"])
	})

	t.Run("wide book spread loses the spread factor", func(t *testing.T) {
		scorer := NewEnsembleScorer(rand.New(rand.NewSource(3)), nil)

		snap := calmSnapshot()
		snap.SpreadPct = decimal.NewFromFloat(0.8)
		analysis := scorer.Score(scoredOpp(), snap)

		assert.Equal(t, 0.9, analysis.RiskFactors["spread_quality"])
	})

	t.Run("features carry the scoring inputs", func(t *testing.T) {
		scorer := NewEnsembleScorer(rand.New(rand.NewSource(3)), nil)

		analysis := scorer.Score(scoredOpp(), calmSnapshot())
		require.NotEmpty(t, analysis.Features)
		assert.InDelta(t, 2.0, analysis.Features["profit_pct"], 1e-9)
		assert.InDelta(t, 16.348, analysis.Features["net_profit"], 1e-9)
		assert.InDelta(t, 0.01, analysis.Features["volatility"], 1e-9)
		assert.Contains(t, analysis.Features, "quote_volume")
		assert.Contains(t, analysis.Features, "age_seconds")
	})

	t.Run("simulated data halves the risk adjusted score", func(t *testing.T) {
		scorer := NewEnsembleScorer(rand.New(rand.NewSource(3)), nil)

		opp := scoredOpp()
		opp.IsRealData = false
		analysis := scorer.Score(opp, calmSnapshot())

		assert.Equal(t, 0.5, analysis.RiskFactors["data_quality"])
		assert.False(t, analysis.ShouldTrade)
	})

	t.Run("deciding models clear the floor", func(t *testing.T) {
		scorer := NewEnsembleScorer(rand.New(rand.NewSource(11)), nil)

		analysis := scorer.Score(scoredOpp(), calmSnapshot())
		byName := make(map[string]float64)
		for _, ms := range analysis.ModelScores {
			byName[ms.Model] = ms.Confidence
		}
		for _, name := range analysis.DecidingModels {
			assert.Greater(t, byName[name], decidingFloor)
		}
	})

	t.Run("tiny net profit never trades", func(t *testing.T) {
		scorer := NewEnsembleScorer(rand.New(rand.NewSource(42)), nil)
		scorer.SetThreshold(50)

		opp := scoredOpp()
		opp.NetProfit = decimal.NewFromInt(3)
		analysis := scorer.Score(opp, calmSnapshot())

		assert.False(t, analysis.ShouldTrade)
	})

	t.Run("nil snapshot takes the conservative branches", func(t *testing.T) {
		scorer := NewEnsembleScorer(rand.New(rand.NewSource(5)), nil)

		analysis := scorer.Score(scoredOpp(), nil)
		assert.Equal(t, 0.9, analysis.RiskFactors["market_volatility"])
		assert.Equal(t, 0.85, analysis.RiskFactors["liquidity_risk"])
		assert.Equal(t, 0.9, analysis.RiskFactors["spread_quality"])
	})
}
