package arbitrage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOpp() *Opportunity {
	return &Opportunity{
		Symbol:       "DOGE/USDT",
		BuyExchange:  "binanceus",
		SellExchange: "kraken",
		BuyPrice:     decimal.NewFromFloat(0.10),
		SellPrice:    decimal.NewFromFloat(0.102),
		Amount:       decimal.NewFromInt(1000),
		ProfitPct:    decimal.NewFromInt(2),
		NetProfit:    decimal.NewFromFloat(16.348),
		IsRealData:   true,
		DetectedAt:   time.Now(),
	}
}

func TestValidate(t *testing.T) {
	t.Run("margin too low", func(t *testing.T) {
		opp := validOpp()
		opp.ProfitPct = decimal.NewFromFloat(0.2)

		verdict := Validate(opp)
		assert.False(t, verdict.Valid)
		assert.Equal(t, "Profit margin too low", verdict.Reason)
	})

	t.Run("margin of exactly 0.3 percent passes", func(t *testing.T) {
		opp := validOpp()
		opp.ProfitPct = decimal.NewFromFloat(0.3)

		verdict := Validate(opp)
		assert.True(t, verdict.Valid)
	})

	t.Run("stale data rejected", func(t *testing.T) {
		opp := validOpp()
		opp.DetectedAt = time.Now().Add(-31 * time.Second)

		verdict := Validate(opp)
		assert.False(t, verdict.Valid)
		assert.Equal(t, "Data too stale", verdict.Reason)
	})

	t.Run("risk haircut and level", func(t *testing.T) {
		opp := validOpp()

		verdict := Validate(opp)
		require.True(t, verdict.Valid)

		// $1000 at 0.15% slippage + 0.2% fee buffer costs $3.50
		want := decimal.NewFromFloat(16.348).Sub(decimal.NewFromFloat(3.5))
		assert.True(t, verdict.AdjustedProfit.Equal(want), "adjusted %s", verdict.AdjustedProfit)
		assert.Equal(t, RiskLow, verdict.RiskLevel)

		// The verdict is mirrored onto the opportunity
		assert.True(t, opp.AdjustedProfit.Equal(want))
		assert.Equal(t, RiskLow, opp.RiskLevel)
	})

	t.Run("haircut consuming the profit invalidates", func(t *testing.T) {
		opp := validOpp()
		opp.ProfitPct = decimal.NewFromFloat(0.5)
		opp.NetProfit = decimal.NewFromInt(2) // haircut on $1000 is $3.50

		verdict := Validate(opp)
		assert.False(t, verdict.Valid)
		assert.Equal(t, "No profit after risk adjustments", verdict.Reason)
		assert.True(t, verdict.AdjustedProfit.LessThan(decimal.Zero))
	})

	t.Run("adjusted profit of exactly zero invalidates", func(t *testing.T) {
		opp := validOpp()
		opp.NetProfit = decimal.NewFromFloat(3.5)

		verdict := Validate(opp)
		assert.False(t, verdict.Valid)
		assert.Equal(t, "No profit after risk adjustments", verdict.Reason)
	})

	t.Run("thin adjusted profit is medium risk", func(t *testing.T) {
		opp := validOpp()
		opp.NetProfit = decimal.NewFromInt(8) // 8 - 3.5 = 4.5, under the $5 floor

		verdict := Validate(opp)
		require.True(t, verdict.Valid)
		assert.Equal(t, RiskMedium, verdict.RiskLevel)
	})
}
