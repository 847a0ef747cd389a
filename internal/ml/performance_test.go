package ml

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Record(t *testing.T) {
	tracker := NewTracker()
	models := []string{"LSTM Neural Network", "Ensemble Meta-Model"}

	tracker.Record(models, true, decimal.NewFromInt(10), 80)
	tracker.Record(models, true, decimal.NewFromInt(5), 82)
	tracker.Record(models, false, decimal.NewFromInt(-2), 78)

	stats := tracker.Snapshot()
	require.Contains(t, stats, "LSTM Neural Network")

	st := stats["LSTM Neural Network"]
	assert.Equal(t, 3, st.Trades)
	assert.Equal(t, 2, st.Successes)
	assert.InDelta(t, 2.0/3.0, st.WinRate(), 1e-9)
	assert.True(t, st.TotalProfit.Equal(decimal.NewFromInt(13)))
	assert.True(t, st.BestGain.Equal(decimal.NewFromInt(10)))
	assert.True(t, st.WorstLoss.Equal(decimal.NewFromInt(-2)))
	assert.Equal(t, 2, st.BestStreak)
	assert.Equal(t, -1, st.CurrentStreak)
	assert.InDelta(t, 80.0, st.AvgConfidence(), 1e-9)
}

func TestTracker_WeightAdjustment(t *testing.T) {
	t.Run("neutral until enough trades", func(t *testing.T) {
		tracker := NewTracker()
		assert.Equal(t, 1.0, tracker.WeightAdjustment("Moving Average"))

		for i := 0; i < minTradesForAdjustment-1; i++ {
			tracker.Record([]string{"Moving Average"}, true, decimal.NewFromInt(1), 70)
		}
		assert.Equal(t, 1.0, tracker.WeightAdjustment("Moving Average"))
	})

	t.Run("hot model climbs to the cap", func(t *testing.T) {
		tracker := NewTracker()
		for i := 0; i < 60; i++ {
			tracker.Record([]string{"RSI Momentum"}, true, decimal.NewFromInt(1), 75)
		}
		assert.Equal(t, maxWeightFactor, tracker.WeightAdjustment("RSI Momentum"))
	})

	t.Run("cold streak drags below the floor check", func(t *testing.T) {
		tracker := NewTracker()
		// Even record overall, then a deep losing streak
		for i := 0; i < 40; i++ {
			tracker.Record([]string{"MACD Signal"}, true, decimal.NewFromInt(1), 75)
		}
		for i := 0; i < 40; i++ {
			tracker.Record([]string{"MACD Signal"}, false, decimal.NewFromInt(-1), 75)
		}

		factor := tracker.WeightAdjustment("MACD Signal")
		assert.GreaterOrEqual(t, factor, minWeightFactor)
		assert.Less(t, factor, 1.0)
	})
}
