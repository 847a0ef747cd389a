package ml

import (
	"sync"

	"github.com/shopspring/decimal"
)

const (
	// Trades a model must have decided before its weight adjusts
	minTradesForAdjustment = 50

	minWeightFactor = 0.5
	maxWeightFactor = 1.5

	// Sustained losing streak penalty
	coldStreakLength = -5
	coldStreakFactor = 0.8
)

// ModelStats accumulates one model's record across simulated trades where it
// was a deciding voice
type ModelStats struct {
	Trades        int             `json:"trades"`
	Successes     int             `json:"successes"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	BestGain      decimal.Decimal `json:"best_gain"`
	WorstLoss     decimal.Decimal `json:"worst_loss"`
	CurrentStreak int             `json:"current_streak"` // positive winning, negative losing
	BestStreak    int             `json:"best_streak"`
	SumConfidence float64         `json:"-"`
}

// WinRate returns the model's hit rate in [0, 1]
func (m *ModelStats) WinRate() float64 {
	if m.Trades == 0 {
		return 0
	}
	return float64(m.Successes) / float64(m.Trades)
}

// AvgConfidence returns the model's mean confidence on its deciding trades
func (m *ModelStats) AvgConfidence() float64 {
	if m.Trades == 0 {
		return 0
	}
	return m.SumConfidence / float64(m.Trades)
}

// Tracker attributes trade outcomes to the models that decided them
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ModelStats
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{stats: make(map[string]*ModelStats)}
}

// Record folds one trade outcome into every deciding model's record
func (t *Tracker) Record(decidingModels []string, success bool, profit decimal.Decimal, confidence float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, name := range decidingModels {
		st, ok := t.stats[name]
		if !ok {
			st = &ModelStats{
				TotalProfit: decimal.Zero,
				BestGain:    decimal.Zero,
				WorstLoss:   decimal.Zero,
			}
			t.stats[name] = st
		}

		st.Trades++
		st.SumConfidence += confidence
		st.TotalProfit = st.TotalProfit.Add(profit)

		if profit.GreaterThan(st.BestGain) {
			st.BestGain = profit
		}
		if profit.LessThan(st.WorstLoss) {
			st.WorstLoss = profit
		}

		if success {
			st.Successes++
			if st.CurrentStreak < 0 {
				st.CurrentStreak = 0
			}
			st.CurrentStreak++
			if st.CurrentStreak > st.BestStreak {
				st.BestStreak = st.CurrentStreak
			}
		} else {
			if st.CurrentStreak > 0 {
				st.CurrentStreak = 0
			}
			st.CurrentStreak--
		}
	}
}

// WeightAdjustment returns the multiplicative weight factor for a model,
// bounded to [0.5, 1.5]. Models stay at 1.0 until they have decided enough
// trades to judge; a sustained losing streak costs extra.
func (t *Tracker) WeightAdjustment(model string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.stats[model]
	if !ok || st.Trades < minTradesForAdjustment {
		return 1.0
	}

	// Win rate of 50% maps to neutral 1.0
	factor := clamp(2*st.WinRate(), minWeightFactor, maxWeightFactor)
	if st.CurrentStreak <= coldStreakLength {
		factor *= coldStreakFactor
	}
	return clamp(factor, minWeightFactor, maxWeightFactor)
}

// Snapshot returns a copy of every model's stats
func (t *Tracker) Snapshot() map[string]ModelStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]ModelStats, len(t.stats))
	for name, st := range t.stats {
		out[name] = *st
	}
	return out
}
