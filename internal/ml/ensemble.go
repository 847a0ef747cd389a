package ml

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nipdog001/memebot3-sub002/internal/arbitrage"
	"github.com/nipdog001/memebot3-sub002/internal/marketdata"
)

// Confidence bounds and scoring constants
const (
	minConfidence      = 50.0
	maxConfidence      = 95.0
	noiseWidth         = 4.0 // per-model perturbation, plus or minus
	decidingFloor      = 70.0
	realDataBonus      = 10.0
	defaultThreshold   = 75.0
	momentumSpreadPct  = 1.0 // spread above which momentum models get a kick
	momentumAdjustment = 10.0
	trendAdjustment    = 5.0
)

// Risk factor thresholds
const (
	maxFreshAge    = 10 * time.Second
	tightSpreadPct = 0.5 // bid/ask spread % under which the book is tight
)

// Minimum absolute net profit before a trade is worth taking
var minTradeProfit = decimal.NewFromInt(5)

// ModelScore is one model's contribution to a score
type ModelScore struct {
	Model      string  `json:"model"`
	Confidence float64 `json:"confidence"`
	Weight     float64 `json:"weight"`
}

// Analysis is the scorer's full verdict on one opportunity
type Analysis struct {
	Confidence     float64            `json:"confidence"`      // ensemble confidence, pre-risk
	RiskAdjusted   float64            `json:"risk_adjusted"`   // after risk factors
	RiskFactors    map[string]float64 `json:"risk_factors"`    // each in (0, 1]
	ModelScores    []ModelScore       `json:"model_scores"`    // per-model breakdown
	DecidingModels []string           `json:"deciding_models"` // models above the deciding floor
	Features       map[string]float64 `json:"features"`        // raw inputs the score was derived from
	ShouldTrade    bool               `json:"should_trade"`
	Threshold      float64            `json:"threshold"`
}

// Scorer judges opportunities and manages the confidence threshold
type Scorer interface {
	Score(opp *arbitrage.Opportunity, snap *marketdata.Snapshot) Analysis
	SetThreshold(v float64) float64
	Threshold() float64
}

// EnsembleScorer is the Scorer backed by the fixed model roster.
// Randomness is injected so tests can pin the noise.
type EnsembleScorer struct {
	models  []Model
	tracker *Tracker

	mu        sync.Mutex
	threshold float64
	rng       *rand.Rand
}

// NewEnsembleScorer creates a scorer with the default threshold. A nil rng
// gets a time-seeded source. tracker may be nil to disable weight feedback.
func NewEnsembleScorer(rng *rand.Rand, tracker *Tracker) *EnsembleScorer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &EnsembleScorer{
		models:    Roster(),
		tracker:   tracker,
		threshold: defaultThreshold,
		rng:       rng,
	}
}

// SetThreshold clamps and applies a new confidence threshold, returning the
// value actually applied
func (s *EnsembleScorer) SetThreshold(v float64) float64 {
	clamped := clamp(v, minConfidence, maxConfidence)

	s.mu.Lock()
	s.threshold = clamped
	s.mu.Unlock()

	log.Info().Float64("threshold", clamped).Msg("🎯 Confidence threshold updated")
	return clamped
}

// Threshold returns the current confidence threshold
func (s *EnsembleScorer) Threshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

// Score runs every model against the opportunity, combines them into a
// weighted ensemble confidence, applies the risk factors and decides whether
// the trade clears the threshold.
func (s *EnsembleScorer) Score(opp *arbitrage.Opportunity, snap *marketdata.Snapshot) Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()

	scores := make([]ModelScore, 0, len(s.models))
	deciding := make([]string, 0, len(s.models))
	weightedSum := 0.0
	totalWeight := 0.0

	for _, m := range s.models {
		confidence := s.modelConfidence(m, opp, snap)

		weight := m.Weight
		if s.tracker != nil {
			weight *= s.tracker.WeightAdjustment(m.Name)
		}

		scores = append(scores, ModelScore{Model: m.Name, Confidence: confidence, Weight: weight})
		weightedSum += confidence * weight
		totalWeight += weight

		if confidence > decidingFloor {
			deciding = append(deciding, m.Name)
		}
	}

	ensemble := weightedSum / totalWeight
	if opp.IsRealData {
		ensemble += realDataBonus
	}
	if ensemble > maxConfidence {
		ensemble = maxConfidence
	}

	riskFactors := s.riskFactors(opp, snap)
	riskAdjusted := ensemble
	for _, f := range riskFactors {
		riskAdjusted *= f
	}

	shouldTrade := riskAdjusted >= s.threshold && opp.NetProfit.GreaterThan(minTradeProfit)

	return Analysis{
		Confidence:     ensemble,
		RiskAdjusted:   riskAdjusted,
		RiskFactors:    riskFactors,
		ModelScores:    scores,
		DecidingModels: deciding,
		Features:       features(opp, snap),
		ShouldTrade:    shouldTrade,
		Threshold:      s.threshold,
	}
}

// features captures the raw inputs behind a score for later analysis
func features(opp *arbitrage.Opportunity, snap *marketdata.Snapshot) map[string]float64 {
	out := map[string]float64{
		"profit_pct":  opp.ProfitPct.InexactFloat64(),
		"net_profit":  opp.NetProfit.InexactFloat64(),
		"age_seconds": opp.Age().Seconds(),
	}
	if snap != nil {
		out["volatility"] = snap.Volatility
		out["spread_pct"] = snap.SpreadPct.InexactFloat64()
		out["quote_volume"] = snap.QuoteVolume.InexactFloat64()
	}
	return out
}

// modelConfidence starts from the model's base accuracy and applies its
// category's situational adjustment plus bounded noise. The result always
// lands in [minConfidence, maxConfidence].
func (s *EnsembleScorer) modelConfidence(m Model, opp *arbitrage.Opportunity, snap *marketdata.Snapshot) float64 {
	confidence := m.Accuracy

	switch m.Category {
	case CategoryNeural:
		// Neural models claim to read volatility regimes
		if snap != nil {
			confidence += snap.Volatility * 100
		}
	case CategoryTrend:
		// Trend followers like a market moving with the trade
		if snap != nil && (snap.Trend == marketdata.TrendBullish || snap.Trend == marketdata.TrendStrongBullish) {
			confidence += trendAdjustment
		} else {
			confidence -= trendAdjustment
		}
	case CategoryMomentum:
		// Momentum models key off wide spreads
		if opp.ProfitPct.GreaterThan(decimal.NewFromFloat(momentumSpreadPct)) {
			confidence += momentumAdjustment
		}
	}

	confidence += (s.rng.Float64() - 0.5) * 2 * noiseWidth

	return clamp(confidence, minConfidence, maxConfidence)
}

// riskFactors derives the multiplicative haircuts from the opportunity and
// its market snapshot. A nil snapshot takes the conservative branch of the
// market-derived factors.
func (s *EnsembleScorer) riskFactors(opp *arbitrage.Opportunity, snap *marketdata.Snapshot) map[string]float64 {
	factors := map[string]float64{
		"profit_margin":     0.8,
		"market_volatility": 0.9,
		"liquidity_risk":    0.85,
		"data_quality":      0.5,
		"data_freshness":    0.9,
		"spread_quality":    0.9,
	}

	if opp.ProfitPct.GreaterThan(decimal.NewFromFloat(0.5)) {
		factors["profit_margin"] = 1.0
	}
	if snap != nil && snap.Volatility < 0.08 {
		factors["market_volatility"] = 1.0
	}
	if snap != nil && snap.QuoteVolume.GreaterThan(decimal.NewFromInt(500000)) {
		factors["liquidity_risk"] = 1.0
	}
	if opp.IsRealData {
		factors["data_quality"] = 1.0
	}
	if opp.Age() <= maxFreshAge {
		factors["data_freshness"] = 1.0
	}
	if snap != nil && snap.SpreadPct.LessThan(decimal.NewFromFloat(tightSpreadPct)) {
		factors["spread_quality"] = 1.0
	}

	return factors
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
