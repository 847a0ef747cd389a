package paper

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nipdog001/memebot3-sub002/internal/arbitrage"
	"github.com/nipdog001/memebot3-sub002/internal/ml"
)

// Simulator errors
var (
	ErrPaperTradingDisabled = errors.New("paper trading is disabled")
	ErrSimulatedData        = errors.New("opportunity is not backed by real exchange data")
)

// Execution model constants
const (
	successRate     = 0.85
	maxSlippage     = 0.002 // 0.2% haircut on winners
	maxFeeInflation = 0.10  // realized fees run up to 10% over quoted
	failureLossPart = 0.1   // losers cost a tenth of the expected profit
	maxSuccessExec  = 1000  // milliseconds
	maxFailureExec  = 2000

	failureReason = "Market moved too quickly"
)

// Gate blocks execution until live exchange data has been verified
type Gate interface {
	Require() error
}

// Simulator executes opportunities against a randomized fill model.
// It refuses to run when paper trading is disabled or when the real-data
// gate is closed.
type Simulator struct {
	enabled bool
	gate    Gate
	history *History
	ledger  *Ledger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSimulator creates a simulator. A nil rng gets a time-seeded source.
func NewSimulator(enabled bool, gate Gate, history *History, ledger *Ledger, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{
		enabled: enabled,
		gate:    gate,
		history: history,
		ledger:  ledger,
		rng:     rng,
	}
}

// Execute simulates filling both legs of an opportunity. Most trades land
// near the expected profit less slippage; a fixed share fail outright and
// lose a tenth of what they hoped to make.
func (s *Simulator) Execute(opp *arbitrage.Opportunity, analysis ml.Analysis) (*Trade, error) {
	if !s.enabled {
		return nil, ErrPaperTradingDisabled
	}
	if err := s.gate.Require(); err != nil {
		return nil, err
	}
	if !opp.IsRealData {
		return nil, fmt.Errorf("%s on %s/%s: %w", opp.Symbol, opp.BuyExchange, opp.SellExchange, ErrSimulatedData)
	}

	s.rngMu.Lock()
	success := s.rng.Float64() < successRate
	var slippage, feeInflation, execMs float64
	if success {
		slippage = s.rng.Float64() * maxSlippage
		feeInflation = s.rng.Float64() * maxFeeInflation
		execMs = s.rng.Float64() * maxSuccessExec
	} else {
		execMs = s.rng.Float64() * maxFailureExec
	}
	s.rngMu.Unlock()

	trade := &Trade{
		ID:             fmt.Sprintf("paper-%d", time.Now().UnixNano()),
		Symbol:         opp.Symbol,
		BuyExchange:    opp.BuyExchange,
		SellExchange:   opp.SellExchange,
		BuyPrice:       opp.BuyPrice,
		SellPrice:      opp.SellPrice,
		Amount:         opp.Amount,
		ExpectedProfit: opp.NetProfit,
		Success:        success,
		IsRealData:     opp.IsRealData,
		DataSource:     opp.DataSource,
		ExecutionTime:  time.Duration(execMs * float64(time.Millisecond)),
		Confidence:     analysis.RiskAdjusted,
		RiskLevel:      opp.RiskLevel,
		DecidingModels: analysis.DecidingModels,
		ExecutedAt:     time.Now(),
	}

	if success {
		slip := decimal.NewFromFloat(slippage)
		trade.SlippagePct = slip.Mul(decimal.NewFromInt(100))
		trade.ActualProfit = opp.NetProfit.Sub(opp.NetProfit.Mul(slip))
		trade.Fees = opp.TotalFees().Mul(decimal.NewFromFloat(1 + feeInflation))
	} else {
		trade.SlippagePct = decimal.Zero
		trade.ActualProfit = opp.NetProfit.Mul(decimal.NewFromFloat(failureLossPart)).Abs().Neg()
		trade.Fees = opp.TotalFees()
		trade.FailureReason = failureReason
	}

	s.history.Add(trade)
	s.ledger.Apply(trade)

	event := log.Info()
	if !success {
		event = log.Warn()
	}
	event.
		Str("symbol", trade.Symbol).
		Str("route", trade.BuyExchange+"→"+trade.SellExchange).
		Str("profit", trade.ActualProfit.StringFixed(2)).
		Bool("success", success).
		Dur("exec", trade.ExecutionTime).
		Msg("📝 Paper trade executed")

	return trade, nil
}

// Enabled reports whether the simulator will accept trades
func (s *Simulator) Enabled() bool {
	return s.enabled
}

// History exposes the trade log
func (s *Simulator) History() *History {
	return s.history
}

// Statistics returns the paper account snapshot
func (s *Simulator) Statistics() Statistics {
	return s.ledger.Snapshot()
}
