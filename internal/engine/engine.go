// Package engine orchestrates the trading cycle.
//
// engine.go - ties the price cache, scanner, confidence scorer and paper
// simulator together. A cycle walks every configured symbol, vets the best
// spreads and hands the ones that clear the confidence threshold to the
// simulator. Symbols fail independently; one bad market never aborts the
// cycle.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nipdog001/memebot3-sub002/internal/arbitrage"
	"github.com/nipdog001/memebot3-sub002/internal/config"
	"github.com/nipdog001/memebot3-sub002/internal/database"
	"github.com/nipdog001/memebot3-sub002/internal/exchange"
	"github.com/nipdog001/memebot3-sub002/internal/marketdata"
	"github.com/nipdog001/memebot3-sub002/internal/ml"
	"github.com/nipdog001/memebot3-sub002/internal/paper"
)

// Lifecycle errors
var (
	ErrAlreadyRunning = errors.New("auto trading is already active")
	ErrNotRunning     = errors.New("auto trading is not active")
)

// Opportunities older than this are re-scored from fresh cache data
const maxScoringAge = 10 * time.Second

// Snapshots are persisted every statsEvery cycles
const statsEvery = 10

// Engine drives scanning, scoring and simulated execution
type Engine struct {
	cfg         *config.Config
	registry    *exchange.Registry
	cache       *marketdata.Cache
	validator   *marketdata.Validator
	snapshotter *marketdata.Snapshotter
	scanner     *arbitrage.Scanner
	scorer      ml.Scorer
	tracker     *ml.Tracker
	simulator   *paper.Simulator
	db          *database.Database // optional

	// Cycle settings
	symbols     []string
	topK        int
	tradeAmount decimal.Decimal

	// Run state
	mu        sync.Mutex
	running   bool
	startedAt time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup

	// Counters
	statsMu       sync.RWMutex
	cycles        int
	oppsSeen      int
	tradesTaken   int
	symbolErrors  map[string]int
	lastCycleTime time.Time

	// Callbacks
	onOpportunity func(arbitrage.Opportunity)
	onTrade       func(paper.Trade)
}

// NewEngine wires the engine from its components
func NewEngine(
	cfg *config.Config,
	registry *exchange.Registry,
	cache *marketdata.Cache,
	validator *marketdata.Validator,
	snapshotter *marketdata.Snapshotter,
	scanner *arbitrage.Scanner,
	scorer ml.Scorer,
	tracker *ml.Tracker,
	simulator *paper.Simulator,
) *Engine {
	return &Engine{
		cfg:          cfg,
		registry:     registry,
		cache:        cache,
		validator:    validator,
		snapshotter:  snapshotter,
		scanner:      scanner,
		scorer:       scorer,
		tracker:      tracker,
		simulator:    simulator,
		symbols:      cfg.Symbols,
		topK:         cfg.MaxTradesPerCycle,
		tradeAmount:  cfg.TradeAmount,
		symbolErrors: make(map[string]int),
	}
}

// SetDatabase attaches the persistence sink
func (e *Engine) SetDatabase(db *database.Database) {
	e.db = db
}

// SetOpportunityCallback sets the callback for vetted opportunities
func (e *Engine) SetOpportunityCallback(cb func(arbitrage.Opportunity)) {
	e.onOpportunity = cb
}

// SetTradeCallback sets the callback for executed paper trades
func (e *Engine) SetTradeCallback(cb func(paper.Trade)) {
	e.onTrade = cb
}

// ConnectionStatus reports per-exchange health plus the real-data gate
func (e *Engine) ConnectionStatus() map[string]interface{} {
	validation := e.validator.LastResult()
	return map[string]interface{}{
		"exchanges":          e.registry.Status(),
		"connected_count":    e.registry.ConnectedCount(),
		"real_data_verified": validation.Verified,
		"validated":          validation.Validated,
		"last_checked":       validation.CheckedAt,
	}
}

// FindOpportunities scans one symbol at the given USD notional
func (e *Engine) FindOpportunities(symbol string, amount decimal.Decimal) ([]arbitrage.Opportunity, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		amount = e.tradeAmount
	}
	return e.scanner.FindOpportunities(symbol, amount)
}

// SetConfidenceThreshold clamps and applies a new threshold, returning the
// value actually applied
func (e *Engine) SetConfidenceThreshold(v float64) float64 {
	return e.scorer.SetThreshold(v)
}

// StartAutoTrading launches the cycle loop. Returns ErrAlreadyRunning when
// a loop is active.
func (e *Engine) StartAutoTrading(ctx context.Context, interval time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}
	if interval <= 0 {
		interval = e.cfg.CycleInterval
	}

	e.running = true
	e.startedAt = time.Now()
	e.stopCh = make(chan struct{})

	e.wg.Add(1)
	go e.loop(ctx, interval)

	log.Info().
		Dur("interval", interval).
		Int("symbols", len(e.symbols)).
		Float64("threshold", e.scorer.Threshold()).
		Msg("⚡ Auto trading started")
	return nil
}

// StopAutoTrading halts the cycle loop. No executions happen after it
// returns. Returns ErrNotRunning when no loop is active.
func (e *Engine) StopAutoTrading() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
	log.Info().Msg("🛑 Auto trading stopped")
	return nil
}

// Running reports whether the cycle loop is active
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) loop(ctx context.Context, interval time.Duration) {
	defer e.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First cycle runs immediately
	e.runCycle(ctx)

	for {
		select {
		case <-ticker.C:
			e.runCycle(ctx)
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runCycle walks every symbol once. Errors are contained per symbol.
func (e *Engine) runCycle(ctx context.Context) {
	start := time.Now()

	// A closed gate gets another chance every cycle; exchanges recover
	if !e.validator.Verified() {
		e.validator.Validate(ctx)
	}

	for _, symbol := range e.symbols {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}
		e.processSymbol(ctx, symbol)
	}

	e.statsMu.Lock()
	e.cycles++
	cycles := e.cycles
	e.lastCycleTime = time.Now()
	e.statsMu.Unlock()

	log.Debug().Dur("took", time.Since(start)).Int("cycle", cycles).Msg("Cycle complete")

	if e.db != nil && cycles%statsEvery == 0 {
		stats := e.simulator.Statistics()
		if err := e.db.SaveStatsSnapshot(stats, e.scorer.Threshold()); err != nil {
			log.Warn().Err(err).Msg("Failed to persist stats snapshot")
		}
	}
}

func (e *Engine) processSymbol(ctx context.Context, symbol string) {
	opportunities, err := e.scanner.FindOpportunities(symbol, e.tradeAmount)
	if err != nil {
		e.statsMu.Lock()
		e.symbolErrors[symbol]++
		e.statsMu.Unlock()
		log.Warn().Str("symbol", symbol).Err(err).Msg("Scan failed")
		return
	}
	if len(opportunities) == 0 {
		return
	}

	e.statsMu.Lock()
	e.oppsSeen += len(opportunities)
	e.statsMu.Unlock()

	// Only the top-K ranked spreads per symbol are considered at all;
	// a rejected candidate does not pull in lower-ranked ones
	limit := e.topK
	if limit > len(opportunities) {
		limit = len(opportunities)
	}
	for i := 0; i < limit; i++ {
		opp := opportunities[i]

		if verdict := arbitrage.Validate(&opp); !verdict.Valid {
			log.Debug().Str("symbol", symbol).Str("reason", verdict.Reason).Msg("Opportunity rejected")
			continue
		}
		if opp.Age() > maxScoringAge {
			continue
		}

		snap := e.snapshotter.Snapshot(ctx, opp.BuyExchange, opp.Symbol)
		analysis := e.scorer.Score(&opp, snap)

		if e.onOpportunity != nil {
			e.onOpportunity(opp)
		}

		if !analysis.ShouldTrade {
			log.Debug().
				Str("symbol", symbol).
				Float64("confidence", analysis.RiskAdjusted).
				Float64("threshold", analysis.Threshold).
				Msg("Below threshold, skipping")
			continue
		}

		if _, err := e.execute(&opp, analysis); err != nil {
			log.Warn().Str("symbol", symbol).Err(err).Msg("Execution failed")
		}
	}
}

// ExecutePaperTrade validates, scores and simulates a single opportunity on
// demand, outside the cycle loop
func (e *Engine) ExecutePaperTrade(ctx context.Context, opp *arbitrage.Opportunity) (*paper.Trade, error) {
	if verdict := arbitrage.Validate(opp); !verdict.Valid {
		return nil, errors.New(verdict.Reason)
	}

	snap := e.snapshotter.Snapshot(ctx, opp.BuyExchange, opp.Symbol)
	analysis := e.scorer.Score(opp, snap)

	return e.execute(opp, analysis)
}

func (e *Engine) execute(opp *arbitrage.Opportunity, analysis ml.Analysis) (*paper.Trade, error) {
	trade, err := e.simulator.Execute(opp, analysis)
	if err != nil {
		return nil, err
	}

	e.tracker.Record(analysis.DecidingModels, trade.Success, trade.ActualProfit, analysis.RiskAdjusted)

	e.statsMu.Lock()
	e.tradesTaken++
	e.statsMu.Unlock()

	if e.db != nil {
		if err := e.db.SaveTrade(trade); err != nil {
			log.Warn().Err(err).Msg("Failed to persist trade")
		}
	}
	if e.onTrade != nil {
		e.onTrade(*trade)
	}
	return trade, nil
}

// Statistics returns the full engine view: paper account, cycle counters
// and per-model performance
func (e *Engine) Statistics() map[string]interface{} {
	e.statsMu.RLock()
	cycles := e.cycles
	oppsSeen := e.oppsSeen
	tradesTaken := e.tradesTaken
	lastCycle := e.lastCycleTime
	symbolErrors := make(map[string]int, len(e.symbolErrors))
	for k, v := range e.symbolErrors {
		symbolErrors[k] = v
	}
	e.statsMu.RUnlock()

	e.mu.Lock()
	state := "idle"
	var uptime time.Duration
	if e.running {
		state = "running"
		uptime = time.Since(e.startedAt)
	}
	e.mu.Unlock()

	account := e.simulator.Statistics()

	return map[string]interface{}{
		"state":               state,
		"uptime":              uptime.String(),
		"cycles":              cycles,
		"opportunities_seen":  oppsSeen,
		"trades_taken":        tradesTaken,
		"last_cycle":          lastCycle,
		"symbol_errors":       symbolErrors,
		"threshold":           e.scorer.Threshold(),
		"account":             account,
		"real_data_trades":    account.RealDataTrades,
		"real_data_pct":       account.RealDataPct,
		"model_performance":   e.tracker.Snapshot(),
		"cached_samples":      e.cache.SampleCount(),
		"connected_exchanges": e.registry.ConnectedCount(),
	}
}

// RecentTrades returns up to limit recent paper trades, newest first
func (e *Engine) RecentTrades(limit int) []*paper.Trade {
	return e.simulator.History().Recent(limit)
}
