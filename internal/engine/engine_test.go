package engine

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nipdog001/memebot3-sub002/internal/arbitrage"
	"github.com/nipdog001/memebot3-sub002/internal/config"
	"github.com/nipdog001/memebot3-sub002/internal/exchange"
	"github.com/nipdog001/memebot3-sub002/internal/marketdata"
	"github.com/nipdog001/memebot3-sub002/internal/ml"
	"github.com/nipdog001/memebot3-sub002/internal/paper"
)

type openGate struct{}

func (openGate) Require() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		PaperTradingEnabled: true,
		Symbols:             []string{"DOGE/USDT"},
		Exchanges:           []string{"binanceus", "kraken"},
		TradeAmount:         decimal.NewFromInt(1000),
		StartingBalance:     decimal.NewFromInt(10000),
		ConfidenceThreshold: 50,
		MaxTradesPerCycle:   2,
		CycleInterval:       time.Hour,
		RefreshInterval:     3 * time.Second,
	}
}

// newTestEngine builds an engine over an empty registry and a pre-filled
// cache so nothing touches the network
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := testConfig()

	registry := exchange.NewRegistry(nil, nil)
	cache := marketdata.NewCache()
	validator := marketdata.NewValidator(registry)
	snapshotter := marketdata.NewSnapshotter(registry, cache)

	now := time.Now()
	cache.Put(exchange.Ticker{
		Symbol: "DOGE/USDT", Exchange: "binanceus",
		Price:       decimal.NewFromFloat(0.10),
		QuoteVolume: decimal.NewFromInt(2000000),
		Timestamp:   now, IsRealData: true,
	})
	cache.Put(exchange.Ticker{
		Symbol: "DOGE/USDT", Exchange: "kraken",
		Price:       decimal.NewFromFloat(0.102),
		QuoteVolume: decimal.NewFromInt(2000000),
		Timestamp:   now, IsRealData: true,
	})

	scanner := arbitrage.NewScanner(cache, openGate{})
	tracker := ml.NewTracker()
	scorer := ml.NewEnsembleScorer(rand.New(rand.NewSource(21)), tracker)
	scorer.SetThreshold(cfg.ConfidenceThreshold)

	simulator := paper.NewSimulator(true, openGate{}, paper.NewHistory(),
		paper.NewLedger(cfg.StartingBalance), rand.New(rand.NewSource(21)))

	return NewEngine(cfg, registry, cache, validator, snapshotter, scanner, scorer, tracker, simulator)
}

func TestEngine_Lifecycle(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	assert.False(t, eng.Running())
	require.ErrorIs(t, eng.StopAutoTrading(), ErrNotRunning)

	require.NoError(t, eng.StartAutoTrading(ctx, time.Hour))
	assert.True(t, eng.Running())
	require.ErrorIs(t, eng.StartAutoTrading(ctx, time.Hour), ErrAlreadyRunning)

	require.NoError(t, eng.StopAutoTrading())
	assert.False(t, eng.Running())
	require.ErrorIs(t, eng.StopAutoTrading(), ErrNotRunning)

	// A stopped engine can be started again
	require.NoError(t, eng.StartAutoTrading(ctx, time.Hour))
	require.NoError(t, eng.StopAutoTrading())
}

func TestEngine_FindOpportunities(t *testing.T) {
	eng := newTestEngine(t)

	opps, err := eng.FindOpportunities("DOGE/USDT", decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.NotEmpty(t, opps)

	opp := opps[0]
	assert.True(t, opp.BuyPrice.LessThan(opp.SellPrice))
	assert.True(t, opp.NetProfit.GreaterThan(decimal.Zero))

	t.Run("zero amount falls back to the configured notional", func(t *testing.T) {
		opps, err := eng.FindOpportunities("DOGE/USDT", decimal.Zero)
		require.NoError(t, err)
		require.NotEmpty(t, opps)
		assert.True(t, opps[0].Amount.Equal(decimal.NewFromInt(1000)))
	})
}

func TestEngine_ExecutePaperTrade(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	opps, err := eng.FindOpportunities("DOGE/USDT", decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.NotEmpty(t, opps)

	trade, err := eng.ExecutePaperTrade(ctx, &opps[0])
	require.NoError(t, err)
	assert.Equal(t, "DOGE/USDT", trade.Symbol)
	assert.False(t, trade.ExpectedProfit.IsZero())

	stats := eng.Statistics()
	assert.Equal(t, 1, stats["trades_taken"])
	account := stats["account"].(paper.Statistics)
	assert.Equal(t, 1, account.TotalTrades)
	assert.Equal(t, 1, stats["real_data_trades"])
	assert.Equal(t, 100.0, stats["real_data_pct"])

	t.Run("stale opportunity is rejected", func(t *testing.T) {
		stale := opps[0]
		stale.DetectedAt = time.Now().Add(-time.Minute)
		_, err := eng.ExecutePaperTrade(ctx, &stale)
		require.Error(t, err)
		assert.Equal(t, "Data too stale", err.Error())
	})
}

func TestEngine_RunCycleTakesTrades(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.StartAutoTrading(ctx, time.Hour))
	defer eng.StopAutoTrading()

	// First cycle runs synchronously enough to show up quickly
	require.Eventually(t, func() bool {
		stats := eng.Statistics()
		return stats["cycles"].(int) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	stats := eng.Statistics()
	assert.Equal(t, "running", stats["state"])
	assert.GreaterOrEqual(t, stats["opportunities_seen"].(int), 1)
	assert.GreaterOrEqual(t, stats["trades_taken"].(int), 1)
	assert.LessOrEqual(t, stats["trades_taken"].(int), 2)
}

// liveClient serves a sane ticker for any symbol without touching the network
type liveClient struct{}

func (liveClient) Name() string { return "binanceus" }

func (liveClient) FetchTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	return &exchange.Ticker{
		Symbol:     symbol,
		Exchange:   "binanceus",
		Price:      decimal.NewFromFloat(0.10),
		Timestamp:  time.Now(),
		IsRealData: true,
		DataSource: "EXCHANGE_REST",
	}, nil
}

func (liveClient) FetchOrderBook(ctx context.Context, symbol string, depth int) (*exchange.OrderBook, error) {
	return &exchange.OrderBook{Symbol: symbol, Exchange: "binanceus", Timestamp: time.Now()}, nil
}

func (liveClient) ListSymbols(ctx context.Context, quote string) ([]string, error) {
	return []string{"DOGE/USDT"}, nil
}

func TestEngine_ReopensClosedGate(t *testing.T) {
	cfg := testConfig()

	registry := exchange.NewRegistry([]exchange.Client{liveClient{}}, nil)
	cache := marketdata.NewCache()
	validator := marketdata.NewValidator(registry)
	snapshotter := marketdata.NewSnapshotter(registry, cache)

	scanner := arbitrage.NewScanner(cache, validator)
	tracker := ml.NewTracker()
	scorer := ml.NewEnsembleScorer(rand.New(rand.NewSource(21)), tracker)
	simulator := paper.NewSimulator(true, validator, paper.NewHistory(),
		paper.NewLedger(cfg.StartingBalance), rand.New(rand.NewSource(21)))

	eng := NewEngine(cfg, registry, cache, validator, snapshotter, scanner, scorer, tracker, simulator)

	// Gate starts closed; the exchange has never been probed
	assert.False(t, eng.ConnectionStatus()["real_data_verified"].(bool))

	ctx := context.Background()
	require.NoError(t, eng.StartAutoTrading(ctx, time.Hour))
	defer eng.StopAutoTrading()

	// The first cycle re-validates and opens the gate
	require.Eventually(t, func() bool {
		return eng.ConnectionStatus()["real_data_verified"].(bool)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_TopKBoundsCandidates(t *testing.T) {
	cfg := testConfig()

	registry := exchange.NewRegistry(nil, nil)
	cache := marketdata.NewCache()
	validator := marketdata.NewValidator(registry)
	snapshotter := marketdata.NewSnapshotter(registry, cache)

	// Three venues, three ranked spreads, but only the top two may be scored
	now := time.Now()
	for ex, price := range map[string]float64{"binanceus": 0.10, "kraken": 0.102, "coinbase": 0.104} {
		cache.Put(exchange.Ticker{
			Symbol: "DOGE/USDT", Exchange: ex,
			Price:       decimal.NewFromFloat(price),
			QuoteVolume: decimal.NewFromInt(2000000),
			Timestamp:   now, IsRealData: true,
		})
	}

	scanner := arbitrage.NewScanner(cache, openGate{})
	tracker := ml.NewTracker()
	scorer := ml.NewEnsembleScorer(rand.New(rand.NewSource(21)), tracker)
	scorer.SetThreshold(50)
	simulator := paper.NewSimulator(true, openGate{}, paper.NewHistory(),
		paper.NewLedger(cfg.StartingBalance), rand.New(rand.NewSource(21)))

	eng := NewEngine(cfg, registry, cache, validator, snapshotter, scanner, scorer, tracker, simulator)

	var mu sync.Mutex
	scored := 0
	eng.SetOpportunityCallback(func(arbitrage.Opportunity) {
		mu.Lock()
		scored++
		mu.Unlock()
	})

	ctx := context.Background()
	require.NoError(t, eng.StartAutoTrading(ctx, time.Hour))

	require.Eventually(t, func() bool {
		return eng.Statistics()["cycles"].(int) >= 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, eng.StopAutoTrading())

	opps, err := eng.FindOpportunities("DOGE/USDT", decimal.Zero)
	require.NoError(t, err)
	require.Len(t, opps, 3)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, scored)
	assert.LessOrEqual(t, eng.Statistics()["trades_taken"].(int), 2)
}

func TestEngine_SetConfidenceThreshold(t *testing.T) {
	eng := newTestEngine(t)

	assert.Equal(t, 95.0, eng.SetConfidenceThreshold(200))
	assert.Equal(t, 50.0, eng.SetConfidenceThreshold(10))
	assert.Equal(t, 75.0, eng.SetConfidenceThreshold(75))
}
