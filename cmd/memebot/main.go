// Memebot - cross-exchange paper trading engine for meme coins
//
// Watches the same pair across several exchanges, finds spreads that survive
// taker fees, scores them with a simulated model ensemble and fills them
// through a randomized paper execution model. No order ever reaches an
// exchange.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nipdog001/memebot3-sub002/internal/arbitrage"
	"github.com/nipdog001/memebot3-sub002/internal/bot"
	"github.com/nipdog001/memebot3-sub002/internal/config"
	"github.com/nipdog001/memebot3-sub002/internal/database"
	"github.com/nipdog001/memebot3-sub002/internal/engine"
	"github.com/nipdog001/memebot3-sub002/internal/exchange"
	"github.com/nipdog001/memebot3-sub002/internal/marketdata"
	"github.com/nipdog001/memebot3-sub002/internal/ml"
	"github.com/nipdog001/memebot3-sub002/internal/paper"
)

const version = "3.0.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Strs("symbols", cfg.Symbols).
		Strs("exchanges", cfg.Exchanges).
		Bool("paper_trading", cfg.PaperTradingEnabled).
		Msg("🚀 Memebot starting...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// ====== CORE COMPONENTS ======

	// 1. Exchange adapters behind the registry
	clients := make([]exchange.Client, 0, len(cfg.Exchanges))
	for _, name := range cfg.Exchanges {
		switch name {
		case "binanceus":
			clients = append(clients, exchange.NewBinanceUS(cfg.RequestTimeout))
		case "kraken":
			clients = append(clients, exchange.NewKraken(cfg.RequestTimeout))
		case "coinbase":
			clients = append(clients, exchange.NewCoinbase(cfg.RequestTimeout))
		default:
			log.Warn().Str("exchange", name).Msg("⚠️ Unknown exchange, skipping")
		}
	}
	if len(clients) < 2 {
		log.Fatal().Msg("Need at least two supported exchanges")
	}

	hasKeys := make(map[string]bool, len(cfg.Exchanges))
	for _, name := range cfg.Exchanges {
		hasKeys[name] = cfg.APIKeys[name] != ""
	}
	registry := exchange.NewRegistry(clients, hasKeys)

	quote := quoteCurrency(cfg.Symbols)
	connected := registry.Connect(ctx, quote)
	log.Info().Int("connected", connected).Int("total", len(clients)).Msg("🔌 Exchange registry ready")

	// 2. Market data: cache, real-data gate, poller, snapshots
	cache := marketdata.NewCache()
	validator := marketdata.NewValidator(registry)
	validator.Validate(ctx)

	refresher := marketdata.NewRefresher(registry, cache, cfg.Symbols, cfg.RefreshInterval)
	refresher.Start(ctx)

	snapshotter := marketdata.NewSnapshotter(registry, cache)

	// 2b. Websocket ticker stream feeding the cache between polls
	var stream *exchange.Stream
	if cfg.StreamEnabled && hasExchange(cfg.Exchanges, "binanceus") {
		stream = exchange.NewStream(cfg.Symbols)
		stream.SetTickerCallback(refresher.Ingest)
		stream.Start()
	}

	// 3. Scanner, scorer, simulator
	scanner := arbitrage.NewScanner(cache, validator)
	tracker := ml.NewTracker()
	scorer := ml.NewEnsembleScorer(nil, tracker)
	scorer.SetThreshold(cfg.ConfidenceThreshold)

	history := paper.NewHistory()
	ledger := paper.NewLedger(cfg.StartingBalance)
	simulator := paper.NewSimulator(cfg.PaperTradingEnabled, validator, history, ledger, nil)

	// 4. Engine
	eng := engine.NewEngine(cfg, registry, cache, validator, snapshotter, scanner, scorer, tracker, simulator)
	eng.SetDatabase(db)

	if err := eng.StartAutoTrading(ctx, cfg.CycleInterval); err != nil {
		// An already-active loop is a no-op, not a startup failure
		if errors.Is(err, engine.ErrAlreadyRunning) {
			log.Warn().Msg("Auto trading already active")
		} else {
			log.Fatal().Err(err).Msg("Failed to start auto trading")
		}
	}

	// ====== TELEGRAM BOT ======
	var telegramBot *bot.Bot
	if cfg.TelegramToken != "" {
		telegramBot, err = bot.New(cfg, eng)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Telegram bot unavailable, continuing without alerts")
		} else {
			telegramBot.Start()
		}
	}

	log.Info().Msg("✅ All systems online")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("🛑 Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("🛑 Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down...")

	if telegramBot != nil {
		telegramBot.Stop()
	}
	if err := eng.StopAutoTrading(); err == nil {
		log.Info().Msg("Engine stopped")
	}
	if stream != nil {
		stream.Stop()
	}
	refresher.Stop()

	log.Info().Msg("👋 Goodbye!")
}

// quoteCurrency extracts the quote currency of the configured pairs,
// defaulting to USDT
func quoteCurrency(symbols []string) string {
	for _, s := range symbols {
		if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
			return parts[1]
		}
	}
	return "USDT"
}

func hasExchange(exchanges []string, name string) bool {
	for _, ex := range exchanges {
		if ex == name {
			return true
		}
	}
	return false
}
