package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the engine
type Config struct {
	// Mode
	PaperTradingEnabled bool
	Debug               bool

	// Symbols to scan, e.g. "DOGE/USDT,SHIB/USDT"
	Symbols []string

	// Exchanges to connect, e.g. "binanceus,kraken,coinbase"
	Exchanges []string

	// Per-exchange credentials (public endpoints work without them,
	// keys only improve rate limits)
	APIKeys    map[string]string
	APISecrets map[string]string

	// Trading Settings
	TradeAmount         decimal.Decimal // USD notional per opportunity
	StartingBalance     decimal.Decimal
	ConfidenceThreshold float64 // 50-95
	MaxTradesPerCycle   int     // top-K opportunities taken per symbol

	// Intervals
	CycleInterval   time.Duration // auto-trading cycle
	RefreshInterval time.Duration // price cache refresh
	RequestTimeout  time.Duration // per HTTP request

	// Streaming
	StreamEnabled bool // Binance.US websocket ticker stream

	// Telegram (optional)
	TelegramToken  string
	TelegramChatID int64

	// Database
	DatabasePath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Mode
		PaperTradingEnabled: getEnvBool("PAPER_TRADING_ENABLED", true),
		Debug:               getEnvBool("DEBUG", false),

		// Universe
		Symbols:   splitList(getEnv("SYMBOLS", "DOGE/USDT,SHIB/USDT,PEPE/USDT,FLOKI/USDT,BONK/USDT")),
		Exchanges: splitList(getEnv("EXCHANGES", "binanceus,kraken,coinbase")),

		// Trading Settings
		TradeAmount:         getEnvDecimal("TRADE_AMOUNT", decimal.NewFromInt(1000)),
		StartingBalance:     getEnvDecimal("STARTING_BALANCE", decimal.NewFromInt(10000)),
		ConfidenceThreshold: getEnvFloat("CONFIDENCE_THRESHOLD", 75),
		MaxTradesPerCycle:   getEnvInt("MAX_TRADES_PER_CYCLE", 2),

		// Intervals
		CycleInterval:   getEnvDuration("CYCLE_INTERVAL", 30*time.Second),
		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 3*time.Second),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),

		// Streaming
		StreamEnabled: getEnvBool("STREAM_ENABLED", true),

		// Telegram
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		// Database
		DatabasePath: getEnv("DATABASE_URL", getEnv("DATABASE_PATH", "data/memebot.db")),
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	// Per-exchange credentials: BINANCEUS_API_KEY, KRAKEN_API_SECRET, ...
	cfg.APIKeys = make(map[string]string)
	cfg.APISecrets = make(map[string]string)
	for _, ex := range cfg.Exchanges {
		prefix := strings.ToUpper(ex)
		cfg.APIKeys[ex] = os.Getenv(prefix + "_API_KEY")
		cfg.APISecrets[ex] = os.Getenv(prefix + "_API_SECRET")
	}

	// Validate
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("SYMBOLS must list at least one trading pair")
	}
	if len(cfg.Exchanges) < 2 {
		return nil, fmt.Errorf("EXCHANGES must list at least two exchanges for arbitrage")
	}
	if cfg.ConfidenceThreshold < 50 || cfg.ConfidenceThreshold > 95 {
		return nil, fmt.Errorf("CONFIDENCE_THRESHOLD must be between 50 and 95, got %.1f", cfg.ConfidenceThreshold)
	}
	if cfg.TradeAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("TRADE_AMOUNT must be positive")
	}

	return cfg, nil
}

// Helper functions

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
