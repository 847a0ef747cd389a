// Package bot provides Telegram bot functionality
//
// telegram.go - alerting and remote control for the paper trading engine.
// Pushes trade executions and strong opportunities to the configured chat
// and answers a small command set.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/nipdog001/memebot3-sub002/internal/arbitrage"
	"github.com/nipdog001/memebot3-sub002/internal/config"
	"github.com/nipdog001/memebot3-sub002/internal/engine"
	"github.com/nipdog001/memebot3-sub002/internal/paper"
)

// Bot handles Telegram interactions
type Bot struct {
	api    *tgbotapi.BotAPI
	cfg    *config.Config
	engine *engine.Engine
	stopCh chan struct{}
}

// New creates the bot and wires the engine callbacks for alerts
func New(cfg *config.Config, eng *engine.Engine) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot connected")

	bot := &Bot{
		api:    api,
		cfg:    cfg,
		engine: eng,
		stopCh: make(chan struct{}),
	}

	if cfg.TelegramChatID != 0 {
		eng.SetTradeCallback(func(trade paper.Trade) {
			bot.sendTradeAlert(cfg.TelegramChatID, trade)
		})
		eng.SetOpportunityCallback(func(opp arbitrage.Opportunity) {
			// Only ping on low-risk spreads, the rest is noise
			if opp.RiskLevel == arbitrage.RiskLow {
				bot.sendOpportunityAlert(cfg.TelegramChatID, opp)
			}
		})
	}

	return bot, nil
}

// Start begins the command listener
func (b *Bot) Start() {
	go b.listenForCommands()

	if b.cfg.TelegramChatID != 0 {
		b.send(b.cfg.TelegramChatID, "🚀 Paper trading engine online\nUse /help for commands")
	}
}

// Stop stops the bot
func (b *Bot) Stop() {
	close(b.stopCh)
}

func (b *Bot) listenForCommands() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				go b.handleMessage(update.Message)
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID

	log.Debug().
		Int64("chat_id", chatID).
		Str("command", msg.Command()).
		Msg("Received command")

	switch msg.Command() {
	case "start", "help":
		b.send(chatID, helpText)
	case "status":
		b.handleStatus(chatID)
	case "stats":
		b.handleStats(chatID)
	case "trades":
		b.handleTrades(chatID)
	case "threshold":
		b.handleThreshold(chatID, msg.CommandArguments())
	case "run":
		b.handleRun(chatID)
	case "halt":
		b.handleHalt(chatID)
	default:
		b.send(chatID, "Unknown command, try /help")
	}
}

const helpText = `📖 Commands:
/status - exchange connections and engine state
/stats - paper account statistics
/trades - recent paper trades
/threshold <50-95> - set confidence threshold
/run - start auto trading
/halt - stop auto trading`

func (b *Bot) handleStatus(chatID int64) {
	status := b.engine.ConnectionStatus()

	var sb strings.Builder
	sb.WriteString("📡 *Status*\n")
	fmt.Fprintf(&sb, "Exchanges connected: %v\n", status["connected_count"])
	fmt.Fprintf(&sb, "Real data verified: %v\n", status["real_data_verified"])
	if b.engine.Running() {
		sb.WriteString("Engine: running ⚡")
	} else {
		sb.WriteString("Engine: idle 💤")
	}
	b.send(chatID, sb.String())
}

func (b *Bot) handleStats(chatID int64) {
	stats := b.engine.Statistics()
	account, _ := stats["account"].(paper.Statistics)

	var sb strings.Builder
	sb.WriteString("📊 *Paper Account*\n")
	fmt.Fprintf(&sb, "Trades: %d (%.0f%% win)\n", account.TotalTrades, account.WinRate*100)
	fmt.Fprintf(&sb, "Profit: $%s\n", account.TotalProfit.StringFixed(2))
	fmt.Fprintf(&sb, "Fees: $%s\n", account.TotalFees.StringFixed(2))
	fmt.Fprintf(&sb, "Balance: $%s\n", account.CurrentBalance.StringFixed(2))
	fmt.Fprintf(&sb, "Threshold: %.1f\n", stats["threshold"])
	fmt.Fprintf(&sb, "Cycles: %v", stats["cycles"])
	b.send(chatID, sb.String())
}

func (b *Bot) handleTrades(chatID int64) {
	trades := b.engine.RecentTrades(5)
	if len(trades) == 0 {
		b.send(chatID, "No trades yet")
		return
	}

	var sb strings.Builder
	sb.WriteString("🧾 *Recent Trades*\n")
	for _, t := range trades {
		icon := "✅"
		if !t.Success {
			icon = "❌"
		}
		fmt.Fprintf(&sb, "%s %s %s→%s $%s\n",
			icon, t.Symbol, t.BuyExchange, t.SellExchange, t.ActualProfit.StringFixed(2))
	}
	b.send(chatID, sb.String())
}

func (b *Bot) handleThreshold(chatID int64, args string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(args), 64)
	if err != nil {
		b.send(chatID, "Usage: /threshold <50-95>")
		return
	}
	applied := b.engine.SetConfidenceThreshold(v)
	b.send(chatID, fmt.Sprintf("🎯 Threshold set to %.1f", applied))
}

func (b *Bot) handleRun(chatID int64) {
	if err := b.engine.StartAutoTrading(context.Background(), 0); err != nil {
		b.send(chatID, "⚠️ "+err.Error())
		return
	}
	b.send(chatID, "⚡ Auto trading started")
}

func (b *Bot) handleHalt(chatID int64) {
	if err := b.engine.StopAutoTrading(); err != nil {
		b.send(chatID, "⚠️ "+err.Error())
		return
	}
	b.send(chatID, "🛑 Auto trading stopped")
}

func (b *Bot) sendTradeAlert(chatID int64, t paper.Trade) {
	icon := "✅"
	if !t.Success {
		icon = "❌"
	}
	msg := fmt.Sprintf("%s *Paper Trade* %s\n%s → %s\nProfit: $%s (expected $%s)\nConfidence: %.1f | Risk: %s",
		icon, t.Symbol, t.BuyExchange, t.SellExchange,
		t.ActualProfit.StringFixed(2), t.ExpectedProfit.StringFixed(2),
		t.Confidence, t.RiskLevel)
	if t.FailureReason != "" {
		msg += "\nReason: " + t.FailureReason
	}
	b.send(chatID, msg)
}

func (b *Bot) sendOpportunityAlert(chatID int64, opp arbitrage.Opportunity) {
	msg := fmt.Sprintf("💡 *Opportunity* %s\n%s → %s\nSpread: %s%% | Net: $%s | Risk: %s",
		opp.Symbol, opp.BuyExchange, opp.SellExchange,
		opp.ProfitPct.StringFixed(3), opp.NetProfit.StringFixed(2), opp.RiskLevel)
	b.send(chatID, msg)
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("Failed to send Telegram message")
		// Retry without markdown in case formatting broke parsing
		plain := tgbotapi.NewMessage(chatID, text)
		if _, err := b.api.Send(plain); err != nil {
			log.Error().Err(err).Msg("Telegram send failed")
		}
	}
}
