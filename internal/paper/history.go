// Package paper simulates trade execution against live prices without
// touching an exchange account.
package paper

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// historyCap bounds the in-memory trade log
const historyCap = 1000

// Trade is one simulated execution
type Trade struct {
	ID             string          `json:"id"`
	Symbol         string          `json:"symbol"`
	BuyExchange    string          `json:"buy_exchange"`
	SellExchange   string          `json:"sell_exchange"`
	BuyPrice       decimal.Decimal `json:"buy_price"`
	SellPrice      decimal.Decimal `json:"sell_price"`
	Amount         decimal.Decimal `json:"amount"`
	ExpectedProfit decimal.Decimal `json:"expected_profit"`
	ActualProfit   decimal.Decimal `json:"actual_profit"`
	Fees           decimal.Decimal `json:"fees"`
	SlippagePct    decimal.Decimal `json:"slippage_pct"`
	Success        bool            `json:"success"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	IsRealData     bool            `json:"is_real_data"`
	DataSource     string          `json:"data_source"`
	ExecutionTime  time.Duration   `json:"execution_time"`
	Confidence     float64         `json:"confidence"`
	RiskLevel      string          `json:"risk_level"`
	DecidingModels []string        `json:"deciding_models"`
	ExecutedAt     time.Time       `json:"executed_at"`
}

// History is a fixed-capacity ring of recent trades. Once full, each new
// trade overwrites the oldest.
type History struct {
	mu   sync.RWMutex
	buf  []*Trade
	next int
	full bool
}

// NewHistory creates an empty history with the standard capacity
func NewHistory() *History {
	return &History{buf: make([]*Trade, historyCap)}
}

// Add records a trade
func (h *History) Add(t *Trade) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.next] = t
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
}

// Len returns how many trades are retained
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.full {
		return len(h.buf)
	}
	return h.next
}

// Recent returns up to limit trades, newest first
func (h *History) Recent(limit int) []*Trade {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.next
	if h.full {
		n = len(h.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*Trade, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (h.next - i + len(h.buf)) % len(h.buf)
		out = append(out, h.buf[idx])
	}
	return out
}
