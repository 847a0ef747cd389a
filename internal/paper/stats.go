package paper

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Statistics is a snapshot of the paper account
type Statistics struct {
	TotalTrades     int             `json:"total_trades"`
	Wins            int             `json:"wins"`
	Losses          int             `json:"losses"`
	WinRate         float64         `json:"win_rate"`
	RealDataTrades  int             `json:"real_data_trades"`
	RealDataPct     float64         `json:"real_data_pct"`
	TotalProfit     decimal.Decimal `json:"total_profit"`
	TotalFees       decimal.Decimal `json:"total_fees"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`
	AvgProfit       decimal.Decimal `json:"avg_profit"`
	BestTrade       decimal.Decimal `json:"best_trade"`
	WorstTrade      decimal.Decimal `json:"worst_trade"`
}

// Ledger folds trade outcomes into the running paper balance
type Ledger struct {
	mu       sync.RWMutex
	starting decimal.Decimal

	trades      int
	wins        int
	losses      int
	realTrades  int
	totalProfit decimal.Decimal
	totalFees   decimal.Decimal
	bestTrade   decimal.Decimal
	worstTrade  decimal.Decimal
}

// NewLedger creates a ledger with the given starting balance
func NewLedger(startingBalance decimal.Decimal) *Ledger {
	return &Ledger{
		starting:    startingBalance,
		totalProfit: decimal.Zero,
		totalFees:   decimal.Zero,
		bestTrade:   decimal.Zero,
		worstTrade:  decimal.Zero,
	}
}

// Apply folds one trade into the ledger
func (l *Ledger) Apply(t *Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.trades++
	if t.Success {
		l.wins++
	} else {
		l.losses++
	}
	if t.IsRealData {
		l.realTrades++
	}

	l.totalProfit = l.totalProfit.Add(t.ActualProfit)
	l.totalFees = l.totalFees.Add(t.Fees)

	if t.ActualProfit.GreaterThan(l.bestTrade) {
		l.bestTrade = t.ActualProfit
	}
	if t.ActualProfit.LessThan(l.worstTrade) {
		l.worstTrade = t.ActualProfit
	}
}

// Snapshot returns the current statistics
func (l *Ledger) Snapshot() Statistics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := Statistics{
		TotalTrades:     l.trades,
		Wins:            l.wins,
		Losses:          l.losses,
		RealDataTrades:  l.realTrades,
		TotalProfit:     l.totalProfit,
		TotalFees:       l.totalFees,
		StartingBalance: l.starting,
		CurrentBalance:  l.starting.Add(l.totalProfit),
		AvgProfit:       decimal.Zero,
		BestTrade:       l.bestTrade,
		WorstTrade:      l.worstTrade,
	}
	if l.trades > 0 {
		stats.WinRate = float64(l.wins) / float64(l.trades)
		stats.RealDataPct = 100 * float64(l.realTrades) / float64(l.trades)
		stats.AvgProfit = l.totalProfit.Div(decimal.NewFromInt(int64(l.trades)))
	}
	return stats
}
