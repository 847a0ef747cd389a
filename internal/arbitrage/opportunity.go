// Package arbitrage finds and vets cross-exchange price spreads.
//
// The scanner compares one symbol's price across every connected exchange
// and keeps the pairs whose spread survives taker fees. The validator then
// applies stricter execution criteria before a spread is worth simulating.
package arbitrage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Risk levels assigned by the validator
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
)

// Opportunity is a cross-exchange spread net of taker fees
type Opportunity struct {
	ID           string
	Symbol       string
	BuyExchange  string
	SellExchange string
	BuyPrice     decimal.Decimal
	SellPrice    decimal.Decimal
	Amount       decimal.Decimal // USD notional on the buy leg
	ProfitPct    decimal.Decimal // spread as % of the buy price
	GrossProfit  decimal.Decimal
	BuyFee       decimal.Decimal
	SellFee      decimal.Decimal
	NetProfit    decimal.Decimal
	IsRealData   bool // both legs came from live exchange data
	DataSource   string
	DetectedAt   time.Time

	// Set by the validator
	AdjustedProfit decimal.Decimal
	RiskLevel      string
}

// TotalFees returns both legs' fees
func (o *Opportunity) TotalFees() decimal.Decimal {
	return o.BuyFee.Add(o.SellFee)
}

// Age returns how long ago this opportunity was detected
func (o *Opportunity) Age() time.Duration {
	return time.Since(o.DetectedAt)
}

// String renders a short human-readable summary for logs and alerts
func (o *Opportunity) String() string {
	return fmt.Sprintf("%s %s→%s spread=%s%% net=$%s",
		o.Symbol, o.BuyExchange, o.SellExchange,
		o.ProfitPct.StringFixed(3), o.NetProfit.StringFixed(2))
}
