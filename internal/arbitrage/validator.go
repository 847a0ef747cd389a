package arbitrage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Validation thresholds, stricter than the scanner's listing filter
var (
	minExecutionMarginPct = decimal.NewFromFloat(0.3)
	maxDataAge            = 30 * time.Second
	slippageFactor        = decimal.NewFromFloat(0.0015)
	feeBuffer             = decimal.NewFromFloat(0.002)
	lowRiskProfitFloor    = decimal.NewFromInt(5)
)

// Verdict is the validator's judgment on one opportunity
type Verdict struct {
	Valid          bool
	Reason         string
	AdjustedProfit decimal.Decimal
	RiskLevel      string
}

// Validate applies the execution criteria to a scanned opportunity: a wider
// margin than the listing filter, a hard staleness cutoff, and a profit
// haircut for expected slippage plus a fee buffer. A valid verdict always
// carries a positive AdjustedProfit; valid opportunities get their
// AdjustedProfit and RiskLevel filled in.
func Validate(opp *Opportunity) Verdict {
	if opp.ProfitPct.LessThan(minExecutionMarginPct) {
		return Verdict{Valid: false, Reason: "Profit margin too low"}
	}
	if opp.Age() > maxDataAge {
		return Verdict{Valid: false, Reason: "Data too stale"}
	}

	haircut := opp.Amount.Mul(slippageFactor.Add(feeBuffer))
	adjusted := opp.NetProfit.Sub(haircut)
	if adjusted.LessThanOrEqual(decimal.Zero) {
		return Verdict{Valid: false, Reason: "No profit after risk adjustments", AdjustedProfit: adjusted}
	}

	risk := RiskMedium
	if adjusted.GreaterThan(lowRiskProfitFloor) {
		risk = RiskLow
	}

	opp.AdjustedProfit = adjusted
	opp.RiskLevel = risk

	return Verdict{
		Valid:          true,
		AdjustedProfit: adjusted,
		RiskLevel:      risk,
	}
}
