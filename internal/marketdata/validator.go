// validator.go - real-data gate. Before any scan or simulated trade runs,
// at least one exchange must prove it serves live data by returning a sane
// ticker for the canary symbol.
package marketdata

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/nipdog001/memebot3-sub002/internal/exchange"
)

// CanarySymbol is the liquid pair used to probe exchange data quality
const CanarySymbol = "BTC/USDT"

// ErrRealDataUnavailable is returned when no exchange has passed validation
var ErrRealDataUnavailable = errors.New("no exchange is serving verified real data")

// ValidationResult reports the outcome of one validation sweep
type ValidationResult struct {
	Verified  bool
	Validated []string          // exchanges that returned a sane canary ticker
	Failed    map[string]string // exchange -> reason
	CheckedAt time.Time
}

// Validator probes exchanges with the canary symbol and holds the gate state
type Validator struct {
	registry *exchange.Registry
	canary   string

	mu       sync.RWMutex
	verified bool
	last     ValidationResult
}

// NewValidator creates a validator over the registry
func NewValidator(registry *exchange.Registry) *Validator {
	return &Validator{
		registry: registry,
		canary:   CanarySymbol,
	}
}

// Validate probes every exchange with the canary symbol. The gate opens when
// at least one exchange returns a positive, recent price.
func (v *Validator) Validate(ctx context.Context) ValidationResult {
	result := ValidationResult{
		Failed:    make(map[string]string),
		CheckedAt: time.Now(),
	}

	for _, ex := range v.registry.Exchanges() {
		ticker, err := v.registry.FetchTicker(ctx, ex, v.canary)
		if err != nil {
			result.Failed[ex] = err.Error()
			continue
		}
		if !ticker.IsRealData || ticker.Price.LessThanOrEqual(decimal.Zero) {
			result.Failed[ex] = "ticker failed sanity check"
			continue
		}
		result.Validated = append(result.Validated, ex)
	}

	result.Verified = len(result.Validated) > 0

	v.mu.Lock()
	v.verified = result.Verified
	v.last = result
	v.mu.Unlock()

	if result.Verified {
		log.Info().
			Strs("exchanges", result.Validated).
			Msg("✅ Real data verified")
	} else {
		log.Warn().
			Int("failed", len(result.Failed)).
			Msg("⚠️ Real data validation failed on every exchange")
	}

	return result
}

// Verified reports whether the gate is open
func (v *Validator) Verified() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.verified
}

// Require returns ErrRealDataUnavailable when the gate is closed
func (v *Validator) Require() error {
	if !v.Verified() {
		return ErrRealDataUnavailable
	}
	return nil
}

// LastResult returns the most recent validation sweep
func (v *Validator) LastResult() ValidationResult {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.last
}
