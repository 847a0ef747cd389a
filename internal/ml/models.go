// Package ml scores arbitrage opportunities with a fixed ensemble of
// simulated prediction models.
//
// The roster, accuracies and weights are static; what varies per opportunity
// is each model's situational adjustment plus bounded noise. Per-model
// performance is tracked across simulated trades and feeds back into the
// ensemble weights within tight bounds.
package ml

// Model categories drive the per-model situational adjustment
const (
	CategoryRegression = "regression"
	CategoryTrend      = "trend"
	CategoryMomentum   = "momentum"
	CategoryNeural     = "neural"
)

// Model is one member of the ensemble
type Model struct {
	Name     string
	Category string
	Accuracy float64 // base confidence, percent
	Weight   float64 // ensemble weight
}

// Roster returns the fixed model ensemble
func Roster() []Model {
	return []Model{
		{Name: "Linear Regression", Category: CategoryRegression, Accuracy: 72.5, Weight: 1.0},
		{Name: "Polynomial Regression", Category: CategoryRegression, Accuracy: 75.1, Weight: 1.2},
		{Name: "Moving Average", Category: CategoryTrend, Accuracy: 68.3, Weight: 0.8},
		{Name: "RSI Momentum", Category: CategoryMomentum, Accuracy: 79.2, Weight: 1.5},
		{Name: "Bollinger Bands", Category: CategoryMomentum, Accuracy: 81.7, Weight: 1.8},
		{Name: "MACD Signal", Category: CategoryTrend, Accuracy: 77.8, Weight: 1.3},
		{Name: "LSTM Neural Network", Category: CategoryNeural, Accuracy: 85.4, Weight: 2.0},
		{Name: "Ensemble Meta-Model", Category: CategoryNeural, Accuracy: 91.3, Weight: 2.5},
	}
}
