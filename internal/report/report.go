// Package report assembles the analytics of one series into the report
// consumed downstream: indicator history, forecast, trend comparison and
// summary statistics.
package report

import (
	"encoding/json"
	"time"

	"github.com/guregu/null/v5"

	"forecast-engine/internal/indicator"
	"forecast-engine/internal/trend"
)

// Consistency labels for TrendComparison.Comparison.TrendConsistency.
const (
	Consistent = "consistent"
	Divergent  = "divergent"
)

// Report is the complete analysis of one symbol at one horizon.
type Report struct {
	Symbol          string          `json:"symbol"`
	Horizon         int             `json:"horizon"`
	GeneratedAt     time.Time       `json:"generated_at"`
	Predictions     []float64       `json:"predictions"`
	HistoricalData  []HistoricalRow `json:"historical_data"`
	ForecastDates   []string        `json:"forecast_dates"`
	Metrics         Metrics         `json:"metrics"`
	TrendComparison TrendComparison `json:"trend_comparison"`
	MovingAverages  MovingAverages  `json:"moving_averages"`
	Summary         Summary         `json:"summary"`
}

// HistoricalRow is one observation with its indicators flattened in.
type HistoricalRow struct {
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
	indicator.Set
}

// Metrics compares the forecast against the latest close.
type Metrics struct {
	CurrentPrice            float64    `json:"current_price"`
	PredictedPrice          float64    `json:"predicted_price"`
	Change                  float64    `json:"change"`
	ChangePercent           null.Float `json:"change_percent"` // null when current price is 0
	AvgPrediction           float64    `json:"avg_prediction"`
	MaxPrediction           float64    `json:"max_prediction"`
	MinPrediction           float64    `json:"min_prediction"`
	ConfidenceIntervalUpper float64    `json:"confidence_interval_upper"`
	ConfidenceIntervalLower float64    `json:"confidence_interval_lower"`
}

// TrendComparison contrasts recent history with the forecast.
type TrendComparison struct {
	Historical30d trend.Stat `json:"historical_trend_30d"`
	Historical60d trend.Stat `json:"historical_trend_60d"`
	Historical90d trend.Stat `json:"historical_trend_90d"`
	Predicted     trend.Stat `json:"predicted_trend"`
	Comparison    Comparison `json:"comparison"`
}

// Comparison holds the derived 30-day versus forecast signals.
type Comparison struct {
	TrendConsistency string     `json:"trend_consistency"`
	VolatilityChange null.Float `json:"volatility_change"` // CV(forecast) - CV(last 30)
	MomentumShift    float64    `json:"momentum_shift"`    // forecast slope - 30d slope
}

// MovingAverages reports the latest long moving averages and the current
// close's distance from them in percent.
type MovingAverages struct {
	MA50           null.Float `json:"ma50"`
	MA100          null.Float `json:"ma100"`
	MA200          null.Float `json:"ma200"`
	CurrentVsMA50  null.Float `json:"current_vs_ma50"`
	CurrentVsMA100 null.Float `json:"current_vs_ma100"`
	CurrentVsMA200 null.Float `json:"current_vs_ma200"`
}

// Summary describes the trailing summary window.
type Summary struct {
	AvgVolume float64    `json:"avg_volume"`
	AvgPrice  float64    `json:"avg_price"`
	PriceStd  null.Float `json:"price_std"` // sample stddev, null below two closes
	MinPrice  float64    `json:"min_price"`
	MaxPrice  float64    `json:"max_price"`
}

// JSON encodes the report.
func (r *Report) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// Decode parses a report previously produced by JSON.
func Decode(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
