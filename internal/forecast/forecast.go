// Package forecast produces short-horizon price forecasts from a daily series.
//
// Report building depends only on the Forecaster interface; RollingAverage is
// the statistical placeholder behind it until a learned model is plugged in.
package forecast

import (
	"context"
	"time"

	"forecast-engine/internal/model"
)

// Horizon bounds, inclusive.
const (
	MinHorizon = 5
	MaxHorizon = 60
)

// Point is one forecasted step.
type Point struct {
	Step  int       `json:"step"` // 1..N
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Forecaster produces horizon points following the last observation of w.
// Implementations must not mutate w.
type Forecaster interface {
	Forecast(ctx context.Context, w model.Window, horizon int) ([]Point, error)
}

// ValidateHorizon rejects horizons outside [MinHorizon, MaxHorizon].
// Out-of-range values are an input error, never clamped.
func ValidateHorizon(horizon int) error {
	if horizon < MinHorizon || horizon > MaxHorizon {
		return model.NewInputError("horizon", "%d is outside %d..%d", horizon, MinHorizon, MaxHorizon)
	}
	return nil
}

// Prices extracts the price of every point.
func Prices(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Price
	}
	return out
}

// DateStepper assigns dates to forecast steps.
type DateStepper interface {
	// Dates returns the n dates following last, one per step.
	Dates(last time.Time, n int) []time.Time
}

// CalendarDays steps one calendar day at a time, weekends and holidays
// included.
type CalendarDays struct{}

func (CalendarDays) Dates(last time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	d := model.Day(last)
	for i := range out {
		out[i] = d.AddDate(0, 0, i+1)
	}
	return out
}
