package forecast

import (
	"context"
	"fmt"
	"math"

	"forecast-engine/internal/model"
	"forecast-engine/internal/ringbuf"
	"forecast-engine/internal/trend"
)

// RollingConfig tunes the rolling-average forecaster.
type RollingConfig struct {
	Lookback    int     // trailing closes seeding the working buffer
	AvgWindow   int     // trailing buffer values averaged per step
	TrendWeight float64 // trend adjustment per step: slope × step × weight
	Floor       float64 // minimum forecast price
}

// DefaultRollingConfig returns the 60/30/0.01/0.01 configuration.
func DefaultRollingConfig() RollingConfig {
	return RollingConfig{
		Lookback:    60,
		AvgWindow:   30,
		TrendWeight: 0.01,
		Floor:       0.01,
	}
}

// Validate checks the config.
func (c RollingConfig) Validate() error {
	if c.Lookback <= 0 || c.AvgWindow <= 0 {
		return fmt.Errorf("invalid windows lookback=%d avg=%d: must be positive", c.Lookback, c.AvgWindow)
	}
	if c.Floor <= 0 {
		return fmt.Errorf("invalid floor=%v: must be positive", c.Floor)
	}
	return nil
}

// RollingAverage forecasts by repeatedly averaging the tail of a sliding
// buffer and nudging it by the buffer's initial trend. Prices are processed in
// min-max scaled units and returned in the series' own scale.
//
// It keeps no state between calls and is safe for concurrent use as long as
// its NoiseFactory returns a fresh source per call.
type RollingAverage struct {
	cfg   RollingConfig
	noise NoiseFactory
	dates DateStepper
}

// NewRollingAverage creates the forecaster. A nil noise factory disables
// noise; nil dates default to CalendarDays.
func NewRollingAverage(cfg RollingConfig, noise NoiseFactory, dates DateStepper) (*RollingAverage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if noise == nil {
		noise = NoNoiseFactory
	}
	if dates == nil {
		dates = CalendarDays{}
	}
	return &RollingAverage{cfg: cfg, noise: noise, dates: dates}, nil
}

// Forecast implements Forecaster. Histories shorter than the lookback or the
// averaging window use whatever observations exist.
func (r *RollingAverage) Forecast(ctx context.Context, w model.Window, horizon int) ([]Point, error) {
	if err := ValidateHorizon(horizon); err != nil {
		return nil, err
	}
	if w.Len() == 0 {
		return nil, model.NewInputError("series", "empty series")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scaler := FitMinMax(w.Closes())
	seed := scaler.TransformAll(w.TailCloses(r.cfg.Lookback))
	slope := trend.Slope(seed)
	buf := ringbuf.FromSlice(seed)

	noise := r.noise()
	dates := r.dates.Dates(w.Last().Date, horizon)

	points := make([]Point, horizon)
	for i := 1; i <= horizon; i++ {
		maPred := buf.TailMean(r.cfg.AvgWindow)
		adj := slope * float64(i) * r.cfg.TrendWeight

		next := maPred + adj
		if i > 1 {
			next += noise.Sample()
		}

		price := math.Max(r.cfg.Floor, scaler.Inverse(next))
		points[i-1] = Point{Step: i, Date: dates[i-1], Price: price}

		// The floored value slides in; the ring keeps its seeded size.
		buf.Push(scaler.Transform(price))
	}
	return points, nil
}
