package report

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/guregu/null/v5"

	"forecast-engine/internal/forecast"
	"forecast-engine/internal/indicator"
	"forecast-engine/internal/model"
	"forecast-engine/internal/trend"
)

// Default report windows.
const (
	DefaultHistoryRows = 200
	SummaryDays        = 30
)

// Historical trend spans, in observations.
const (
	span30 = 30
	span60 = 60
	span90 = 90
)

// z-score of the two-sided 95% interval.
const confidenceZ = 1.96

// Builder produces Reports. It holds configuration and collaborators only, so
// one Builder may serve concurrent builds when its Forecaster does.
type Builder struct {
	engine      *indicator.Engine
	forecaster  forecast.Forecaster
	historyRows int
	now         func() time.Time
}

// Option customizes a Builder.
type Option func(*Builder)

// WithHistoryRows sets how many trailing observations go into historical_data.
func WithHistoryRows(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.historyRows = n
		}
	}
}

// WithClock overrides the generated_at clock.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBuilder creates a report builder.
func NewBuilder(engine *indicator.Engine, forecaster forecast.Forecaster, opts ...Option) (*Builder, error) {
	if engine == nil {
		return nil, fmt.Errorf("report: nil indicator engine")
	}
	if forecaster == nil {
		return nil, fmt.Errorf("report: nil forecaster")
	}
	b := &Builder{
		engine:      engine,
		forecaster:  forecaster,
		historyRows: DefaultHistoryRows,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build analyzes w and forecasts horizon steps past its last observation.
// The horizon is validated before any computation. Short histories produce
// null fields rather than errors.
func (b *Builder) Build(ctx context.Context, w model.Window, horizon int) (*Report, error) {
	if err := forecast.ValidateHorizon(horizon); err != nil {
		return nil, err
	}
	if w.Len() == 0 {
		return nil, model.NewInputError("series", "empty series")
	}

	sets := b.engine.Compute(w)

	points, err := b.forecaster.Forecast(ctx, w, horizon)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", w.Symbol(), err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("forecast %s: no points returned", w.Symbol())
	}
	preds := forecast.Prices(points)

	r := &Report{
		Symbol:         w.Symbol(),
		Horizon:        horizon,
		GeneratedAt:    b.now().UTC(),
		Predictions:    preds,
		HistoricalData: historicalRows(w, sets, b.historyRows),
		ForecastDates:  make([]string, len(points)),
	}
	for i, p := range points {
		r.ForecastDates[i] = p.Date.Format(model.DateLayout)
	}

	current := w.Last().Close
	r.Metrics = buildMetrics(current, preds)
	r.TrendComparison = compareTrends(w, preds)
	r.MovingAverages = movingAverages(current, sets[len(sets)-1])
	r.Summary = summarize(w.Tail(SummaryDays))
	return r, nil
}

func historicalRows(w model.Window, sets []indicator.Set, limit int) []HistoricalRow {
	start := 0
	if w.Len() > limit {
		start = w.Len() - limit
	}
	rows := make([]HistoricalRow, 0, w.Len()-start)
	for i := start; i < w.Len(); i++ {
		o := w.At(i)
		rows = append(rows, HistoricalRow{
			Date:   o.DateKey(),
			Price:  o.Close,
			Volume: o.Volume,
			Set:    sets[i],
		})
	}
	return rows
}

func buildMetrics(current float64, preds []float64) Metrics {
	predicted := preds[len(preds)-1]
	mean := trend.Mean(preds)
	std := trend.PopStdDev(preds)

	m := Metrics{
		CurrentPrice:            current,
		PredictedPrice:          predicted,
		Change:                  predicted - current,
		AvgPrediction:           mean,
		MaxPrediction:           preds[0],
		MinPrediction:           preds[0],
		ConfidenceIntervalUpper: mean + confidenceZ*std,
		ConfidenceIntervalLower: mean - confidenceZ*std,
	}
	for _, p := range preds[1:] {
		m.MaxPrediction = math.Max(m.MaxPrediction, p)
		m.MinPrediction = math.Min(m.MinPrediction, p)
	}
	if current != 0 {
		m.ChangePercent = null.FloatFrom(m.Change / current * 100)
	}
	return m
}

func compareTrends(w model.Window, preds []float64) TrendComparison {
	last30 := w.TailCloses(span30)
	tc := TrendComparison{
		Historical30d: trend.Compute(last30),
		Historical60d: trend.Compute(w.TailCloses(span60)),
		Historical90d: trend.Compute(w.TailCloses(span90)),
		Predicted:     trend.Compute(preds),
	}

	c := Comparison{
		TrendConsistency: Divergent,
		MomentumShift:    tc.Predicted.Slope - tc.Historical30d.Slope,
	}
	if trend.Consistent(tc.Historical30d.Slope, tc.Predicted.Slope) {
		c.TrendConsistency = Consistent
	}
	histCV := trend.CoefficientOfVariation(last30)
	predCV := trend.CoefficientOfVariation(preds)
	if histCV.Valid && predCV.Valid {
		c.VolatilityChange = null.FloatFrom(predCV.Float64 - histCV.Float64)
	}
	tc.Comparison = c
	return tc
}

func movingAverages(current float64, latest indicator.Set) MovingAverages {
	return MovingAverages{
		MA50:           latest.MA50,
		MA100:          latest.MA100,
		MA200:          latest.MA200,
		CurrentVsMA50:  percentAbove(current, latest.MA50),
		CurrentVsMA100: percentAbove(current, latest.MA100),
		CurrentVsMA200: percentAbove(current, latest.MA200),
	}
}

// percentAbove returns (current/ma - 1) × 100, null when ma is null or 0.
func percentAbove(current float64, ma null.Float) null.Float {
	if !ma.Valid || ma.Float64 == 0 {
		return null.Float{}
	}
	return null.FloatFrom((current/ma.Float64 - 1) * 100)
}

func summarize(w model.Window) Summary {
	closes := w.Closes()
	s := Summary{
		AvgPrice: trend.Mean(closes),
		PriceStd: trend.SampleStdDev(closes),
		MinPrice: closes[0],
		MaxPrice: closes[0],
	}
	var vol float64
	for i, c := range closes {
		s.MinPrice = math.Min(s.MinPrice, c)
		s.MaxPrice = math.Max(s.MaxPrice, c)
		vol += float64(w.At(i).Volume)
	}
	s.AvgVolume = vol / float64(len(closes))
	return s
}
