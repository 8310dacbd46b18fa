package report

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"forecast-engine/internal/forecast"
	"forecast-engine/internal/indicator"
	"forecast-engine/internal/model"
	"forecast-engine/internal/trend"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func makeWindow(t *testing.T, closes []float64) model.Window {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]model.Observation, len(closes))
	for i, c := range closes {
		obs[i] = model.Observation{
			Date:   start.AddDate(0, 0, i),
			Close:  c,
			Volume: int64(1000 + i),
		}
	}
	w, err := model.NewWindow("ACME", obs)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	return w
}

func newBuilder(t *testing.T, noise forecast.NoiseFactory) *Builder {
	t.Helper()
	eng, err := indicator.NewEngine(indicator.DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	fc, err := forecast.NewRollingAverage(forecast.DefaultRollingConfig(), noise, nil)
	if err != nil {
		t.Fatalf("NewRollingAverage: %v", err)
	}
	b, err := NewBuilder(eng, fc, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func assertClose(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.10f, want %.10f (tol %.1e)", name, got, want, tol)
	}
}

// ────────────────────────────────────────────────────────────────
// Scenarios
// ────────────────────────────────────────────────────────────────

func TestBuild_ConstantSeries(t *testing.T) {
	r, err := newBuilder(t, nil).Build(context.Background(), makeWindow(t, constant(90, 100)), 5)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(r.Predictions) != 5 || len(r.ForecastDates) != 5 {
		t.Fatalf("expected 5 predictions/dates, got %d/%d", len(r.Predictions), len(r.ForecastDates))
	}
	for i, p := range r.Predictions {
		if p != 100 {
			t.Errorf("prediction %d = %v, want 100", i, p)
		}
	}
	if r.ForecastDates[0] != "2024-03-31" || r.ForecastDates[4] != "2024-04-04" {
		t.Errorf("forecast dates = %v", r.ForecastDates)
	}

	m := r.Metrics
	if m.Change != 0 || !m.ChangePercent.Valid || m.ChangePercent.Float64 != 0 {
		t.Errorf("change=%v change%%=%v, want 0/0", m.Change, m.ChangePercent)
	}
	if m.ConfidenceIntervalUpper != 100 || m.ConfidenceIntervalLower != 100 {
		t.Errorf("CI = [%v, %v], want [100, 100]", m.ConfidenceIntervalLower, m.ConfidenceIntervalUpper)
	}

	tc := r.TrendComparison
	for name, st := range map[string]trend.Stat{"30d": tc.Historical30d, "60d": tc.Historical60d, "90d": tc.Historical90d, "pred": tc.Predicted} {
		if st.Slope != 0 || st.Direction != trend.Down || st.Volatility != 0 || st.AvgPrice != 100 {
			t.Errorf("%s stat = %+v", name, st)
		}
	}
	if tc.Comparison.TrendConsistency != Consistent {
		t.Errorf("trend_consistency = %q", tc.Comparison.TrendConsistency)
	}
	if !tc.Comparison.VolatilityChange.Valid || tc.Comparison.VolatilityChange.Float64 != 0 {
		t.Errorf("volatility_change = %v, want 0", tc.Comparison.VolatilityChange)
	}

	last := r.HistoricalData[len(r.HistoricalData)-1]
	if !last.RSI.Valid || last.RSI.Float64 != 50 {
		t.Errorf("RSI on flat series = %v, want 50", last.RSI)
	}
	if !last.Volatility.Valid || last.Volatility.Float64 != 0 {
		t.Errorf("volatility = %v, want 0", last.Volatility)
	}
	if !last.BBUpper.Valid || last.BBUpper.Float64 != 100 || last.BBLower.Float64 != 100 {
		t.Errorf("bands = %v/%v, want 100/100", last.BBUpper, last.BBLower)
	}

	ma := r.MovingAverages
	if !ma.MA50.Valid || ma.MA50.Float64 != 100 || !ma.CurrentVsMA50.Valid || ma.CurrentVsMA50.Float64 != 0 {
		t.Errorf("ma50=%v vs=%v", ma.MA50, ma.CurrentVsMA50)
	}
	if ma.MA100.Valid || ma.CurrentVsMA100.Valid || ma.MA200.Valid || ma.CurrentVsMA200.Valid {
		t.Errorf("ma100/200 should be null with 90 observations: %+v", ma)
	}

	if r.Summary.AvgPrice != 100 || r.Summary.MinPrice != 100 || r.Summary.MaxPrice != 100 {
		t.Errorf("summary = %+v", r.Summary)
	}
	if !r.Summary.PriceStd.Valid || r.Summary.PriceStd.Float64 != 0 {
		t.Errorf("price_std = %v, want 0", r.Summary.PriceStd)
	}
	// volumes 1060..1089
	assertClose(t, "avg_volume", r.Summary.AvgVolume, 1074.5, 1e-12)
}

func TestBuild_TenObservations(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104, 105, 106, 107, 108, 109}
	r, err := newBuilder(t, nil).Build(context.Background(), makeWindow(t, closes), 5)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(r.HistoricalData) != 10 {
		t.Fatalf("expected 10 historical rows, got %d", len(r.HistoricalData))
	}
	for i, row := range r.HistoricalData {
		if row.MA20.Valid || row.MA50.Valid || row.MA100.Valid || row.MA200.Valid {
			t.Errorf("row %d: moving averages should be null", i)
		}
		if row.RSI.Valid || row.Volatility.Valid || row.BBUpper.Valid || row.BBLower.Valid {
			t.Errorf("row %d: windowed indicators should be null", i)
		}
		if (i == 0) == row.DailyReturn.Valid {
			t.Errorf("row %d: daily_return valid=%v", i, row.DailyReturn.Valid)
		}
	}

	ma := r.MovingAverages
	if ma.MA50.Valid || ma.CurrentVsMA50.Valid {
		t.Errorf("ma50 should be null: %+v", ma)
	}

	// Short history: every span degrades to the whole series, slope 1/day.
	for name, st := range map[string]trend.Stat{"30d": r.TrendComparison.Historical30d, "60d": r.TrendComparison.Historical60d, "90d": r.TrendComparison.Historical90d} {
		assertClose(t, name+" slope", st.Slope, 1, 1e-9)
		assertClose(t, name+" avg", st.AvgPrice, 104.5, 1e-9)
		if st.Direction != trend.Up {
			t.Errorf("%s direction = %v", name, st.Direction)
		}
	}

	if len(r.Predictions) != 5 {
		t.Fatalf("expected 5 predictions, got %d", len(r.Predictions))
	}
	for i, p := range r.Predictions {
		if !(p > 0) {
			t.Errorf("prediction %d = %v", i, p)
		}
	}
	if !r.Metrics.ChangePercent.Valid {
		t.Error("change_percent should be defined")
	}
	if !r.Summary.PriceStd.Valid {
		t.Error("price_std should be defined")
	}
}

func TestBuild_HistoryLimited(t *testing.T) {
	closes := make([]float64, 250)
	for i := range closes {
		closes[i] = 50 + float64(i%17)
	}
	w := makeWindow(t, closes)
	r, err := newBuilder(t, nil).Build(context.Background(), w, 10)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(r.HistoricalData) != DefaultHistoryRows {
		t.Fatalf("expected %d rows, got %d", DefaultHistoryRows, len(r.HistoricalData))
	}
	if got, want := r.HistoricalData[0].Date, w.At(50).DateKey(); got != want {
		t.Errorf("first row date = %s, want %s", got, want)
	}
	// Indicators are computed over the full series, not the truncated rows.
	if !r.HistoricalData[0].MA50.Valid {
		t.Error("MA50 at index 50 should be defined")
	}
	if !r.MovingAverages.MA200.Valid || !r.MovingAverages.CurrentVsMA200.Valid {
		t.Error("MA200 should be defined with 250 observations")
	}
}

func TestBuild_ZeroPrices(t *testing.T) {
	r, err := newBuilder(t, nil).Build(context.Background(), makeWindow(t, constant(40, 0)), 5)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.Metrics.ChangePercent.Valid {
		t.Errorf("change_percent with zero current price = %v, want null", r.Metrics.ChangePercent)
	}
	if r.TrendComparison.Comparison.VolatilityChange.Valid {
		t.Error("volatility_change should be null when the historical mean is 0")
	}
	for i, p := range r.Predictions {
		if p != 0.01 {
			t.Errorf("prediction %d = %v, want floor 0.01", i, p)
		}
	}
	if r.MovingAverages.CurrentVsMA50.Valid {
		t.Error("current_vs_ma with zero MA should be null")
	}
	last := r.HistoricalData[len(r.HistoricalData)-1]
	if last.DailyReturn.Valid {
		t.Error("daily_return after a zero close should be null")
	}
}

func TestBuild_RejectsHorizon(t *testing.T) {
	w := makeWindow(t, constant(30, 10))
	b := newBuilder(t, nil)
	for _, h := range []int{0, 4, 61} {
		r, err := b.Build(context.Background(), w, h)
		if !errors.Is(err, model.ErrInvalidInput) {
			t.Errorf("horizon=%d: expected ErrInvalidInput, got %v", h, err)
		}
		if r != nil {
			t.Errorf("horizon=%d: expected nil report", h)
		}
	}
}

func TestBuild_EmptyWindow(t *testing.T) {
	_, err := newBuilder(t, nil).Build(context.Background(), model.Window{}, 5)
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

// ────────────────────────────────────────────────────────────────
// Properties
// ────────────────────────────────────────────────────────────────

func TestBuild_ConsistencyMatchesSlopes(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	b := newBuilder(t, forecast.SeededGaussianFactory(3, forecast.DefaultNoiseSigma))
	for trial := 0; trial < 25; trial++ {
		closes := make([]float64, 40+rng.Intn(160))
		price := 50 + rng.Float64()*100
		for i := range closes {
			price += rng.NormFloat64() * 2
			closes[i] = math.Max(price, 1)
		}
		r, err := b.Build(context.Background(), makeWindow(t, closes), 5+rng.Intn(56))
		if err != nil {
			t.Fatalf("trial %d: Build: %v", trial, err)
		}
		tc := r.TrendComparison
		want := Divergent
		if (tc.Historical30d.Slope > 0) == (tc.Predicted.Slope > 0) {
			want = Consistent
		}
		if tc.Comparison.TrendConsistency != want {
			t.Errorf("trial %d: consistency=%q with slopes %v / %v", trial, tc.Comparison.TrendConsistency, tc.Historical30d.Slope, tc.Predicted.Slope)
		}
		assertClose(t, "momentum_shift", tc.Comparison.MomentumShift, tc.Predicted.Slope-tc.Historical30d.Slope, 1e-12)

		m := r.Metrics
		if m.MinPrediction > m.AvgPrediction || m.AvgPrediction > m.MaxPrediction {
			t.Errorf("trial %d: min/avg/max out of order: %v %v %v", trial, m.MinPrediction, m.AvgPrediction, m.MaxPrediction)
		}
		if m.ConfidenceIntervalLower > m.AvgPrediction || m.ConfidenceIntervalUpper < m.AvgPrediction {
			t.Errorf("trial %d: CI does not contain mean", trial)
		}
		if m.PredictedPrice != r.Predictions[len(r.Predictions)-1] {
			t.Errorf("trial %d: predicted_price is not the last prediction", trial)
		}
	}
}

// fallingForecaster returns prices stepping down by one from the last close.
type fallingForecaster struct{}

func (fallingForecaster) Forecast(_ context.Context, w model.Window, horizon int) ([]forecast.Point, error) {
	last := w.Last()
	points := make([]forecast.Point, horizon)
	for i := range points {
		points[i] = forecast.Point{
			Step:  i + 1,
			Date:  last.Date.AddDate(0, 0, i+1),
			Price: last.Close - float64(i+1),
		}
	}
	return points, nil
}

func TestBuild_DivergentTrend(t *testing.T) {
	eng, err := indicator.NewEngine(indicator.DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	b, err := NewBuilder(eng, fallingForecaster{}, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}

	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	r, err := b.Build(context.Background(), makeWindow(t, closes), 10)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	tc := r.TrendComparison
	assertClose(t, "30d slope", tc.Historical30d.Slope, 1, 1e-9)
	assertClose(t, "predicted slope", tc.Predicted.Slope, -1, 1e-9)
	if tc.Comparison.TrendConsistency != Divergent {
		t.Fatalf("trend_consistency = %q, want %q", tc.Comparison.TrendConsistency, Divergent)
	}

	data, err := r.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var raw struct {
		TrendComparison struct {
			Comparison struct {
				TrendConsistency string `json:"trend_consistency"`
			} `json:"comparison"`
		} `json:"trend_comparison"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := raw.TrendComparison.Comparison.TrendConsistency; got != "divergent" {
		t.Errorf("wire trend_consistency = %q, want \"divergent\"", got)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/7)
	}
	w := makeWindow(t, closes)
	b := newBuilder(t, forecast.SeededGaussianFactory(99, forecast.DefaultNoiseSigma))

	a, err := b.Build(context.Background(), w, 30)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	c, err := b.Build(context.Background(), w, 30)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ja, _ := a.JSON()
	jc, _ := c.JSON()
	if string(ja) != string(jc) {
		t.Error("identical inputs produced different reports")
	}
}

// ────────────────────────────────────────────────────────────────
// JSON contract
// ────────────────────────────────────────────────────────────────

func TestReport_JSONFields(t *testing.T) {
	r, err := newBuilder(t, nil).Build(context.Background(), makeWindow(t, constant(25, 20)), 5)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := r.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"symbol", "horizon", "generated_at", "predictions", "historical_data", "forecast_dates", "metrics", "trend_comparison", "moving_averages", "summary"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}

	row := doc["historical_data"].([]any)[0].(map[string]any)
	for _, key := range []string{"date", "price", "volume", "ma20", "ma50", "ma100", "ma200", "rsi", "bb_upper", "bb_lower", "volatility", "daily_return"} {
		if _, ok := row[key]; !ok {
			t.Errorf("historical row missing %q", key)
		}
	}
	if row["ma20"] != nil {
		t.Errorf("undefined ma20 should encode as null, got %v", row["ma20"])
	}
	if row["date"] != "2024-01-01" {
		t.Errorf("date = %v", row["date"])
	}

	tc := doc["trend_comparison"].(map[string]any)
	for _, key := range []string{"historical_trend_30d", "historical_trend_60d", "historical_trend_90d", "predicted_trend", "comparison"} {
		if _, ok := tc[key]; !ok {
			t.Errorf("trend_comparison missing %q", key)
		}
	}
	if dir := tc["predicted_trend"].(map[string]any)["direction"]; dir != "downward" {
		t.Errorf("flat forecast direction = %v", dir)
	}

	ma := doc["moving_averages"].(map[string]any)
	if ma["ma200"] != nil || ma["current_vs_ma200"] != nil {
		t.Errorf("ma200 should be null: %v", ma)
	}

	back, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if back.Symbol != "ACME" || !back.GeneratedAt.Equal(fixedNow) || len(back.HistoricalData) != 25 {
		t.Errorf("decoded report = %+v", back)
	}
}
