// Package trend estimates linear trend and dispersion over a price sequence.
// Every function is pure and may be applied to any sub-window, historical or
// forecast.
package trend

import (
	"fmt"
	"math"

	"github.com/guregu/null/v5"
)

// Direction classifies the sign of a slope.
type Direction int

const (
	Down Direction = iota // slope <= 0
	Up                    // slope > 0
)

func (d Direction) String() string {
	if d == Up {
		return "upward"
	}
	return "downward"
}

// MarshalText renders the direction as "upward" or "downward".
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses "upward" or "downward".
func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "upward":
		*d = Up
	case "downward":
		*d = Down
	default:
		return fmt.Errorf("unknown trend direction %q", b)
	}
	return nil
}

// DirectionOf returns Up iff slope > 0. A flat slope counts as Down.
func DirectionOf(slope float64) Direction {
	if slope > 0 {
		return Up
	}
	return Down
}

// Stat summarizes a contiguous window.
type Stat struct {
	Slope      float64   `json:"slope"`
	Direction  Direction `json:"direction"`
	AvgPrice   float64   `json:"avg_price"`
	Volatility float64   `json:"volatility"` // population stddev of the window
}

// Compute returns the trend statistics of values.
// Empty input yields a zero Stat.
func Compute(values []float64) Stat {
	if len(values) == 0 {
		return Stat{Direction: Down}
	}
	slope := Slope(values)
	return Stat{
		Slope:      slope,
		Direction:  DirectionOf(slope),
		AvgPrice:   Mean(values),
		Volatility: PopStdDev(values),
	}
}

// Slope returns the ordinary least squares slope of values against their
// index 0..n-1. Fewer than two points, or a zero x-variance, yield 0.
func Slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	xMean := (n - 1) / 2
	yMean := Mean(values)

	var num, den float64
	for i, y := range values {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Mean returns the arithmetic mean, 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// PopStdDev returns the population (n denominator) standard deviation.
func PopStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return math.Sqrt(variance(values, float64(len(values))))
}

// SampleStdDev returns the n-1 standard deviation, invalid below two values.
func SampleStdDev(values []float64) null.Float {
	if len(values) < 2 {
		return null.Float{}
	}
	return null.FloatFrom(math.Sqrt(variance(values, float64(len(values)-1))))
}

func variance(values []float64, denom float64) float64 {
	m := Mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return ss / denom
}

// CoefficientOfVariation returns PopStdDev/Mean × 100.
// It is invalid for empty input or a zero mean.
func CoefficientOfVariation(values []float64) null.Float {
	if len(values) == 0 {
		return null.Float{}
	}
	m := Mean(values)
	if m == 0 {
		return null.Float{}
	}
	return null.FloatFrom(PopStdDev(values) / m * 100)
}

// Consistent reports whether two slopes point the same way, with a flat
// slope counted as non-positive.
func Consistent(a, b float64) bool {
	return DirectionOf(a) == DirectionOf(b)
}
