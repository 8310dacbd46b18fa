package model

import (
	"math"
)

// MaxObservations caps a Window at roughly ten years of daily bars (with slack
// for exchanges that trade on more than 252 days a year).
const MaxObservations = 3650

// Window is an ordered, validated series of daily observations for one symbol.
// It owns a private copy of its observations; accessors never expose the
// backing slice for mutation.
type Window struct {
	symbol string
	obs    []Observation
}

// NewWindow validates obs and returns a Window over a copy of it.
// Dates are normalized to UTC midnight and must be strictly increasing.
func NewWindow(symbol string, obs []Observation) (Window, error) {
	if len(obs) == 0 {
		return Window{}, NewInputError("series", "empty series for %q", symbol)
	}
	if len(obs) > MaxObservations {
		return Window{}, NewInputError("series", "%d observations exceeds limit of %d", len(obs), MaxObservations)
	}

	cp := make([]Observation, len(obs))
	for i, o := range obs {
		if err := validateObservation(i, o); err != nil {
			return Window{}, err
		}
		o.Date = Day(o.Date)
		if i > 0 && !o.Date.After(cp[i-1].Date) {
			if o.Date.Equal(cp[i-1].Date) {
				return Window{}, NewInputError("series", "duplicate date %s at index %d", o.DateKey(), i)
			}
			return Window{}, NewInputError("series", "date %s at index %d is not after %s", o.DateKey(), i, cp[i-1].DateKey())
		}
		cp[i] = o
	}
	return Window{symbol: symbol, obs: cp}, nil
}

func validateObservation(i int, o Observation) error {
	if o.Date.IsZero() {
		return NewInputError("date", "missing date at index %d", i)
	}
	if !finiteNonNegative(o.Close) {
		return NewInputError("close", "close %v at index %d must be finite and non-negative", o.Close, i)
	}
	for _, p := range [...]float64{o.Open, o.High, o.Low} {
		if !finiteNonNegative(p) {
			return NewInputError("price", "price %v at index %d must be finite and non-negative", p, i)
		}
	}
	if o.Volume < 0 {
		return NewInputError("volume", "negative volume %d at index %d", o.Volume, i)
	}
	return nil
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Symbol returns the ticker the window belongs to.
func (w Window) Symbol() string { return w.symbol }

// Len returns the number of observations.
func (w Window) Len() int { return len(w.obs) }

// At returns the i-th observation.
func (w Window) At(i int) Observation { return w.obs[i] }

// Last returns the most recent observation. The window is never empty.
func (w Window) Last() Observation { return w.obs[len(w.obs)-1] }

// Observations returns a copy of all observations, oldest first.
func (w Window) Observations() []Observation {
	cp := make([]Observation, len(w.obs))
	copy(cp, w.obs)
	return cp
}

// Closes returns a fresh slice of close prices, oldest first.
func (w Window) Closes() []float64 {
	closes := make([]float64, len(w.obs))
	for i, o := range w.obs {
		closes[i] = o.Close
	}
	return closes
}

// TailCloses returns the last n close prices (all of them when n exceeds Len).
func (w Window) TailCloses(n int) []float64 {
	if n <= 0 {
		return nil
	}
	closes := w.Closes()
	if n < len(closes) {
		return closes[len(closes)-n:]
	}
	return closes
}

// Tail returns a window over the last n observations (at least one).
func (w Window) Tail(n int) Window {
	if n < 1 {
		n = 1
	}
	if n >= len(w.obs) {
		return w
	}
	return Window{symbol: w.symbol, obs: w.obs[len(w.obs)-n:]}
}
