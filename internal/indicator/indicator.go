// Package indicator provides technical indicator calculations over a daily
// close series.
//
// All indicators implement the Indicator interface and are fed one value at a
// time, oldest first. A value reported after the i-th update therefore depends
// only on inputs 0..i; nothing looks ahead.
package indicator

import "github.com/guregu/null/v5"

// Indicator is the interface for all rolling indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_20", "RSI_14").
	Name() string

	// Update feeds the next value and recalculates.
	Update(v float64)

	// Value returns the current value, invalid until Ready.
	Value() null.Float

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// window is a fixed-size circular buffer of the most recent values.
// Slots pushed with ok=false are gaps; a window holding a gap has no value.
type window struct {
	buf   []float64
	ok    []bool
	idx   int // next write position
	count int // total values received
	gaps  int // gaps currently held
}

func newWindow(size int) *window {
	return &window{
		buf: make([]float64, size),
		ok:  make([]bool, size),
	}
}

func (w *window) push(v float64, ok bool) {
	if w.count >= len(w.buf) && !w.ok[w.idx] {
		w.gaps--
	}
	w.buf[w.idx] = v
	w.ok[w.idx] = ok
	if !ok {
		w.gaps++
	}
	w.idx = (w.idx + 1) % len(w.buf)
	w.count++
}

// full returns true once size values have been pushed.
func (w *window) full() bool { return w.count >= len(w.buf) }

// usable returns true when the window is full and holds no gaps.
func (w *window) usable() bool { return w.full() && w.gaps == 0 }

// sum is recomputed from the buffer on every call so that a window of exact
// zeros sums to exactly zero.
func (w *window) sum() float64 {
	s := 0.0
	for _, v := range w.buf {
		s += v
	}
	return s
}

func (w *window) mean() float64 {
	return w.sum() / float64(len(w.buf))
}

// sampleStd returns the n-1 standard deviation of the buffer.
func (w *window) sampleStd() float64 {
	n := len(w.buf)
	if n < 2 {
		return 0
	}
	m := w.mean()
	ss := 0.0
	for _, v := range w.buf {
		d := v - m
		ss += d * d
	}
	return sqrt(ss / float64(n-1))
}
