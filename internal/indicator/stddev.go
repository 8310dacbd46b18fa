package indicator

import (
	"math"
	"strconv"

	"github.com/guregu/null/v5"
)

// StdDev calculates the rolling sample standard deviation (n-1 denominator).
type StdDev struct {
	period int
	win    *window
}

// NewStdDev creates a rolling standard deviation over period values.
func NewStdDev(period int) *StdDev {
	return &StdDev{
		period: period,
		win:    newWindow(period),
	}
}

func (s *StdDev) Name() string { return "STD_" + strconv.Itoa(s.period) }

func (s *StdDev) Update(v float64) { s.win.push(v, true) }

// UpdateMissing records a slot with no value. The indicator stays undefined
// until the gap has rolled out of the window.
func (s *StdDev) UpdateMissing() { s.win.push(0, false) }

func (s *StdDev) Ready() bool { return s.win.usable() }

func (s *StdDev) Value() null.Float {
	if !s.Ready() {
		return null.Float{}
	}
	return null.FloatFrom(s.win.sampleStd())
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}
