package indicator

import (
	"strconv"

	"github.com/guregu/null/v5"
)

// SMA calculates Simple Moving Average over a rolling window.
type SMA struct {
	period int
	win    *window
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		win:    newWindow(period),
	}
}

func (s *SMA) Name() string { return "SMA_" + strconv.Itoa(s.period) }

func (s *SMA) Update(price float64) { s.win.push(price, true) }

func (s *SMA) Ready() bool { return s.win.full() }

func (s *SMA) Value() null.Float {
	if !s.Ready() {
		return null.Float{}
	}
	return null.FloatFrom(s.win.mean())
}
