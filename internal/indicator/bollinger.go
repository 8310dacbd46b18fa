package indicator

import (
	"strconv"

	"github.com/guregu/null/v5"
)

// Bollinger computes Bollinger bands: SMA(period) ± k × StdDev(period).
type Bollinger struct {
	period int
	k      float64
	mid    *SMA
	std    *StdDev
}

// NewBollinger creates Bollinger bands over period closes with width k.
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{
		period: period,
		k:      k,
		mid:    NewSMA(period),
		std:    NewStdDev(period),
	}
}

func (b *Bollinger) Name() string { return "BB_" + strconv.Itoa(b.period) }

func (b *Bollinger) Update(price float64) {
	b.mid.Update(price)
	b.std.Update(price)
}

func (b *Bollinger) Ready() bool { return b.mid.Ready() && b.std.Ready() }

// Value returns the middle band.
func (b *Bollinger) Value() null.Float { return b.mid.Value() }

// Upper returns the upper band.
func (b *Bollinger) Upper() null.Float { return b.band(1) }

// Lower returns the lower band.
func (b *Bollinger) Lower() null.Float { return b.band(-1) }

func (b *Bollinger) band(sign float64) null.Float {
	if !b.Ready() {
		return null.Float{}
	}
	mid := b.mid.Value().Float64
	sd := b.std.Value().Float64
	return null.FloatFrom(mid + sign*b.k*sd)
}
