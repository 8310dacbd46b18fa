package indicator

import (
	"strconv"

	"github.com/guregu/null/v5"
)

// RSI calculates the Relative Strength Index from simple rolling means of
// gains and losses over the last period price deltas.
type RSI struct {
	period    int
	seen      bool
	prevClose float64
	gains     *window
	losses    *window
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{
		period: period,
		gains:  newWindow(period),
		losses: newWindow(period),
	}
}

func (r *RSI) Name() string { return "RSI_" + strconv.Itoa(r.period) }

func (r *RSI) Update(price float64) {
	if !r.seen {
		// First price: record it, no delta yet
		r.seen = true
		r.prevClose = price
		return
	}

	delta := price - r.prevClose
	r.prevClose = price

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}
	r.gains.push(gain, true)
	r.losses.push(loss, true)
}

// Ready returns true once period deltas (period+1 prices) have been seen.
func (r *RSI) Ready() bool { return r.losses.full() }

// Value returns 100 when the window has gains but no losses and 50 when the
// window is completely flat.
func (r *RSI) Value() null.Float {
	if !r.Ready() {
		return null.Float{}
	}
	return null.FloatFrom(rsiFromAverages(r.gains.mean(), r.losses.mean()))
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
