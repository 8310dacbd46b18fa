package indicator

import "github.com/guregu/null/v5"

// DailyReturn tracks the simple return close[i]/close[i-1] - 1.
// The first price and any price following a zero close have no return.
type DailyReturn struct {
	seen    bool
	prev    float64
	current null.Float
}

// NewDailyReturn creates a daily return tracker.
func NewDailyReturn() *DailyReturn { return &DailyReturn{} }

func (d *DailyReturn) Name() string { return "RETURN_1" }

func (d *DailyReturn) Update(price float64) {
	switch {
	case !d.seen:
		d.current = null.Float{}
	case d.prev == 0:
		d.current = null.Float{}
	default:
		d.current = null.FloatFrom(price/d.prev - 1)
	}
	d.seen = true
	d.prev = price
}

func (d *DailyReturn) Ready() bool { return d.current.Valid }

func (d *DailyReturn) Value() null.Float { return d.current }
