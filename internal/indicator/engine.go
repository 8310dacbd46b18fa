package indicator

import (
	"fmt"

	"github.com/guregu/null/v5"

	"forecast-engine/internal/model"
)

// Moving average periods reported for every observation.
const (
	PeriodMA20  = 20
	PeriodMA50  = 50
	PeriodMA100 = 100
	PeriodMA200 = 200
)

// Set holds the indicator values derived for one observation.
// Invalid fields mean there was not enough history at that index.
type Set struct {
	MA20        null.Float `json:"ma20"`
	MA50        null.Float `json:"ma50"`
	MA100       null.Float `json:"ma100"`
	MA200       null.Float `json:"ma200"`
	DailyReturn null.Float `json:"daily_return"`
	Volatility  null.Float `json:"volatility"`
	BBUpper     null.Float `json:"bb_upper"`
	BBLower     null.Float `json:"bb_lower"`
	RSI         null.Float `json:"rsi"`
}

// Config specifies the tunable windows of the engine.
type Config struct {
	VolatilityPeriod int     // trailing daily returns in the volatility stddev
	BollingerPeriod  int     // closes in the Bollinger SMA and stddev
	BollingerK       float64 // band width in standard deviations
	RSIPeriod        int     // price deltas averaged by RSI
}

// DefaultConfig returns the standard 20/20/2/14 configuration.
func DefaultConfig() Config {
	return Config{
		VolatilityPeriod: 20,
		BollingerPeriod:  20,
		BollingerK:       2,
		RSIPeriod:        14,
	}
}

// Validate checks that every window can produce a value.
func (c Config) Validate() error {
	if c.VolatilityPeriod < 2 {
		return fmt.Errorf("invalid volatility period=%d: must be at least 2", c.VolatilityPeriod)
	}
	if c.BollingerPeriod < 2 {
		return fmt.Errorf("invalid bollinger period=%d: must be at least 2", c.BollingerPeriod)
	}
	if c.BollingerK <= 0 {
		return fmt.Errorf("invalid bollinger k=%v: must be positive", c.BollingerK)
	}
	if c.RSIPeriod <= 0 {
		return fmt.Errorf("invalid RSI period=%d: must be positive", c.RSIPeriod)
	}
	return nil
}

// Engine computes the full indicator set over a window.
// It holds only configuration: Compute allocates fresh indicator state per
// call, so one Engine may serve concurrent builds.
type Engine struct {
	cfg Config
}

// NewEngine creates an indicator engine with the given config.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Compute returns one Set per observation, aligned with the window.
// The window is only read.
func (e *Engine) Compute(w model.Window) []Set {
	ma20 := NewSMA(PeriodMA20)
	ma50 := NewSMA(PeriodMA50)
	ma100 := NewSMA(PeriodMA100)
	ma200 := NewSMA(PeriodMA200)
	ret := NewDailyReturn()
	vol := NewStdDev(e.cfg.VolatilityPeriod)
	bb := NewBollinger(e.cfg.BollingerPeriod, e.cfg.BollingerK)
	rsi := NewRSI(e.cfg.RSIPeriod)

	sets := make([]Set, w.Len())
	for i := 0; i < w.Len(); i++ {
		price := w.At(i).Close

		for _, ind := range []Indicator{ma20, ma50, ma100, ma200, ret, bb, rsi} {
			ind.Update(price)
		}

		// Volatility is a stddev of returns; index 0 has no return at all.
		if r := ret.Value(); r.Valid {
			vol.Update(r.Float64)
		} else if i > 0 {
			vol.UpdateMissing()
		}

		sets[i] = Set{
			MA20:        ma20.Value(),
			MA50:        ma50.Value(),
			MA100:       ma100.Value(),
			MA200:       ma200.Value(),
			DailyReturn: ret.Value(),
			Volatility:  vol.Value(),
			BBUpper:     bb.Upper(),
			BBLower:     bb.Lower(),
			RSI:         rsi.Value(),
		}
	}
	return sets
}
