package model

import "time"

// DateLayout is the wire format for daily bar dates.
const DateLayout = "2006-01-02"

// Observation represents one daily OHLCV bar for a single symbol.
// Open, High and Low are optional and left at zero when the source omits them.
type Observation struct {
	Date   time.Time `json:"date"` // trading day (UTC midnight)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`  // required
	Volume int64     `json:"volume"` // shares traded
}

// Day truncates t to UTC midnight, the canonical key for a daily bar.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey returns the bar date formatted as "2006-01-02".
func (o Observation) DateKey() string {
	return o.Date.Format(DateLayout)
}
