// Package calendar answers trading-day questions for daily bars: weekends
// and a configured holiday list are non-trading days.
package calendar

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// maxGap bounds the search for the next trading day (weekends + holiday runs).
const maxGap = 30

// Calendar is an immutable trading calendar. Safe for concurrent use.
type Calendar struct {
	holidays map[string]bool
}

// New creates a calendar with the given holiday dates (time of day ignored).
func New(holidays []time.Time) *Calendar {
	set := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		set[dateKey(h)] = true
	}
	return &Calendar{holidays: set}
}

// ParseHolidays parses "2006-01-02" dates, skipping blanks.
func ParseHolidays(list []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("parse holiday %q: %w", s, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// IsHoliday returns true if the date is a configured holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	return c.holidays[dateKey(t)]
}

// IsWeekday returns true if t is Mon–Fri.
func IsWeekday(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	return IsWeekday(t) && !c.IsHoliday(t)
}

// NextTradingDay returns the first trading day strictly after t.
// Falls back to the next calendar day if none is found within maxGap days.
func (c *Calendar) NextTradingDay(t time.Time) time.Time {
	d := day(t).AddDate(0, 0, 1)
	for i := 0; i < maxGap; i++ {
		if c.IsTradingDay(d) {
			return d
		}
		d = d.AddDate(0, 0, 1)
	}
	return day(t).AddDate(0, 0, 1)
}

// Dates returns the n trading days following last.
func (c *Calendar) Dates(last time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	d := day(last)
	for i := range out {
		d = c.NextTradingDay(d)
		out[i] = d
	}
	return out
}

func day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func dateKey(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
