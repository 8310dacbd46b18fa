// Package csvbars reads daily OHLCV bars from CSV files with a header row.
//
// Columns are matched by header name, case-insensitively: date and close are
// required; open, high, low and volume are optional. Extra columns are ignored.
package csvbars

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"forecast-engine/internal/model"
)

// Accepted date layouts, tried in order.
var dateLayouts = []string{
	model.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
}

type columns struct {
	date, open, high, low, close, volume int
}

// ReadFile reads bars from the CSV file at path.
func ReadFile(path string) ([]model.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	obs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obs, nil
}

// Read parses bars from r. Rows are returned in file order; ordering and
// duplicate checks are left to model.NewWindow.
func Read(r io.Reader) ([]model.Observation, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, model.NewInputError("csv", "empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var obs []model.Observation
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}
		o, err := parseRecord(rec, cols)
		if err != nil {
			return nil, model.NewInputError("csv", "line %d: %v", line, err)
		}
		obs = append(obs, o)
	}
	if len(obs) == 0 {
		return nil, model.NewInputError("csv", "no data rows")
	}
	return obs, nil
}

func mapHeader(header []string) (columns, error) {
	cols := columns{date: -1, open: -1, high: -1, low: -1, close: -1, volume: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "date", "datetime", "timestamp":
			cols.date = i
		case "open":
			cols.open = i
		case "high":
			cols.high = i
		case "low":
			cols.low = i
		case "close", "price":
			cols.close = i
		case "volume":
			cols.volume = i
		}
	}
	if cols.date < 0 || cols.close < 0 {
		return cols, model.NewInputError("csv", "header needs date and close columns, got %v", header)
	}
	return cols, nil
}

func parseRecord(rec []string, cols columns) (model.Observation, error) {
	var o model.Observation
	var err error

	if o.Date, err = parseDate(field(rec, cols.date)); err != nil {
		return o, err
	}
	if o.Close, err = parseFloat("close", field(rec, cols.close), true); err != nil {
		return o, err
	}
	if o.Open, err = parseFloat("open", field(rec, cols.open), false); err != nil {
		return o, err
	}
	if o.High, err = parseFloat("high", field(rec, cols.high), false); err != nil {
		return o, err
	}
	if o.Low, err = parseFloat("low", field(rec, cols.low), false); err != nil {
		return o, err
	}
	vol, err := parseFloat("volume", field(rec, cols.volume), false)
	if err != nil {
		return o, err
	}
	// Some exports write volume as a float ("1234.0").
	o.Volume = int64(math.Round(vol))
	return o, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			// Keep the calendar day the exchange reported, not its UTC shift.
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseFloat(name, s string, required bool) (float64, error) {
	if s == "" {
		if required {
			return 0, fmt.Errorf("missing %s", name)
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q", name, s)
	}
	return v, nil
}
