package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"forecast-engine/internal/model"
)

// LoadWindow returns the most recent lookback bars for symbol as a Window,
// oldest first. lookback <= 0 loads up to model.MaxObservations bars.
func (s *Store) LoadWindow(ctx context.Context, symbol string, lookback int) (model.Window, error) {
	if lookback <= 0 || lookback > model.MaxObservations {
		lookback = model.MaxObservations
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT day, open, high, low, close, volume
		FROM daily_bars
		WHERE symbol = ?
		ORDER BY day DESC
		LIMIT ?
	`, symbol, lookback)
	if err != nil {
		return model.Window{}, fmt.Errorf("sqlite query daily_bars: %w", err)
	}
	defer rows.Close()

	var obs []model.Observation
	for rows.Next() {
		var o model.Observation
		var day int64
		if err := rows.Scan(&day, &o.Open, &o.High, &o.Low, &o.Close, &o.Volume); err != nil {
			return model.Window{}, fmt.Errorf("sqlite scan daily_bars: %w", err)
		}
		o.Date = time.Unix(day, 0).UTC()
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return model.Window{}, fmt.Errorf("sqlite iterate daily_bars: %w", err)
	}
	if len(obs) == 0 {
		return model.Window{}, fmt.Errorf("%s: %w", symbol, model.ErrSeriesNotFound)
	}

	// Rows arrive newest first.
	for i, j := 0, len(obs)-1; i < j; i, j = i+1, j-1 {
		obs[i], obs[j] = obs[j], obs[i]
	}
	return model.NewWindow(symbol, obs)
}

// ListSymbols returns every symbol with stored bars, sorted.
func (s *Store) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM daily_bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("sqlite scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// LastDay returns the most recent stored bar date for symbol.
// The zero time means no bars are stored.
func (s *Store) LastDay(ctx context.Context, symbol string) (time.Time, error) {
	var day sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(day) FROM daily_bars WHERE symbol = ?`, symbol,
	).Scan(&day)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite last day: %w", err)
	}
	if !day.Valid {
		return time.Time{}, nil
	}
	return time.Unix(day.Int64, 0).UTC(), nil
}

// LatestReport returns the most recently archived report for
// (symbol, horizon), or nil when none exists.
func (s *Store) LatestReport(ctx context.Context, symbol string, horizon int) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM report_archive
		WHERE symbol = ? AND horizon = ?
		ORDER BY id DESC
		LIMIT 1
	`, symbol, horizon).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite read report: %w", err)
	}
	return []byte(data), nil
}
