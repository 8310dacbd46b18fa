package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the report pipeline from concrete storage
// implementations (SQLite, Redis).

// SeriesSource supplies the price history the analytics core runs on.
type SeriesSource interface {
	// LoadWindow returns the most recent lookback bars for symbol.
	// Returns ErrSeriesNotFound when no bars are stored.
	LoadWindow(ctx context.Context, symbol string, lookback int) (Window, error)
}

// SeriesWriter persists daily bars.
type SeriesWriter interface {
	// SaveObservations upserts bars for symbol and returns how many were written.
	SaveObservations(ctx context.Context, symbol string, obs []Observation) (int, error)
}

// ReportCache stores built reports as raw JSON.
// Using []byte avoids a model→report import cycle.
type ReportCache interface {
	// GetReportJSON returns nil, nil on a cache miss.
	GetReportJSON(ctx context.Context, key string) ([]byte, error)

	// SetReportJSON stores data under key for ttl (0 = no expiry).
	SetReportJSON(ctx context.Context, key string, data []byte, ttl time.Duration) error
}
