// Package metrics exposes Prometheus collectors, dependency health and the
// ops HTTP server (/metrics, /healthz) of the report service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Build outcomes recorded on ReportsTotal.
const (
	OutcomeBuilt   = "built"
	OutcomeCached  = "cached"
	OutcomeInvalid = "invalid"
	OutcomeMissing = "missing"
	OutcomeFailed  = "failed"
)

// Metrics holds all Prometheus metrics for the report service.
type Metrics struct {
	ReportsTotal *prometheus.CounterVec // labels: outcome
	BuildDur     prometheus.Histogram
	RunDur       prometheus.Histogram
	SeriesLength prometheus.Histogram

	// Cache
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors *prometheus.CounterVec // labels: op=get|set

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	// Store
	BarsImported prometheus.Counter
	LastRunTime  prometheus.Gauge
}

// NewMetrics creates all collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_reports_total",
			Help: "Report requests by outcome (built, cached, invalid, missing, failed)",
		}, []string{"outcome"}),
		BuildDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_report_build_duration_seconds",
			Help:    "Time to compute one report (indicators, forecast, trends)",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		RunDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_run_duration_seconds",
			Help:    "Wall time of one batch run over all symbols",
			Buckets: prometheus.DefBuckets,
		}),
		SeriesLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_series_length",
			Help:    "Observations per analyzed series",
			Buckets: []float64{10, 30, 60, 90, 200, 500, 1000, 3650},
		}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_cache_hits_total",
			Help: "Reports served from the Redis cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_cache_misses_total",
			Help: "Report cache lookups that found nothing",
		}),
		CacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_cache_errors_total",
			Help: "Report cache operations that failed (by op)",
		}, []string{"op"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forecast_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),

		BarsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_bars_imported_total",
			Help: "Daily bars written to the series store",
		}),
		LastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forecast_last_run_timestamp_seconds",
			Help: "Unix time the last batch run finished",
		}),
	}

	reg.MustRegister(
		m.ReportsTotal,
		m.BuildDur,
		m.RunDur,
		m.SeriesLength,
		m.CacheHits,
		m.CacheMisses,
		m.CacheErrors,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.BarsImported,
		m.LastRunTime,
	)

	return m
}
