// Package service orchestrates report builds: it loads series from the store,
// consults the report cache, builds what is missing with a bounded worker
// pool, and reruns on a cron schedule.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"forecast-engine/config"
	"forecast-engine/internal/forecast"
	"forecast-engine/internal/logger"
	"forecast-engine/internal/metrics"
	"forecast-engine/internal/model"
	"forecast-engine/internal/notification"
	"forecast-engine/internal/report"
	redisstore "forecast-engine/internal/store/redis"
)

// Store is the series store the service reads from and archives into.
type Store interface {
	model.SeriesSource
	model.SeriesWriter
	ListSymbols(ctx context.Context) ([]string, error)
	ArchiveReport(ctx context.Context, symbol string, horizon int, lastDay time.Time, data []byte) error
	LatestReport(ctx context.Context, symbol string, horizon int) ([]byte, error)
}

// ErrNotArchived is returned when no report was archived for a symbol and horizon.
var ErrNotArchived = errors.New("no archived report")

// Publisher is a ReportCache that can also announce fresh reports.
type Publisher interface {
	model.ReportCache
	Publish(ctx context.Context, key, latestKey string, data []byte, ttl time.Duration) error
}

// Subscriber is a cache that announces published report keys.
type Subscriber interface {
	Subscribe(ctx context.Context) *goredis.PubSub
}

// Deps are the collaborators of a Service. Cache may be nil.
type Deps struct {
	Store    Store
	Cache    model.ReportCache
	Metrics  *metrics.Metrics
	Health   *metrics.HealthStatus
	Logger   *slog.Logger
	Builder  *report.Builder       // nil builds one from the config
	Notifier notification.Notifier // nil disables alerts
}

// Outcome says how a report request was satisfied.
type Outcome string

const (
	OutcomeBuilt  Outcome = metrics.OutcomeBuilt
	OutcomeCached Outcome = metrics.OutcomeCached
)

// RunSummary counts the results of one batch run.
type RunSummary struct {
	Symbols  int
	Built    int
	Cached   int
	Failed   int
	Duration time.Duration
}

// Service is the top-level orchestrator of report builds.
type Service struct {
	cfg     config.Config
	store   Store
	cache   model.ReportCache
	builder *report.Builder
	prom    *metrics.Metrics
	health  *metrics.HealthStatus
	notify  notification.Notifier
	log     *slog.Logger
}

// New creates a Service. cfg must already be validated.
func New(cfg *config.Config, deps Deps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("service: store is required")
	}
	if deps.Metrics == nil {
		return nil, errors.New("service: metrics are required")
	}

	builder := deps.Builder
	if builder == nil {
		var err error
		if builder, err = NewReportBuilder(cfg); err != nil {
			return nil, err
		}
	}
	health := deps.Health
	if health == nil {
		health = metrics.NewHealthStatus()
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		cfg:     *cfg,
		store:   deps.Store,
		cache:   deps.Cache,
		builder: builder,
		prom:    deps.Metrics,
		health:  health,
		notify:  deps.Notifier,
		log:     log.With("component", "service"),
	}, nil
}

// Import validates obs as a series and writes it to the store.
func (s *Service) Import(ctx context.Context, symbol string, obs []model.Observation) (int, error) {
	w, err := model.NewWindow(symbol, obs)
	if err != nil {
		return 0, err
	}
	n, err := s.store.SaveObservations(ctx, symbol, w.Observations())
	s.prom.BarsImported.Add(float64(n))
	if err != nil {
		return n, err
	}
	s.log.Info("bars imported", "symbol", symbol, "rows", n,
		"from", w.At(0).DateKey(), "to", w.Last().DateKey())
	return n, nil
}

// Report returns the JSON report for symbol at horizon, from the cache when
// a report for the same last bar exists, otherwise freshly built.
func (s *Service) Report(ctx context.Context, symbol string, horizon int) ([]byte, Outcome, error) {
	ctx = logger.WithRequestID(ctx, logger.GenerateRequestID(symbol, time.Now()))
	log := s.log.With(logger.LogWithRequest(ctx)...).With("symbol", symbol, "horizon", horizon)

	if err := forecast.ValidateHorizon(horizon); err != nil {
		s.countFailure(err)
		return nil, "", err
	}
	w, err := s.store.LoadWindow(ctx, symbol, s.cfg.LookbackDays)
	if err != nil {
		s.countFailure(err)
		return nil, "", fmt.Errorf("load %s: %w", symbol, err)
	}
	s.prom.SeriesLength.Observe(float64(w.Len()))

	lastDay := w.Last().Date
	key := redisstore.ReportKey(symbol, horizon, lastDay)
	if data := s.cachedReport(ctx, log, key); data != nil {
		s.prom.ReportsTotal.WithLabelValues(metrics.OutcomeCached).Inc()
		log.Debug("report served from cache", "key", key)
		return data, OutcomeCached, nil
	}

	start := time.Now()
	r, err := s.builder.Build(ctx, w, horizon)
	if err != nil {
		s.countFailure(err)
		return nil, "", fmt.Errorf("build %s: %w", symbol, err)
	}
	data, err := r.JSON()
	if err != nil {
		s.countFailure(err)
		return nil, "", fmt.Errorf("encode %s: %w", symbol, err)
	}
	elapsed := time.Since(start)
	s.prom.BuildDur.Observe(elapsed.Seconds())
	s.prom.ReportsTotal.WithLabelValues(metrics.OutcomeBuilt).Inc()

	s.storeReport(ctx, log, symbol, horizon, key, data)
	if err := s.store.ArchiveReport(ctx, symbol, horizon, lastDay, data); err != nil {
		log.Warn("archive report failed", "error", err)
	}

	log.Info("report built",
		"observations", w.Len(),
		"last_day", w.Last().DateKey(),
		"predicted_price", r.Metrics.PredictedPrice,
		"trend", r.TrendComparison.Comparison.TrendConsistency,
		"duration", elapsed,
	)
	s.alertReversal(ctx, r)
	return data, OutcomeBuilt, nil
}

// alertReversal warns when the forecast trend disagrees with the last 30 days.
func (s *Service) alertReversal(ctx context.Context, r *report.Report) {
	tc := r.TrendComparison
	if tc.Comparison.TrendConsistency != report.Divergent {
		return
	}
	s.send(ctx, notification.Alert{
		Level:  notification.AlertWarning,
		Symbol: r.Symbol,
		Title:  fmt.Sprintf("%s trend reversal", r.Symbol),
		Message: fmt.Sprintf("30d trend %s, %dd forecast %s (momentum shift %.4f, predicted %.2f vs current %.2f)",
			tc.Historical30d.Direction, r.Horizon, tc.Predicted.Direction,
			tc.Comparison.MomentumShift, r.Metrics.PredictedPrice, r.Metrics.CurrentPrice),
	})
}

func (s *Service) send(ctx context.Context, alert notification.Alert) {
	if s.notify == nil {
		return
	}
	if err := s.notify.Send(ctx, alert); err != nil {
		s.log.Warn("alert delivery failed", "title", alert.Title, "error", err)
	}
}

// cachedReport returns the cached report or nil. Cache errors are logged and
// treated as a miss.
func (s *Service) cachedReport(ctx context.Context, log *slog.Logger, key string) []byte {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.GetReportJSON(ctx, key)
	if err != nil {
		s.prom.CacheErrors.WithLabelValues("get").Inc()
		log.Warn("cache get failed", "key", key, "error", err)
		return nil
	}
	if data == nil {
		s.prom.CacheMisses.Inc()
		return nil
	}
	s.prom.CacheHits.Inc()
	return data
}

func (s *Service) storeReport(ctx context.Context, log *slog.Logger, symbol string, horizon int, key string, data []byte) {
	if s.cache == nil {
		return
	}
	var err error
	if pub, ok := s.cache.(Publisher); ok {
		err = pub.Publish(ctx, key, redisstore.LatestKey(symbol, horizon), data, s.cfg.CacheTTL)
	} else {
		err = s.cache.SetReportJSON(ctx, key, data, s.cfg.CacheTTL)
	}
	if err != nil {
		s.prom.CacheErrors.WithLabelValues("set").Inc()
		log.Warn("cache set failed", "key", key, "error", err)
	}
}

func (s *Service) countFailure(err error) {
	outcome := metrics.OutcomeFailed
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		outcome = metrics.OutcomeInvalid
	case errors.Is(err, model.ErrSeriesNotFound):
		outcome = metrics.OutcomeMissing
	}
	s.prom.ReportsTotal.WithLabelValues(outcome).Inc()
}

// ArchivedReport returns the newest archived report JSON without building.
func (s *Service) ArchivedReport(ctx context.Context, symbol string, horizon int) ([]byte, error) {
	if err := forecast.ValidateHorizon(horizon); err != nil {
		return nil, err
	}
	data, err := s.store.LatestReport(ctx, symbol, horizon)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%s horizon %d: %w", symbol, horizon, ErrNotArchived)
	}
	return data, nil
}

// WatchReports logs every report key announced by the cache until ctx ends,
// passing each key to onUpdate when it is non-nil. It returns nil at once when
// the cache cannot announce reports.
func (s *Service) WatchReports(ctx context.Context, onUpdate func(key string)) error {
	sub, ok := s.cache.(Subscriber)
	if !ok {
		return nil
	}
	ps := sub.Subscribe(ctx)
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", redisstore.ReportsChannel, err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.log.Info("report published", "key", msg.Payload)
			if onUpdate != nil {
				onUpdate(msg.Payload)
			}
		}
	}
}

// Symbols returns the configured symbols, or every stored symbol when none
// are configured.
func (s *Service) Symbols(ctx context.Context) ([]string, error) {
	if len(s.cfg.Symbols) > 0 {
		return s.cfg.Symbols, nil
	}
	return s.store.ListSymbols(ctx)
}

// RunOnce builds the configured horizon for every symbol using at most
// cfg.Workers concurrent builds. A failing symbol is logged and counted; it
// does not stop the others. Only a failure to list symbols or a cancelled
// context is returned as an error.
func (s *Service) RunOnce(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	symbols, err := s.Symbols(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	sum := RunSummary{Symbols: len(symbols)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			_, outcome, err := s.Report(ctx, sym, s.cfg.Horizon)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				sum.Failed++
				s.log.Error("report failed", "symbol", sym, "error", err)
			case outcome == OutcomeCached:
				sum.Cached++
			default:
				sum.Built++
			}
			return nil
		})
	}
	g.Wait()

	sum.Duration = time.Since(start)
	s.prom.RunDur.Observe(sum.Duration.Seconds())
	s.prom.LastRunTime.SetToCurrentTime()
	s.health.RecordRun(time.Now(), sum.Failed)

	s.log.Info("batch run complete",
		"symbols", sum.Symbols,
		"built", sum.Built,
		"cached", sum.Cached,
		"failed", sum.Failed,
		"duration", sum.Duration,
	)
	if sum.Failed > 0 {
		s.send(ctx, notification.Alert{
			Level:   notification.AlertCritical,
			Title:   "report batch failures",
			Message: fmt.Sprintf("%d of %d symbols failed", sum.Failed, sum.Symbols),
		})
	}
	return sum, ctx.Err()
}
