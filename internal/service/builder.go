package service

import (
	"fmt"

	"forecast-engine/config"
	"forecast-engine/internal/calendar"
	"forecast-engine/internal/forecast"
	"forecast-engine/internal/indicator"
	"forecast-engine/internal/report"
)

// NewReportBuilder wires the indicator engine and rolling-average forecaster
// described by cfg: seeded Gaussian noise unless disabled, and trading-day
// forecast dates when enabled.
func NewReportBuilder(cfg *config.Config, opts ...report.Option) (*report.Builder, error) {
	engine, err := indicator.NewEngine(indicator.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("indicator engine: %w", err)
	}

	noise := forecast.SeededGaussianFactory(cfg.NoiseSeed, forecast.DefaultNoiseSigma)
	if cfg.NoiseDisabled {
		noise = forecast.NoNoiseFactory
	}

	var dates forecast.DateStepper = forecast.CalendarDays{}
	if cfg.TradingDays {
		holidays, err := cfg.HolidayDates()
		if err != nil {
			return nil, err
		}
		dates = calendar.New(holidays)
	}

	fc, err := forecast.NewRollingAverage(forecast.DefaultRollingConfig(), noise, dates)
	if err != nil {
		return nil, fmt.Errorf("forecaster: %w", err)
	}
	return report.NewBuilder(engine, fc, opts...)
}
