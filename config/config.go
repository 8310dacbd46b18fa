// Package config loads service configuration from an optional .env file, an
// optional YAML file and environment variables, in that order of precedence
// (environment wins), then fills defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"forecast-engine/internal/calendar"
	"forecast-engine/internal/forecast"
	"forecast-engine/internal/logger"
	"forecast-engine/internal/model"
)

// Config holds all application configuration.
type Config struct {
	// Infrastructure
	RedisAddr     string `yaml:"redis_addr"` // empty disables the report cache
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	SQLitePath    string `yaml:"sqlite_path"`
	MetricsAddr   string `yaml:"metrics_addr"`

	// Reports
	Symbols      []string      `yaml:"symbols"` // empty means every stored symbol
	Horizon      int           `yaml:"horizon"`
	LookbackDays int           `yaml:"lookback_days"` // bars loaded per symbol
	Workers      int           `yaml:"workers"`
	Schedule     string        `yaml:"schedule"` // standard 5-field cron spec
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	ArchiveKeep  int           `yaml:"archive_keep"`

	// Forecast
	NoiseSeed     int64    `yaml:"noise_seed"`
	NoiseDisabled bool     `yaml:"noise_disabled"`
	TradingDays   bool     `yaml:"trading_days"` // forecast dates skip weekends and holidays
	Holidays      []string `yaml:"holidays"`     // "2006-01-02"

	WebhookURL string `yaml:"webhook_url"` // alert endpoint; empty logs alerts only
	LogLevel   string `yaml:"log_level"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		SQLitePath:   "data/bars.db",
		MetricsAddr:  ":9090",
		Horizon:      30,
		LookbackDays: 504, // two years of trading days
		Workers:      4,
		Schedule:     "30 18 * * 1-5", // weekday evenings after the close
		CacheTTL:     24 * time.Hour,
		ArchiveKeep:  10,
		NoiseSeed:    42,
		LogLevel:     "info",
	}
}

// Load builds the configuration. A missing .env or YAML file is not an
// error; an empty path skips the YAML file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv() error {
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.Schedule = getEnv("SCHEDULE", c.Schedule)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.WebhookURL = getEnv("WEBHOOK_URL", c.WebhookURL)

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = splitList(v)
	}
	if v := os.Getenv("HOLIDAYS"); v != "" {
		c.Holidays = splitList(v)
	}

	var err error
	if c.RedisDB, err = getEnvInt("REDIS_DB", c.RedisDB); err != nil {
		return err
	}
	if c.Horizon, err = getEnvInt("HORIZON", c.Horizon); err != nil {
		return err
	}
	if c.LookbackDays, err = getEnvInt("LOOKBACK_DAYS", c.LookbackDays); err != nil {
		return err
	}
	if c.Workers, err = getEnvInt("WORKERS", c.Workers); err != nil {
		return err
	}
	if c.ArchiveKeep, err = getEnvInt("ARCHIVE_KEEP", c.ArchiveKeep); err != nil {
		return err
	}
	if v := os.Getenv("NOISE_SEED"); v != "" {
		if c.NoiseSeed, err = strconv.ParseInt(v, 10, 64); err != nil {
			return fmt.Errorf("config NOISE_SEED=%q: %w", v, err)
		}
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if c.CacheTTL, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("config CACHE_TTL=%q: %w", v, err)
		}
	}
	if c.NoiseDisabled, err = getEnvBool("NOISE_DISABLED", c.NoiseDisabled); err != nil {
		return err
	}
	if c.TradingDays, err = getEnvBool("TRADING_DAYS", c.TradingDays); err != nil {
		return err
	}
	return nil
}

// Validate checks ranges and that the schedule, holidays and log level parse.
func (c *Config) Validate() error {
	var errs []error
	if c.SQLitePath == "" {
		errs = append(errs, errors.New("sqlite_path is required"))
	}
	if err := forecast.ValidateHorizon(c.Horizon); err != nil {
		errs = append(errs, err)
	}
	if c.LookbackDays < 0 || c.LookbackDays > model.MaxObservations {
		errs = append(errs, fmt.Errorf("lookback_days=%d must be within 0..%d", c.LookbackDays, model.MaxObservations))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers=%d must be positive", c.Workers))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("cache_ttl=%s must not be negative", c.CacheTTL))
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("schedule %q: %w", c.Schedule, err))
	}
	if _, err := c.HolidayDates(); err != nil {
		errs = append(errs, err)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// HolidayDates parses Holidays.
func (c *Config) HolidayDates() ([]time.Time, error) {
	return calendar.ParseHolidays(c.Holidays)
}

// Level returns the parsed log level, info when invalid.
func (c *Config) Level() slog.Level {
	lvl, _ := logger.ParseLevel(c.LogLevel)
	return lvl
}

// CacheEnabled reports whether a Redis address is configured.
func (c *Config) CacheEnabled() bool { return c.RedisAddr != "" }

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("config %s=%q: %w", key, v, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("config %s=%q: %w", key, v, err)
	}
	return b, nil
}
