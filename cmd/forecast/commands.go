package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"forecast-engine/config"
	"forecast-engine/internal/csvbars"
	"forecast-engine/internal/logger"
	"forecast-engine/internal/metrics"
	"forecast-engine/internal/model"
	"forecast-engine/internal/service"
	redisstore "forecast-engine/internal/store/redis"
	sqlitestore "forecast-engine/internal/store/sqlite"
)

// cli holds state shared by all subcommands.
type cli struct {
	cfgFile  string
	dbPath   string
	logLevel string

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "forecast",
		Short: "Daily series analytics and forecast reports",
		Long: `forecast computes technical indicators, a short-horizon price forecast and a
trend comparison for daily OHLCV series.

Examples:
  forecast import --symbol ACME acme.csv     # store bars from a CSV file
  forecast report --symbol ACME              # report from stored bars
  forecast report --symbol ACME --archived   # newest archived report
  forecast report --csv acme.csv -n 10       # report straight from a CSV file
  forecast symbols                           # list stored symbols`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database path (overrides SQLITE_PATH)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(c.importCmd(), c.reportCmd(), c.symbolsCmd())
	return root
}

func (c *cli) init(stderr io.Writer) error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	if c.dbPath != "" {
		cfg.SQLitePath = c.dbPath
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	c.cfg = cfg
	c.log = logger.New(stderr, "forecast", cfg.Level())
	return nil
}

func (c *cli) openStore() (*sqlitestore.Store, error) {
	if dir := filepath.Dir(c.cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return sqlitestore.Open(sqlitestore.Config{
		DBPath:      c.cfg.SQLitePath,
		ArchiveKeep: c.cfg.ArchiveKeep,
		Logger:      c.log,
	})
}

// newService wires a service over the store. The report cache is used only
// when Redis is configured and reachable.
func (c *cli) newService(ctx context.Context, store *sqlitestore.Store) (*service.Service, func(), error) {
	deps := service.Deps{
		Store:   store,
		Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
		Logger:  c.log,
	}
	cleanup := func() {}
	if c.cfg.CacheEnabled() {
		cache, err := redisstore.New(ctx, redisstore.Config{
			Addr:     c.cfg.RedisAddr,
			Password: c.cfg.RedisPassword,
			DB:       c.cfg.RedisDB,
			Logger:   c.log,
		})
		if err != nil {
			c.log.Warn("report cache unavailable, continuing without it", "error", err)
		} else {
			deps.Cache = cache
			cleanup = func() { cache.Close() }
		}
	}
	svc, err := service.New(c.cfg, deps)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func (c *cli) importCmd() *cobra.Command {
	var symbol string
	cmd := &cobra.Command{
		Use:   "import --symbol SYMBOL FILE.csv",
		Short: "Import daily bars from a CSV file into the series store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if symbol == "" {
				symbol = symbolFromPath(args[0])
			}
			obs, err := csvbars.ReadFile(args[0])
			if err != nil {
				return err
			}

			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			svc, cleanup, err := c.newService(ctx, store)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := svc.Import(ctx, symbol, obs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d bars for %s into %s\n", n, symbol, c.cfg.SQLitePath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "symbol to store the bars under (default: file name)")
	return cmd
}

func (c *cli) reportCmd() *cobra.Command {
	var (
		symbol      string
		csvPath     string
		horizon     int
		seed        int64
		noNoise     bool
		tradingDays bool
		archived    bool
		pretty      bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build a report and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("horizon") {
				c.cfg.Horizon = horizon
			}
			if cmd.Flags().Changed("seed") {
				c.cfg.NoiseSeed = seed
			}
			if noNoise {
				c.cfg.NoiseDisabled = true
			}
			if tradingDays {
				c.cfg.TradingDays = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var data []byte
			var err error
			switch {
			case archived && csvPath != "":
				return errors.New("--archived reads the store and cannot be combined with --csv")
			case archived && symbol != "":
				data, err = c.archivedReport(ctx, symbol)
			case csvPath != "":
				data, err = c.reportFromCSV(ctx, csvPath, symbol)
			case symbol != "":
				data, err = c.reportFromStore(ctx, symbol)
			default:
				return errors.New("report needs --symbol or --csv")
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data, pretty)
		},
	}
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "", "stored symbol (or label for --csv)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "read bars from this CSV file instead of the store")
	cmd.Flags().IntVarP(&horizon, "horizon", "n", 30, "forecast horizon in days (5-60)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "noise seed")
	cmd.Flags().BoolVar(&noNoise, "no-noise", false, "disable forecast noise")
	cmd.Flags().BoolVar(&tradingDays, "trading-days", false, "date forecasts on trading days only")
	cmd.Flags().BoolVar(&archived, "archived", false, "print the newest archived report instead of building one")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output")
	return cmd
}

func (c *cli) reportFromCSV(ctx context.Context, path, symbol string) ([]byte, error) {
	if symbol == "" {
		symbol = symbolFromPath(path)
	}
	obs, err := csvbars.ReadFile(path)
	if err != nil {
		return nil, err
	}
	w, err := model.NewWindow(symbol, obs)
	if err != nil {
		return nil, err
	}
	b, err := service.NewReportBuilder(c.cfg)
	if err != nil {
		return nil, err
	}
	r, err := b.Build(ctx, w, c.cfg.Horizon)
	if err != nil {
		return nil, err
	}
	return r.JSON()
}

func (c *cli) reportFromStore(ctx context.Context, symbol string) ([]byte, error) {
	store, err := c.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	svc, cleanup, err := c.newService(ctx, store)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	data, outcome, err := svc.Report(ctx, symbol, c.cfg.Horizon)
	if err != nil {
		return nil, err
	}
	c.log.Debug("report ready", "symbol", symbol, "outcome", outcome)
	return data, nil
}

func (c *cli) archivedReport(ctx context.Context, symbol string) ([]byte, error) {
	store, err := c.openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	svc, err := service.New(c.cfg, service.Deps{
		Store:   store,
		Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
		Logger:  c.log,
	})
	if err != nil {
		return nil, err
	}
	return svc.ArchivedReport(ctx, symbol, c.cfg.Horizon)
}

func (c *cli) symbolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "List symbols in the series store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			syms, err := store.ListSymbols(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range syms {
				last, err := store.LastDay(cmd.Context(), s)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s, last.Format(model.DateLayout))
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, data []byte, pretty bool) error {
	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// symbolFromPath derives "ACME" from ".../acme.csv".
func symbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}
