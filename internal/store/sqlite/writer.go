// Package sqlite persists daily bars and archived reports in a local SQLite
// database. It is the SeriesSource the report service reads from.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"forecast-engine/internal/model"
)

const (
	defaultBatchSize   = 500
	defaultArchiveKeep = 10
)

// Config configures the SQLite store.
type Config struct {
	DBPath      string // path to SQLite database file, e.g. "data/bars.db"
	ArchiveKeep int    // archived reports kept per (symbol, horizon); 0 = default
	Logger      *slog.Logger
}

// Store reads and writes daily bars. Writes go through a single connection
// in batched transactions.
type Store struct {
	db          *sql.DB
	archiveKeep int
	log         *slog.Logger
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open opens (or creates) the database with WAL mode and ensures the schema.
func Open(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	keep := cfg.ArchiveKeep
	if keep <= 0 {
		keep = defaultArchiveKeep
	}

	log.Info("sqlite opened", "component", "sqlite", "path", cfg.DBPath)
	return &Store{db: db, archiveKeep: keep, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS daily_bars (
			symbol TEXT    NOT NULL,
			day    INTEGER NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			volume INTEGER NOT NULL,
			PRIMARY KEY (symbol, day)
		);

		CREATE TABLE IF NOT EXISTS report_archive (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT    NOT NULL,
			horizon    INTEGER NOT NULL,
			last_day   INTEGER NOT NULL,
			data       TEXT    NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_report_archive_symbol
			ON report_archive (symbol, horizon, id);
	`)
	return err
}

// SaveObservations upserts bars for symbol in batched transactions and
// returns how many rows were written. Bars for an existing day replace it.
func (s *Store) SaveObservations(ctx context.Context, symbol string, obs []model.Observation) (int, error) {
	written := 0
	for start := 0; start < len(obs); start += defaultBatchSize {
		end := min(start+defaultBatchSize, len(obs))
		begin := time.Now()
		if err := s.insertBatch(ctx, symbol, obs[start:end]); err != nil {
			return written, fmt.Errorf("sqlite insert %s: %w", symbol, err)
		}
		written += end - start
		s.log.Debug("sqlite batch committed",
			"component", "sqlite",
			"symbol", symbol,
			"rows", end-start,
			"duration", time.Since(begin),
		)
	}
	return written, nil
}

// insertBatch inserts a batch of bars in a single transaction.
func (s *Store) insertBatch(ctx context.Context, symbol string, obs []model.Observation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO daily_bars (symbol, day, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, o := range obs {
		day := model.Day(o.Date).Unix()
		if _, err := stmt.ExecContext(ctx, symbol, day, o.Open, o.High, o.Low, o.Close, o.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ArchiveReport stores a built report and prunes the archive for
// (symbol, horizon) down to the configured size.
func (s *Store) ArchiveReport(ctx context.Context, symbol string, horizon int, lastDay time.Time, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO report_archive (symbol, horizon, last_day, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		symbol, horizon, model.Day(lastDay).Unix(), string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite archive report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM report_archive
		WHERE symbol = ? AND horizon = ? AND id NOT IN (
			SELECT id FROM report_archive WHERE symbol = ? AND horizon = ?
			ORDER BY id DESC LIMIT ?
		)`, symbol, horizon, symbol, horizon, s.archiveKeep)
	if err != nil {
		s.log.Warn("sqlite prune archive failed", "component", "sqlite", "symbol", symbol, "error", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
