// Package sqlite implements model.Store over SQLite in WAL mode: a
// single-connection time-series store for candles, strategies, and signals,
// in which reads and writes share that one connection.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"signalengine/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	Path string
}

// Store is a model.Store backed by a single SQLite connection in WAL mode.
type Store struct {
	db        *sql.DB
	connected atomic.Bool
}

// New opens (creating if absent) the database and applies the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// WAL mode tolerates concurrent readers but only one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	s := &Store{db: db}
	s.connected.Store(true)
	return s, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol         TEXT    NOT NULL,
			interval       TEXT    NOT NULL,
			ts             INTEGER NOT NULL,
			open           REAL    NOT NULL,
			high           REAL    NOT NULL,
			low            REAL    NOT NULL,
			close          REAL    NOT NULL,
			volume         REAL    NOT NULL,
			open_interest  REAL,
			funding_rate   REAL,
			PRIMARY KEY (symbol, interval, ts)
		);

		CREATE TABLE IF NOT EXISTS strategies (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT    NOT NULL,
			symbol      TEXT    NOT NULL,
			config_json TEXT    NOT NULL,
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_strategies_symbol ON strategies(symbol);

		CREATE TABLE IF NOT EXISTS signals (
			strategy_id   INTEGER NOT NULL,
			timestamp_ms  INTEGER NOT NULL,
			symbol        TEXT    NOT NULL,
			direction     TEXT    NOT NULL,
			confidence    REAL    NOT NULL,
			price         REAL    NOT NULL,
			sl_pct        REAL    NOT NULL,
			tp_pct        REAL    NOT NULL,
			reasons_json  TEXT    NOT NULL,
			PRIMARY KEY (strategy_id, timestamp_ms)
		);
	`)
	return err
}

// AppendCandle inserts or replaces one candle row.
func (s *Store) AppendCandle(ctx context.Context, c model.Candle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO candles
			(symbol, interval, ts, open, high, low, close, volume, open_interest, funding_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Symbol, c.Interval, c.Timestamp.UnixMilli(), c.Open, c.High, c.Low, c.Close, c.Volume,
		nullableFloat(c.OpenInterest), nullableFloat(c.FundingRate))
	s.recordResult(err)
	if err != nil {
		return fmt.Errorf("sqlite: append candle %s: %w", c.Key(), err)
	}
	return nil
}

// RecentCandles returns up to limit most-recent candles, oldest first.
func (s *Store) RecentCandles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, interval, ts, open, high, low, close, volume, open_interest, funding_rate
		FROM candles
		WHERE symbol = ? AND interval = ?
		ORDER BY ts DESC
		LIMIT ?
	`, symbol, interval, limit)
	s.recordResult(err)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent candles %s/%s: %w", symbol, interval, err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		c, err := scanCandle(rows)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse: query is DESC, Store contract wants oldest-first
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

func scanCandle(rows *sql.Rows) (model.Candle, error) {
	var c model.Candle
	var tsMillis int64
	var oi, fr sql.NullFloat64
	if err := rows.Scan(&c.Symbol, &c.Interval, &tsMillis, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &oi, &fr); err != nil {
		return c, fmt.Errorf("sqlite: scan candle: %w", err)
	}
	c.Timestamp = time.UnixMilli(tsMillis).UTC()
	if oi.Valid {
		v := oi.Float64
		c.OpenInterest = &v
	}
	if fr.Valid {
		v := fr.Float64
		c.FundingRate = &v
	}
	return c, nil
}

// StrategiesForSymbol returns every strategy bound to symbol.
func (s *Store) StrategiesForSymbol(ctx context.Context, symbol string) ([]model.Strategy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, symbol, config_json, created_at, updated_at
		FROM strategies WHERE symbol = ?
	`, symbol)
	s.recordResult(err)
	if err != nil {
		return nil, fmt.Errorf("sqlite: strategies for %s: %w", symbol, err)
	}
	defer rows.Close()
	return scanStrategies(rows)
}

// ListStrategies returns every persisted strategy.
func (s *Store) ListStrategies(ctx context.Context) ([]model.Strategy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, symbol, config_json, created_at, updated_at FROM strategies
	`)
	s.recordResult(err)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list strategies: %w", err)
	}
	defer rows.Close()
	return scanStrategies(rows)
}

func scanStrategies(rows *sql.Rows) ([]model.Strategy, error) {
	var strategies []model.Strategy
	for rows.Next() {
		var st model.Strategy
		var configJSON string
		var createdAt, updatedAt int64
		if err := rows.Scan(&st.ID, &st.Name, &st.Symbol, &configJSON, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan strategy: %w", err)
		}
		if err := json.Unmarshal([]byte(configJSON), &st.Config); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal strategy %d config: %w", st.ID, err)
		}
		st.CreatedAt = time.UnixMilli(createdAt).UTC()
		st.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		strategies = append(strategies, st)
	}
	return strategies, rows.Err()
}

// GetStrategy returns one strategy by id.
func (s *Store) GetStrategy(ctx context.Context, id int64) (model.Strategy, error) {
	var st model.Strategy
	var configJSON string
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, symbol, config_json, created_at, updated_at
		FROM strategies WHERE id = ?
	`, id).Scan(&st.ID, &st.Name, &st.Symbol, &configJSON, &createdAt, &updatedAt)
	s.recordResult(err)
	if err != nil {
		return st, fmt.Errorf("sqlite: get strategy %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(configJSON), &st.Config); err != nil {
		return st, fmt.Errorf("sqlite: unmarshal strategy %d config: %w", id, err)
	}
	st.CreatedAt = time.UnixMilli(createdAt).UTC()
	st.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return st, nil
}

// UpsertStrategy inserts or updates a strategy, advancing UpdatedAt.
func (s *Store) UpsertStrategy(ctx context.Context, st model.Strategy) (model.Strategy, error) {
	configJSON, err := json.Marshal(st.Config)
	if err != nil {
		return st, fmt.Errorf("sqlite: marshal strategy config: %w", err)
	}

	now := time.Now().UTC()
	if st.ID == 0 {
		st.CreatedAt = now
		st.UpdatedAt = now
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO strategies (name, symbol, config_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, st.Name, st.Symbol, string(configJSON), st.CreatedAt.UnixMilli(), st.UpdatedAt.UnixMilli())
		s.recordResult(err)
		if err != nil {
			return st, fmt.Errorf("sqlite: insert strategy: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return st, fmt.Errorf("sqlite: last insert id: %w", err)
		}
		st.ID = id
		return st, nil
	}

	st.UpdatedAt = now
	_, err = s.db.ExecContext(ctx, `
		UPDATE strategies SET name = ?, symbol = ?, config_json = ?, updated_at = ?
		WHERE id = ?
	`, st.Name, st.Symbol, string(configJSON), st.UpdatedAt.UnixMilli(), st.ID)
	s.recordResult(err)
	if err != nil {
		return st, fmt.Errorf("sqlite: update strategy %d: %w", st.ID, err)
	}
	return st, nil
}

// DeleteStrategy removes a strategy by id.
func (s *Store) DeleteStrategy(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM strategies WHERE id = ?`, id)
	s.recordResult(err)
	if err != nil {
		return fmt.Errorf("sqlite: delete strategy %d: %w", id, err)
	}
	return nil
}

// InsertSignal idempotently inserts a signal keyed by (strategy_id, timestamp_ms).
func (s *Store) InsertSignal(ctx context.Context, sig model.Signal) error {
	reasonsJSON, err := json.Marshal(sig.Reasons)
	if err != nil {
		return fmt.Errorf("sqlite: marshal signal reasons: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO signals
			(strategy_id, timestamp_ms, symbol, direction, confidence, price, sl_pct, tp_pct, reasons_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sig.StrategyID, sig.TimestampMs(), sig.Symbol, string(sig.Direction), sig.Confidence, sig.Price,
		sig.SLPct, sig.TPPct, string(reasonsJSON))
	s.recordResult(err)
	if err != nil {
		return fmt.Errorf("sqlite: insert signal for strategy %d: %w", sig.StrategyID, err)
	}
	return nil
}

// Connected reports whether the last operation against SQLite succeeded.
func (s *Store) Connected() bool {
	return s.connected.Load()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) recordResult(err error) {
	ok := err == nil || err == sql.ErrNoRows
	s.connected.Store(ok)
	if !ok {
		slog.Error("sqlite: operation failed", "error", err)
	}
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
