// Package sqlite persists prices, indicator snapshots, trades and the
// portfolio row in a local SQLite file. It is the default repository when
// DATABASE_URL points at a sqlite:/// path.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"quantbot/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Store implements model.Repository on SQLite.
type Store struct {
	db *sql.DB
}

// Ping answers liveness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// New opens the database, enables WAL mode and creates the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer: the engine pipeline is the only mutation path.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", dbPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS prices (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			ts    INTEGER NOT NULL,
			price REAL    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_prices_ts ON prices(ts);

		CREATE TABLE IF NOT EXISTS indicators (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			ts      INTEGER NOT NULL,
			rsi     REAL    NOT NULL,
			sma_20  REAL    NOT NULL,
			ema_200 REAL    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_indicators_ts ON indicators(ts);

		CREATE TABLE IF NOT EXISTS trades (
			id          TEXT PRIMARY KEY,
			ts          INTEGER NOT NULL,
			symbol      TEXT    NOT NULL,
			side        TEXT    NOT NULL,
			price       REAL    NOT NULL,
			quantity    REAL    NOT NULL,
			reason      TEXT    NOT NULL,
			cash_after  REAL    NOT NULL,
			asset_after REAL    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS portfolio (
			id            INTEGER PRIMARY KEY CHECK (id = 1),
			cash_balance  REAL    NOT NULL,
			asset_balance REAL    NOT NULL,
			in_position   INTEGER NOT NULL,
			entry_price   REAL    NOT NULL,
			highest_price REAL    NOT NULL,
			last_updated  INTEGER NOT NULL
		);
	`)
	return err
}

// SavePrice appends one price tick.
func (s *Store) SavePrice(ctx context.Context, p model.PricePoint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prices (ts, price) VALUES (?, ?)`,
		p.Timestamp.Unix(), p.Price,
	)
	if err != nil {
		return fmt.Errorf("sqlite insert price: %w", err)
	}
	return nil
}

// SaveIndicators appends one indicator snapshot.
func (s *Store) SaveIndicators(ctx context.Context, snap model.IndicatorSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO indicators (ts, rsi, sma_20, ema_200) VALUES (?, ?, ?, ?)`,
		snap.Timestamp.Unix(), snap.RSI, snap.SMA20, snap.EMA200,
	)
	if err != nil {
		return fmt.Errorf("sqlite insert indicators: %w", err)
	}
	return nil
}

// RecordTrade writes the trade row and the updated portfolio in one
// transaction, so restart recovery never sees one without the other.
func (s *Store) RecordTrade(ctx context.Context, trade model.Trade, pf model.Portfolio) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin trade tx: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trades (id, ts, symbol, side, price, quantity, reason, cash_after, asset_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.Timestamp.Unix(), trade.Symbol, string(trade.Side),
		trade.Price, trade.Quantity, trade.Reason, trade.CashAfter, trade.AssetAfter,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite insert trade: %w", err)
	}

	if _, err = tx.ExecContext(ctx, upsertPortfolioSQL, portfolioArgs(pf)...); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite upsert portfolio: %w", err)
	}

	return tx.Commit()
}

const upsertPortfolioSQL = `
	INSERT OR REPLACE INTO portfolio
		(id, cash_balance, asset_balance, in_position, entry_price, highest_price, last_updated)
	VALUES (1, ?, ?, ?, ?, ?, ?)`

func portfolioArgs(pf model.Portfolio) []any {
	return []any{
		pf.CashBalance, pf.AssetBalance, pf.InPosition,
		pf.EntryPrice, pf.HighestPrice, pf.LastUpdated.Unix(),
	}
}

// SavePortfolio upserts the singleton portfolio row.
func (s *Store) SavePortfolio(ctx context.Context, pf model.Portfolio) error {
	if _, err := s.db.ExecContext(ctx, upsertPortfolioSQL, portfolioArgs(pf)...); err != nil {
		return fmt.Errorf("sqlite upsert portfolio: %w", err)
	}
	return nil
}

func unixTime(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
