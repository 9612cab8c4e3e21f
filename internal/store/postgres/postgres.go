// Package postgres persists the same repository schema as the sqlite
// store on PostgreSQL via pgx. Selected when DATABASE_URL is a
// postgres:// DSN.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"quantbot/internal/model"
)

// Store implements model.Repository on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Ping answers liveness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// New connects to the database and creates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "postgres connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres ping")
	}

	s := &Store{pool: pool}
	if err := s.createSchema(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres schema")
	}
	return s, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS prices (
			id    BIGSERIAL PRIMARY KEY,
			ts    BIGINT           NOT NULL,
			price DOUBLE PRECISION NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_prices_ts ON prices(ts);

		CREATE TABLE IF NOT EXISTS indicators (
			id      BIGSERIAL PRIMARY KEY,
			ts      BIGINT           NOT NULL,
			rsi     DOUBLE PRECISION NOT NULL,
			sma_20  DOUBLE PRECISION NOT NULL,
			ema_200 DOUBLE PRECISION NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_indicators_ts ON indicators(ts);

		CREATE TABLE IF NOT EXISTS trades (
			id          TEXT PRIMARY KEY,
			ts          BIGINT           NOT NULL,
			symbol      TEXT             NOT NULL,
			side        TEXT             NOT NULL,
			price       DOUBLE PRECISION NOT NULL,
			quantity    DOUBLE PRECISION NOT NULL,
			reason      TEXT             NOT NULL,
			cash_after  DOUBLE PRECISION NOT NULL,
			asset_after DOUBLE PRECISION NOT NULL
		);

		CREATE TABLE IF NOT EXISTS portfolio (
			id            INT PRIMARY KEY CHECK (id = 1),
			cash_balance  DOUBLE PRECISION NOT NULL,
			asset_balance DOUBLE PRECISION NOT NULL,
			in_position   BOOLEAN          NOT NULL,
			entry_price   DOUBLE PRECISION NOT NULL,
			highest_price DOUBLE PRECISION NOT NULL,
			last_updated  BIGINT           NOT NULL
		);
	`)
	return err
}

func (s *Store) SavePrice(ctx context.Context, p model.PricePoint) (err error) {
	defer func() { err = errors.Wrap(err, "Store.SavePrice") }()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO prices (ts, price) VALUES ($1, $2)`,
		p.Timestamp.Unix(), p.Price,
	)
	return
}

func (s *Store) SaveIndicators(ctx context.Context, snap model.IndicatorSnapshot) (err error) {
	defer func() { err = errors.Wrap(err, "Store.SaveIndicators") }()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO indicators (ts, rsi, sma_20, ema_200) VALUES ($1, $2, $3, $4)`,
		snap.Timestamp.Unix(), snap.RSI, snap.SMA20, snap.EMA200,
	)
	return
}

const upsertPortfolioSQL = `
	INSERT INTO portfolio
		(id, cash_balance, asset_balance, in_position, entry_price, highest_price, last_updated)
	VALUES (1, $1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		cash_balance  = EXCLUDED.cash_balance,
		asset_balance = EXCLUDED.asset_balance,
		in_position   = EXCLUDED.in_position,
		entry_price   = EXCLUDED.entry_price,
		highest_price = EXCLUDED.highest_price,
		last_updated  = EXCLUDED.last_updated`

// RecordTrade writes the trade row and the portfolio upsert in one
// read-committed transaction.
func (s *Store) RecordTrade(ctx context.Context, trade model.Trade, pf model.Portfolio) (err error) {
	defer func() { err = errors.Wrap(err, "Store.RecordTrade") }()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO trades (id, ts, symbol, side, price, quantity, reason, cash_after, asset_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		trade.ID, trade.Timestamp.Unix(), trade.Symbol, string(trade.Side),
		trade.Price, trade.Quantity, trade.Reason, trade.CashAfter, trade.AssetAfter,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, upsertPortfolioSQL,
		pf.CashBalance, pf.AssetBalance, pf.InPosition,
		pf.EntryPrice, pf.HighestPrice, pf.LastUpdated.Unix(),
	)
	return
}

func (s *Store) SavePortfolio(ctx context.Context, pf model.Portfolio) (err error) {
	defer func() { err = errors.Wrap(err, "Store.SavePortfolio") }()

	_, err = s.pool.Exec(ctx, upsertPortfolioSQL,
		pf.CashBalance, pf.AssetBalance, pf.InPosition,
		pf.EntryPrice, pf.HighestPrice, pf.LastUpdated.Unix(),
	)
	return
}

func (s *Store) LoadPortfolio(ctx context.Context) (pf model.Portfolio, found bool, err error) {
	defer func() { err = errors.Wrap(err, "Store.LoadPortfolio") }()

	var ts int64
	err = s.pool.QueryRow(ctx, `
		SELECT cash_balance, asset_balance, in_position, entry_price, highest_price, last_updated
		FROM portfolio WHERE id = 1`,
	).Scan(&pf.CashBalance, &pf.AssetBalance, &pf.InPosition, &pf.EntryPrice, &pf.HighestPrice, &ts)
	if err == pgx.ErrNoRows {
		return model.Portfolio{}, false, nil
	}
	if err != nil {
		return model.Portfolio{}, false, err
	}
	pf.LastUpdated = unixTime(ts)
	return pf, true, nil
}

func (s *Store) RecentPrices(ctx context.Context, n int) (out []model.PricePoint, err error) {
	defer func() { err = errors.Wrap(err, "Store.RecentPrices") }()

	rows, err := s.pool.Query(ctx,
		`SELECT ts, price FROM prices ORDER BY id DESC LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p  model.PricePoint
			ts int64
		)
		if err = rows.Scan(&ts, &p.Price); err != nil {
			return nil, err
		}
		p.Timestamp = unixTime(ts)
		out = append(out, p)
	}
	reverse(out)
	return out, rows.Err()
}

func (s *Store) RecentIndicators(ctx context.Context, n int) (out []model.IndicatorSnapshot, err error) {
	defer func() { err = errors.Wrap(err, "Store.RecentIndicators") }()

	rows, err := s.pool.Query(ctx,
		`SELECT ts, rsi, sma_20, ema_200 FROM indicators ORDER BY id DESC LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			snap model.IndicatorSnapshot
			ts   int64
		)
		if err = rows.Scan(&ts, &snap.RSI, &snap.SMA20, &snap.EMA200); err != nil {
			return nil, err
		}
		snap.Timestamp = unixTime(ts)
		out = append(out, snap)
	}
	reverse(out)
	return out, rows.Err()
}

func (s *Store) RecentTrades(ctx context.Context, n int) (out []model.Trade, err error) {
	defer func() { err = errors.Wrap(err, "Store.RecentTrades") }()

	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, symbol, side, price, quantity, reason, cash_after, asset_after
		FROM trades ORDER BY id DESC LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t    model.Trade
			ts   int64
			side string
		)
		if err = rows.Scan(&t.ID, &ts, &t.Symbol, &side, &t.Price, &t.Quantity, &t.Reason, &t.CashAfter, &t.AssetAfter); err != nil {
			return nil, err
		}
		t.Timestamp = unixTime(ts)
		t.Side = model.Side(side)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func unixTime(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
