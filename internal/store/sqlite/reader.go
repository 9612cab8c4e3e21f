package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"quantbot/internal/model"
)

// LoadPortfolio reads the singleton portfolio row. found is false when no
// row exists yet (fresh database).
func (s *Store) LoadPortfolio(ctx context.Context) (model.Portfolio, bool, error) {
	var (
		pf model.Portfolio
		ts int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT cash_balance, asset_balance, in_position, entry_price, highest_price, last_updated
		FROM portfolio WHERE id = 1`,
	).Scan(&pf.CashBalance, &pf.AssetBalance, &pf.InPosition, &pf.EntryPrice, &pf.HighestPrice, &ts)
	if err == sql.ErrNoRows {
		return model.Portfolio{}, false, nil
	}
	if err != nil {
		return model.Portfolio{}, false, fmt.Errorf("sqlite load portfolio: %w", err)
	}
	pf.LastUpdated = unixTime(ts)
	return pf, true, nil
}

// RecentPrices returns the last n price ticks, oldest first.
func (s *Store) RecentPrices(ctx context.Context, n int) ([]model.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, price FROM prices ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite query prices: %w", err)
	}
	defer rows.Close()

	var out []model.PricePoint
	for rows.Next() {
		var (
			p  model.PricePoint
			ts int64
		)
		if err := rows.Scan(&ts, &p.Price); err != nil {
			return nil, fmt.Errorf("sqlite scan price: %w", err)
		}
		p.Timestamp = unixTime(ts)
		out = append(out, p)
	}
	reverse(out)
	return out, rows.Err()
}

// RecentIndicators returns the last n indicator snapshots, oldest first.
// Only the persisted columns (rsi, sma_20, ema_200) are populated.
func (s *Store) RecentIndicators(ctx context.Context, n int) ([]model.IndicatorSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, rsi, sma_20, ema_200 FROM indicators ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite query indicators: %w", err)
	}
	defer rows.Close()

	var out []model.IndicatorSnapshot
	for rows.Next() {
		var (
			snap model.IndicatorSnapshot
			ts   int64
		)
		if err := rows.Scan(&ts, &snap.RSI, &snap.SMA20, &snap.EMA200); err != nil {
			return nil, fmt.Errorf("sqlite scan indicators: %w", err)
		}
		snap.Timestamp = unixTime(ts)
		out = append(out, snap)
	}
	reverse(out)
	return out, rows.Err()
}

// RecentTrades returns the last n trades, newest first. Trade IDs are
// ULIDs, so id order is creation order.
func (s *Store) RecentTrades(ctx context.Context, n int) ([]model.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, symbol, side, price, quantity, reason, cash_after, asset_after
		FROM trades ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var out []model.Trade
	for rows.Next() {
		var (
			t    model.Trade
			ts   int64
			side string
		)
		if err := rows.Scan(&t.ID, &ts, &t.Symbol, &side, &t.Price, &t.Quantity, &t.Reason, &t.CashAfter, &t.AssetAfter); err != nil {
			return nil, fmt.Errorf("sqlite scan trade: %w", err)
		}
		t.Timestamp = unixTime(ts)
		t.Side = model.Side(side)
		out = append(out, t)
	}
	return out, rows.Err()
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
