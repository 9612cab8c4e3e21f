package model

import "context"

// ── Storage Port ──
// Repository decouples the engine from concrete storage (SQLite,
// Postgres). Implementations persist plain value types; nothing they
// return is ever mutated back into the engine's live state.

// Repository is the durable store for prices, indicators, trades and
// the portfolio row.
type Repository interface {
	// SavePrice appends one price observation.
	SavePrice(ctx context.Context, p PricePoint) error

	// SaveIndicators appends one indicator snapshot.
	SaveIndicators(ctx context.Context, s IndicatorSnapshot) error

	// RecordTrade appends a trade and upserts the portfolio row in one
	// transaction, so a failure cannot persist one without the other.
	RecordTrade(ctx context.Context, t Trade, p Portfolio) error

	// SavePortfolio upserts the singleton portfolio row.
	SavePortfolio(ctx context.Context, p Portfolio) error

	// LoadPortfolio returns the persisted portfolio and whether a row
	// existed. A missing row is not an error.
	LoadPortfolio(ctx context.Context) (Portfolio, bool, error)

	// RecentPrices returns up to n most recent prices, oldest first.
	RecentPrices(ctx context.Context, n int) ([]PricePoint, error)

	// RecentIndicators returns up to n most recent snapshots, oldest first.
	RecentIndicators(ctx context.Context, n int) ([]IndicatorSnapshot, error)

	// RecentTrades returns up to n most recent trades, newest first.
	RecentTrades(ctx context.Context, n int) ([]Trade, error)

	// Close releases underlying resources.
	Close() error
}
