package model

import "time"

// Portfolio is the simulated account state. Exactly one live instance
// exists per process, owned by the ledger; everything else receives
// copies.
//
// Invariants, enforced by the ledger on every mutation:
//   - InPosition == (AssetBalance > 0)
//   - HighestPrice >= EntryPrice while InPosition (non-decreasing)
//   - balances never negative
type Portfolio struct {
	CashBalance  float64   `json:"cash_balance"`
	AssetBalance float64   `json:"asset_balance"`
	InPosition   bool      `json:"in_position"`
	EntryPrice   float64   `json:"entry_price"`
	HighestPrice float64   `json:"highest_price"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Side is the direction of an executed trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is one append-only trade log entry. Created exactly once per
// executed decision; CashAfter/AssetAfter capture the balances the
// trade left behind.
type Trade struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Price      float64   `json:"price"`
	Quantity   float64   `json:"quantity"`
	Reason     string    `json:"reason"`
	CashAfter  float64   `json:"cash_after"`
	AssetAfter float64   `json:"asset_after"`
}
