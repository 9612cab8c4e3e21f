// Package portfolio owns the single simulated portfolio: cash balance,
// asset holdings, the open-position flag and the trailing peak.
//
// The Ledger is the only writer. Observers (dashboard, persistence) read
// consistent copies via View; cash and asset never move independently.
package portfolio

import (
	"sync"
	"time"

	"quantbot/internal/model"
	"quantbot/internal/strategy"
	"quantbot/pkg/id"
)

// SeedCash is the opening cash balance of a fresh portfolio.
const SeedCash = 10000.0

// Ledger guards the live portfolio state. Apply is the only mutation path.
type Ledger struct {
	mu       sync.RWMutex
	state    model.Portfolio
	symbol   string
	fraction float64 // share of cash committed per entry
}

// NewLedger creates a ledger seeded with the default balances.
func NewLedger(symbol string, fraction float64) *Ledger {
	return &Ledger{
		state:    model.Portfolio{CashBalance: SeedCash, LastUpdated: time.Now().UTC()},
		symbol:   symbol,
		fraction: fraction,
	}
}

// Restore replaces the live state with a persisted snapshot.
func (l *Ledger) Restore(pf model.Portfolio) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = pf
}

// View returns a copy of the current portfolio.
func (l *Ledger) View() model.Portfolio {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Apply mutates the portfolio under the given decision at the given price.
// The in-position peak is raised with the current price before the decision
// takes effect. Every call touches LastUpdated, HOLD included; only
// BUY/SELL return a trade record.
func (l *Ledger) Apply(d strategy.Decision, price float64, at time.Time) (model.Portfolio, *model.Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.InPosition && price > l.state.HighestPrice {
		l.state.HighestPrice = price
	}

	var trade *model.Trade
	switch d.Action {
	case strategy.ActionBuy:
		if !l.state.InPosition {
			qty := (l.state.CashBalance * l.fraction) / price
			l.state.CashBalance -= qty * price
			l.state.AssetBalance = qty
			l.state.InPosition = true
			l.state.EntryPrice = price
			l.state.HighestPrice = price
			trade = l.newTrade(model.SideBuy, price, qty, d.Reason, at)
		}
	case strategy.ActionSell:
		if l.state.InPosition {
			qty := l.state.AssetBalance
			l.state.CashBalance += qty * price
			l.state.AssetBalance = 0
			l.state.InPosition = false
			trade = l.newTrade(model.SideSell, price, qty, d.Reason, at)
		}
	}

	l.state.LastUpdated = at
	return l.state, trade
}

func (l *Ledger) newTrade(side model.Side, price, qty float64, reason string, at time.Time) *model.Trade {
	return &model.Trade{
		ID:         id.New(),
		Timestamp:  at,
		Symbol:     l.symbol,
		Side:       side,
		Price:      price,
		Quantity:   qty,
		Reason:     reason,
		CashAfter:  l.state.CashBalance,
		AssetAfter: l.state.AssetBalance,
	}
}
