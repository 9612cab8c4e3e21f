// Package strategy turns indicator snapshots and portfolio state into
// BUY/SELL/HOLD decisions.
//
// Exactly one decision is produced per analysis cycle. BUY and SELL are
// mutually exclusive by state: a flat portfolio can only BUY, a long
// portfolio can only SELL. There is no pyramiding and no shorting.
package strategy

import "fmt"

// Action represents a trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Decision is the outcome of one evaluation cycle. Reason is empty for HOLD.
type Decision struct {
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// Params holds the tunable thresholds of the pullback strategy.
// Zero values are invalid; start from DefaultParams.
type Params struct {
	// RSIBuyBelow gates entries: RSI must be under this to buy.
	RSIBuyBelow float64 `yaml:"rsi_buy_below"`
	// RSISellAbove is the overbought exit threshold.
	RSISellAbove float64 `yaml:"rsi_sell_above"`
	// TrailingStopPct exits once price falls this fraction from the peak.
	TrailingStopPct float64 `yaml:"trailing_stop_pct"`
	// HardStopPct exits once the position loses this fraction from entry.
	HardStopPct float64 `yaml:"hard_stop_pct"`
	// PositionFraction is the share of cash committed on entry.
	PositionFraction float64 `yaml:"position_fraction"`
}

// DefaultParams returns the stock thresholds.
func DefaultParams() Params {
	return Params{
		RSIBuyBelow:      40,
		RSISellAbove:     70,
		TrailingStopPct:  0.015,
		HardStopPct:      0.02,
		PositionFraction: 0.98,
	}
}

// Validate checks that all thresholds are in their working ranges.
func (p Params) Validate() error {
	if p.RSIBuyBelow <= 0 || p.RSIBuyBelow >= 100 {
		return fmt.Errorf("rsi_buy_below must be in (0, 100), got %.2f", p.RSIBuyBelow)
	}
	if p.RSISellAbove <= 0 || p.RSISellAbove >= 100 {
		return fmt.Errorf("rsi_sell_above must be in (0, 100), got %.2f", p.RSISellAbove)
	}
	if p.RSIBuyBelow >= p.RSISellAbove {
		return fmt.Errorf("rsi_buy_below (%.2f) must be below rsi_sell_above (%.2f)", p.RSIBuyBelow, p.RSISellAbove)
	}
	if p.TrailingStopPct <= 0 || p.TrailingStopPct >= 1 {
		return fmt.Errorf("trailing_stop_pct must be in (0, 1), got %.4f", p.TrailingStopPct)
	}
	if p.HardStopPct <= 0 || p.HardStopPct >= 1 {
		return fmt.Errorf("hard_stop_pct must be in (0, 1), got %.4f", p.HardStopPct)
	}
	if p.PositionFraction <= 0 || p.PositionFraction >= 1 {
		return fmt.Errorf("position_fraction must be in (0, 1), got %.4f", p.PositionFraction)
	}
	return nil
}
