package strategy

import "quantbot/internal/model"

// Evaluator implements the uptrend RSI-pullback entry with a three-tier
// exit: RSI overbought, trailing stop from the in-position peak, and a
// hard stop from the entry price, checked in that order (first match wins).
type Evaluator struct {
	params Params
}

// NewEvaluator creates an evaluator with the given thresholds.
func NewEvaluator(params Params) *Evaluator {
	return &Evaluator{params: params}
}

// Evaluate produces exactly one decision from the latest snapshot, the
// current close price and the portfolio state.
func (e *Evaluator) Evaluate(snap model.IndicatorSnapshot, price float64, pf model.Portfolio) Decision {
	if !pf.InPosition {
		uptrend := price > snap.EMA200
		pullback := snap.RSI < e.params.RSIBuyBelow
		momentumUp := snap.MACDHist > snap.MACDHistPrev

		if uptrend && pullback && momentumUp {
			return Decision{Action: ActionBuy, Reason: "Uptrend RSI Pullback"}
		}
		return Decision{Action: ActionHold}
	}

	// The ledger raises the high-water mark with the current price before
	// exits apply; drawdown must be measured against the raised peak.
	highest := pf.HighestPrice
	if price > highest {
		highest = price
	}

	pnl := (price - pf.EntryPrice) / pf.EntryPrice
	drawdown := (highest - price) / highest

	switch {
	case snap.RSI > e.params.RSISellAbove:
		return Decision{Action: ActionSell, Reason: "RSI Overbought"}
	case drawdown > e.params.TrailingStopPct:
		return Decision{Action: ActionSell, Reason: "Trailing Stop Triggered"}
	case pnl < -e.params.HardStopPct:
		return Decision{Action: ActionSell, Reason: "Hard Stop Loss"}
	}
	return Decision{Action: ActionHold}
}
