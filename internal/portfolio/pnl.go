package portfolio

import "quantbot/internal/model"

// Equity returns the total portfolio value at the given price.
func Equity(pf model.Portfolio, price float64) float64 {
	return pf.CashBalance + pf.AssetBalance*price
}

// UnrealizedPnL returns the open position's gain at the given price.
// Zero when flat.
func UnrealizedPnL(pf model.Portfolio, price float64) float64 {
	if !pf.InPosition {
		return 0
	}
	return (price - pf.EntryPrice) * pf.AssetBalance
}

// ReturnPct returns the fractional move from the entry price; 0 when flat.
func ReturnPct(pf model.Portfolio, price float64) float64 {
	if !pf.InPosition || pf.EntryPrice == 0 {
		return 0
	}
	return (price - pf.EntryPrice) / pf.EntryPrice
}

// PeakDrawdown returns the fractional decline from the in-position peak,
// clamped at 0 while price sits at or above the peak.
func PeakDrawdown(pf model.Portfolio, price float64) float64 {
	if !pf.InPosition || pf.HighestPrice == 0 {
		return 0
	}
	dd := (pf.HighestPrice - price) / pf.HighestPrice
	if dd < 0 {
		return 0
	}
	return dd
}

// Summary is the read-side P&L view served to the dashboard.
type Summary struct {
	Equity        float64 `json:"equity"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	ReturnPct     float64 `json:"return_pct"`
	PeakDrawdown  float64 `json:"peak_drawdown"`
}

// Summarize computes the P&L summary for a portfolio at the given price.
func Summarize(pf model.Portfolio, price float64) Summary {
	return Summary{
		Equity:        Equity(pf, price),
		UnrealizedPnL: UnrealizedPnL(pf, price),
		ReturnPct:     ReturnPct(pf, price),
		PeakDrawdown:  PeakDrawdown(pf, price),
	}
}
