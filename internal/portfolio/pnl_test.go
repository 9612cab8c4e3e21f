package portfolio

import (
	"testing"

	"quantbot/internal/model"
)

func longAt(entry, highest float64) model.Portfolio {
	return model.Portfolio{
		CashBalance: 200, AssetBalance: 98,
		InPosition: true, EntryPrice: entry, HighestPrice: highest,
	}
}

func TestPnL_Long(t *testing.T) {
	// cash 200, asset 98, entry 100, peak 110, price 105:
	//   equity     = 200 + 98*105       = 10490
	//   unrealized = (105-100)*98       = 490
	//   return     = (105-100)/100      = 0.05
	//   drawdown   = (110-105)/110      = 0.0454545
	pf := longAt(100, 110)

	assertClose(t, "equity", Equity(pf, 105), 10490, 1e-9)
	assertClose(t, "unrealized", UnrealizedPnL(pf, 105), 490, 1e-9)
	assertClose(t, "return", ReturnPct(pf, 105), 0.05, 1e-12)
	assertClose(t, "drawdown", PeakDrawdown(pf, 105), 5.0/110.0, 1e-12)
}

func TestPnL_Flat(t *testing.T) {
	pf := model.Portfolio{CashBalance: 10000}

	assertClose(t, "equity", Equity(pf, 105), 10000, 1e-12)
	assertClose(t, "unrealized", UnrealizedPnL(pf, 105), 0, 1e-12)
	assertClose(t, "return", ReturnPct(pf, 105), 0, 1e-12)
	assertClose(t, "drawdown", PeakDrawdown(pf, 105), 0, 1e-12)
}

func TestPnL_DrawdownClampedAtNewHigh(t *testing.T) {
	// Price above the recorded peak reads as zero drawdown, not negative.
	pf := longAt(100, 110)
	assertClose(t, "drawdown at new high", PeakDrawdown(pf, 115), 0, 1e-12)
}

func TestSummarize(t *testing.T) {
	pf := longAt(100, 110)
	s := Summarize(pf, 105)

	assertClose(t, "summary equity", s.Equity, 10490, 1e-9)
	assertClose(t, "summary unrealized", s.UnrealizedPnL, 490, 1e-9)
	assertClose(t, "summary return", s.ReturnPct, 0.05, 1e-12)
	assertClose(t, "summary drawdown", s.PeakDrawdown, 5.0/110.0, 1e-12)
}
