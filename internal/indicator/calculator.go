// Package indicator maintains the rolling candle window and derives the
// technical indicators the strategy reads: RSI(14), SMA(20), EMA(200) and
// the MACD histogram. Every Analyze recomputes from scratch over the
// retained window, so results depend only on the window contents.
package indicator

import "quantbot/internal/model"

const (
	// WindowCap bounds the rolling window; older candles are evicted FIFO.
	WindowCap = 300
	// MinCandles gates readiness: EMA(200) is the slowest indicator and
	// needs 200 points before its value is defined.
	MinCandles = 200

	rsiPeriod = 14
	smaPeriod = 20
	emaPeriod = 200
)

// Calculator accumulates closed candles and produces indicator snapshots.
// Not safe for concurrent use; the engine drives it from a single goroutine.
type Calculator struct {
	window *Window
}

// NewCalculator creates a calculator with the standard 300-candle window.
func NewCalculator() *Calculator {
	return &Calculator{window: NewWindow(WindowCap)}
}

// Update appends a closed candle to the rolling window.
func (c *Calculator) Update(candle model.Candle) {
	c.window.Push(candle)
}

// Ready reports whether enough candles are held for all indicators.
func (c *Calculator) Ready() bool {
	return c.window.Len() >= MinCandles
}

// WindowLen returns the number of candles currently buffered.
func (c *Calculator) WindowLen() int {
	return c.window.Len()
}

// Analyze recomputes all indicators over the retained window. The second
// return is false until MinCandles closed candles have been observed;
// callers must not trade on a snapshot before then.
func (c *Calculator) Analyze() (model.IndicatorSnapshot, bool) {
	if !c.Ready() {
		return model.IndicatorSnapshot{}, false
	}

	closes := c.window.Closes()
	last, _ := c.window.Last()
	hist, histPrev := MACDHist(closes)

	return model.IndicatorSnapshot{
		Timestamp:    last.OpenTime,
		RSI:          RSI(closes, rsiPeriod),
		SMA20:        SMA(closes, smaPeriod),
		EMA200:       EMA(closes, emaPeriod),
		MACDHist:     hist,
		MACDHistPrev: histPrev,
	}, true
}
