package model

import "time"

// IndicatorSnapshot is one full recomputation of the indicator set over
// the retained candle window. Derived data: produced once per closed
// candle once the window is ready, never mutated afterwards.
//
// MACDHist and MACDHistPrev are the last two MACD histogram values; the
// strategy needs both to detect the histogram turning up.
type IndicatorSnapshot struct {
	Timestamp    time.Time `json:"timestamp"`
	RSI          float64   `json:"rsi"`
	SMA20        float64   `json:"sma_20"`
	EMA200       float64   `json:"ema_200"`
	MACDHist     float64   `json:"macd_hist"`
	MACDHistPrev float64   `json:"macd_hist_prev"`
}
