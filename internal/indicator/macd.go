package indicator

// MACDHist computes the MACD histogram for the last two positions of the
// series: MACD line = EMA(12) − EMA(26) of closes, signal = EMA(9) of the
// MACD line, histogram = MACD − signal. Both the current and the prior
// histogram are needed to read momentum direction. Returns (0, 0) when
// fewer than two closes are available.
func MACDHist(closes []float64) (hist, histPrev float64) {
	if len(closes) < 2 {
		return 0, 0
	}

	fast := emaSeries(closes, 12)
	slow := emaSeries(closes, 26)

	macd := make([]float64, len(closes))
	for i := range macd {
		macd[i] = fast[i] - slow[i]
	}
	signal := emaSeries(macd, 9)

	n := len(closes)
	return macd[n-1] - signal[n-1], macd[n-2] - signal[n-2]
}
