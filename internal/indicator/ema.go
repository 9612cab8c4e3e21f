package indicator

// EMA computes the Exponential Moving Average over the full series with
// smoothing factor 2/(period+1), seeded by the first value and carried
// forward across every close. Returns 0 when fewer than `period` closes
// are available.
func EMA(closes []float64, period int) float64 {
	if len(closes) < period {
		return 0
	}
	alpha := 2.0 / float64(period+1)
	ema := closes[0]
	for _, c := range closes[1:] {
		ema = c*alpha + ema*(1-alpha)
	}
	return ema
}

// emaSeries returns the EMA at every index using the same first-value
// seeding as EMA, without a minimum-length gate. MACD builds on this.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*alpha + out[i-1]*(1-alpha)
	}
	return out
}
