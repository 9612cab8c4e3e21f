package indicator

// RSI computes the Relative Strength Index over the full series using
// Wilder's smoothing: the average gain/loss is seeded with the plain mean
// of the first `period` deltas, then each later delta folds in with weight
// 1/period. Needs period+1 closes; returns the neutral 50 below that.
// RSI is 100 when the average loss is zero.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50.0
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	p := float64(period)
	avgGain /= p
	avgLoss /= p

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
