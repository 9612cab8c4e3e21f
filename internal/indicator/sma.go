package indicator

// SMA computes the arithmetic mean of the last `period` closes.
// Returns 0 when fewer than `period` closes are available.
func SMA(closes []float64, period int) float64 {
	if len(closes) < period {
		return 0
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period)
}
