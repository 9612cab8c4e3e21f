package indicator

import (
	"math"
	"testing"
	"time"

	"quantbot/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

var baseTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func candleAt(i int, close float64) model.Candle {
	return model.Candle{
		OpenTime: baseTime.Add(time.Duration(i) * time.Minute),
		Open:     close, High: close + 5, Low: close - 5, Close: close,
		Volume: 1,
	}
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// SMA Correctness
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Prices: 100, 102, 104, 103, 105
	// SMA(3) over last 3 of [100,102,104]:        (100+102+104)/3 = 102.0
	// SMA(3) over last 3 of [100,102,104,103]:    (102+104+103)/3 = 103.0
	// SMA(3) over last 3 of [...104,103,105]:     (104+103+105)/3 = 104.0
	prices := []float64{100, 102, 104, 103, 105}

	assertClose(t, "SMA(3) len 3", SMA(prices[:3], 3), 102.0, 0.0001)
	assertClose(t, "SMA(3) len 4", SMA(prices[:4], 3), 103.0, 0.0001)
	assertClose(t, "SMA(3) len 5", SMA(prices, 3), 104.0, 0.0001)
}

func TestSMA_UnderSupplied_IsZero(t *testing.T) {
	if got := SMA([]float64{100, 102}, 3); got != 0 {
		t.Errorf("SMA with 2 of 3 closes: got %.4f, want neutral 0", got)
	}
	if got := SMA(nil, 3); got != 0 {
		t.Errorf("SMA with no closes: got %.4f, want neutral 0", got)
	}
}

// ────────────────────────────────────────────────────────────
// EMA Correctness (first-value seed)
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// EMA(3): alpha = 2/(3+1) = 0.5, seeded with the first close.
	// Prices: 100, 102, 104, 103, 105
	//
	// ema after 100: 100.0   (seed)
	// ema after 102: 102*0.5 + 100.0*0.5  = 101.0
	// ema after 104: 104*0.5 + 101.0*0.5  = 102.5
	// ema after 103: 103*0.5 + 102.5*0.5  = 102.75
	// ema after 105: 105*0.5 + 102.75*0.5 = 103.875
	prices := []float64{100, 102, 104, 103, 105}

	assertClose(t, "EMA(3) len 3", EMA(prices[:3], 3), 102.5, 0.0001)
	assertClose(t, "EMA(3) len 4", EMA(prices[:4], 3), 102.75, 0.0001)
	assertClose(t, "EMA(3) len 5", EMA(prices, 3), 103.875, 0.0001)
}

func TestEMA_UnderSupplied_IsZero(t *testing.T) {
	if got := EMA([]float64{100, 102}, 3); got != 0 {
		t.Errorf("EMA with 2 of 3 closes: got %.4f, want neutral 0", got)
	}
}

func TestEMA_ConstantSeries_ConvergesToPrice(t *testing.T) {
	closes := make([]float64, 250)
	for i := range closes {
		closes[i] = 42.5
	}
	assertClose(t, "EMA(200) constant", EMA(closes, 200), 42.5, 1e-9)
}

func TestEMA_MoreResponsiveThanSMA(t *testing.T) {
	// 20 flat closes at 100 then a jump to 120: the EMA folds the jump in
	// with weight 2/11 while the SMA dilutes it across the window.
	closes := make([]float64, 21)
	for i := 0; i < 20; i++ {
		closes[i] = 100
	}
	closes[20] = 120

	if EMA(closes, 10) <= SMA(closes, 10) {
		t.Errorf("EMA should react more than SMA to a jump: EMA=%.4f, SMA=%.4f",
			EMA(closes, 10), SMA(closes, 10))
	}
}

// ────────────────────────────────────────────────────────────
// RSI Correctness (Wilder's Method)
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness_Period5(t *testing.T) {
	// Small period (5) for manual calculation.
	// Prices: 44, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84
	//
	// Seed deltas (first 5):
	//   +0.34, -0.25, -0.48, +0.72, +0.50
	//   avgGain = (0.34+0.72+0.50)/5 = 0.312
	//   avgLoss = (0.25+0.48)/5      = 0.146
	//   RS = 0.312/0.146 = 2.1370 → RSI = 100 - 100/3.1370 = 68.122
	//
	// Close 45.10: delta=+0.27
	//   avgGain = (0.312*4+0.27)/5 = 0.3036
	//   avgLoss = (0.146*4+0)/5    = 0.1168
	//   RS = 2.5993 → RSI = 72.217
	//
	// Close 45.42: delta=+0.32
	//   avgGain = (0.3036*4+0.32)/5 = 0.30688
	//   avgLoss = (0.1168*4+0)/5    = 0.09344
	//   RS = 3.2842 → RSI = 76.659
	//
	// Close 45.84: delta=+0.42
	//   avgGain = (0.30688*4+0.42)/5 = 0.329504
	//   avgLoss = (0.09344*4+0)/5    = 0.074752
	//   RS = 4.4080 → RSI = 81.509
	prices := []float64{44, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84}

	assertClose(t, "RSI(5) len 6", RSI(prices[:6], 5), 68.122, 0.01)
	assertClose(t, "RSI(5) len 7", RSI(prices[:7], 5), 72.217, 0.01)
	assertClose(t, "RSI(5) len 8", RSI(prices[:8], 5), 76.659, 0.01)
	assertClose(t, "RSI(5) len 9", RSI(prices, 5), 81.509, 0.01)
}

func TestRSI_AllUp_Is100(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	assertClose(t, "RSI all up", RSI(closes, 5), 100.0, 0.001)
}

func TestRSI_AllDown_Is0(t *testing.T) {
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	assertClose(t, "RSI all down", RSI(closes, 5), 0.0, 0.001)
}

func TestRSI_Flat_Is100(t *testing.T) {
	// Flat series: every delta is zero, so avgLoss stays 0 and the
	// avgLoss==0 convention returns 100.
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100
	}
	assertClose(t, "RSI flat", RSI(closes, 5), 100.0, 0.001)
}

func TestRSI_UnderSupplied_IsNeutral50(t *testing.T) {
	// period+1 closes are needed for the first value
	if got := RSI([]float64{100, 101, 102, 103, 104}, 5); got != 50.0 {
		t.Errorf("RSI with 5 of 6 closes: got %.4f, want neutral 50", got)
	}
}

func TestRSI_Bounded(t *testing.T) {
	closes := []float64{100, 105, 95, 110, 90, 120, 80, 130, 70, 140, 60}
	for n := 2; n <= len(closes); n++ {
		got := RSI(closes[:n], 5)
		if got < 0 || got > 100 {
			t.Errorf("RSI out of [0,100] at len %d: %.4f", n, got)
		}
	}
}

// ────────────────────────────────────────────────────────────
// MACD Histogram
// ────────────────────────────────────────────────────────────

func TestMACD_HandComputed(t *testing.T) {
	// Closes: 1, 2, 3. alpha12=2/13, alpha26=2/27, alpha9=0.2.
	//
	// ema12: 1, 2*(2/13)+1*(11/13)=1.153846, 3*(2/13)+1.153846*(11/13)=1.437870
	// ema26: 1, 2*(2/27)+1*(25/27)=1.074074, 3*(2/27)+1.074074*(25/27)=1.216735
	// macd:  0, 0.079772, 0.221135
	// signal: 0, 0.079772*0.2=0.015954, 0.221135*0.2+0.015954*0.8=0.056990
	// hist:  0, 0.063818, 0.164144
	hist, prev := MACDHist([]float64{1, 2, 3})

	assertClose(t, "MACD hist", hist, 0.16414412, 1e-6)
	assertClose(t, "MACD hist prev", prev, 0.06381766, 1e-6)
}

func TestMACD_ConstantSeries_Zero(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 250
	}
	hist, prev := MACDHist(closes)
	assertClose(t, "MACD constant hist", hist, 0, 1e-9)
	assertClose(t, "MACD constant prev", prev, 0, 1e-9)
}

func TestMACD_RisingSeries_PositiveHist(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)*2
	}
	hist, prev := MACDHist(closes)
	if hist <= 0 || prev <= 0 {
		t.Errorf("steady uptrend should give positive histogram: hist=%.6f prev=%.6f", hist, prev)
	}
}

func TestMACD_UnderSupplied_IsZero(t *testing.T) {
	hist, prev := MACDHist([]float64{100})
	if hist != 0 || prev != 0 {
		t.Errorf("MACD with one close: got (%.4f, %.4f), want (0, 0)", hist, prev)
	}
}

// ────────────────────────────────────────────────────────────
// Window FIFO semantics
// ────────────────────────────────────────────────────────────

func TestWindow_FIFOEviction(t *testing.T) {
	w := NewWindow(5)
	for i := 1; i <= 8; i++ {
		w.Push(candleAt(i, float64(i)))
	}

	if w.Len() != 5 {
		t.Fatalf("Len()=%d, want 5", w.Len())
	}
	closes := w.Closes()
	want := []float64{4, 5, 6, 7, 8}
	for i, c := range closes {
		if c != want[i] {
			t.Errorf("Closes()[%d]=%.0f, want %.0f", i, c, want[i])
		}
	}
	last, ok := w.Last()
	if !ok || last.Close != 8 {
		t.Errorf("Last()=%.0f ok=%v, want 8 true", last.Close, ok)
	}
}

func TestWindow_Empty(t *testing.T) {
	w := NewWindow(5)
	if w.Len() != 0 {
		t.Errorf("empty Len()=%d", w.Len())
	}
	if _, ok := w.Last(); ok {
		t.Error("Last() on empty window should report !ok")
	}
	if got := len(w.Closes()); got != 0 {
		t.Errorf("empty Closes() len=%d", got)
	}
}

// ────────────────────────────────────────────────────────────
// Calculator readiness and recompute semantics
// ────────────────────────────────────────────────────────────

func TestCalculator_ReadinessBoundary(t *testing.T) {
	calc := NewCalculator()

	for i := 0; i < MinCandles-1; i++ {
		calc.Update(candleAt(i, 100+math.Sin(float64(i))))
	}
	if _, ok := calc.Analyze(); ok {
		t.Fatalf("Analyze ready at %d candles, want not-ready below %d", calc.WindowLen(), MinCandles)
	}

	calc.Update(candleAt(MinCandles-1, 100))
	if _, ok := calc.Analyze(); !ok {
		t.Fatalf("Analyze not ready at %d candles", calc.WindowLen())
	}
}

func TestCalculator_AnalyzeIdempotent(t *testing.T) {
	calc := NewCalculator()
	for i := 0; i < 220; i++ {
		calc.Update(candleAt(i, 100+5*math.Sin(float64(i)/7)))
	}

	first, ok1 := calc.Analyze()
	second, ok2 := calc.Analyze()
	if !ok1 || !ok2 {
		t.Fatal("Analyze should be ready with 220 candles")
	}
	if first != second {
		t.Errorf("repeated Analyze diverged:\n first=%+v\nsecond=%+v", first, second)
	}
}

func TestCalculator_WindowTrimBoundsRecompute(t *testing.T) {
	// Candles beyond the 300 cap must not influence the result: a run
	// with 10 extreme leading candles equals a run with only the last 300.
	full := NewCalculator()
	for i := 0; i < 10; i++ {
		full.Update(candleAt(i, 1e6))
	}
	for i := 10; i < 310; i++ {
		full.Update(candleAt(i, 100+3*math.Sin(float64(i)/5)))
	}

	trimmed := NewCalculator()
	for i := 10; i < 310; i++ {
		trimmed.Update(candleAt(i, 100+3*math.Sin(float64(i)/5)))
	}

	a, ok1 := full.Analyze()
	b, ok2 := trimmed.Analyze()
	if !ok1 || !ok2 {
		t.Fatal("both calculators should be ready")
	}
	if a != b {
		t.Errorf("evicted candles leaked into the recompute:\n full=%+v\ntrim=%+v", a, b)
	}
}

func TestCalculator_ConstantSeries(t *testing.T) {
	calc := NewCalculator()
	for i := 0; i < 250; i++ {
		calc.Update(candleAt(i, 100))
	}

	snap, ok := calc.Analyze()
	if !ok {
		t.Fatal("Analyze should be ready with 250 candles")
	}
	assertClose(t, "SMA20 constant", snap.SMA20, 100, 1e-9)
	assertClose(t, "EMA200 constant", snap.EMA200, 100, 1e-9)
	assertClose(t, "hist constant", snap.MACDHist, 0, 1e-9)
	assertClose(t, "RSI flat", snap.RSI, 100, 0.001)

	wantTS := baseTime.Add(249 * time.Minute)
	if !snap.Timestamp.Equal(wantTS) {
		t.Errorf("snapshot Timestamp=%v, want last candle open %v", snap.Timestamp, wantTS)
	}
}
