package indicator

import "quantbot/internal/model"

// Window is a bounded FIFO of closed candles backed by a circular slice.
// Once full, each Push evicts the oldest entry, so the window always holds
// the most recent ≤cap candles in arrival order.
type Window struct {
	buf   []model.Candle
	start int
	count int
}

// NewWindow creates a window holding at most capacity candles.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]model.Candle, capacity)}
}

// Push appends a candle, evicting the oldest once the window is full.
func (w *Window) Push(c model.Candle) {
	if w.count < len(w.buf) {
		w.buf[(w.start+w.count)%len(w.buf)] = c
		w.count++
		return
	}
	w.buf[w.start] = c
	w.start = (w.start + 1) % len(w.buf)
}

// Len returns the number of candles currently held.
func (w *Window) Len() int { return w.count }

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Last returns the most recently pushed candle.
func (w *Window) Last() (model.Candle, bool) {
	if w.count == 0 {
		return model.Candle{}, false
	}
	return w.buf[(w.start+w.count-1)%len(w.buf)], true
}

// Closes materializes the close prices in arrival order, oldest first.
func (w *Window) Closes() []float64 {
	out := make([]float64, w.count)
	for i := 0; i < w.count; i++ {
		out[i] = w.buf[(w.start+i)%len(w.buf)].Close
	}
	return out
}
