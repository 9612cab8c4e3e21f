// cmd/klinesim — Demo WebSocket kline server.
// Broadcasts simulated Binance-style kline frames so the engine can run
// locally without touching the real exchange.
//
// Frame shape matches the stream internal/feed consumes (prices as strings):
//
//	{"e":"kline","s":"BTCUSDT","k":{"t":1718510400000,"o":"67000.10",
//	 "h":"67010.00","l":"66990.00","c":"67005.50","v":"12.40","x":true}}
//
// Config (env vars):
//
//	KLINESIM_ADDR       — listen address (default ":9002")
//	KLINESIM_SYMBOLS    — comma-separated SYMBOL:STARTPRICE pairs (default "btcusdt:67000")
//	KLINESIM_CANDLE_MS  — simulated candle period in ms (default "2000")
//
// Each candle period emits three forming updates and one closed frame.
// Open times advance by one minute per closed candle regardless of the
// real period, so the indicator window sees a plausible 1m series at
// whatever speed the simulation runs. Point the engine at it with:
//
//	FEED_URL=ws://localhost:9002/ws quantbot run
package main

import (
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// klineFrame mirrors the Binance kline stream payload.
type klineFrame struct {
	EventType string       `json:"e"`
	Symbol    string       `json:"s"`
	Kline     klinePayload `json:"k"`
}

type klinePayload struct {
	OpenTime int64  `json:"t"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
	IsClosed bool   `json:"x"`
}

// instrument holds per-symbol simulation state: the candle being built.
type instrument struct {
	Symbol   string // lowercase stream symbol
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// ─── Hub ──────────────────────────────────────────────────────────────────────

type client struct {
	ch     chan []byte
	symbol string // lowercase stream symbol this client subscribed to
}

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]*client)}
}

func (h *hub) register(conn *websocket.Conn, symbol string) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = &client{ch: ch, symbol: symbol}
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if c, ok := h.clients[conn]; ok {
		close(c.ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

// broadcast delivers msg to every client subscribed to symbol.
func (h *hub) broadcast(symbol string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.symbol != symbol {
			continue
		}
		select {
		case c.ch <- msg:
		default: // slow client — drop frame
		}
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// wsHandler serves /ws/<symbol>@kline_1m, mirroring the exchange path
// layout so FEED_URL can point here unchanged.
func wsHandler(h *hub, known map[string]bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stream := strings.TrimPrefix(r.URL.Path, "/ws/")
		symbol := strings.SplitN(stream, "@", 2)[0]
		if !known[symbol] {
			http.Error(w, "unknown stream", http.StatusNotFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[klinesim] upgrade error: %v", err)
			return
		}
		log.Printf("[klinesim] client connected: %s (%s)", r.RemoteAddr, stream)

		ch := h.register(conn, symbol)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[klinesim] client disconnected: %s", r.RemoteAddr)
		}()

		// Write pump: sends kline frames to this client.
		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── Kline generator ──────────────────────────────────────────────────────────

// walkPrice applies a tiny random walk (±0.1%) to simulate price movement.
func walkPrice(price float64) float64 {
	pct := (rand.Float64()*0.2 - 0.1) / 100.0
	next := price * (1 + pct)
	if next < 0.01 {
		next = 0.01
	}
	return next
}

func (in *instrument) frame(closed bool) ([]byte, error) {
	f := klineFrame{
		EventType: "kline",
		Symbol:    strings.ToUpper(in.Symbol),
		Kline: klinePayload{
			OpenTime: in.OpenTime.UnixMilli(),
			Open:     strconv.FormatFloat(in.Open, 'f', 2, 64),
			High:     strconv.FormatFloat(in.High, 'f', 2, 64),
			Low:      strconv.FormatFloat(in.Low, 'f', 2, 64),
			Close:    strconv.FormatFloat(in.Close, 'f', 2, 64),
			Volume:   strconv.FormatFloat(in.Volume, 'f', 2, 64),
			IsClosed: closed,
		},
	}
	return sonic.Marshal(f)
}

// tick advances the forming candle by one random-walk step.
func (in *instrument) tick() {
	in.Close = walkPrice(in.Close)
	if in.Close > in.High {
		in.High = in.Close
	}
	if in.Close < in.Low {
		in.Low = in.Close
	}
	in.Volume += rand.Float64() * 5
}

// roll closes the current candle and opens the next one a minute later.
func (in *instrument) roll() {
	in.OpenTime = in.OpenTime.Add(time.Minute)
	in.Open = in.Close
	in.High = in.Close
	in.Low = in.Close
	in.Volume = 0
}

// runGenerator emits three forming updates then a closed frame per candle
// period, for every instrument.
func runGenerator(h *hub, instruments []*instrument, periodMs int) {
	ticker := time.NewTicker(time.Duration(periodMs) * time.Millisecond / 4)
	defer ticker.Stop()

	step := 0
	for range ticker.C {
		step++
		closed := step%4 == 0
		for _, in := range instruments {
			in.tick()
			msg, err := in.frame(closed)
			if err != nil {
				continue
			}
			h.broadcast(in.Symbol, msg)
			if closed {
				in.roll()
			}
		}
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[klinesim] starting demo kline server...")

	addr := envOrDefault("KLINESIM_ADDR", ":9002")
	symbolsEnv := envOrDefault("KLINESIM_SYMBOLS", "btcusdt:67000")
	periodMs := envIntOrDefault("KLINESIM_CANDLE_MS", 2000)

	instruments := parseInstruments(symbolsEnv)
	if len(instruments) == 0 {
		log.Fatalf("[klinesim] no symbols configured via KLINESIM_SYMBOLS")
	}
	known := make(map[string]bool, len(instruments))
	for _, in := range instruments {
		known[in.Symbol] = true
		log.Printf("[klinesim] %s starting at %.2f", in.Symbol, in.Open)
	}
	log.Printf("[klinesim] candle period: %dms (forming update every quarter)", periodMs)

	h := newHub()
	go runGenerator(h, instruments, periodMs)

	http.HandleFunc("/ws/", wsHandler(h, known))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"klinesim"}`)
	})

	log.Printf("[klinesim] ✅ listening on %s  (stream: ws://localhost%s/ws/<symbol>@kline_1m)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[klinesim] server error: %v", err)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

// parseInstruments parses "btcusdt:67000,ethusdt:3500" into starting state.
func parseInstruments(s string) []*instrument {
	var result []*instrument
	now := time.Now().UTC().Truncate(time.Minute)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		seg := strings.SplitN(part, ":", 2)
		if len(seg) != 2 {
			log.Printf("[klinesim] skipping invalid symbol spec: %q", part)
			continue
		}
		symbol := strings.ToLower(strings.TrimSpace(seg[0]))
		price, err := strconv.ParseFloat(strings.TrimSpace(seg[1]), 64)
		if err != nil || price <= 0 {
			log.Printf("[klinesim] skipping symbol %q: bad start price %q", symbol, seg[1])
			continue
		}
		result = append(result, &instrument{
			Symbol:   symbol,
			OpenTime: now,
			Open:     price,
			High:     price,
			Low:      price,
			Close:    price,
		})
	}
	return result
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
