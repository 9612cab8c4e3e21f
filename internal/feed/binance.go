// Package feed streams kline events from the Binance public WebSocket API
// into the engine pipeline.
//
// Wire format (one JSON message per kline update, prices as strings):
//
//	{"e":"kline","s":"BTCUSDT","k":{"t":1718510400000,"o":"67000.1",
//	 "h":"67100.0","l":"66900.2","c":"67050.9","v":"12.4","x":true}}
//
// Numeric fields are converted to float64 exactly once here; downstream
// code only ever sees model.KlineEvent.
package feed

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"quantbot/internal/model"
)

// Config holds configuration for the Binance kline feed.
type Config struct {
	// Symbol is the lowercase stream symbol, e.g. "btcusdt".
	Symbol string

	// BaseURL of the Binance WebSocket endpoint.
	// Defaults to wss://stream.binance.com:9443/ws.
	BaseURL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 5 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 60s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "wss://stream.binance.com:9443/ws"
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 60 * time.Second
	}
}

// Driver connects to the 1m kline stream for one symbol and pushes
// model.KlineEvent values into the event channel. Missed candles are not
// replayed after a reconnect; the indicator window absorbs the gap.
type Driver struct {
	cfg Config

	// Optional hooks, called from the feed goroutine.
	OnConnect    func()
	OnDisconnect func()
	OnReconnect  func()
	OnDrop       func()
}

// New creates a Driver. The symbol must be non-empty.
func New(cfg Config) (*Driver, error) {
	cfg.defaults()
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("feed: symbol is required")
	}
	return &Driver{cfg: cfg}, nil
}

// StreamURL returns the full WebSocket URL for the configured symbol.
func (d *Driver) StreamURL() string {
	return fmt.Sprintf("%s/%s@kline_1m", d.cfg.BaseURL, d.cfg.Symbol)
}

// Start connects and streams kline events into eventCh. Blocks until ctx
// is cancelled. Reconnects automatically with exponential backoff.
func (d *Driver) Start(ctx context.Context, eventCh chan<- model.KlineEvent) error {
	delay := d.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := d.runOnce(ctx, eventCh)
		if d.OnDisconnect != nil {
			d.OnDisconnect()
		}
		if err == nil {
			// Context cancelled cleanly
			return nil
		}

		log.Printf("[feed] disconnected (%v), reconnecting in %s...", err, delay)
		if d.OnReconnect != nil {
			d.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > d.cfg.MaxReconnectDelay {
			delay = d.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or
// ctx cancellation.
func (d *Driver) runOnce(ctx context.Context, eventCh chan<- model.KlineEvent) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.StreamURL(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[feed] connected to %s", d.StreamURL())
	if d.OnConnect != nil {
		d.OnConnect()
	}

	// Context watcher — closes the connection when ctx is cancelled.
	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		event, err := parseKline(raw)
		if err != nil {
			log.Printf("[feed] parse error: %v (raw: %s)", err, raw)
			continue
		}

		select {
		case eventCh <- event:
		default:
			log.Println("[feed] event channel full, dropping kline")
			if d.OnDrop != nil {
				d.OnDrop()
			}
		}
	}
}

// klineMessage mirrors the Binance kline stream payload. Prices arrive as
// decimal strings.
type klineMessage struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Kline     struct {
		OpenTime int64  `json:"t"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		IsClosed bool   `json:"x"`
	} `json:"k"`
}

// parseKline decodes one raw stream message into a model.KlineEvent.
func parseKline(raw []byte) (model.KlineEvent, error) {
	var msg klineMessage
	if err := sonic.Unmarshal(raw, &msg); err != nil {
		return model.KlineEvent{}, fmt.Errorf("decode kline: %w", err)
	}
	if msg.EventType != "kline" {
		return model.KlineEvent{}, fmt.Errorf("unexpected event type %q", msg.EventType)
	}
	if msg.Kline.OpenTime <= 0 {
		return model.KlineEvent{}, fmt.Errorf("missing kline open time")
	}

	var (
		candle model.Candle
		err    error
	)
	candle.OpenTime = time.UnixMilli(msg.Kline.OpenTime).UTC()
	if candle.Open, err = strconv.ParseFloat(msg.Kline.Open, 64); err != nil {
		return model.KlineEvent{}, fmt.Errorf("parse open %q: %w", msg.Kline.Open, err)
	}
	if candle.High, err = strconv.ParseFloat(msg.Kline.High, 64); err != nil {
		return model.KlineEvent{}, fmt.Errorf("parse high %q: %w", msg.Kline.High, err)
	}
	if candle.Low, err = strconv.ParseFloat(msg.Kline.Low, 64); err != nil {
		return model.KlineEvent{}, fmt.Errorf("parse low %q: %w", msg.Kline.Low, err)
	}
	if candle.Close, err = strconv.ParseFloat(msg.Kline.Close, 64); err != nil {
		return model.KlineEvent{}, fmt.Errorf("parse close %q: %w", msg.Kline.Close, err)
	}
	if candle.Volume, err = strconv.ParseFloat(msg.Kline.Volume, 64); err != nil {
		return model.KlineEvent{}, fmt.Errorf("parse volume %q: %w", msg.Kline.Volume, err)
	}

	return model.KlineEvent{
		Symbol:   msg.Symbol,
		Candle:   candle,
		IsClosed: msg.Kline.IsClosed,
	}, nil
}
