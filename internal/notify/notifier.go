// Package notify delivers trade alerts to external channels
// (Discord, Telegram) when the engine executes a trade.
//
// Delivery is best-effort: the Fanout dispatches every alert on its
// own goroutine and logs failures instead of returning them, so a dead
// webhook never stalls the trade cycle.
package notify

import (
	"context"
	"log"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"quantbot/internal/model"
)

// sendTimeout bounds a single delivery attempt. Alerts outlive the
// engine cycle that produced them, so dispatch runs on a fresh context
// rather than the cycle's.
const sendTimeout = 15 * time.Second

// usd groups thousands in formatted prices ($45,123.79).
var usd = message.NewPrinter(language.English)

// Alert is one trade notification.
type Alert struct {
	Side   model.Side `json:"side"`
	Price  float64    `json:"price"`
	RSI    float64    `json:"rsi"`
	Reason string     `json:"reason"`
	At     time.Time  `json:"at"`
}

// Message renders the alert in the format every backend sends.
func (a Alert) Message() string {
	return usd.Sprintf("🚨 **%s** | Price: $%.2f | RSI: %.1f | Reason: %s",
		string(a.Side), a.Price, a.RSI, a.Reason)
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Name identifies the backend in logs.
	Name() string

	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts through the structured logger. Always
// configured, so every trade leaves a log line even with no external
// channel set up.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, a Alert) error {
	n.log.Info("trade alert",
		slog.String("side", string(a.Side)),
		slog.Float64("price", a.Price),
		slog.Float64("rsi", a.RSI),
		slog.String("reason", a.Reason),
	)
	return nil
}

// Fanout dispatches alerts to every configured backend.
type Fanout struct {
	notifiers []Notifier
	wg        sync.WaitGroup

	// OnError is an optional hook invoked for each failed delivery,
	// after the failure has been logged.
	OnError func(name string, err error)
}

// NewFanout creates a fanout over the given backends. An empty fanout
// is valid and drops every alert.
func NewFanout(notifiers ...Notifier) *Fanout {
	return &Fanout{notifiers: notifiers}
}

// Dispatch sends the alert to each backend on its own goroutine and
// returns immediately. Failures are logged, never propagated.
func (f *Fanout) Dispatch(a Alert) {
	for _, n := range f.notifiers {
		f.wg.Add(1)
		go func(n Notifier) {
			defer f.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := n.Send(ctx, a); err != nil {
				log.Printf("[notify] %s delivery failed: %v", n.Name(), err)
				if f.OnError != nil {
					f.OnError(n.Name(), err)
				}
			}
		}(n)
	}
}

// Wait blocks until all in-flight deliveries finish. Called on
// shutdown so the last trade's alerts are not cut off mid-send.
func (f *Fanout) Wait() {
	f.wg.Wait()
}
