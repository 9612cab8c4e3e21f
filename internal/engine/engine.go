// Package engine runs the decision pipeline. One closed candle flows
// through update → analyze → decide → apply → persist before the next
// candle is accepted; trades are therefore applied strictly in candle
// order.
package engine

import (
	"context"
	"log/slog"
	"time"

	"quantbot/internal/indicator"
	"quantbot/internal/logger"
	"quantbot/internal/metrics"
	"quantbot/internal/model"
	"quantbot/internal/notify"
	"quantbot/internal/portfolio"
	"quantbot/internal/strategy"
)

// warmupLogEvery throttles progress logging while the indicator window
// fills.
const warmupLogEvery = 25

// Decider turns one indicator snapshot into a trading decision.
type Decider interface {
	Evaluate(snap model.IndicatorSnapshot, price float64, pf model.Portfolio) strategy.Decision
}

// Mirror receives best-effort copies of cycle state for fast reads.
// Implementations must not fail the cycle; errors stay internal.
type Mirror interface {
	SetCycle(ctx context.Context, price model.PricePoint, snap model.IndicatorSnapshot)
	SetTrade(ctx context.Context, trade model.Trade, pf model.Portfolio)
}

// Deps are the collaborators the engine drives. Mirror may be nil when
// no cache is configured.
type Deps struct {
	Symbol  string
	Calc    *indicator.Calculator
	Decide  Decider
	Ledger  *portfolio.Ledger
	Repo    model.Repository
	Mirror  Mirror
	Alerts  *notify.Fanout
	Metrics *metrics.Metrics
	Health  *metrics.HealthStatus
	Log     *slog.Logger
}

// Engine owns the sequential trade cycle. It is the only writer of the
// ledger and the only caller of the repository's write methods.
type Engine struct {
	symbol  string
	calc    *indicator.Calculator
	decide  Decider
	ledger  *portfolio.Ledger
	repo    model.Repository
	mirror  Mirror
	alerts  *notify.Fanout
	metrics *metrics.Metrics
	health  *metrics.HealthStatus
	log     *slog.Logger
}

// New wires an engine from its collaborators.
func New(d Deps) *Engine {
	return &Engine{
		symbol:  d.Symbol,
		calc:    d.Calc,
		decide:  d.Decide,
		ledger:  d.Ledger,
		repo:    d.Repo,
		mirror:  d.Mirror,
		alerts:  d.Alerts,
		metrics: d.Metrics,
		health:  d.Health,
		log:     d.Log,
	}
}

// Run consumes kline events until ctx is cancelled or eventCh closes.
// Only closed candles enter the cycle; intermediate updates are
// discarded here so the calculator never sees a half-built bar.
func (e *Engine) Run(ctx context.Context, eventCh <-chan model.KlineEvent) error {
	e.log.Info("engine started", slog.String("symbol", e.symbol))
	for {
		select {
		case <-ctx.Done():
			e.log.Info("engine stopped")
			return nil
		case ev, ok := <-eventCh:
			if !ok {
				e.log.Info("feed channel closed, engine stopped")
				return nil
			}
			if !ev.IsClosed {
				continue
			}
			e.cycle(ctx, ev.Candle)
		}
	}
}

// cycle processes exactly one closed candle.
func (e *Engine) cycle(ctx context.Context, candle model.Candle) {
	start := time.Now()
	e.metrics.CandlesTotal.Inc()
	e.metrics.LastPrice.Set(candle.Close)
	e.health.SetLastCandleTime(candle.OpenTime)

	e.calc.Update(candle)
	e.metrics.WindowLen.Set(float64(e.calc.WindowLen()))

	snap, ready := e.calc.Analyze()
	if !ready {
		if n := e.calc.WindowLen(); n%warmupLogEvery == 0 {
			e.log.Info("warming up",
				slog.Int("candles", n),
				slog.Int("required", indicator.MinCandles))
		}
		return
	}

	price := candle.Close
	ctx = logger.WithTraceID(ctx, logger.CycleTraceID(e.symbol, candle.OpenTime))

	decision := e.decide.Evaluate(snap, price, e.ledger.View())
	pf, trade := e.ledger.Apply(decision, price, time.Now().UTC())

	e.persist(ctx, price, snap, pf, trade)

	if trade != nil {
		e.metrics.TradesTotal.WithLabelValues(string(trade.Side)).Inc()
		args := []any{
			slog.String("side", string(trade.Side)),
			slog.Float64("price", trade.Price),
			slog.Float64("quantity", trade.Quantity),
			slog.String("reason", trade.Reason),
			slog.Float64("cash", pf.CashBalance),
			slog.Float64("asset", pf.AssetBalance),
		}
		args = append(args, logger.LogWithTrace(ctx)...)
		e.log.Info("trade executed", args...)

		e.alerts.Dispatch(notify.Alert{
			Side:   trade.Side,
			Price:  trade.Price,
			RSI:    snap.RSI,
			Reason: trade.Reason,
			At:     trade.Timestamp,
		})
	}

	e.metrics.CyclesTotal.Inc()
	e.metrics.RSI.Set(snap.RSI)
	e.metrics.CashBalance.Set(pf.CashBalance)
	e.metrics.AssetHeld.Set(pf.AssetBalance)
	e.metrics.Equity.Set(portfolio.Equity(pf, price))
	if pf.InPosition {
		e.metrics.InPosition.Set(1)
	} else {
		e.metrics.InPosition.Set(0)
	}
	e.metrics.CycleDur.Observe(time.Since(start).Seconds())
}

// persist writes the cycle's outputs. Failures are logged and counted
// but never abort the cycle; the trade and portfolio row travel in one
// transaction inside RecordTrade.
func (e *Engine) persist(ctx context.Context, price float64, snap model.IndicatorSnapshot, pf model.Portfolio, trade *model.Trade) {
	point := model.PricePoint{Timestamp: snap.Timestamp, Price: price}

	if err := e.repo.SavePrice(ctx, point); err != nil {
		e.metrics.PersistErrors.Inc()
		e.log.Error("persist price failed",
			append([]any{slog.Any("error", err)}, logger.LogWithTrace(ctx)...)...)
	}
	if err := e.repo.SaveIndicators(ctx, snap); err != nil {
		e.metrics.PersistErrors.Inc()
		e.log.Error("persist indicators failed",
			append([]any{slog.Any("error", err)}, logger.LogWithTrace(ctx)...)...)
	}
	if trade != nil {
		if err := e.repo.RecordTrade(ctx, *trade, pf); err != nil {
			e.metrics.PersistErrors.Inc()
			e.log.Error("persist trade failed",
				append([]any{slog.Any("error", err)}, logger.LogWithTrace(ctx)...)...)
		}
	}

	if e.mirror != nil {
		e.mirror.SetCycle(ctx, point, snap)
		if trade != nil {
			e.mirror.SetTrade(ctx, *trade, pf)
		}
	}
}
