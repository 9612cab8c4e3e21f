// Package metrics exposes Prometheus instrumentation and the liveness
// endpoint for the trading engine.
package metrics

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading engine.
type Metrics struct {
	CandlesTotal   prometheus.Counter
	CyclesTotal    prometheus.Counter
	TradesTotal    *prometheus.CounterVec // labels: side
	FeedReconnects prometheus.Counter
	DroppedEvents  prometheus.Counter
	PersistErrors  prometheus.Counter
	NotifyFailures prometheus.Counter
	CycleDur       prometheus.Histogram

	WindowLen   prometheus.Gauge
	LastPrice   prometheus.Gauge
	RSI         prometheus.Gauge
	CashBalance prometheus.Gauge
	AssetHeld   prometheus.Gauge
	Equity      prometheus.Gauge
	InPosition  prometheus.Gauge // 0=flat, 1=long
}

// NewMetrics registers and returns the full metric set. Pass
// prometheus.DefaultRegisterer in production; tests use a private
// registry so repeated registration cannot collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantbot_candles_total",
			Help: "Total closed candles accepted from the feed",
		}),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantbot_cycles_total",
			Help: "Total ready decision cycles executed",
		}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quantbot_trades_total",
			Help: "Total executed trades (by side)",
		}, []string{"side"}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantbot_feed_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		}),
		DroppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantbot_dropped_events_total",
			Help: "Kline events dropped because the engine channel was full",
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantbot_persist_errors_total",
			Help: "Persistence write failures (logged, cycle continues)",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quantbot_notify_failures_total",
			Help: "Alert deliveries that failed (best-effort, never retried)",
		}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quantbot_cycle_duration_seconds",
			Help:    "Decision cycle latency (analyze through persist)",
			Buckets: prometheus.DefBuckets,
		}),
		WindowLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantbot_window_candles",
			Help: "Candles currently held in the indicator window",
		}),
		LastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantbot_last_price_usd",
			Help: "Close of the most recent candle",
		}),
		RSI: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantbot_rsi",
			Help: "RSI(14) from the most recent ready cycle",
		}),
		CashBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantbot_cash_balance_usd",
			Help: "Portfolio cash balance",
		}),
		AssetHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantbot_asset_balance",
			Help: "Portfolio asset quantity held",
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantbot_portfolio_equity_usd",
			Help: "Portfolio equity (cash + asset at last close)",
		}),
		InPosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quantbot_in_position",
			Help: "Position state (0=flat, 1=long)",
		}),
	}

	reg.MustRegister(
		m.CandlesTotal,
		m.CyclesTotal,
		m.TradesTotal,
		m.FeedReconnects,
		m.DroppedEvents,
		m.PersistErrors,
		m.NotifyFailures,
		m.CycleDur,
		m.WindowLen,
		m.LastPrice,
		m.RSI,
		m.CashBalance,
		m.AssetHeld,
		m.Equity,
		m.InPosition,
	)

	return m
}

// Pinger answers a liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected  bool
	LastCandleTime time.Time
	RedisEnabled   bool
	RedisConnected bool
	StorageOK      bool

	// Liveness probe results
	RedisLatencyMs   float64
	StorageLatencyMs float64
	LastCheckAt      time.Time
	StartedAt        time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCandleTime(t time.Time) {
	h.mu.Lock()
	h.LastCandleTime = t
	h.mu.Unlock()
}

// SetRedisEnabled marks whether a Redis cache is configured. Health
// only counts Redis against overall status when one is.
func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

// CheckRedis probes the cache and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, p Pinger) {
	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckStorage probes the repository and records latency + health.
func (h *HealthStatus) CheckStorage(ctx context.Context, p Pinger) {
	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.StorageOK = err == nil
	h.StorageLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Either pinger
// may be nil when the dependency is not configured.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, redis, storage Pinger, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if redis != nil {
					h.CheckRedis(probeCtx, redis)
				}
				if storage != nil {
					h.CheckStorage(probeCtx, storage)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.FeedConnected || !h.StorageOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if h.RedisEnabled && !h.RedisConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.FeedConnected && !h.StorageOK {
		overallStatus = "unhealthy"
	}

	candleAge := ""
	if !h.LastCandleTime.IsZero() {
		candleAge = time.Since(h.LastCandleTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status           string  `json:"status"`
		Uptime           string  `json:"uptime"`
		FeedConnected    bool    `json:"feed_connected"`
		LastCandleTime   string  `json:"last_candle_time"`
		CandleAge        string  `json:"candle_age"`
		RedisEnabled     bool    `json:"redis_enabled"`
		RedisConnected   bool    `json:"redis_connected"`
		RedisLatencyMs   float64 `json:"redis_latency_ms"`
		StorageOK        bool    `json:"storage_ok"`
		StorageLatencyMs float64 `json:"storage_latency_ms"`
		LastCheckAt      string  `json:"last_check_at"`
	}{
		Status:           overallStatus,
		Uptime:           time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected:    h.FeedConnected,
		LastCandleTime:   h.LastCandleTime.Format(time.RFC3339),
		CandleAge:        candleAge,
		RedisEnabled:     h.RedisEnabled,
		RedisConnected:   h.RedisConnected,
		RedisLatencyMs:   h.RedisLatencyMs,
		StorageOK:        h.StorageOK,
		StorageLatencyMs: h.StorageLatencyMs,
		LastCheckAt:      h.LastCheckAt.Format(time.RFC3339),
	}

	body, err := sonic.Marshal(status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	w.Write(body)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
