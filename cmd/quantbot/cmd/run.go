package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"quantbot/config"
	"quantbot/internal/dashboard"
	"quantbot/internal/engine"
	"quantbot/internal/feed"
	"quantbot/internal/indicator"
	"quantbot/internal/logger"
	"quantbot/internal/metrics"
	"quantbot/internal/model"
	"quantbot/internal/notify"
	"quantbot/internal/portfolio"
	"quantbot/internal/store/postgres"
	"quantbot/internal/store/rediscache"
	"quantbot/internal/store/sqlite"
	"quantbot/internal/strategy"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live trading engine",
	Long: `Run the live trading engine against the Binance kline stream.

The engine processes one closed candle at a time: indicator update,
signal evaluation, ledger apply, persistence, alert fanout. The
dashboard and metrics listeners run alongside it.

Example:
  SYMBOL=btcusdt DATABASE_URL=sqlite:///quantbot.db quantbot run`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	// ---- Logging ----
	logg := logger.Init("quantbot", logger.ParseLevel(cfg.LogLevel))
	log.Printf("[quantbot] starting, symbol=%s", cfg.DisplaySymbol())

	// ---- Strategy parameters ----
	params, err := cfg.StrategyParams()
	if err != nil {
		return fmt.Errorf("strategy params: %w", err)
	}

	// ---- Shutdown context ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Durable storage ----
	repo, storePing, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	// ---- Metrics & health ----
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Latest-state cache (optional) ----
	var (
		cache     *rediscache.Cache
		mirror    engine.Mirror
		fast      dashboard.FastReader
		cachePing metrics.Pinger
	)
	if cfg.RedisAddr != "" {
		cache, err = rediscache.New(rediscache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[quantbot] WARNING: redis init failed: %v (continuing without cache)", err)
		} else {
			health.SetRedisEnabled(true)
			mirror, fast, cachePing = cache, cache, cache
			defer cache.Close()
		}
	}

	// ---- Periodic liveness checks ----
	health.StartLivenessChecker(ctx, cachePing, storePing, 10*time.Second)

	// ---- Portfolio ledger (restore or seed) ----
	ledger := portfolio.NewLedger(cfg.DisplaySymbol(), params.PositionFraction)
	pf, found, err := repo.LoadPortfolio(ctx)
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}
	if found {
		ledger.Restore(pf)
		log.Printf("[quantbot] portfolio restored: cash=%.2f asset=%.6f inPosition=%v",
			pf.CashBalance, pf.AssetBalance, pf.InPosition)
	} else {
		if err := repo.SavePortfolio(ctx, ledger.View()); err != nil {
			return fmt.Errorf("seed portfolio: %w", err)
		}
		log.Printf("[quantbot] fresh portfolio seeded with $%.2f", portfolio.SeedCash)
	}

	// ---- Trade alerts ----
	notifiers := []notify.Notifier{notify.NewLogNotifier(logg)}
	if cfg.DiscordWebhookURL != "" {
		notifiers = append(notifiers, notify.NewDiscordNotifier(cfg.DiscordWebhookURL))
		log.Println("[quantbot] discord alerts enabled")
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Printf("[quantbot] WARNING: telegram init failed: %v (continuing without telegram)", err)
		} else {
			notifiers = append(notifiers, tg)
			log.Println("[quantbot] telegram alerts enabled")
		}
	}
	alerts := notify.NewFanout(notifiers...)
	alerts.OnError = func(name string, err error) {
		m.NotifyFailures.Inc()
	}

	// ---- Dashboard API ----
	dash := dashboard.NewServer(cfg.DashboardAddr, dashboard.Deps{
		Symbol: cfg.DisplaySymbol(),
		Repo:   repo,
		Fast:   fast,
		Ledger: ledger,
	})
	dash.Start()

	// ---- Kline feed ----
	drv, err := feed.New(feed.Config{Symbol: cfg.Symbol, BaseURL: cfg.FeedURL})
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	drv.OnConnect = func() { health.SetFeedConnected(true) }
	drv.OnDisconnect = func() { health.SetFeedConnected(false) }
	drv.OnReconnect = func() { m.FeedReconnects.Inc() }
	drv.OnDrop = func() { m.DroppedEvents.Inc() }

	eventCh := make(chan model.KlineEvent, 1024)
	go func() {
		defer close(eventCh)
		if err := drv.Start(ctx, eventCh); err != nil {
			logg.Error("feed stopped", slog.Any("error", err))
		}
	}()

	// ---- Engine ----
	eng := engine.New(engine.Deps{
		Symbol:  cfg.DisplaySymbol(),
		Calc:    indicator.NewCalculator(),
		Decide:  strategy.NewEvaluator(params),
		Ledger:  ledger,
		Repo:    repo,
		Mirror:  mirror,
		Alerts:  alerts,
		Metrics: m,
		Health:  health,
		Log:     logg,
	})

	log.Println("[quantbot] ╔══════════════════════════════════════════════════════════╗")
	log.Println("[quantbot] ║  Quant Bot — Real Time Engine                             ║")
	log.Println("[quantbot] ║                                                           ║")
	log.Println("[quantbot] ║  [Binance WS] → [Indicators] → [Signal] → [Ledger]        ║")
	log.Printf("[quantbot] ║  Symbol: %-48s ║", cfg.DisplaySymbol())
	log.Printf("[quantbot] ║  Dashboard: %s  Metrics: %-23s ║", cfg.DashboardAddr, cfg.MetricsAddr)
	log.Println("[quantbot] ╚══════════════════════════════════════════════════════════╝")

	if err := eng.Run(ctx, eventCh); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	// ---- Graceful shutdown ----
	log.Println("[quantbot] shutdown signal received, cleaning up...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dash.Stop(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	alerts.Wait()

	if err := repo.SavePortfolio(shutdownCtx, ledger.View()); err != nil {
		log.Printf("[quantbot] final portfolio save failed: %v", err)
	}

	log.Println("[quantbot] shutdown complete.")
	return nil
}

// openStore opens the repository named by DATABASE_URL. The returned
// Pinger feeds the liveness checker; it is the same object as the
// repository.
func openStore(ctx context.Context, cfg *config.Config) (model.Repository, metrics.Pinger, error) {
	driver, dsn, err := cfg.DatabaseDriver()
	if err != nil {
		return nil, nil, err
	}

	switch driver {
	case "sqlite":
		st, err := sqlite.New(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return st, st, nil
	case "postgres":
		st, err := postgres.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return st, st, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
