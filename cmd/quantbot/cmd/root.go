package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quantbot",
	Short: "A real-time single-symbol crypto trading agent",
	Long: `Quantbot streams 1m klines from Binance, maintains a rolling indicator
window (RSI, SMA, EMA, MACD) and trades one symbol long-only against a
simulated portfolio.

It provides:
  - A live engine with trailing and hard stops
  - SQLite or Postgres trade/price persistence
  - An optional Redis latest-state cache for fast reads
  - A polling dashboard API and Prometheus metrics
  - Discord and Telegram trade alerts

Configuration is environment driven: SYMBOL, DATABASE_URL, REDIS_ADDR,
DISCORD_WEBHOOK_URL, TELEGRAM_TOKEN, TELEGRAM_CHAT_ID, DASHBOARD_ADDR,
METRICS_ADDR, FEED_URL, LOG_LEVEL and STRATEGY_FILE.`,
}

// Execute runs the root command and all registered subcommands.
func Execute() error {
	return rootCmd.Execute()
}
