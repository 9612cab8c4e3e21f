package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"quantbot/internal/strategy"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Market data
	Symbol  string // lowercase stream symbol, e.g. "btcusdt"
	FeedURL string // override of the kline WebSocket base URL; empty = Binance

	// Storage
	DatabaseURL   string // "sqlite:///path.db" or "postgres://..."
	RedisAddr     string // empty = run without the latest-state cache
	RedisPassword string

	// Notifications
	DiscordWebhookURL string
	TelegramToken     string
	TelegramChatID    int64

	// HTTP listeners
	DashboardAddr string
	MetricsAddr   string

	// Misc
	LogLevel     string
	StrategyFile string // optional YAML overriding strategy params
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Symbol:  strings.ToLower(getEnv("SYMBOL", "btcusdt")),
		FeedURL: getEnv("FEED_URL", ""),

		DatabaseURL:   getEnv("DATABASE_URL", "sqlite:///quantbot.db"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		DiscordWebhookURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		TelegramToken:     getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID:    getEnvInt64("TELEGRAM_CHAT_ID", 0),

		DashboardAddr: getEnv("DASHBOARD_ADDR", ":8080"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9091"),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		StrategyFile: getEnv("STRATEGY_FILE", ""),
	}
}

// DisplaySymbol returns the uppercase symbol used in trade rows and alerts.
func (c *Config) DisplaySymbol() string {
	return strings.ToUpper(c.Symbol)
}

// DatabaseDriver splits DatabaseURL into a driver name and a DSN.
// "sqlite:///x.db" → ("sqlite", "x.db"); "postgres://..." is passed
// through untouched for pgx.
func (c *Config) DatabaseDriver() (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(c.DatabaseURL, "sqlite:///"):
		return "sqlite", strings.TrimPrefix(c.DatabaseURL, "sqlite:///"), nil
	case strings.HasPrefix(c.DatabaseURL, "postgres://"),
		strings.HasPrefix(c.DatabaseURL, "postgresql://"):
		return "postgres", c.DatabaseURL, nil
	default:
		return "", "", fmt.Errorf("config: unsupported DATABASE_URL %q", c.DatabaseURL)
	}
}

// StrategyParams returns the strategy parameters: compiled defaults,
// overridden by the YAML file when STRATEGY_FILE is set.
func (c *Config) StrategyParams() (strategy.Params, error) {
	params := strategy.DefaultParams()
	if c.StrategyFile == "" {
		return params, nil
	}

	data, err := os.ReadFile(c.StrategyFile)
	if err != nil {
		return params, fmt.Errorf("config: read strategy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("config: parse strategy file: %w", err)
	}
	if err := params.Validate(); err != nil {
		return params, fmt.Errorf("config: strategy file %s: %w", c.StrategyFile, err)
	}
	return params, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
