package config

import (
	"os"
	"path/filepath"
	"testing"
)

// clearEnv blanks every variable Load reads so defaults apply.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SYMBOL", "FEED_URL", "DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD",
		"DISCORD_WEBHOOK_URL", "TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID",
		"DASHBOARD_ADDR", "METRICS_ADDR", "LOG_LEVEL", "STRATEGY_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	if cfg.Symbol != "btcusdt" {
		t.Errorf("Symbol = %q, want btcusdt", cfg.Symbol)
	}
	if cfg.DatabaseURL != "sqlite:///quantbot.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.DashboardAddr != ":8080" || cfg.MetricsAddr != ":9091" {
		t.Errorf("addrs = %q/%q", cfg.DashboardAddr, cfg.MetricsAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.RedisAddr != "" || cfg.TelegramChatID != 0 {
		t.Error("optional integrations should default off")
	}
}

func TestLoad_SymbolIsLowercased(t *testing.T) {
	clearEnv(t)
	t.Setenv("SYMBOL", "ETHUSDT")

	cfg := Load()
	if cfg.Symbol != "ethusdt" {
		t.Errorf("Symbol = %q, want ethusdt", cfg.Symbol)
	}
	if cfg.DisplaySymbol() != "ETHUSDT" {
		t.Errorf("DisplaySymbol = %q, want ETHUSDT", cfg.DisplaySymbol())
	}
}

func TestLoad_ChatIDParsing(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_CHAT_ID", "123456789")
	if got := Load().TelegramChatID; got != 123456789 {
		t.Errorf("TelegramChatID = %d", got)
	}

	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")
	if got := Load().TelegramChatID; got != 0 {
		t.Errorf("invalid chat id should fall back to 0, got %d", got)
	}
}

func TestDatabaseDriver(t *testing.T) {
	cases := []struct {
		url        string
		wantDriver string
		wantDSN    string
		wantErr    bool
	}{
		{"sqlite:///quantbot.db", "sqlite", "quantbot.db", false},
		{"sqlite:///data/bot.db", "sqlite", "data/bot.db", false},
		{"postgres://bot:pw@localhost:5432/quant", "postgres", "postgres://bot:pw@localhost:5432/quant", false},
		{"postgresql://bot:pw@localhost/quant", "postgres", "postgresql://bot:pw@localhost/quant", false},
		{"mysql://nope", "", "", true},
		{"quantbot.db", "", "", true},
	}

	for _, tc := range cases {
		cfg := &Config{DatabaseURL: tc.url}
		driver, dsn, err := cfg.DatabaseDriver()
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: want error, got %q/%q", tc.url, driver, dsn)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tc.url, err)
			continue
		}
		if driver != tc.wantDriver || dsn != tc.wantDSN {
			t.Errorf("%s: got %q/%q, want %q/%q", tc.url, driver, dsn, tc.wantDriver, tc.wantDSN)
		}
	}
}

func TestStrategyParams_DefaultsWithoutFile(t *testing.T) {
	cfg := &Config{}
	params, err := cfg.StrategyParams()
	if err != nil {
		t.Fatalf("StrategyParams: %v", err)
	}
	if params.RSIBuyBelow != 40 || params.PositionFraction != 0.98 {
		t.Errorf("params = %+v, want defaults", params)
	}
}

func TestStrategyParams_FileOverridesSubset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	body := "rsi_buy_below: 35\ntrailing_stop_pct: 0.05\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{StrategyFile: path}
	params, err := cfg.StrategyParams()
	if err != nil {
		t.Fatalf("StrategyParams: %v", err)
	}
	if params.RSIBuyBelow != 35 {
		t.Errorf("RSIBuyBelow = %v, want 35", params.RSIBuyBelow)
	}
	if params.TrailingStopPct != 0.05 {
		t.Errorf("TrailingStopPct = %v, want 0.05", params.TrailingStopPct)
	}
	// Untouched keys keep their compiled defaults.
	if params.RSISellAbove != 70 || params.HardStopPct != 0.02 {
		t.Errorf("params = %+v, want defaults for unset keys", params)
	}
}

func TestStrategyParams_RejectsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	if err := os.WriteFile(path, []byte("rsi_buy_below: 150\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{StrategyFile: path}
	if _, err := cfg.StrategyParams(); err == nil {
		t.Fatal("want validation error for rsi_buy_below=150")
	}
}

func TestStrategyParams_MissingFileIsError(t *testing.T) {
	cfg := &Config{StrategyFile: filepath.Join(t.TempDir(), "absent.yaml")}
	if _, err := cfg.StrategyParams(); err == nil {
		t.Fatal("want error for missing strategy file")
	}
}
