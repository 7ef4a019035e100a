package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
strategy:
  symbol: BTC
data:
  csv_path: prices.csv
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backtest.InitialCapital != 100000 || cfg.Backtest.SlippageBps != 5 || !cfg.Backtest.UseMarketOrders {
		t.Errorf("unexpected backtest defaults %+v", cfg.Backtest)
	}
	if cfg.Backtest.StopLossPct != nil || cfg.Backtest.TakeProfitPct != nil {
		t.Errorf("stop-loss and take-profit should default to disabled")
	}
	if cfg.Exchange.Retry.MinDelay != 500*time.Millisecond {
		t.Errorf("duration hook not applied: %s", cfg.Exchange.Retry.MinDelay)
	}
	if cfg.Strategy.FastPeriod != 10 || cfg.Strategy.SlowPeriod != 50 {
		t.Errorf("unexpected strategy defaults %+v", cfg.Strategy)
	}
}

func TestLoad_ParsesOverrides(t *testing.T) {
	path := writeConfig(t, `
backtest:
  stop_loss_pct: 5
  take_profit_pct: 12.5
walk_forward:
  enabled: true
  train_bars: 100
  test_bars: 20
  step_bars: 20
data:
  source: exchange
  symbols: BTC/USDT,ETH/USDT
  start: "2024-01-01T00:00:00Z"
strategy:
  name: sma_grid
  symbol: BTC/USDT
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backtest.StopLossPct == nil || *cfg.Backtest.StopLossPct != 5 {
		t.Errorf("stop loss not parsed: %v", cfg.Backtest.StopLossPct)
	}
	if cfg.Backtest.TakeProfitPct == nil || *cfg.Backtest.TakeProfitPct != 12.5 {
		t.Errorf("take profit not parsed: %v", cfg.Backtest.TakeProfitPct)
	}
	if len(cfg.Data.Symbols) != 2 || cfg.Data.Symbols[1] != "ETH/USDT" {
		t.Errorf("slice hook not applied: %v", cfg.Data.Symbols)
	}
	if !cfg.Data.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start not parsed: %s", cfg.Data.Start)
	}
	if !cfg.WalkForward.Enabled || cfg.WalkForward.TrainBars != 100 {
		t.Errorf("unexpected walk-forward config %+v", cfg.WalkForward)
	}
}

func TestLoad_StopAndTakeProfitFromEnv(t *testing.T) {
	t.Setenv("BACKTEST_BACKTEST_STOP_LOSS_PCT", "7")
	t.Setenv("BACKTEST_BACKTEST_TAKE_PROFIT_PCT", "15.5")
	path := writeConfig(t, `
strategy:
  symbol: BTC
data:
  csv_path: prices.csv
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backtest.StopLossPct == nil || *cfg.Backtest.StopLossPct != 7 {
		t.Errorf("stop loss env override ignored: %v", cfg.Backtest.StopLossPct)
	}
	if cfg.Backtest.TakeProfitPct == nil || *cfg.Backtest.TakeProfitPct != 15.5 {
		t.Errorf("take profit env override ignored: %v", cfg.Backtest.TakeProfitPct)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Config{
		Data:     DataConfig{Source: "ftp"},
		Strategy: StrategyConfig{Name: "sma", FastPeriod: 20, SlowPeriod: 10},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"app.environment", "backtest.initial_capital", "data.source", "strategy.symbol", "strategy.fast_period", "logging.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}
