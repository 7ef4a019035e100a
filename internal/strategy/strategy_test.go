package strategy

import (
	"context"
	"reflect"
	"testing"
	"time"

	"trades-backtest/internal/backtest"
	"trades-backtest/internal/marketdata"
	"trades-backtest/internal/signal"
)

func buildSeries(t *testing.T, prices []float64) marketdata.Series {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]marketdata.Bar, len(prices))
	for i, p := range prices {
		bars[i] = marketdata.Bar{Timestamp: base.AddDate(0, 0, i), Prices: map[string]float64{"BTC": p}}
	}
	s, err := marketdata.NewSeries(bars)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	return s
}

func TestSMACrossover_Signals(t *testing.T) {
	strat, err := NewSMACrossover("BTC", 2, 4)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	if _, ok, _ := strat.Signal(ctx, buildSeries(t, []float64{1, 2, 3})); ok {
		t.Errorf("expected no signal before the slow window fills")
	}

	sig, ok, err := strat.Signal(ctx, buildSeries(t, []float64{1, 2, 3, 4}))
	if err != nil || !ok || sig.Action != signal.ActionBuy || sig.Symbol != "BTC" {
		t.Errorf("rising prices should buy, got %+v ok=%v err=%v", sig, ok, err)
	}

	sig, ok, _ = strat.Signal(ctx, buildSeries(t, []float64{4, 3, 2, 1}))
	if !ok || sig.Action != signal.ActionSell {
		t.Errorf("falling prices should sell, got %+v", sig)
	}

	if _, ok, _ := strat.Signal(ctx, buildSeries(t, []float64{5, 5, 5, 5})); ok {
		t.Errorf("equal averages should not signal")
	}
}

func TestNewSMACrossover_RejectsBadPeriods(t *testing.T) {
	for _, p := range []Pair{{0, 5}, {5, 5}, {6, 3}} {
		if _, err := NewSMACrossover("BTC", p.Fast, p.Slow); err == nil {
			t.Errorf("expected error for %+v", p)
		}
	}
}

func TestPairs(t *testing.T) {
	got := Pairs([]int{5, 10, 20}, []int{10, 30})
	want := []Pair{{5, 10}, {5, 30}, {10, 30}, {20, 30}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Pairs = %v, want %v", got, want)
	}
}

func TestGridFactory_PicksHighestSharpe(t *testing.T) {
	cfg := backtest.DefaultConfig()
	engine, err := backtest.NewEngine(cfg, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	prices := make([]float64, 80)
	for i := range prices {
		prices[i] = 100 + float64(i%9)*3 - float64(i%4)*2 + float64(i)*0.5
	}
	train := buildSeries(t, prices)
	pairs := []Pair{{2, 5}, {3, 8}, {5, 20}}

	factory, err := NewGridFactory(engine, "BTC", pairs, 2, nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	built, err := factory.Build(context.Background(), train)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	bestIdx, bestSharpe := -1, 0.0
	for i, p := range pairs {
		candidate, _ := NewSMACrossover("BTC", p.Fast, p.Slow)
		res, err := engine.Run(context.Background(), train, candidate)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if bestIdx < 0 || res.Metrics.SharpeRatio > bestSharpe {
			bestIdx, bestSharpe = i, res.Metrics.SharpeRatio
		}
	}

	fast, slow := built.(*SMACrossover).Periods()
	if fast != pairs[bestIdx].Fast || slow != pairs[bestIdx].Slow {
		t.Errorf("chose fast=%d slow=%d, want %+v", fast, slow, pairs[bestIdx])
	}
}

func TestGridFactory_TiesPickFirstPair(t *testing.T) {
	engine, err := backtest.NewEngine(backtest.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	// 数据不足任何慢线周期，所有组合夏普均为 0
	train := buildSeries(t, []float64{1, 2, 3})
	factory, err := NewGridFactory(engine, "BTC", []Pair{{5, 10}, {2, 20}}, 1, nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	built, err := factory.Build(context.Background(), train)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if fast, slow := built.(*SMACrossover).Periods(); fast != 5 || slow != 10 {
		t.Errorf("expected first pair on ties, got %d/%d", fast, slow)
	}
}
