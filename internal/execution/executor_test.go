package execution

import (
	"math"
	"strings"
	"testing"
	"time"

	"trades-backtest/internal/ledger"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFillPrice_SlippageMovesAgainstTrader(t *testing.T) {
	m := NewModel(Options{SlippageBps: 10, UseMarketOrders: true}, nil)

	buy := m.FillPrice(ledger.Order{Side: ledger.OrderSideBuy, Price: 100})
	sell := m.FillPrice(ledger.Order{Side: ledger.OrderSideSell, Price: 100})
	if math.Abs(buy-100.1) > 1e-9 {
		t.Errorf("unexpected buy fill %v", buy)
	}
	if math.Abs(sell-99.9) > 1e-9 {
		t.Errorf("unexpected sell fill %v", sell)
	}

	limit := NewModel(Options{SlippageBps: 10, UseMarketOrders: false}, nil)
	if got := limit.FillPrice(ledger.Order{Side: ledger.OrderSideBuy, Price: 100}); got != 100 {
		t.Errorf("limit orders should fill at the requested price, got %v", got)
	}
}

func TestFillPrice_MarketImpactScalesWithNotional(t *testing.T) {
	m := NewModel(Options{MarketImpactCoef: 0.01, InitialCapital: 100000, UseMarketOrders: true}, nil)
	// 成交额占初始资金 20% -> 冲击 0.2%
	got := m.FillPrice(ledger.Order{Side: ledger.OrderSideBuy, Quantity: 200, Price: 100})
	if math.Abs(got-100.2) > 1e-9 {
		t.Errorf("unexpected impacted fill %v", got)
	}
}

func TestExecute_BuyThenSellUpdatesCapital(t *testing.T) {
	l := ledger.New(100000)
	m := NewModel(Options{CommissionRate: 0.001, UseMarketOrders: true}, nil)

	buy, err := l.Place("X", ledger.OrderSideBuy, 200, 100, t0, ledger.ReasonSignal)
	if err != nil {
		t.Fatalf("Place returned error: %v", err)
	}
	fill, err := m.Execute(l, buy, t0.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if math.Abs(fill.Commission-20) > 1e-9 {
		t.Errorf("unexpected buy commission %v", fill.Commission)
	}
	if math.Abs(l.Cash()-79980) > 1e-9 {
		t.Errorf("unexpected cash after buy %v", l.Cash())
	}
	if buy.Status != ledger.OrderStatusFilled || !buy.FilledAt.Equal(t0.Add(24*time.Hour)) {
		t.Errorf("order not marked filled: %+v", buy)
	}

	sell, _ := l.Place("X", ledger.OrderSideSell, 200, 120, t0.Add(48*time.Hour), ledger.ReasonSignal)
	fill, err = m.Execute(l, sell, t0.Add(72*time.Hour))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if fill.Trade == nil {
		t.Fatalf("expected a trade on sell")
	}
	if math.Abs(fill.Trade.PnL-3976) > 1e-9 {
		t.Errorf("unexpected pnl %v", fill.Trade.PnL)
	}
	if math.Abs(fill.Trade.ReturnPct-20) > 1e-9 {
		t.Errorf("unexpected return pct %v", fill.Trade.ReturnPct)
	}
	if math.Abs(l.Cash()-(79980+23976)) > 1e-9 {
		t.Errorf("unexpected cash after sell %v", l.Cash())
	}
	if totals := m.Totals(); math.Abs(totals.Commission-44) > 1e-9 || totals.Slippage != 0 {
		t.Errorf("unexpected totals %+v", totals)
	}
}

func TestExecute_SellWithoutPositionIsNoop(t *testing.T) {
	l := ledger.New(1000)
	m := NewModel(Options{CommissionRate: 0.01, SlippageBps: 5, UseMarketOrders: true}, nil)

	sell, _ := l.Place("X", ledger.OrderSideSell, 5, 100, t0, ledger.ReasonSignal)
	fill, err := m.Execute(l, sell, t0)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if fill.Quantity != 0 || fill.Trade != nil {
		t.Errorf("expected no-op fill, got %+v", fill)
	}
	if l.Cash() != 1000 {
		t.Errorf("cash should be untouched, got %v", l.Cash())
	}
	if totals := m.Totals(); totals.Commission != 0 || totals.Slippage != 0 {
		t.Errorf("no-op sell should not accrue costs, got %+v", totals)
	}
	if sell.Status != ledger.OrderStatusFilled {
		t.Errorf("expected order to be consumed, got %s", sell.Status)
	}
}

func TestExecute_RejectsRefill(t *testing.T) {
	l := ledger.New(1000)
	m := NewModel(Options{UseMarketOrders: true}, nil)
	buy, _ := l.Place("X", ledger.OrderSideBuy, 1, 10, t0, ledger.ReasonSignal)
	if _, err := m.Execute(l, buy, t0); err != nil {
		t.Fatalf("first Execute returned error: %v", err)
	}
	if _, err := m.Execute(l, buy, t0); err == nil || !strings.Contains(err.Error(), "不能重复成交") {
		t.Fatalf("expected refill error, got %v", err)
	}
}

func TestExecute_SlippageTotalsUseExecutedQuantity(t *testing.T) {
	l := ledger.New(10000)
	m := NewModel(Options{SlippageBps: 100, UseMarketOrders: true}, nil)

	buy, _ := l.Place("X", ledger.OrderSideBuy, 10, 100, t0, ledger.ReasonSignal)
	if _, err := m.Execute(l, buy, t0); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	sell, _ := l.Place("X", ledger.OrderSideSell, 25, 100, t0, ledger.ReasonSignal)
	fill, err := m.Execute(l, sell, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if fill.Quantity != 10 {
		t.Errorf("sell should be capped to 10, got %v", fill.Quantity)
	}
	// 买入 10*1 + 卖出 10*1
	if got := m.Totals().Slippage; math.Abs(got-20) > 1e-9 {
		t.Errorf("unexpected slippage total %v", got)
	}
}
