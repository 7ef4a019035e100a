package signal

import (
	"testing"
	"time"

	"trades-backtest/internal/ledger"
	"trades-backtest/internal/marketdata"
)

func TestInterpret_BuyDefaultsToMaxQuantity(t *testing.T) {
	in := NewInterpreter(0.2, nil)
	bar := marketdata.Bar{Prices: map[string]float64{"X": 100}}

	req, ok := in.Interpret(Buy("X"), bar, 100000, ledger.New(100000))
	if !ok {
		t.Fatalf("expected buy request")
	}
	if req.Quantity != 200 || req.Price != 100 || req.Side != ledger.OrderSideBuy {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestInterpret_BuyCapsExplicitQuantity(t *testing.T) {
	in := NewInterpreter(0.2, nil)
	bar := marketdata.Bar{Prices: map[string]float64{"X": 100}}

	req, ok := in.Interpret(Buy("X").WithQuantity(500), bar, 100000, ledger.New(100000))
	if !ok || req.Quantity != 200 {
		t.Fatalf("expected quantity capped to 200, got %+v ok=%v", req, ok)
	}

	req, ok = in.Interpret(Buy("X").WithQuantity(50), bar, 100000, ledger.New(100000))
	if !ok || req.Quantity != 50 {
		t.Fatalf("expected explicit quantity 50, got %+v ok=%v", req, ok)
	}
}

func TestInterpret_BuyDiscardedWithoutPriceOrCapital(t *testing.T) {
	in := NewInterpreter(0.2, nil)
	if _, ok := in.Interpret(Buy("X"), marketdata.Bar{Prices: map[string]float64{"Y": 1}}, 1000, ledger.New(1000)); ok {
		t.Errorf("expected buy without price to be discarded")
	}
	if _, ok := in.Interpret(Buy("X"), marketdata.Bar{Prices: map[string]float64{"X": 10}}, 0, ledger.New(0)); ok {
		t.Errorf("expected buy without capital to be discarded")
	}
}

func TestInterpret_SellRequiresPosition(t *testing.T) {
	in := NewInterpreter(0.2, nil)
	bar := marketdata.Bar{Prices: map[string]float64{"X": 120}}
	l := ledger.New(1000)

	if _, ok := in.Interpret(Sell("X"), bar, 1000, l); ok {
		t.Fatalf("expected sell without position to be discarded")
	}

	l.OpenOrAdd("X", 7, 100, time.Unix(0, 0))
	req, ok := in.Interpret(Sell("X"), bar, 1000, l)
	if !ok || req.Quantity != 7 || req.Price != 120 || req.Side != ledger.OrderSideSell {
		t.Fatalf("unexpected sell request %+v ok=%v", req, ok)
	}

	// 超量卖出不在此处截断
	req, ok = in.Interpret(Sell("X").WithQuantity(10), bar, 1000, l)
	if !ok || req.Quantity != 10 {
		t.Fatalf("expected explicit oversized quantity to pass through, got %+v", req)
	}
}

func TestInterpret_HoldAndNegativeQuantity(t *testing.T) {
	in := NewInterpreter(0.2, nil)
	bar := marketdata.Bar{Prices: map[string]float64{"X": 100}}
	if _, ok := in.Interpret(Signal{Symbol: "X", Action: ActionHold}, bar, 1000, ledger.New(1000)); ok {
		t.Errorf("hold should not produce an order")
	}
	if _, ok := in.Interpret(Buy("X").WithQuantity(-1), bar, 1000, ledger.New(1000)); ok {
		t.Errorf("negative quantity should be discarded")
	}
}

func TestInterpret_ExplicitZeroQuantityQueuesNothing(t *testing.T) {
	in := NewInterpreter(0.2, nil)
	bar := marketdata.Bar{Prices: map[string]float64{"X": 100}}
	l := ledger.New(100000)

	if _, ok := in.Interpret(Buy("X").WithQuantity(0), bar, 100000, l); ok {
		t.Errorf("explicit zero buy should be discarded")
	}

	l.OpenOrAdd("X", 5, 100, time.Unix(0, 0))
	if _, ok := in.Interpret(Sell("X").WithQuantity(0), bar, 100000, l); ok {
		t.Errorf("explicit zero sell should be discarded")
	}
	if req, ok := in.Interpret(Sell("X"), bar, 100000, l); !ok || req.Quantity != 5 {
		t.Errorf("sell without quantity should close the position, got %+v ok=%v", req, ok)
	}
}

func TestParseAction(t *testing.T) {
	cases := map[string]Action{"BUY": ActionBuy, " sell ": ActionSell, "none": ActionHold, "": ActionHold}
	for in, want := range cases {
		got, err := ParseAction(in)
		if err != nil || got != want {
			t.Errorf("ParseAction(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseAction("short"); err == nil {
		t.Errorf("expected error for unknown action")
	}
}
