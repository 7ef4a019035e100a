package risk

import (
	"testing"
	"time"

	"trades-backtest/internal/ledger"
	"trades-backtest/internal/marketdata"
)

func pct(v float64) *float64 { return &v }

func TestOverlay_StopLossTriggersFullQuantity(t *testing.T) {
	o := NewOverlay(Config{StopLossPct: pct(5)}, nil)
	positions := []ledger.Position{{Symbol: "X", Quantity: 200, EntryPrice: 100}}
	bar := marketdata.Bar{Timestamp: time.Unix(0, 0), Prices: map[string]float64{"X": 94}}

	triggers := o.Check(positions, bar)
	if len(triggers) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(triggers))
	}
	got := triggers[0]
	if got.Reason != ledger.ReasonStopLoss || got.Quantity != 200 || got.Price != 94 {
		t.Errorf("unexpected trigger %+v", got)
	}
}

func TestOverlay_ThresholdBoundariesAreInclusive(t *testing.T) {
	o := NewOverlay(Config{StopLossPct: pct(50), TakeProfitPct: pct(25)}, nil)
	positions := []ledger.Position{
		{Symbol: "LOSS", Quantity: 1, EntryPrice: 100},
		{Symbol: "GAIN", Quantity: 1, EntryPrice: 100},
		{Symbol: "FLAT", Quantity: 1, EntryPrice: 100},
	}
	bar := marketdata.Bar{Prices: map[string]float64{"LOSS": 50, "GAIN": 125, "FLAT": 101}}

	triggers := o.Check(positions, bar)
	if len(triggers) != 2 {
		t.Fatalf("expected 2 triggers, got %+v", triggers)
	}
	if triggers[0].Symbol != "LOSS" || triggers[0].Reason != ledger.ReasonStopLoss {
		t.Errorf("unexpected first trigger %+v", triggers[0])
	}
	if triggers[1].Symbol != "GAIN" || triggers[1].Reason != ledger.ReasonTakeProfit {
		t.Errorf("unexpected second trigger %+v", triggers[1])
	}
}

func TestOverlay_ContradictoryThresholdsEmitBoth(t *testing.T) {
	o := NewOverlay(Config{StopLossPct: pct(5), TakeProfitPct: pct(-20)}, nil)
	positions := []ledger.Position{{Symbol: "X", Quantity: 3, EntryPrice: 100}}
	bar := marketdata.Bar{Prices: map[string]float64{"X": 90}}

	triggers := o.Check(positions, bar)
	if len(triggers) != 2 {
		t.Fatalf("expected both checks to fire, got %+v", triggers)
	}
	if triggers[0].Reason != ledger.ReasonStopLoss || triggers[1].Reason != ledger.ReasonTakeProfit {
		t.Errorf("unexpected trigger order %+v", triggers)
	}
}

func TestOverlay_ZeroStopLossIsStillConfigured(t *testing.T) {
	o := NewOverlay(Config{StopLossPct: pct(0)}, nil)
	positions := []ledger.Position{{Symbol: "X", Quantity: 1, EntryPrice: 100}}

	if got := o.Check(positions, marketdata.Bar{Prices: map[string]float64{"X": 100}}); len(got) != 1 {
		t.Errorf("return of 0%% should hit a 0%% stop, got %+v", got)
	}
}

func TestOverlay_SkipsMissingPriceAndDisabledConfig(t *testing.T) {
	positions := []ledger.Position{{Symbol: "X", Quantity: 1, EntryPrice: 100}}

	o := NewOverlay(Config{StopLossPct: pct(5)}, nil)
	if got := o.Check(positions, marketdata.Bar{Prices: map[string]float64{"Y": 1}}); len(got) != 0 {
		t.Errorf("expected no trigger without price, got %+v", got)
	}

	disabled := NewOverlay(Config{}, nil)
	if got := disabled.Check(positions, marketdata.Bar{Prices: map[string]float64{"X": 1}}); len(got) != 0 {
		t.Errorf("expected no trigger when disabled, got %+v", got)
	}
}
