package feature

import (
	"context"
	"errors"
	"testing"
	"time"

	"trades-backtest/internal/marketdata"
)

func rampSeries(t *testing.T, n int) marketdata.Series {
	t.Helper()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]marketdata.Bar, n)
	for i := range bars {
		bars[i] = marketdata.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Prices:    map[string]float64{"ETH": 100 + float64(i)},
			Volume:    5,
		}
	}
	s, err := marketdata.NewSeries(bars)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	return s
}

func TestExtract_InsufficientHistory(t *testing.T) {
	ext := NewExtractor(nil, nil)
	_, err := ext.Extract(context.Background(), "ETH", rampSeries(t, MinBars-1))
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestExtract_RisingMarket(t *testing.T) {
	ext := NewExtractor(nil, nil)
	view := rampSeries(t, 60)

	fs, err := ext.Extract(context.Background(), "ETH", view)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if fs.Close != 159 || !fs.GeneratedAt.Equal(view.End()) {
		t.Errorf("unexpected close/time %v %s", fs.Close, fs.GeneratedAt)
	}
	if len(fs.RecentCloses) != 10 || fs.RecentCloses[9] != 159 {
		t.Errorf("unexpected recent closes %v", fs.RecentCloses)
	}
	if fs.Trend.EMARank != "bullish_alignment" || !fs.Trend.PriceAboveEMA12 {
		t.Errorf("expected bullish trend, got %+v", fs.Trend)
	}
	if fs.Momentum.RSIState != "overbought" {
		t.Errorf("monotonic rise should be overbought, got %s (rsi=%v)", fs.Momentum.RSIState, fs.Momentum.RSIValue)
	}
	if fs.Momentum.VolumeDivergence != "rally_without_volume" {
		t.Errorf("flat volume rally, got %s", fs.Momentum.VolumeDivergence)
	}
	if fs.Structure.SupportLevel != 110 || fs.Structure.ResistanceLevel != 159 {
		t.Errorf("unexpected structure %+v", fs.Structure)
	}
}

func TestExtract_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewExtractor(nil, nil).Extract(ctx, "ETH", rampSeries(t, 30)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
