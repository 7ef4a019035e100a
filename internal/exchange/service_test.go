package exchange

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubFetcher struct {
	candles map[string][]Candle
	err     error
}

func (s stubFetcher) FetchHistory(_ context.Context, symbol, _ string, _, _ time.Time) ([]Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.candles[symbol], nil
}

func candleAt(ts time.Time, price float64) Candle {
	return Candle{Timestamp: ts, Open: price, High: price, Low: price, Close: price, Volume: 1}
}

func TestMergeCandles_AlignsOnTimestamp(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	btc := []Candle{candleAt(base, 100), candleAt(base.Add(2*time.Hour), 102)}
	eth := []Candle{candleAt(base, 10), candleAt(base.Add(time.Hour), 11), candleAt(base.Add(2*time.Hour), 12)}

	bars := MergeCandles([]string{"BTC", "ETH"}, [][]Candle{btc, eth})
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	if bars[1].HasPrice("BTC") {
		t.Errorf("BTC should be missing at the middle bar")
	}
	if p, _ := bars[1].Price("ETH"); p != 11 {
		t.Errorf("expected ETH 11, got %v", p)
	}
	if bars[2].Close != 102 {
		t.Errorf("display close should follow first symbol, got %v", bars[2].Close)
	}
	if bars[1].Close != 0 {
		t.Errorf("display close should be empty when first symbol is missing, got %v", bars[1].Close)
	}
}

func TestHistoryService_Load(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := newHistoryService(stubFetcher{candles: map[string][]Candle{
		"BTC": {candleAt(base, 100), candleAt(base.Add(time.Hour), 101)},
		"ETH": {candleAt(base.Add(time.Hour), 11)},
	}}, nil)

	series, err := svc.Load(context.Background(), HistoryRequest{Symbols: []string{"BTC", "ETH"}, Timeframe: Timeframe1h})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if series.Len() != 2 {
		t.Fatalf("expected 2 bars, got %d", series.Len())
	}
	if series.At(0).HasPrice("ETH") || !series.At(1).HasPrice("ETH") {
		t.Errorf("unexpected ETH coverage")
	}
}

func TestHistoryService_LoadErrors(t *testing.T) {
	svc := newHistoryService(stubFetcher{err: errors.New("boom")}, nil)
	if _, err := svc.Load(context.Background(), HistoryRequest{Symbols: []string{"BTC"}}); err == nil {
		t.Fatalf("expected fetch error")
	}
	if _, err := svc.Load(context.Background(), HistoryRequest{}); err == nil {
		t.Fatalf("expected error for empty symbols")
	}
}
