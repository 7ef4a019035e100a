package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"

	"trades-backtest/internal/config"
)

// fakeSource 依次返回固定序列中的下一页，失败的调用不推进游标。
type fakeSource struct {
	rows     []ccxt.OHLCV
	pageSize int
	cursor   int
	failures []error
	calls    int
}

func (f *fakeSource) FetchOHLCV(symbol string, options ...ccxt.FetchOHLCVOptions) ([]ccxt.OHLCV, error) {
	f.calls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}
	end := min(f.cursor+f.pageSize, len(f.rows))
	page := f.rows[f.cursor:end]
	f.cursor = end
	return page, nil
}

func hourlyRows(n int, base time.Time) []ccxt.OHLCV {
	rows := make([]ccxt.OHLCV, n)
	for i := range rows {
		price := 100 + float64(i)
		rows[i] = ccxt.OHLCV{
			Timestamp: base.Add(time.Duration(i) * time.Hour).UnixMilli(),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    10,
		}
	}
	return rows
}

func testExchangeConfig() config.ExchangeConfig {
	return config.ExchangeConfig{
		Name:      "binance",
		PageLimit: 3,
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			MinDelay:    time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
		},
	}
}

func TestFetchHistory_PagesUntilExhausted(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{rows: hourlyRows(8, base), pageSize: 3}
	client := newClient(testExchangeConfig(), src, nil, nil)

	candles, err := client.FetchHistory(context.Background(), "BTC/USDT", Timeframe1h, base, time.Time{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(candles) != 8 {
		t.Fatalf("expected 8 candles, got %d", len(candles))
	}
	if src.calls != 3 {
		t.Errorf("expected 3 pages, got %d", src.calls)
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i].Timestamp.After(candles[i-1].Timestamp) {
			t.Fatalf("candles not increasing at %d", i)
		}
	}
}

func TestFetchHistory_StopsAtEnd(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{rows: hourlyRows(20, base), pageSize: 3}
	client := newClient(testExchangeConfig(), src, nil, nil)

	end := base.Add(5 * time.Hour)
	candles, err := client.FetchHistory(context.Background(), "BTC/USDT", Timeframe1h, base.Add(time.Hour), end)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(candles) != 4 {
		t.Fatalf("expected 4 candles in [start, end), got %d", len(candles))
	}
	if !candles[0].Timestamp.Equal(base.Add(time.Hour)) || !candles[3].Timestamp.Equal(base.Add(4*time.Hour)) {
		t.Errorf("unexpected range %s .. %s", candles[0].Timestamp, candles[3].Timestamp)
	}
}

func TestFetchHistory_RetriesNetworkErrors(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		rows:     hourlyRows(2, base),
		pageSize: 3,
		failures: []error{&ccxt.Error{Type: ccxt.NetworkErrorErrType, Message: "reset"}},
	}
	loads := 0
	client := newClient(testExchangeConfig(), src, func() error { loads++; return nil }, nil)

	candles, err := client.FetchHistory(context.Background(), "BTC/USDT", Timeframe1h, base, time.Time{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(candles) != 2 {
		t.Errorf("expected 2 candles, got %d", len(candles))
	}
	if loads != 1 {
		t.Errorf("markets should load once, got %d", loads)
	}
}

func TestFetchHistory_MaintenanceIsNotRetried(t *testing.T) {
	src := &fakeSource{failures: []error{&ccxt.Error{Type: ccxt.OnMaintenanceErrType}}}
	client := newClient(testExchangeConfig(), src, nil, nil)

	_, err := client.FetchHistory(context.Background(), "BTC/USDT", Timeframe1h, time.Now(), time.Time{})
	if !errors.Is(err, ErrMaintenance) {
		t.Fatalf("expected ErrMaintenance, got %v", err)
	}
	if src.calls != 1 {
		t.Errorf("maintenance should not be retried, calls=%d", src.calls)
	}
}

func TestFetchHistory_GivesUpAfterMaxAttempts(t *testing.T) {
	netErr := &ccxt.Error{Type: ccxt.RequestTimeoutErrType}
	src := &fakeSource{failures: []error{netErr, netErr, netErr, netErr}}
	client := newClient(testExchangeConfig(), src, nil, nil)

	if _, err := client.FetchHistory(context.Background(), "BTC/USDT", Timeframe1h, time.Now(), time.Time{}); err == nil {
		t.Fatalf("expected error")
	}
	if src.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", src.calls)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) || IsRetryable(context.Canceled) || IsRetryable(errors.New("bad symbol")) {
		t.Errorf("unexpected retryable classification")
	}
	if !IsRetryable(&ccxt.Error{Type: ccxt.RateLimitExceededErrType}) {
		t.Errorf("rate limit should be retryable")
	}
}

func TestNewClient_UnsupportedExchange(t *testing.T) {
	if _, err := NewClient(config.ExchangeConfig{Name: "mtgox"}, nil); !errors.Is(err, ErrUnsupportedExchange) {
		t.Fatalf("expected ErrUnsupportedExchange, got %v", err)
	}
}
