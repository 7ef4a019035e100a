package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"trades-backtest/internal/backtest"
	"trades-backtest/internal/config"
	"trades-backtest/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true, MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	svc, err := NewService(context.Background(), st, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewService_RequiresStore(t *testing.T) {
	if _, err := NewService(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestRecord_RequiresRunID(t *testing.T) {
	svc := newTestService(t)
	if err := svc.Record(context.Background(), Event{Type: EventError}); err == nil {
		t.Fatalf("expected error for empty run id")
	}
}

func TestRecordBacktest_RoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	runID := NewRunID()

	svc.RecordRunStarted(ctx, runID, RunStartedPayload{Mode: ModeBacktest, Strategy: "sma", Bars: 30, InitialCapital: 100000})
	svc.RecordBacktest(ctx, runID, backtest.Result{
		Metrics:     backtest.Metrics{TotalReturn: 3.956, TotalTrades: 1},
		FinalEquity: 103956,
	}, time.Second)
	svc.RecordRunStarted(ctx, NewRunID(), RunStartedPayload{Mode: ModeBacktest})

	events, err := svc.ListEvents(ctx, runID, "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for run, got %d", len(events))
	}
	if events[0].Type != EventRunStarted || events[1].Type != EventRunCompleted {
		t.Errorf("unexpected order %s, %s", events[0].Type, events[1].Type)
	}

	raw, ok := events[1].Payload.(json.RawMessage)
	if !ok {
		t.Fatalf("payload should be raw json, got %T", events[1].Payload)
	}
	var payload RunCompletedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.FinalEquity != 103956 || payload.Metrics.TotalTrades != 1 || payload.Mode != ModeBacktest {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestRecordWalkForward_WritesEachWindow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	runID := NewRunID()

	svc.RecordWalkForward(ctx, runID, backtest.WalkForwardResult{
		Windows: []backtest.WindowResult{
			{Window: backtest.Window{Index: 0}},
			{Window: backtest.Window{Index: 1}},
		},
		NWindows:  2,
		AvgSharpe: 1.2,
	}, time.Second)

	windows, err := svc.ListEvents(ctx, runID, EventWindowCompleted, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected 2 window events, got %d", len(windows))
	}

	completed, err := svc.ListEvents(ctx, runID, EventRunCompleted, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("expected 1 completion event, got %d", len(completed))
	}
	var payload WalkForwardCompletedPayload
	if err := json.Unmarshal(completed[0].Payload.(json.RawMessage), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.NWindows != 2 || payload.AvgSharpe != 1.2 {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestRecordError_AndLimit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	runID := NewRunID()

	for i := 0; i < 3; i++ {
		svc.RecordError(ctx, runID, "加载行情失败", errors.New("boom"), map[string]interface{}{"attempt": i})
	}

	events, err := svc.ListEvents(ctx, "", EventError, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("limit not applied, got %d", len(events))
	}
	if events[0].RunID != runID || events[0].Timestamp.IsZero() {
		t.Errorf("unexpected event %+v", events[0])
	}
}
