package monitor

import (
	"time"

	"trades-backtest/internal/backtest"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventRunStarted      EventType = "run_started"
	EventRunCompleted    EventType = "run_completed"
	EventWindowCompleted EventType = "window_completed"
	EventError           EventType = "error"
)

// Mode 区分单次回测与滚动验证。
type Mode string

const (
	ModeBacktest    Mode = "backtest"
	ModeWalkForward Mode = "walk_forward"
)

// Event 封装通用监控事件。
type Event struct {
	RunID     string      `json:"run_id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RunStartedPayload 记录运行参数。
type RunStartedPayload struct {
	Mode           Mode      `json:"mode"`
	Strategy       string    `json:"strategy"`
	Symbols        []string  `json:"symbols"`
	Bars           int       `json:"bars"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	InitialCapital float64   `json:"initial_capital"`
}

// RunCompletedPayload 记录单次回测的汇总。
type RunCompletedPayload struct {
	Mode            Mode             `json:"mode"`
	Metrics         backtest.Metrics `json:"metrics"`
	FinalEquity     float64          `json:"final_equity"`
	FinalCapital    float64          `json:"final_capital"`
	TotalCommission float64          `json:"total_commission"`
	TotalSlippage   float64          `json:"total_slippage"`
	Elapsed         string           `json:"elapsed"`
}

// WalkForwardCompletedPayload 记录滚动验证的聚合指标。
type WalkForwardCompletedPayload struct {
	Mode           Mode    `json:"mode"`
	NWindows       int     `json:"n_windows"`
	AvgSharpe      float64 `json:"avg_sharpe"`
	AvgReturn      float64 `json:"avg_return"`
	AvgMaxDrawdown float64 `json:"avg_max_drawdown"`
	AvgWinRate     float64 `json:"avg_win_rate"`
	Consistency    float64 `json:"consistency"`
	Elapsed        string  `json:"elapsed"`
}

// WindowCompletedPayload 记录单个窗口的结果。
type WindowCompletedPayload struct {
	Window      backtest.Window  `json:"window"`
	Metrics     backtest.Metrics `json:"metrics"`
	FinalEquity float64          `json:"final_equity"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
