package report

import (
	"time"

	"trades-backtest/internal/backtest"
)

// Meta 描述运行的上下文信息。
type Meta struct {
	Strategy string
	Symbols  []string
	Start    time.Time
	End      time.Time
	Bars     int
}

// BacktestSummary 为单次回测的 YAML 汇总。
type BacktestSummary struct {
	RunID           string           `yaml:"run_id"`
	Strategy        string           `yaml:"strategy"`
	Symbols         []string         `yaml:"symbols"`
	Start           time.Time        `yaml:"start"`
	End             time.Time        `yaml:"end"`
	Bars            int              `yaml:"bars"`
	Metrics         backtest.Metrics `yaml:"metrics"`
	TotalCommission float64          `yaml:"total_commission"`
	TotalSlippage   float64          `yaml:"total_slippage"`
	FinalEquity     float64          `yaml:"final_equity"`
	FinalCapital    float64          `yaml:"final_capital"`
	PeakExposure    float64          `yaml:"peak_exposure"`
	Orders          int              `yaml:"orders"`
	Cancelled       int              `yaml:"cancelled"`
}

// NewBacktestSummary 由回测结果构建汇总。
func NewBacktestSummary(runID string, meta Meta, res backtest.Result) BacktestSummary {
	return BacktestSummary{
		RunID:           runID,
		Strategy:        meta.Strategy,
		Symbols:         meta.Symbols,
		Start:           meta.Start,
		End:             meta.End,
		Bars:            meta.Bars,
		Metrics:         res.Metrics,
		TotalCommission: res.TotalCommission,
		TotalSlippage:   res.TotalSlippage,
		FinalEquity:     res.FinalEquity,
		FinalCapital:    res.FinalCapital,
		PeakExposure:    res.PeakExposure,
		Orders:          len(res.Orders),
		Cancelled:       res.Cancelled,
	}
}

// WindowSummary 为单个窗口的汇总。
type WindowSummary struct {
	Index       int              `yaml:"index"`
	TrainStart  time.Time        `yaml:"train_start"`
	TrainEnd    time.Time        `yaml:"train_end"`
	TestStart   time.Time        `yaml:"test_start"`
	TestEnd     time.Time        `yaml:"test_end"`
	Metrics     backtest.Metrics `yaml:"metrics"`
	FinalEquity float64          `yaml:"final_equity"`
}

// WalkForwardSummary 为滚动验证的 YAML 汇总。
type WalkForwardSummary struct {
	RunID          string          `yaml:"run_id"`
	Strategy       string          `yaml:"strategy"`
	Symbols        []string        `yaml:"symbols"`
	Start          time.Time       `yaml:"start"`
	End            time.Time       `yaml:"end"`
	Bars           int             `yaml:"bars"`
	NWindows       int             `yaml:"n_windows"`
	AvgSharpe      float64         `yaml:"avg_sharpe"`
	AvgReturn      float64         `yaml:"avg_return"`
	AvgMaxDrawdown float64         `yaml:"avg_max_drawdown"`
	AvgWinRate     float64         `yaml:"avg_win_rate"`
	Consistency    float64         `yaml:"consistency"`
	Windows        []WindowSummary `yaml:"windows"`
}

// NewWalkForwardSummary 由滚动验证结果构建汇总。
func NewWalkForwardSummary(runID string, meta Meta, res backtest.WalkForwardResult) WalkForwardSummary {
	windows := make([]WindowSummary, 0, len(res.Windows))
	for _, w := range res.Windows {
		windows = append(windows, WindowSummary{
			Index:       w.Window.Index,
			TrainStart:  w.Window.TrainStart,
			TrainEnd:    w.Window.TrainEnd,
			TestStart:   w.Window.TestStart,
			TestEnd:     w.Window.TestEnd,
			Metrics:     w.Result.Metrics,
			FinalEquity: w.Result.FinalEquity,
		})
	}
	return WalkForwardSummary{
		RunID:          runID,
		Strategy:       meta.Strategy,
		Symbols:        meta.Symbols,
		Start:          meta.Start,
		End:            meta.End,
		Bars:           meta.Bars,
		NWindows:       res.NWindows,
		AvgSharpe:      res.AvgSharpe,
		AvgReturn:      res.AvgReturn,
		AvgMaxDrawdown: res.AvgMaxDrawdown,
		AvgWinRate:     res.AvgWinRate,
		Consistency:    res.Consistency,
		Windows:        windows,
	}
}
