package backtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trades-backtest/internal/marketdata"
)

// Window 描述一个滚动窗口，索引为左闭右开区间。
type Window struct {
	Index      int       `json:"index"`
	TrainFrom  int       `json:"train_from"`
	TrainTo    int       `json:"train_to"`
	TestFrom   int       `json:"test_from"`
	TestTo     int       `json:"test_to"`
	TrainStart time.Time `json:"train_start"`
	TrainEnd   time.Time `json:"train_end"`
	TestStart  time.Time `json:"test_start"`
	TestEnd    time.Time `json:"test_end"`
}

// WindowResult 为单个窗口在测试区间上的回测结果。
type WindowResult struct {
	Window Window
	Result Result
}

// WalkForwardResult 汇总全部窗口。
type WalkForwardResult struct {
	Windows        []WindowResult
	NWindows       int
	AvgSharpe      float64
	AvgReturn      float64
	AvgMaxDrawdown float64
	AvgWinRate     float64
	// Consistency 为各窗口夏普比率的总体标准差，越小越稳定。
	Consistency float64
}

// PlanWindows 按训练、测试与步长切分 n 根 bar，只要训练段结束位置加测试长度不超过 n 就继续滑动。
func PlanWindows(n, train, test, step int) []Window {
	if train <= 0 || test <= 0 || step <= 0 {
		return nil
	}
	var windows []Window
	for start := 0; start+train+test <= n; start += step {
		windows = append(windows, Window{
			Index:     len(windows),
			TrainFrom: start,
			TrainTo:   start + train,
			TestFrom:  start + train,
			TestTo:    start + train + test,
		})
	}
	return windows
}

// WalkForward 在每个窗口的训练段上构建策略，并以全新资金在测试段上独立回测。
// 窗口之间不共享状态，结果按窗口顺序返回，与并发度无关。
func (e *Engine) WalkForward(ctx context.Context, data marketdata.Series, factory StrategyFactory) (WalkForwardResult, error) {
	if factory == nil {
		return WalkForwardResult{}, ErrNilStrategy
	}
	if err := e.cfg.validateWindows(); err != nil {
		return WalkForwardResult{}, err
	}

	windows := PlanWindows(data.Len(), e.cfg.TrainBars, e.cfg.TestBars, e.cfg.StepBars)
	if len(windows) == 0 {
		e.logger.Warn("数据不足以切分任何滚动窗口",
			zap.Int("bars", data.Len()),
			zap.Int("train_bars", e.cfg.TrainBars),
			zap.Int("test_bars", e.cfg.TestBars),
		)
		return WalkForwardResult{}, nil
	}

	e.logger.Info("开始滚动窗口回测",
		zap.Int("windows", len(windows)),
		zap.Int("parallelism", e.parallelism()),
	)

	results := make([]WindowResult, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism())

	for i := range windows {
		w := windows[i]
		train := data.Slice(w.TrainFrom, w.TrainTo)
		test := data.Slice(w.TestFrom, w.TestTo)
		w.TrainStart, w.TrainEnd = train.Start(), train.End()
		w.TestStart, w.TestEnd = test.Start(), test.End()

		g.Go(func() error {
			strat, err := factory.Build(gctx, train)
			if err != nil {
				return fmt.Errorf("backtest: 窗口 %d 构建策略失败: %w", w.Index, err)
			}
			if strat == nil {
				return fmt.Errorf("backtest: 窗口 %d: %w", w.Index, ErrNilStrategy)
			}
			res, err := e.Run(gctx, test, strat)
			if err != nil {
				return fmt.Errorf("backtest: 窗口 %d 回测失败: %w", w.Index, err)
			}
			results[w.Index] = WindowResult{Window: w, Result: res}

			e.logger.Info("窗口完成",
				zap.Int("window", w.Index),
				zap.Time("train_start", w.TrainStart),
				zap.Time("train_end", w.TrainEnd),
				zap.Time("test_start", w.TestStart),
				zap.Time("test_end", w.TestEnd),
				zap.Float64("sharpe", res.Metrics.SharpeRatio),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return WalkForwardResult{}, err
	}

	agg := Aggregate(results)
	e.logger.Info("滚动窗口回测完成",
		zap.Int("windows", agg.NWindows),
		zap.Float64("avg_sharpe", agg.AvgSharpe),
		zap.Float64("consistency", agg.Consistency),
	)
	return agg, nil
}

// Aggregate 计算跨窗口的平均指标。
func Aggregate(windows []WindowResult) WalkForwardResult {
	out := WalkForwardResult{
		Windows:  windows,
		NWindows: len(windows),
	}
	if len(windows) == 0 {
		return out
	}

	sharpes := make([]float64, len(windows))
	returns := make([]float64, len(windows))
	drawdowns := make([]float64, len(windows))
	winRates := make([]float64, len(windows))
	for i, w := range windows {
		sharpes[i] = w.Result.Metrics.SharpeRatio
		returns[i] = w.Result.Metrics.TotalReturn
		drawdowns[i] = w.Result.Metrics.MaxDrawdown
		winRates[i] = w.Result.Metrics.WinRate
	}

	out.AvgSharpe = mean(sharpes)
	out.AvgReturn = mean(returns)
	out.AvgMaxDrawdown = mean(drawdowns)
	out.AvgWinRate = mean(winRates)
	out.Consistency = stddev(sharpes)
	return out
}

func (e *Engine) parallelism() int {
	if e.cfg.Parallelism <= 1 {
		return 1
	}
	return e.cfg.Parallelism
}
