package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trades-backtest/internal/ledger"
	"trades-backtest/internal/marketdata"
)

// ErrNoData 表示输入行情为空。
var ErrNoData = errors.New("backtest: 行情数据为空")

// Result 汇总单次回测结果。
type Result struct {
	Metrics         Metrics
	TotalCommission float64
	TotalSlippage   float64
	// FinalEquity 为权益曲线最后一个值，不含结束平仓的成本。
	FinalEquity float64
	// FinalCapital 为结束平仓后的现金。
	FinalCapital float64
	PeakExposure float64
	EquityCurve  []float64
	Returns      []float64
	EquityPoints []EquityPoint
	Trades       []ledger.Trade
	Orders       []ledger.Order
	Cancelled    int
}

// Engine 逐 bar 回放行情，串联成交模型、风控与信号解释。
// Engine 本身无运行状态，可并发调用 Run。
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine 校验配置并构建回测引擎。
func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Config 返回引擎使用的配置。
func (e *Engine) Config() Config {
	return e.cfg
}

// Run 以初始资金回放 data 并返回结果。每次调用使用全新的账本。
//
// 每根 bar 依次执行：标记持仓、成交上一根 bar 之前提交的委托、风控检查、
// 调用策略（bar 序号不小于 ExecutionDelay 时）、记录权益。
// 风控与策略产生的委托均在下一根 bar 成交。
func (e *Engine) Run(ctx context.Context, data marketdata.Series, strat Strategy) (Result, error) {
	if strat == nil {
		return Result{}, ErrNilStrategy
	}
	if data.Len() == 0 {
		return Result{}, ErrNoData
	}

	started := time.Now()
	e.logger.Info("开始回测",
		zap.Int("bars", data.Len()),
		zap.Time("start", data.Start()),
		zap.Time("end", data.End()),
		zap.Float64("initial_capital", e.cfg.InitialCapital),
	)

	sim := newSimulator(e.cfg, e.logger)
	for i := 0; i < data.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("backtest: 回测中止: %w", err)
		}
		bar := data.At(i)

		sim.mark(bar)
		if err := sim.executePending(bar); err != nil {
			return Result{}, err
		}
		if err := sim.applyRisk(bar); err != nil {
			return Result{}, err
		}
		if i >= e.cfg.ExecutionDelay {
			sig, ok, err := strat.Signal(ctx, data.Head(i+1))
			if err != nil {
				return Result{}, fmt.Errorf("backtest: 策略在 %s 执行失败: %w", bar.Timestamp.Format(time.RFC3339), err)
			}
			if ok {
				if err := sim.applySignal(sig, bar); err != nil {
					return Result{}, err
				}
			}
		}
		sim.record(bar)
	}

	last, _ := data.Last()
	cancelled, err := sim.liquidate(last)
	if err != nil {
		return Result{}, err
	}

	result := sim.result(cancelled)
	e.logger.Info("回测完成",
		zap.Float64("total_return", result.Metrics.TotalReturn),
		zap.Float64("sharpe", result.Metrics.SharpeRatio),
		zap.Float64("max_drawdown", result.Metrics.MaxDrawdown),
		zap.Int("trades", result.Metrics.TotalTrades),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}
