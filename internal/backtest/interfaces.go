package backtest

import (
	"context"
	"errors"

	"trades-backtest/internal/marketdata"
	"trades-backtest/internal/signal"
)

// ErrNilStrategy 表示未提供策略或策略工厂。
var ErrNilStrategy = errors.New("backtest: 策略不能为空")

// Strategy 根据截至当前 bar（含）的行情给出信号。
// 实现必须是输入切片的确定性函数，且不能修改引擎状态。ok=false 表示本 bar 无信号。
type Strategy interface {
	Signal(ctx context.Context, view marketdata.Series) (sig signal.Signal, ok bool, err error)
}

// StrategyFactory 在滚动窗口的训练切片上构建策略。
type StrategyFactory interface {
	Build(ctx context.Context, train marketdata.Series) (Strategy, error)
}
