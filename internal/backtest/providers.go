package backtest

import (
	"context"

	"trades-backtest/internal/marketdata"
	"trades-backtest/internal/signal"
)

// StrategyFunc 允许使用函数作为策略。
type StrategyFunc func(ctx context.Context, view marketdata.Series) (signal.Signal, bool, error)

func (f StrategyFunc) Signal(ctx context.Context, view marketdata.Series) (signal.Signal, bool, error) {
	if f == nil {
		return signal.Signal{}, false, ErrNilStrategy
	}
	return f(ctx, view)
}

// StrategyFactoryFunc 允许使用函数作为策略工厂。
type StrategyFactoryFunc func(ctx context.Context, train marketdata.Series) (Strategy, error)

func (f StrategyFactoryFunc) Build(ctx context.Context, train marketdata.Series) (Strategy, error) {
	if f == nil {
		return nil, ErrNilStrategy
	}
	return f(ctx, train)
}

// Static 返回忽略训练数据、始终使用同一策略的工厂。
func Static(strat Strategy) StrategyFactory {
	return StrategyFactoryFunc(func(context.Context, marketdata.Series) (Strategy, error) {
		if strat == nil {
			return nil, ErrNilStrategy
		}
		return strat, nil
	})
}
