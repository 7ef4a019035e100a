package strategy

import (
	"context"
	"fmt"

	"trades-backtest/internal/backtest"
	"trades-backtest/internal/indicator"
	"trades-backtest/internal/marketdata"
	"trades-backtest/internal/signal"
)

const (
	DefaultFastPeriod = 10
	DefaultSlowPeriod = 50
)

// SMACrossover 为单标的均线交叉策略：快线在慢线之上买入，之下卖出。
type SMACrossover struct {
	symbol string
	fast   int
	slow   int
}

var _ backtest.Strategy = (*SMACrossover)(nil)

// NewSMACrossover 创建均线交叉策略，要求 0 < fast < slow。
func NewSMACrossover(symbol string, fast, slow int) (*SMACrossover, error) {
	if symbol == "" {
		return nil, fmt.Errorf("strategy: 标的不能为空")
	}
	if fast <= 0 || slow <= fast {
		return nil, fmt.Errorf("strategy: 均线周期无效 fast=%d slow=%d", fast, slow)
	}
	return &SMACrossover{symbol: symbol, fast: fast, slow: slow}, nil
}

// Periods 返回快慢线周期。
func (s *SMACrossover) Periods() (fast, slow int) {
	return s.fast, s.slow
}

// Signal 在历史价格不足慢线周期时不给信号。
func (s *SMACrossover) Signal(_ context.Context, view marketdata.Series) (signal.Signal, bool, error) {
	closes := view.Closes(s.symbol)
	slowMA, ok := indicator.SMA(closes, s.slow)
	if !ok {
		return signal.Signal{}, false, nil
	}
	fastMA, _ := indicator.SMA(closes, s.fast)

	switch {
	case fastMA > slowMA:
		return signal.Buy(s.symbol), true, nil
	case fastMA < slowMA:
		return signal.Sell(s.symbol), true, nil
	default:
		return signal.Signal{}, false, nil
	}
}
