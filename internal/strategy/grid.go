package strategy

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trades-backtest/internal/backtest"
	"trades-backtest/internal/marketdata"
)

// Pair 为一组快慢线周期。
type Pair struct {
	Fast int
	Slow int
}

// Pairs 生成全部 fast < slow 的组合，顺序为 fasts 外层、slows 内层。
func Pairs(fasts, slows []int) []Pair {
	var out []Pair
	for _, f := range fasts {
		for _, s := range slows {
			if f > 0 && s > f {
				out = append(out, Pair{Fast: f, Slow: s})
			}
		}
	}
	return out
}

// GridFactory 在训练切片上回测每组周期，选出夏普比率最高的均线交叉策略。
type GridFactory struct {
	engine      *backtest.Engine
	symbol      string
	pairs       []Pair
	parallelism int
	logger      *zap.Logger
}

var _ backtest.StrategyFactory = (*GridFactory)(nil)

// NewGridFactory 创建网格训练工厂，engine 的配置同时用于训练回测。
func NewGridFactory(engine *backtest.Engine, symbol string, pairs []Pair, parallelism int, logger *zap.Logger) (*GridFactory, error) {
	if engine == nil {
		return nil, fmt.Errorf("strategy: engine 不能为空")
	}
	if symbol == "" {
		return nil, fmt.Errorf("strategy: 标的不能为空")
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("strategy: 至少需要一组均线周期")
	}
	for _, p := range pairs {
		if p.Fast <= 0 || p.Slow <= p.Fast {
			return nil, fmt.Errorf("strategy: 均线周期无效 fast=%d slow=%d", p.Fast, p.Slow)
		}
	}
	if parallelism <= 0 {
		parallelism = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GridFactory{
		engine:      engine,
		symbol:      symbol,
		pairs:       append([]Pair(nil), pairs...),
		parallelism: parallelism,
		logger:      logger,
	}, nil
}

// Build 评估全部周期组合，夏普比率相同时取靠前的组合。
func (g *GridFactory) Build(ctx context.Context, train marketdata.Series) (backtest.Strategy, error) {
	sharpes := make([]float64, len(g.pairs))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelism)
	for i, p := range g.pairs {
		eg.Go(func() error {
			candidate, err := NewSMACrossover(g.symbol, p.Fast, p.Slow)
			if err != nil {
				return err
			}
			res, err := g.engine.Run(egctx, train, candidate)
			if err != nil {
				return fmt.Errorf("strategy: 评估 fast=%d slow=%d 失败: %w", p.Fast, p.Slow, err)
			}
			sharpes[i] = res.Metrics.SharpeRatio
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	best := 0
	for i := 1; i < len(sharpes); i++ {
		if sharpes[i] > sharpes[best] {
			best = i
		}
	}

	chosen := g.pairs[best]
	g.logger.Info("网格训练完成",
		zap.String("symbol", g.symbol),
		zap.Int("fast", chosen.Fast),
		zap.Int("slow", chosen.Slow),
		zap.Float64("train_sharpe", sharpes[best]),
		zap.Time("train_end", train.End()),
	)
	strat, err := NewSMACrossover(g.symbol, chosen.Fast, chosen.Slow)
	if err != nil {
		return nil, err
	}
	return strat, nil
}
