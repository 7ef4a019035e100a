package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"trades-backtest/internal/backtest"
	"trades-backtest/internal/feature"
	"trades-backtest/internal/marketdata"
	"trades-backtest/internal/signal"
)

// decider 抽象出模型调用，便于替换。
type decider interface {
	GenerateDecision(ctx context.Context, features feature.FeatureSet) (Decision, error)
}

// Strategy 将每根 bar 的特征交给大模型，并把返回的决策转换为信号。
// 历史不足时不给信号；模型调用或输出非法时返回错误，回测随之中止。
type Strategy struct {
	symbol        string
	minConfidence float64
	client        decider
	extractor     *feature.Extractor
	logger        *zap.Logger
}

var _ backtest.Strategy = (*Strategy)(nil)

// NewStrategy 创建大模型策略。confidence 低于 minConfidence 的决策被视为 hold。
func NewStrategy(symbol string, minConfidence float64, client *Client, extractor *feature.Extractor, logger *zap.Logger) (*Strategy, error) {
	if client == nil {
		return nil, errors.New("ai: client 不能为空")
	}
	return newStrategy(symbol, minConfidence, client, extractor, logger)
}

func newStrategy(symbol string, minConfidence float64, client decider, extractor *feature.Extractor, logger *zap.Logger) (*Strategy, error) {
	if symbol == "" {
		return nil, errors.New("ai: 标的不能为空")
	}
	if extractor == nil {
		extractor = feature.NewExtractor(nil, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{
		symbol:        symbol,
		minConfidence: minConfidence,
		client:        client,
		extractor:     extractor,
		logger:        logger,
	}, nil
}

// Signal 实现 backtest.Strategy。
func (s *Strategy) Signal(ctx context.Context, view marketdata.Series) (signal.Signal, bool, error) {
	features, err := s.extractor.Extract(ctx, s.symbol, view)
	if errors.Is(err, feature.ErrInsufficientHistory) {
		return signal.Signal{}, false, nil
	}
	if err != nil {
		return signal.Signal{}, false, err
	}

	decision, err := s.client.GenerateDecision(ctx, features)
	if err != nil {
		return signal.Signal{}, false, err
	}
	if !strings.EqualFold(strings.TrimSpace(decision.Symbol), s.symbol) {
		return signal.Signal{}, false, fmt.Errorf("ai: 模型返回标的 %q 与策略标的 %q 不一致", decision.Symbol, s.symbol)
	}
	if decision.Confidence < s.minConfidence {
		s.logger.Debug("决策信心不足，忽略",
			zap.Float64("confidence", decision.Confidence),
			zap.Float64("min_confidence", s.minConfidence),
		)
		return signal.Signal{}, false, nil
	}

	sig, ok := decision.Signal()
	if !ok {
		return signal.Signal{}, false, nil
	}
	sig.Symbol = s.symbol
	return sig, true, nil
}
