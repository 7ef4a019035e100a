package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"trades-backtest/internal/ai"
	"trades-backtest/internal/backtest"
	"trades-backtest/internal/config"
	"trades-backtest/internal/exchange"
	"trades-backtest/internal/feature"
	"trades-backtest/internal/indicator"
	"trades-backtest/internal/marketdata"
	"trades-backtest/internal/strategy"
)

// orchestrator 根据配置组装行情来源、引擎与策略。
type orchestrator struct {
	cfg    *config.Config
	engine *backtest.Engine
	logger *zap.Logger
}

func newOrchestrator(cfg *config.Config, logger *zap.Logger) (*orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: 配置不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	engine, err := backtest.NewEngine(engineConfig(cfg), logger.Named("backtest"))
	if err != nil {
		return nil, fmt.Errorf("初始化回测引擎失败: %w", err)
	}

	return &orchestrator{
		cfg:    cfg,
		engine: engine,
		logger: logger,
	}, nil
}

// engineConfig 将配置文件映射为引擎参数。
func engineConfig(cfg *config.Config) backtest.Config {
	bt := cfg.Backtest
	wf := cfg.WalkForward
	return backtest.Config{
		InitialCapital:   bt.InitialCapital,
		CommissionRate:   bt.CommissionRate,
		SlippageBps:      bt.SlippageBps,
		MarketImpactCoef: bt.MarketImpactCoef,
		MaxPositionSize:  bt.MaxPositionSize,
		MaxLeverage:      bt.MaxLeverage,
		StopLossPct:      bt.StopLossPct,
		TakeProfitPct:    bt.TakeProfitPct,
		ExecutionDelay:   bt.ExecutionDelay,
		UseMarketOrders:  bt.UseMarketOrders,
		TrainBars:        wf.TrainBars,
		TestBars:         wf.TestBars,
		StepBars:         wf.StepBars,
		Parallelism:      wf.Parallelism,
	}
}

// loadData 按 data.source 读取 CSV 或下载交易所历史K线。
func (o *orchestrator) loadData(ctx context.Context) (marketdata.Series, error) {
	switch strings.ToLower(o.cfg.Data.Source) {
	case "csv":
		series, err := marketdata.LoadCSV(o.cfg.Data.CSVPath, marketdata.CSVOptions{CloseSymbol: o.cfg.Data.CloseSymbol})
		if err != nil {
			return marketdata.Series{}, fmt.Errorf("读取行情文件失败: %w", err)
		}
		return series, nil
	case "exchange":
		client, err := exchange.NewClient(o.cfg.Exchange, o.logger.Named("exchange"))
		if err != nil {
			return marketdata.Series{}, fmt.Errorf("初始化交易所客户端失败: %w", err)
		}
		svc := exchange.NewHistoryService(client, o.logger.Named("exchange"))
		return svc.Load(ctx, exchange.HistoryRequest{
			Symbols:   o.cfg.Data.Symbols,
			Timeframe: o.cfg.Data.Timeframe,
			Start:     o.cfg.Data.Start,
			End:       o.cfg.Data.End,
		})
	default:
		return marketdata.Series{}, fmt.Errorf("不支持的行情来源: %q", o.cfg.Data.Source)
	}
}

// factory 返回策略工厂。sma 与 llm 无训练过程，每个窗口复用同一策略实例。
func (o *orchestrator) factory() (backtest.StrategyFactory, error) {
	sc := o.cfg.Strategy
	switch strings.ToLower(sc.Name) {
	case "sma":
		strat, err := strategy.NewSMACrossover(sc.Symbol, sc.FastPeriod, sc.SlowPeriod)
		if err != nil {
			return nil, err
		}
		return backtest.Static(strat), nil
	case "sma_grid":
		grid, err := strategy.NewGridFactory(o.engine, sc.Symbol, strategy.Pairs(sc.GridFast, sc.GridSlow), o.cfg.WalkForward.Parallelism, o.logger.Named("grid"))
		if err != nil {
			return nil, err
		}
		return grid, nil
	case "llm":
		client, err := ai.NewClient(o.cfg.OpenAI, o.logger.Named("ai"))
		if err != nil {
			return nil, fmt.Errorf("初始化AI客户端失败: %w", err)
		}
		extractor := feature.NewExtractor(indicator.NewCalculator(), o.logger.Named("feature"))
		strat, err := ai.NewStrategy(sc.Symbol, sc.MinConfidence, client, extractor, o.logger.Named("ai"))
		if err != nil {
			return nil, err
		}
		return backtest.Static(strat), nil
	default:
		return nil, fmt.Errorf("不支持的策略: %q", sc.Name)
	}
}
