package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"trades-backtest/internal/backtest"
	"trades-backtest/internal/config"
	"trades-backtest/internal/marketdata"
	"trades-backtest/internal/monitor"
	"trades-backtest/internal/report"
	"trades-backtest/internal/store"
)

// App 聚合核心依赖并驱动一次回测或滚动验证。
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	monitor *monitor.Service
}

// Summary 为一次运行的简要结果。
type Summary struct {
	RunID       string
	Mode        monitor.Mode
	Backtest    *backtest.Result
	WalkForward *backtest.WalkForwardResult
	Files       []string
}

// New 创建 App 实例。store 为空时不记录运行事件。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Monitor 返回运行事件服务，未启用数据库时为 nil。
func (a *App) Monitor() *monitor.Service {
	return a.monitor
}

// Run 加载行情并执行回测，结果写入报告目录与运行事件表。
func (a *App) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: monitor.NewRunID(), Mode: monitor.ModeBacktest}
	if a.cfg.WalkForward.Enabled {
		summary.Mode = monitor.ModeWalkForward
	}
	logger := a.logger.With(zap.String("run_id", summary.RunID))

	if a.store != nil && a.monitor == nil {
		svc, err := monitor.NewService(ctx, a.store, logger.Named("monitor"))
		if err != nil {
			return summary, fmt.Errorf("初始化监控服务失败: %w", err)
		}
		a.monitor = svc
	}

	logger.Info("回测系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("mode", string(summary.Mode)),
		zap.String("strategy", a.cfg.Strategy.Name),
		zap.String("data_source", a.cfg.Data.Source),
	)

	orch, err := newOrchestrator(a.cfg, logger)
	if err != nil {
		a.recordError(ctx, summary.RunID, "初始化失败", err)
		return summary, err
	}

	data, err := orch.loadData(ctx)
	if err != nil {
		a.recordError(ctx, summary.RunID, "加载行情失败", err)
		return summary, err
	}

	factory, err := orch.factory()
	if err != nil {
		a.recordError(ctx, summary.RunID, "初始化策略失败", err)
		return summary, err
	}

	meta := report.Meta{
		Strategy: a.cfg.Strategy.Name,
		Symbols:  data.Symbols(),
		Start:    data.Start(),
		End:      data.End(),
		Bars:     data.Len(),
	}
	if a.monitor != nil {
		a.monitor.RecordRunStarted(ctx, summary.RunID, monitor.RunStartedPayload{
			Mode:           summary.Mode,
			Strategy:       meta.Strategy,
			Symbols:        meta.Symbols,
			Bars:           meta.Bars,
			Start:          meta.Start,
			End:            meta.End,
			InitialCapital: a.cfg.Backtest.InitialCapital,
		})
	}

	writer := report.NewWriter(report.Options{
		Dir:          a.cfg.Output.Dir,
		WriteTrades:  a.cfg.Output.WriteTrades,
		WriteEquity:  a.cfg.Output.WriteEquity,
		WriteSummary: a.cfg.Output.WriteSummary,
	}, logger.Named("report"))

	started := time.Now()
	if summary.Mode == monitor.ModeWalkForward {
		err = a.runWalkForward(ctx, orch, data, factory, writer, meta, started, &summary)
	} else {
		err = a.runBacktest(ctx, orch, data, factory, writer, meta, started, &summary)
	}
	if err != nil {
		a.recordError(ctx, summary.RunID, "回测失败", err)
		return summary, err
	}

	return summary, nil
}

func (a *App) runBacktest(ctx context.Context, orch *orchestrator, data marketdata.Series, factory backtest.StrategyFactory, writer *report.Writer, meta report.Meta, started time.Time, summary *Summary) error {
	if strings.EqualFold(meta.Strategy, "sma_grid") {
		a.logger.Warn("单次回测在完整行情上训练网格参数，结果含样本内偏差")
	}
	strat, err := factory.Build(ctx, data)
	if err != nil {
		return fmt.Errorf("构建策略失败: %w", err)
	}

	res, err := orch.engine.Run(ctx, data, strat)
	if err != nil {
		return err
	}
	summary.Backtest = &res

	if a.monitor != nil {
		a.monitor.RecordBacktest(ctx, summary.RunID, res, time.Since(started))
	}

	files, err := writer.WriteBacktest(summary.RunID, meta, res)
	summary.Files = files
	if err != nil {
		return fmt.Errorf("输出报告失败: %w", err)
	}

	a.logger.Info("回测完成",
		zap.String("run_id", summary.RunID),
		zap.Float64("total_return", res.Metrics.TotalReturn),
		zap.Float64("sharpe_ratio", res.Metrics.SharpeRatio),
		zap.Float64("max_drawdown", res.Metrics.MaxDrawdown),
		zap.Int("total_trades", res.Metrics.TotalTrades),
		zap.Float64("final_equity", res.FinalEquity),
	)
	return nil
}

func (a *App) runWalkForward(ctx context.Context, orch *orchestrator, data marketdata.Series, factory backtest.StrategyFactory, writer *report.Writer, meta report.Meta, started time.Time, summary *Summary) error {
	res, err := orch.engine.WalkForward(ctx, data, factory)
	if err != nil {
		return err
	}
	summary.WalkForward = &res

	if a.monitor != nil {
		a.monitor.RecordWalkForward(ctx, summary.RunID, res, time.Since(started))
	}

	files, err := writer.WriteWalkForward(summary.RunID, meta, res)
	summary.Files = files
	if err != nil {
		return fmt.Errorf("输出报告失败: %w", err)
	}

	a.logger.Info("滚动验证完成",
		zap.String("run_id", summary.RunID),
		zap.Int("windows", res.NWindows),
		zap.Float64("avg_sharpe", res.AvgSharpe),
		zap.Float64("avg_return", res.AvgReturn),
		zap.Float64("consistency", res.Consistency),
	)
	return nil
}

func (a *App) recordError(ctx context.Context, runID, msg string, err error) {
	a.logger.Error(msg, zap.String("run_id", runID), zap.Error(err))
	if a.monitor == nil {
		return
	}
	// 运行上下文可能已取消，异常事件仍需落库。
	a.monitor.RecordError(context.WithoutCancel(ctx), runID, msg, err, map[string]interface{}{
		"strategy": a.cfg.Strategy.Name,
		"source":   a.cfg.Data.Source,
	})
}
