package backtest

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"trades-backtest/internal/execution"
	"trades-backtest/internal/ledger"
	"trades-backtest/internal/marketdata"
	"trades-backtest/internal/risk"
	"trades-backtest/internal/signal"
)

// EquityPoint 记录某根 bar 结束时的账户状态。
type EquityPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Equity        float64   `json:"equity"`
	Cash          float64   `json:"cash"`
	PositionValue float64   `json:"position_value"`
}

// simulator 持有单次回测的全部可变状态，不在多次运行之间复用。
type simulator struct {
	cfg         Config
	ledger      *ledger.Ledger
	filler      execution.Filler
	overlay     *risk.Overlay
	interpreter *signal.Interpreter
	logger      *zap.Logger

	equity       []float64
	points       []EquityPoint
	peakExposure float64
	overLeverage bool
}

func newSimulator(cfg Config, logger *zap.Logger) *simulator {
	return &simulator{
		cfg:         cfg,
		ledger:      ledger.New(cfg.InitialCapital),
		filler:      execution.NewModel(cfg.executionOptions(), logger),
		overlay:     risk.NewOverlay(cfg.riskConfig(), logger),
		interpreter: signal.NewInterpreter(cfg.MaxPositionSize, logger),
		logger:      logger,
		equity:      []float64{cfg.InitialCapital},
	}
}

// mark 以当前 bar 价格标记持仓，缺少价格的标的保留上一次标记价。
func (s *simulator) mark(bar marketdata.Bar) {
	for _, pos := range s.ledger.Positions() {
		if price, ok := bar.Price(pos.Symbol); ok {
			s.ledger.Mark(pos.Symbol, price)
		}
	}
}

// executePending 成交本 bar 之前提交的委托。标的在当前 bar 无价格时委托继续等待。
// 成交后按本 bar 价格重新标记，新开仓位的标记价不能停留在成交价。
func (s *simulator) executePending(bar marketdata.Bar) error {
	for _, order := range s.ledger.Pending() {
		if !bar.HasPrice(order.Symbol) {
			s.logger.Debug("当前 bar 缺少价格，委托顺延",
				zap.Int64("order_id", order.ID),
				zap.String("symbol", order.Symbol),
				zap.Time("bar", bar.Timestamp),
			)
			continue
		}
		if _, err := s.filler.Execute(s.ledger, order, bar.Timestamp); err != nil {
			return fmt.Errorf("backtest: 成交委托 %d 失败: %w", order.ID, err)
		}
	}
	s.ledger.Settle()
	s.mark(bar)
	return nil
}

// applyRisk 为触发止损或止盈的持仓提交保护性卖单，下一根 bar 成交。
func (s *simulator) applyRisk(bar marketdata.Bar) error {
	for _, trig := range s.overlay.Check(s.ledger.Positions(), bar) {
		if _, err := s.ledger.Place(trig.Symbol, ledger.OrderSideSell, trig.Quantity, trig.Price, bar.Timestamp, trig.Reason); err != nil {
			return fmt.Errorf("backtest: 提交风控委托失败: %w", err)
		}
	}
	return nil
}

// applySignal 将策略信号转为待成交委托。
func (s *simulator) applySignal(sig signal.Signal, bar marketdata.Bar) error {
	req, ok := s.interpreter.Interpret(sig, bar, s.ledger.Cash(), s.ledger)
	if !ok {
		return nil
	}
	if _, err := s.ledger.Place(req.Symbol, req.Side, req.Quantity, req.Price, bar.Timestamp, ledger.ReasonSignal); err != nil {
		return fmt.Errorf("backtest: 提交信号委托失败: %w", err)
	}
	return nil
}

// record 记录 bar 结束时的权益。
func (s *simulator) record(bar marketdata.Bar) {
	cash := s.ledger.Cash()
	value := s.ledger.PositionValue()
	equity := cash + value

	s.equity = append(s.equity, equity)
	s.points = append(s.points, EquityPoint{
		Timestamp:     bar.Timestamp,
		Equity:        equity,
		Cash:          cash,
		PositionValue: value,
	})

	if equity <= 0 {
		return
	}
	exposure := value / equity
	if exposure > s.peakExposure {
		s.peakExposure = exposure
	}
	if exposure > s.cfg.MaxLeverage && !s.overLeverage {
		s.overLeverage = true
		s.logger.Warn("持仓敞口超过杠杆上限",
			zap.Time("bar", bar.Timestamp),
			zap.Float64("exposure", exposure),
			zap.Float64("max_leverage", s.cfg.MaxLeverage),
		)
	}
}

// liquidate 在最后一根 bar 取消遗留委托并立即平掉全部有价格的持仓。
// 这是唯一不经过一根 bar 延迟的成交。
func (s *simulator) liquidate(bar marketdata.Bar) (int, error) {
	cancelled := s.ledger.CancelPending()
	if cancelled > 0 {
		s.logger.Debug("回测结束，取消未成交委托", zap.Int("count", cancelled))
	}

	for _, pos := range s.ledger.Positions() {
		price, ok := bar.Price(pos.Symbol)
		if !ok {
			s.logger.Warn("最后一根 bar 缺少价格，持仓未平",
				zap.String("symbol", pos.Symbol),
				zap.Float64("quantity", pos.Quantity),
			)
			continue
		}
		order, err := s.ledger.Place(pos.Symbol, ledger.OrderSideSell, pos.Quantity, price, bar.Timestamp, ledger.ReasonLiquidation)
		if err != nil {
			return cancelled, fmt.Errorf("backtest: 提交平仓委托失败: %w", err)
		}
		if _, err := s.filler.Execute(s.ledger, order, bar.Timestamp); err != nil {
			return cancelled, fmt.Errorf("backtest: 平仓 %s 失败: %w", pos.Symbol, err)
		}
		s.logger.Debug("回测结束平仓",
			zap.String("symbol", pos.Symbol),
			zap.Float64("quantity", pos.Quantity),
			zap.Float64("price", order.FillPrice),
		)
	}
	s.ledger.Settle()
	return cancelled, nil
}

func (s *simulator) result(cancelled int) Result {
	equity := append([]float64(nil), s.equity...)
	trades := s.ledger.Trades()
	totals := s.filler.Totals()

	return Result{
		Metrics:         CalculateMetrics(equity, trades),
		TotalCommission: totals.Commission,
		TotalSlippage:   totals.Slippage,
		FinalEquity:     equity[len(equity)-1],
		FinalCapital:    s.ledger.Cash(),
		PeakExposure:    s.peakExposure,
		EquityCurve:     equity,
		Returns:         BarReturns(equity),
		EquityPoints:    append([]EquityPoint(nil), s.points...),
		Trades:          trades,
		Orders:          s.ledger.Orders(),
		Cancelled:       cancelled,
	}
}
