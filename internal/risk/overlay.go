package risk

import (
	"go.uber.org/zap"

	"trades-backtest/internal/ledger"
	"trades-backtest/internal/marketdata"
)

// Overlay 每根 bar 扫描持仓，触发止损或止盈时生成保护性卖出请求。
type Overlay struct {
	cfg    Config
	logger *zap.Logger
}

// NewOverlay 创建风控层。
func NewOverlay(cfg Config, logger *zap.Logger) *Overlay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Overlay{
		cfg:    cfg,
		logger: logger,
	}
}

// Check 按持仓顺序检查阈值。止损与止盈独立判断且不去重，
// 阈值配置矛盾时同一标的可能产生两笔卖单。缺少价格的标的跳过。
func (o *Overlay) Check(positions []ledger.Position, bar marketdata.Bar) []Trigger {
	if !o.cfg.Enabled() {
		return nil
	}

	var triggers []Trigger
	for _, pos := range positions {
		price, ok := bar.Price(pos.Symbol)
		if !ok || pos.EntryPrice <= 0 {
			continue
		}
		returnPct := (price/pos.EntryPrice - 1) * 100

		if o.cfg.StopLossPct != nil && returnPct <= -*o.cfg.StopLossPct {
			o.logger.Debug("触发止损",
				zap.String("symbol", pos.Symbol),
				zap.Float64("return_pct", returnPct),
				zap.Time("bar", bar.Timestamp),
			)
			triggers = append(triggers, Trigger{
				Symbol:    pos.Symbol,
				Quantity:  pos.Quantity,
				Price:     price,
				ReturnPct: returnPct,
				Reason:    ledger.ReasonStopLoss,
				At:        bar.Timestamp,
			})
		}

		if o.cfg.TakeProfitPct != nil && returnPct >= *o.cfg.TakeProfitPct {
			o.logger.Debug("触发止盈",
				zap.String("symbol", pos.Symbol),
				zap.Float64("return_pct", returnPct),
				zap.Time("bar", bar.Timestamp),
			)
			triggers = append(triggers, Trigger{
				Symbol:    pos.Symbol,
				Quantity:  pos.Quantity,
				Price:     price,
				ReturnPct: returnPct,
				Reason:    ledger.ReasonTakeProfit,
				At:        bar.Timestamp,
			})
		}
	}
	return triggers
}
