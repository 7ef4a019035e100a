package signal

import (
	"go.uber.org/zap"

	"trades-backtest/internal/ledger"
	"trades-backtest/internal/marketdata"
)

// Request 为解释后的下单请求。
type Request struct {
	Symbol   string
	Side     ledger.OrderSide
	Quantity float64
	Price    float64
}

// Interpreter 将信号转换为按资金与持仓约束定量的委托请求。
type Interpreter struct {
	maxPositionSize float64
	logger          *zap.Logger
}

// NewInterpreter 创建信号解释器，maxPositionSize 为单笔买入占可用资金的上限比例。
func NewInterpreter(maxPositionSize float64, logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{
		maxPositionSize: maxPositionSize,
		logger:          logger,
	}
}

// Interpret 返回下单请求；信号被丢弃时 ok=false。
//
// 买入：数量默认且不超过 capital*maxPositionSize/price。
// 卖出：仅在已有持仓时有效，数量默认为全部持仓，超出部分由成交环节截断。
// 显式数量为 0 或负数、标的在当前 bar 无价格时信号被丢弃。
func (i *Interpreter) Interpret(sig Signal, bar marketdata.Bar, capital float64, l *ledger.Ledger) (Request, bool) {
	if sig.Quantity != nil && *sig.Quantity <= 0 {
		i.logger.Debug("信号数量非正，忽略", zap.String("symbol", sig.Symbol), zap.Float64("quantity", *sig.Quantity))
		return Request{}, false
	}

	switch sig.Action {
	case ActionBuy:
		price, ok := bar.Price(sig.Symbol)
		if !ok {
			i.logger.Debug("买入信号缺少价格，忽略", zap.String("symbol", sig.Symbol), zap.Time("bar", bar.Timestamp))
			return Request{}, false
		}
		maxQty := capital * i.maxPositionSize / price
		qty := maxQty
		if sig.Quantity != nil && *sig.Quantity < maxQty {
			qty = *sig.Quantity
		}
		if qty <= 0 {
			return Request{}, false
		}
		return Request{Symbol: sig.Symbol, Side: ledger.OrderSideBuy, Quantity: qty, Price: price}, true

	case ActionSell:
		pos, ok := l.Position(sig.Symbol)
		if !ok {
			return Request{}, false
		}
		price, ok := bar.Price(sig.Symbol)
		if !ok {
			i.logger.Debug("卖出信号缺少价格，忽略", zap.String("symbol", sig.Symbol), zap.Time("bar", bar.Timestamp))
			return Request{}, false
		}
		qty := pos.Quantity
		if sig.Quantity != nil {
			qty = *sig.Quantity
		}
		if qty <= 0 {
			return Request{}, false
		}
		return Request{Symbol: sig.Symbol, Side: ledger.OrderSideSell, Quantity: qty, Price: price}, true

	default:
		return Request{}, false
	}
}
