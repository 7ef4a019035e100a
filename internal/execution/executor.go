package execution

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"trades-backtest/internal/ledger"
)

const bpsDenominator = 10000

// Model 将待成交委托转换为成交价与手续费，并更新账本。
// 每次回测使用独立实例，累计成本随实例保存。
type Model struct {
	opts   Options
	totals Totals
	logger *zap.Logger
}

// NewModel 创建成交模型。
func NewModel(opts Options, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Model{
		opts:   opts,
		logger: logger,
	}
}

// FillPrice 计算委托成交价。市价单滑点总是朝不利方向；限价单按请求价成交。
func (m *Model) FillPrice(order ledger.Order) float64 {
	if !m.opts.UseMarketOrders {
		return order.Price
	}
	adverse := m.opts.SlippageBps/bpsDenominator + m.impact(order)
	if order.Side == ledger.OrderSideBuy {
		return order.Price * (1 + adverse)
	}
	return order.Price * (1 - adverse)
}

func (m *Model) impact(order ledger.Order) float64 {
	if m.opts.MarketImpactCoef <= 0 || m.opts.InitialCapital <= 0 {
		return 0
	}
	return m.opts.MarketImpactCoef * math.Abs(order.Quantity*order.Price) / m.opts.InitialCapital
}

// Execute 成交一笔 Pending 委托。每笔委托只能成交一次。
// 无持仓的卖单视为空操作：状态置为 Filled，成交数量为 0，不计手续费。
func (m *Model) Execute(l *ledger.Ledger, order *ledger.Order, ts time.Time) (Fill, error) {
	if order == nil {
		return Fill{}, fmt.Errorf("execution: 委托不能为空")
	}
	if order.Status != ledger.OrderStatusPending {
		return Fill{}, fmt.Errorf("execution: 委托 %d 状态为 %s，不能重复成交", order.ID, order.Status)
	}

	price := m.FillPrice(*order)
	fill := Fill{
		OrderID:  order.ID,
		Symbol:   order.Symbol,
		Side:     order.Side,
		Price:    price,
		FilledAt: ts,
	}

	switch order.Side {
	case ledger.OrderSideBuy:
		qty := order.Quantity
		commission := math.Abs(qty * price * m.opts.CommissionRate)
		l.OpenOrAdd(order.Symbol, qty, price, ts)
		l.Debit(qty*price + commission)

		fill.Quantity = qty
		fill.Commission = commission
	case ledger.OrderSideSell:
		pos, ok := l.Position(order.Symbol)
		if !ok {
			m.logger.Debug("卖单无对应持仓，忽略",
				zap.Int64("order_id", order.ID),
				zap.String("symbol", order.Symbol),
			)
			break
		}
		qty := ledger.ClosableQuantity(pos.Quantity, order.Quantity)
		if qty < order.Quantity {
			m.logger.Debug("卖出数量超过持仓，已截断",
				zap.String("symbol", order.Symbol),
				zap.Float64("requested", order.Quantity),
				zap.Float64("held", pos.Quantity),
			)
		}
		commission := math.Abs(qty * price * m.opts.CommissionRate)
		trade, _ := l.ReduceOrClose(order.Symbol, qty, price, commission, ts)
		l.Credit(qty*price - commission)

		fill.Quantity = qty
		fill.Commission = commission
		fill.Trade = &trade
	default:
		return Fill{}, fmt.Errorf("execution: 不支持的委托方向 %s", order.Side)
	}

	fill.Slippage = math.Abs(price-order.Price) * fill.Quantity
	m.totals.Commission += fill.Commission
	m.totals.Slippage += fill.Slippage

	order.Status = ledger.OrderStatusFilled
	order.FillPrice = price
	order.FilledAt = ts
	order.FilledQuantity = fill.Quantity
	order.Commission = fill.Commission

	return fill, nil
}

// Totals 返回累计手续费与滑点成本。
func (m *Model) Totals() Totals {
	return m.totals
}
