package ledger

import (
	"fmt"
	"time"
)

// Ledger 维护资金、持仓、历史委托与已完成交易，只做记账不推进时间。
// 非并发安全，每次回测独占一个实例。
type Ledger struct {
	cash float64

	positions map[string]*Position
	// 保持开仓顺序，保证遍历结果可复现
	symbols []string

	orders  []*Order
	pending []*Order
	trades  []Trade
	nextID  int64
}

// New 创建初始资金为 capital 的账本。
func New(capital float64) *Ledger {
	return &Ledger{
		cash:      capital,
		positions: make(map[string]*Position),
	}
}

// Cash 返回当前可用资金。
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Debit 扣减资金。
func (l *Ledger) Debit(amount float64) {
	l.cash -= amount
}

// Credit 增加资金。
func (l *Ledger) Credit(amount float64) {
	l.cash += amount
}

// OpenOrAdd 按成交价开仓或加仓，加仓时入场价按数量加权平均，入场时间保持首次开仓时间。
func (l *Ledger) OpenOrAdd(symbol string, qty, price float64, ts time.Time) Position {
	if pos, ok := l.positions[symbol]; ok {
		total := pos.Quantity + qty
		pos.EntryPrice = (pos.EntryPrice*pos.Quantity + price*qty) / total
		pos.Quantity = total
		pos.UnrealizedPnL = (pos.CurrentPrice - pos.EntryPrice) * pos.Quantity
		return *pos
	}

	pos := &Position{
		Symbol:         symbol,
		Quantity:       qty,
		EntryPrice:     price,
		EntryTimestamp: ts,
		CurrentPrice:   price,
	}
	l.positions[symbol] = pos
	l.symbols = append(l.symbols, symbol)
	return *pos
}

// ReduceOrClose 减仓或平仓并生成 Trade。超出持仓的数量被直接截断，不会产生空头，
// 剩余部分也不会重新排队。commission 需按实际平仓数量计算。无持仓时 ok=false。
func (l *Ledger) ReduceOrClose(symbol string, qty, price, commission float64, ts time.Time) (Trade, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return Trade{}, false
	}

	closeQty := ClosableQuantity(pos.Quantity, qty)
	trade := Trade{
		Symbol:         symbol,
		Side:           OrderSideSell,
		Quantity:       closeQty,
		EntryPrice:     pos.EntryPrice,
		ExitPrice:      price,
		EntryTimestamp: pos.EntryTimestamp,
		ExitTimestamp:  ts,
		Commission:     commission,
		PnL:            (price-pos.EntryPrice)*closeQty - commission,
		ReturnPct:      (price/pos.EntryPrice - 1) * 100,
		HoldingPeriod:  ts.Sub(pos.EntryTimestamp),
	}
	l.trades = append(l.trades, trade)

	pos.Quantity -= closeQty
	if pos.Quantity <= 0 {
		l.remove(symbol)
	} else {
		pos.UnrealizedPnL = (pos.CurrentPrice - pos.EntryPrice) * pos.Quantity
	}
	return trade, true
}

// ClosableQuantity 返回请求数量与持仓数量中的较小值。
func ClosableQuantity(held, requested float64) float64 {
	if requested < held {
		return requested
	}
	return held
}

// Mark 以最新价格标记持仓，只更新未实现盈亏。
func (l *Ledger) Mark(symbol string, price float64) {
	pos, ok := l.positions[symbol]
	if !ok {
		return
	}
	pos.CurrentPrice = price
	pos.UnrealizedPnL = (price - pos.EntryPrice) * pos.Quantity
}

// Position 返回标的持仓副本。
func (l *Ledger) Position(symbol string) (Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Positions 按开仓顺序返回全部持仓副本。
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.symbols))
	for _, symbol := range l.symbols {
		out = append(out, *l.positions[symbol])
	}
	return out
}

// PositionValue 返回全部持仓按标记价计算的市值。
func (l *Ledger) PositionValue() float64 {
	total := 0.0
	for _, symbol := range l.symbols {
		total += l.positions[symbol].MarketValue()
	}
	return total
}

// Equity 返回资金加持仓市值。
func (l *Ledger) Equity() float64 {
	return l.cash + l.PositionValue()
}

// Place 追加一笔待成交委托并返回其引用。
func (l *Ledger) Place(symbol string, side OrderSide, qty, price float64, ts time.Time, reason OrderReason) (*Order, error) {
	if symbol == "" {
		return nil, fmt.Errorf("ledger: 委托标的不能为空")
	}
	if qty <= 0 {
		return nil, fmt.Errorf("ledger: 委托数量必须为正，当前 %.8f", qty)
	}
	l.nextID++
	order := &Order{
		ID:       l.nextID,
		Symbol:   symbol,
		Side:     side,
		Quantity: qty,
		Price:    price,
		PlacedAt: ts,
		Reason:   reason,
		Status:   OrderStatusPending,
	}
	l.orders = append(l.orders, order)
	l.pending = append(l.pending, order)
	return order, nil
}

// Pending 返回当前待成交委托的快照，顺序与下单顺序一致。
func (l *Ledger) Pending() []*Order {
	out := make([]*Order, len(l.pending))
	copy(out, l.pending)
	return out
}

// Settle 将已不处于 Pending 状态的委托移出队列。
func (l *Ledger) Settle() {
	kept := l.pending[:0]
	for _, order := range l.pending {
		if order.Status == OrderStatusPending {
			kept = append(kept, order)
		}
	}
	for i := len(kept); i < len(l.pending); i++ {
		l.pending[i] = nil
	}
	l.pending = kept
}

// CancelPending 取消全部未成交委托并返回取消数量。
func (l *Ledger) CancelPending() int {
	n := 0
	for _, order := range l.pending {
		if order.Status == OrderStatusPending {
			order.Status = OrderStatusCancelled
			n++
		}
	}
	l.Settle()
	return n
}

// Orders 返回全部历史委托副本。
func (l *Ledger) Orders() []Order {
	out := make([]Order, len(l.orders))
	for i, order := range l.orders {
		out[i] = *order
	}
	return out
}

// Trades 返回全部已完成交易副本。
func (l *Ledger) Trades() []Trade {
	return append([]Trade(nil), l.trades...)
}

func (l *Ledger) remove(symbol string) {
	delete(l.positions, symbol)
	for i, s := range l.symbols {
		if s == symbol {
			l.symbols = append(l.symbols[:i], l.symbols[i+1:]...)
			break
		}
	}
}
