package ledger

import "time"

// OrderSide 表示下单方向。
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus 表示订单状态。
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderReason 记录订单来源。
type OrderReason string

const (
	ReasonSignal      OrderReason = "signal"
	ReasonStopLoss    OrderReason = "stop_loss"
	ReasonTakeProfit  OrderReason = "take_profit"
	ReasonLiquidation OrderReason = "liquidation"
)

// Order 为模拟委托。Price 是下单时观察到的参考价，并非成交价。
type Order struct {
	ID             int64       `json:"id"`
	Symbol         string      `json:"symbol"`
	Side           OrderSide   `json:"side"`
	Quantity       float64     `json:"quantity"`
	Price          float64     `json:"price"`
	PlacedAt       time.Time   `json:"placed_at"`
	Reason         OrderReason `json:"reason"`
	Status         OrderStatus `json:"status"`
	FillPrice      float64     `json:"fill_price"`
	FilledAt       time.Time   `json:"filled_at"`
	FilledQuantity float64     `json:"filled_quantity"`
	Commission     float64     `json:"commission"`
}

// Position 为单个标的的多头持仓。
type Position struct {
	Symbol         string    `json:"symbol"`
	Quantity       float64   `json:"quantity"`
	EntryPrice     float64   `json:"entry_price"`
	EntryTimestamp time.Time `json:"entry_timestamp"`
	CurrentPrice   float64   `json:"current_price"`
	UnrealizedPnL  float64   `json:"unrealized_pnl"`
}

// MarketValue 返回按最新标记价计算的持仓市值。
func (p Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// Trade 为一次（部分或全部）平仓产生的成交记录，创建后不可修改。
type Trade struct {
	Symbol         string        `json:"symbol"`
	Side           OrderSide     `json:"side"`
	Quantity       float64       `json:"quantity"`
	EntryPrice     float64       `json:"entry_price"`
	ExitPrice      float64       `json:"exit_price"`
	EntryTimestamp time.Time     `json:"entry_timestamp"`
	ExitTimestamp  time.Time     `json:"exit_timestamp"`
	Commission     float64       `json:"commission"`
	PnL            float64       `json:"pnl"`
	ReturnPct      float64       `json:"return_pct"`
	HoldingPeriod  time.Duration `json:"holding_period"`
}
