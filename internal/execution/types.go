package execution

import (
	"time"

	"trades-backtest/internal/ledger"
)

// Options 控制模拟成交的成本参数。
type Options struct {
	CommissionRate   float64 // 手续费率，按成交额计
	SlippageBps      float64 // 滑点，单位基点
	MarketImpactCoef float64 // 冲击成本系数，按成交额占初始资金比例线性放大
	InitialCapital   float64 // 冲击成本的归一化基准
	UseMarketOrders  bool    // true 为市价单（含滑点），false 为限价单（按请求价全额成交）
}

// Totals 汇总一次回测的累计成本。
type Totals struct {
	Commission float64
	Slippage   float64
}

// Fill 描述一笔委托的成交结果。
type Fill struct {
	OrderID    int64
	Symbol     string
	Side       ledger.OrderSide
	Quantity   float64
	Price      float64
	Commission float64
	Slippage   float64
	FilledAt   time.Time
	Trade      *ledger.Trade
}
