package risk

import (
	"time"

	"trades-backtest/internal/ledger"
)

// Config 配置止损止盈阈值，单位为百分比；nil 表示未启用。
type Config struct {
	StopLossPct   *float64
	TakeProfitPct *float64
}

// Enabled 判断是否启用任一保护。
func (c Config) Enabled() bool {
	return c.StopLossPct != nil || c.TakeProfitPct != nil
}

// Trigger 表示一次保护性平仓请求，将以全部持仓数量下达卖单。
type Trigger struct {
	Symbol    string
	Quantity  float64
	Price     float64
	ReturnPct float64
	Reason    ledger.OrderReason
	At        time.Time
}
