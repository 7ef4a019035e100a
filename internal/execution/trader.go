package execution

import (
	"time"

	"trades-backtest/internal/ledger"
)

// Filler 抽象成交模型，方便替换不同的成本假设。
type Filler interface {
	Execute(l *ledger.Ledger, order *ledger.Order, ts time.Time) (Fill, error)
	Totals() Totals
}

var _ Filler = (*Model)(nil)
