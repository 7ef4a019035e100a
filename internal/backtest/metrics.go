package backtest

import (
	"math"

	"trades-backtest/internal/ledger"
)

// 按日频 252 个交易日年化。
var annualFactor = math.Sqrt(252)

// Metrics 记录回测绩效指标，百分比字段均已乘以 100。
type Metrics struct {
	TotalReturn  float64 `json:"total_return" yaml:"total_return"`
	SharpeRatio  float64 `json:"sharpe_ratio" yaml:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio" yaml:"sortino_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown" yaml:"max_drawdown"`
	WinRate      float64 `json:"win_rate" yaml:"win_rate"`
	ProfitFactor float64 `json:"profit_factor" yaml:"profit_factor"`
	TotalTrades  int     `json:"total_trades" yaml:"total_trades"`
	AvgWin       float64 `json:"avg_win" yaml:"avg_win"`
	AvgLoss      float64 `json:"avg_loss" yaml:"avg_loss"`
}

// CalculateMetrics 由权益曲线与交易列表计算绩效，纯函数。
// 盈亏为 0 的交易计入亏损方。
func CalculateMetrics(equity []float64, trades []ledger.Trade) Metrics {
	var m Metrics
	if len(equity) > 0 && equity[0] != 0 {
		m.TotalReturn = (equity[len(equity)-1]/equity[0] - 1) * 100
	}

	returns := BarReturns(equity)
	m.SharpeRatio = computeSharpe(returns)
	m.SortinoRatio = computeSortino(returns)
	m.MaxDrawdown = computeDrawdown(returns)

	m.TotalTrades = len(trades)
	if len(trades) == 0 {
		return m
	}

	var wins, losses []float64
	for _, t := range trades {
		if t.PnL > 0 {
			wins = append(wins, t.PnL)
		} else {
			losses = append(losses, t.PnL)
		}
	}
	m.WinRate = float64(len(wins)) / float64(len(trades)) * 100
	m.AvgWin = mean(wins)
	m.AvgLoss = mean(losses)

	totalLoss := math.Abs(sum(losses))
	if totalLoss > 0 {
		m.ProfitFactor = sum(wins) / totalLoss
	}
	return m
}

// BarReturns 返回权益曲线相邻点的收益率。前值为 0 时收益率记为 0。
func BarReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev == 0 {
			continue
		}
		out[i-1] = (equity[i] - prev) / prev
	}
	return out
}

func computeSharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	std := stddev(returns)
	if std == 0 {
		return 0
	}
	return mean(returns) / std * annualFactor
}

// computeSortino 以负收益的标准差作为分母。
func computeSortino(returns []float64) float64 {
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return 0
	}
	std := stddev(downside)
	if std == 0 {
		return 0
	}
	return mean(returns) / std * annualFactor
}

// computeDrawdown 基于收益累乘曲线计算最大回撤，返回非正百分比。
// 累乘曲线从第一笔收益开始，峰值不含初始点。
func computeDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	cum := 1.0
	peak := math.Inf(-1)
	maxDD := 0.0
	for i, r := range returns {
		cum *= 1 + r
		if i == 0 || cum > peak {
			peak = cum
		}
		if peak == 0 {
			continue
		}
		dd := (cum - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD * 100
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// stddev 为总体标准差。
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		d := v - m
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}
