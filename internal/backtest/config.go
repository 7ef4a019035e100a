package backtest

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"trades-backtest/internal/execution"
	"trades-backtest/internal/risk"
)

// Config 定义一次回测的全部参数，运行期间不可变。
type Config struct {
	InitialCapital   float64 // 初始资金
	CommissionRate   float64 // 手续费率，按成交额计
	SlippageBps      float64 // 滑点，基点
	MarketImpactCoef float64 // 市场冲击系数，0 表示不启用
	MaxPositionSize  float64 // 单笔买入占可用资金比例上限
	MaxLeverage      float64 // 净敞口上限，仅用于告警
	StopLossPct      *float64
	TakeProfitPct    *float64
	ExecutionDelay   int  // 策略首次被调用前需经过的 bar 数
	UseMarketOrders  bool // true 为市价成交（含滑点），false 为限价成交

	TrainBars   int // 滚动窗口训练长度
	TestBars    int // 滚动窗口测试长度
	StepBars    int // 窗口步长
	Parallelism int // 同时运行的窗口数，<=1 时串行
}

// DefaultConfig 返回保守的默认参数。
func DefaultConfig() Config {
	return Config{
		InitialCapital:  100000,
		CommissionRate:  0.001,
		SlippageBps:     5,
		MaxPositionSize: 0.2,
		MaxLeverage:     1,
		ExecutionDelay:  1,
		UseMarketOrders: true,
		TrainBars:       252,
		TestBars:        63,
		StepBars:        21,
		Parallelism:     1,
	}
}

// Validate 校验单次回测参数，返回全部问题。
func (c Config) Validate() error {
	var err error

	if c.InitialCapital <= 0 {
		err = multierr.Append(err, errors.New("initial_capital 必须大于0"))
	}
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		err = multierr.Append(err, errors.New("commission_rate 必须位于[0,1)"))
	}
	if c.SlippageBps < 0 {
		err = multierr.Append(err, errors.New("slippage_bps 不能为负"))
	}
	if c.MarketImpactCoef < 0 {
		err = multierr.Append(err, errors.New("market_impact_coef 不能为负"))
	}
	if c.MaxPositionSize <= 0 {
		err = multierr.Append(err, errors.New("max_position_size 必须大于0"))
	}
	if c.MaxLeverage <= 0 {
		err = multierr.Append(err, errors.New("max_leverage 必须大于0"))
	}
	if c.ExecutionDelay < 0 {
		err = multierr.Append(err, errors.New("execution_delay 不能为负"))
	}
	if c.Parallelism < 0 {
		err = multierr.Append(err, errors.New("parallelism 不能为负"))
	}

	if err != nil {
		return fmt.Errorf("backtest: 配置校验失败: %w", err)
	}
	return nil
}

// validateWindows 校验滚动窗口参数，仅在 WalkForward 中使用。
func (c Config) validateWindows() error {
	var err error
	if c.TrainBars <= 0 {
		err = multierr.Append(err, errors.New("train_bars 必须大于0"))
	}
	if c.TestBars <= 0 {
		err = multierr.Append(err, errors.New("test_bars 必须大于0"))
	}
	if c.StepBars <= 0 {
		err = multierr.Append(err, errors.New("step_bars 必须大于0"))
	}
	if err != nil {
		return fmt.Errorf("backtest: 滚动窗口配置无效: %w", err)
	}
	return nil
}

func (c Config) executionOptions() execution.Options {
	return execution.Options{
		CommissionRate:   c.CommissionRate,
		SlippageBps:      c.SlippageBps,
		MarketImpactCoef: c.MarketImpactCoef,
		InitialCapital:   c.InitialCapital,
		UseMarketOrders:  c.UseMarketOrders,
	}
}

func (c Config) riskConfig() risk.Config {
	return risk.Config{
		StopLossPct:   c.StopLossPct,
		TakeProfitPct: c.TakeProfitPct,
	}
}
