package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Backtest    BacktestConfig    `mapstructure:"backtest"`
	WalkForward WalkForwardConfig `mapstructure:"walk_forward"`
	Data        DataConfig        `mapstructure:"data"`
	Exchange    ExchangeConfig    `mapstructure:"exchange"`
	Strategy    StrategyConfig    `mapstructure:"strategy"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Output      OutputConfig      `mapstructure:"output"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// BacktestConfig 描述单次回测参数。止损止盈为空表示不启用。
type BacktestConfig struct {
	InitialCapital   float64  `mapstructure:"initial_capital"`
	CommissionRate   float64  `mapstructure:"commission_rate"`
	SlippageBps      float64  `mapstructure:"slippage_bps"`
	MarketImpactCoef float64  `mapstructure:"market_impact_coef"`
	MaxPositionSize  float64  `mapstructure:"max_position_size"`
	MaxLeverage      float64  `mapstructure:"max_leverage"`
	StopLossPct      *float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct    *float64 `mapstructure:"take_profit_pct"`
	ExecutionDelay   int      `mapstructure:"execution_delay"`
	UseMarketOrders  bool     `mapstructure:"use_market_orders"`
}

// WalkForwardConfig 控制滚动窗口验证，长度单位为 bar。
type WalkForwardConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	TrainBars   int  `mapstructure:"train_bars"`
	TestBars    int  `mapstructure:"test_bars"`
	StepBars    int  `mapstructure:"step_bars"`
	Parallelism int  `mapstructure:"parallelism"`
}

// DataConfig 描述行情来源。source 为 csv 或 exchange。
type DataConfig struct {
	Source      string    `mapstructure:"source"`
	CSVPath     string    `mapstructure:"csv_path"`
	CloseSymbol string    `mapstructure:"close_symbol"`
	Symbols     []string  `mapstructure:"symbols"`
	Timeframe   string    `mapstructure:"timeframe"`
	Start       time.Time `mapstructure:"start"`
	End         time.Time `mapstructure:"end"`
}

// ExchangeConfig 描述交易所连接信息。
type ExchangeConfig struct {
	Name       string      `mapstructure:"name"`
	APIKey     string      `mapstructure:"api_key"`
	APISecret  string      `mapstructure:"api_secret"`
	UseSandbox bool        `mapstructure:"use_sandbox"`
	PageLimit  int         `mapstructure:"page_limit"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// StrategyConfig 选择内置策略。name 为 sma、sma_grid 或 llm。
type StrategyConfig struct {
	Name          string  `mapstructure:"name"`
	Symbol        string  `mapstructure:"symbol"`
	FastPeriod    int     `mapstructure:"fast_period"`
	SlowPeriod    int     `mapstructure:"slow_period"`
	GridFast      []int   `mapstructure:"grid_fast"`
	GridSlow      []int   `mapstructure:"grid_slow"`
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// OpenAIConfig 描述大模型调用参数。
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// OutputConfig 控制报告输出。
type OutputConfig struct {
	Dir          string `mapstructure:"dir"`
	WriteTrades  bool   `mapstructure:"write_trades"`
	WriteEquity  bool   `mapstructure:"write_equity"`
	WriteSummary bool   `mapstructure:"write_summary"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}

	if c.Backtest.InitialCapital <= 0 {
		err = multierr.Append(err, errors.New("backtest.initial_capital 必须大于0"))
	}
	if c.Backtest.CommissionRate < 0 || c.Backtest.CommissionRate >= 1 {
		err = multierr.Append(err, errors.New("backtest.commission_rate 必须位于[0,1)"))
	}
	if c.Backtest.SlippageBps < 0 {
		err = multierr.Append(err, errors.New("backtest.slippage_bps 不能为负"))
	}
	if c.Backtest.MarketImpactCoef < 0 {
		err = multierr.Append(err, errors.New("backtest.market_impact_coef 不能为负"))
	}
	if c.Backtest.MaxPositionSize <= 0 || c.Backtest.MaxPositionSize > 1 {
		err = multierr.Append(err, errors.New("backtest.max_position_size 必须位于(0,1]"))
	}
	if c.Backtest.MaxLeverage <= 0 {
		err = multierr.Append(err, errors.New("backtest.max_leverage 必须大于0"))
	}
	if c.Backtest.ExecutionDelay < 0 {
		err = multierr.Append(err, errors.New("backtest.execution_delay 不能为负"))
	}

	if c.WalkForward.Enabled {
		if c.WalkForward.TrainBars <= 0 || c.WalkForward.TestBars <= 0 || c.WalkForward.StepBars <= 0 {
			err = multierr.Append(err, errors.New("walk_forward.train_bars/test_bars/step_bars 必须大于0"))
		}
	}
	if c.WalkForward.Parallelism < 0 {
		err = multierr.Append(err, errors.New("walk_forward.parallelism 不能为负"))
	}

	switch strings.ToLower(c.Data.Source) {
	case "csv":
		if c.Data.CSVPath == "" {
			err = multierr.Append(err, errors.New("data.csv_path 不能为空"))
		}
	case "exchange":
		if len(c.Data.Symbols) == 0 {
			err = multierr.Append(err, errors.New("data.symbols 至少包含一个标的"))
		}
		if c.Data.Timeframe == "" {
			err = multierr.Append(err, errors.New("data.timeframe 不能为空"))
		}
		if c.Data.Start.IsZero() {
			err = multierr.Append(err, errors.New("data.start 不能为空"))
		}
		if !c.Data.End.IsZero() && !c.Data.End.After(c.Data.Start) {
			err = multierr.Append(err, errors.New("data.end 必须晚于 data.start"))
		}
		if c.Exchange.Name == "" {
			err = multierr.Append(err, errors.New("exchange.name 不能为空"))
		}
		if c.Exchange.PageLimit <= 0 {
			err = multierr.Append(err, errors.New("exchange.page_limit 必须大于0"))
		}
		if c.Exchange.Retry.MaxAttempts <= 0 {
			err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
		}
		if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
			err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
		}
		if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
			err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("data.source 取值非法: %q", c.Data.Source))
	}

	if c.Strategy.Symbol == "" {
		err = multierr.Append(err, errors.New("strategy.symbol 不能为空"))
	}
	switch strings.ToLower(c.Strategy.Name) {
	case "sma":
		if c.Strategy.FastPeriod <= 0 || c.Strategy.SlowPeriod <= c.Strategy.FastPeriod {
			err = multierr.Append(err, errors.New("strategy.fast_period 必须大于0且小于 slow_period"))
		}
	case "sma_grid":
		if len(c.Strategy.GridFast) == 0 || len(c.Strategy.GridSlow) == 0 {
			err = multierr.Append(err, errors.New("strategy.grid_fast 与 grid_slow 不能为空"))
		}
	case "llm":
		if c.OpenAI.APIKey == "" {
			err = multierr.Append(err, errors.New("openai.api_key 不能为空"))
		}
		if c.OpenAI.Model == "" {
			err = multierr.Append(err, errors.New("openai.model 不能为空"))
		}
		if c.OpenAI.Timeout <= 0 {
			err = multierr.Append(err, errors.New("openai.timeout 必须大于0"))
		}
		if c.Strategy.MinConfidence < 0 || c.Strategy.MinConfidence > 1 {
			err = multierr.Append(err, errors.New("strategy.min_confidence 必须位于[0,1]"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("strategy.name 取值非法: %q", c.Strategy.Name))
	}

	if c.Database.Enabled {
		if c.Database.Path == "" && !c.Database.InMemory {
			err = multierr.Append(err, errors.New("database.path 不能为空"))
		}
		if c.Database.MaxOpenConns <= 0 {
			err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
		}
		if c.Database.MaxIdleConns < 0 {
			err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
		}
		if c.Database.ConnMaxLifetime < 0 {
			err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
		}
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if c.Output.Dir == "" && (c.Output.WriteTrades || c.Output.WriteEquity || c.Output.WriteSummary) {
		err = multierr.Append(err, errors.New("output.dir 不能为空"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
