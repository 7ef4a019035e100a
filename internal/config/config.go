package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "backtest"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("backtest.initial_capital", 100000.0)
	v.SetDefault("backtest.commission_rate", 0.001)
	v.SetDefault("backtest.slippage_bps", 5.0)
	v.SetDefault("backtest.market_impact_coef", 0.0)
	v.SetDefault("backtest.max_position_size", 0.2)
	v.SetDefault("backtest.max_leverage", 1.0)
	v.SetDefault("backtest.execution_delay", 1)
	v.SetDefault("backtest.use_market_orders", true)

	v.SetDefault("walk_forward.enabled", false)
	v.SetDefault("walk_forward.train_bars", 252)
	v.SetDefault("walk_forward.test_bars", 63)
	v.SetDefault("walk_forward.step_bars", 21)
	v.SetDefault("walk_forward.parallelism", 1)

	v.SetDefault("data.source", "csv")
	v.SetDefault("data.csv_path", "data/prices.csv")
	v.SetDefault("data.timeframe", "1d")

	v.SetDefault("exchange.name", "binance")
	v.SetDefault("exchange.use_sandbox", false)
	v.SetDefault("exchange.page_limit", 500)
	v.SetDefault("exchange.retry.max_attempts", 5)
	v.SetDefault("exchange.retry.min_delay", "500ms")
	v.SetDefault("exchange.retry.max_delay", "5s")

	v.SetDefault("strategy.name", "sma")
	v.SetDefault("strategy.fast_period", 10)
	v.SetDefault("strategy.slow_period", 50)
	v.SetDefault("strategy.grid_fast", []int{5, 10, 20})
	v.SetDefault("strategy.grid_slow", []int{30, 50, 100})
	v.SetDefault("strategy.min_confidence", 0.6)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4.1")
	v.SetDefault("openai.timeout", "15s")

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.path", "data/backtest.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("output.dir", "reports")
	v.SetDefault("output.write_trades", true)
	v.SetDefault("output.write_equity", true)
	v.SetDefault("output.write_summary", true)
}

// bindEnvs 绑定没有默认值的可选键，AutomaticEnv 只覆盖 viper 已知的键。
func bindEnvs(v *viper.Viper) error {
	for _, key := range []string{
		"backtest.stop_loss_pct",
		"backtest.take_profit_pct",
	} {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("绑定环境变量 %s 失败: %w", key, err)
		}
	}
	return nil
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
