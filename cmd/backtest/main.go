package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"trades-backtest/internal/app"
	"trades-backtest/internal/config"
	"trades-backtest/internal/log"
	"trades-backtest/internal/store"
)

func main() {
	var (
		configPath string
		serveAddr  string
	)
	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.StringVar(&serveAddr, "serve", "", "运行结束后在该地址提供 /events 查询，例如 :8080")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	var sqliteStore *store.Store
	if cfg.Database.Enabled {
		sqliteStore, err = store.NewSQLite(cfg.Database)
		if err != nil {
			logger.Error("初始化数据库失败", zap.Error(err))
			os.Exit(1)
		}
		defer func() {
			if closeErr := sqliteStore.Close(); closeErr != nil {
				logger.Warn("关闭数据库失败", zap.Error(closeErr))
			}
		}()
	}

	backtestApp := app.New(cfg, logger, sqliteStore)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := backtestApp.Run(ctx)
	if err != nil {
		logger.Error("回测运行异常", zap.String("run_id", summary.RunID), zap.Error(err))
		os.Exit(1)
	}

	if serveAddr != "" {
		if err := backtestApp.Serve(ctx, serveAddr); err != nil {
			logger.Error("事件查询服务异常", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("系统已安全退出", zap.String("run_id", summary.RunID))
}
