package exchange

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trades-backtest/internal/marketdata"
)

// historyFetcher 抽象单标的历史K线下载。
type historyFetcher interface {
	FetchHistory(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Candle, error)
}

// HistoryService 并发下载多个标的并按时间戳合并为回测行情。
type HistoryService struct {
	client historyFetcher
	logger *zap.Logger
}

// NewHistoryService 创建历史行情服务。
func NewHistoryService(client *Client, logger *zap.Logger) *HistoryService {
	return newHistoryService(client, logger)
}

func newHistoryService(client historyFetcher, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{
		client: client,
		logger: logger,
	}
}

// Load 下载 req.Symbols 的K线并合并。第一个标的的 OHLCV 作为 bar 的展示字段。
func (s *HistoryService) Load(ctx context.Context, req HistoryRequest) (marketdata.Series, error) {
	if len(req.Symbols) == 0 {
		return marketdata.Series{}, errors.New("exchange: 标的列表不能为空")
	}
	if req.Timeframe == "" {
		req.Timeframe = Timeframe1d
	}

	started := time.Now()
	candles := make([][]Candle, len(req.Symbols))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, symbol := range req.Symbols {
		group.Go(func() error {
			data, err := s.client.FetchHistory(groupCtx, symbol, req.Timeframe, req.Start, req.End)
			if err != nil {
				return fmt.Errorf("exchange: 下载 %s K线失败: %w", symbol, err)
			}
			candles[i] = data
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return marketdata.Series{}, err
	}

	bars := MergeCandles(req.Symbols, candles)
	series, err := marketdata.NewSeries(bars)
	if err != nil {
		return marketdata.Series{}, err
	}

	s.logger.Info("历史行情下载完成",
		zap.Strings("symbols", req.Symbols),
		zap.String("timeframe", req.Timeframe),
		zap.Int("bars", series.Len()),
		zap.Duration("elapsed", time.Since(started)),
	)

	return series, nil
}

// MergeCandles 将各标的K线按时间戳对齐。某标的在某时间戳没有K线时，该 bar 不含其价格。
// candles[i] 对应 symbols[i]。
func MergeCandles(symbols []string, candles [][]Candle) []marketdata.Bar {
	byTime := make(map[int64]*marketdata.Bar)
	for i, symbol := range symbols {
		if i >= len(candles) {
			break
		}
		for _, c := range candles[i] {
			key := c.Timestamp.UnixNano()
			bar, ok := byTime[key]
			if !ok {
				bar = &marketdata.Bar{
					Timestamp: c.Timestamp,
					Prices:    make(map[string]float64, len(symbols)),
				}
				byTime[key] = bar
			}
			bar.Prices[symbol] = c.Close
			if i == 0 {
				bar.Open = c.Open
				bar.High = c.High
				bar.Low = c.Low
				bar.Close = c.Close
				bar.Volume = c.Volume
			}
		}
	}

	keys := make([]int64, 0, len(byTime))
	for k := range byTime {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

	bars := make([]marketdata.Bar, 0, len(keys))
	for _, k := range keys {
		bars = append(bars, *byTime[k])
	}
	return bars
}
