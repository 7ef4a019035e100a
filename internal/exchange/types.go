package exchange

import "time"

const (
	// Timeframe1h 为小时线。
	Timeframe1h = "1h"
	// Timeframe1d 为日线。
	Timeframe1d = "1d"
)

// Candle 代表单根K线。
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// HistoryRequest 描述一次历史K线下载。End 为零值表示下载到最新。
type HistoryRequest struct {
	Symbols   []string
	Timeframe string
	Start     time.Time
	End       time.Time
}
