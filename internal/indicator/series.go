package indicator

import (
	"math"
	"time"

	"trades-backtest/internal/marketdata"
)

// Series 为单个标的拆分出的时间、价格与成交量序列，只包含有价格的 bar。
type Series struct {
	Symbol     string
	Timestamps []time.Time
	Close      []float64
	Volume     []float64
}

// FromMarket 从行情视图中提取标的序列，按时间升序排列。
func FromMarket(view marketdata.Series, symbol string) Series {
	series := Series{
		Symbol:     symbol,
		Timestamps: make([]time.Time, 0, view.Len()),
		Close:      make([]float64, 0, view.Len()),
		Volume:     make([]float64, 0, view.Len()),
	}
	for i := 0; i < view.Len(); i++ {
		bar := view.At(i)
		price, ok := bar.Price(symbol)
		if !ok {
			continue
		}
		series.Timestamps = append(series.Timestamps, bar.Timestamp.UTC())
		series.Close = append(series.Close, price)
		series.Volume = append(series.Volume, bar.Volume)
	}
	return series
}

// Len 返回序列长度。
func (s Series) Len() int {
	return len(s.Close)
}

// Last 返回序列最后一个值，若为空则返回 NaN。
func Last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

// Prev 返回序列倒数第二个值，若不足两个元素则返回 NaN。
func Prev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	return values[len(values)-2]
}

// SliceTail 返回序列末尾 n 个值，不足时返回全部。
func SliceTail(values []float64, n int) []float64 {
	if n <= 0 || len(values) == 0 {
		return nil
	}
	if len(values) <= n {
		dst := make([]float64, len(values))
		copy(dst, values)
		return dst
	}
	dst := make([]float64, n)
	copy(dst, values[len(values)-n:])
	return dst
}

// SafeDivide 除法保护，除数为0时返回0。
func SafeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
