package indicator

import (
	"fmt"
	"math"
	"sync"

	talib "github.com/markcheno/go-talib"

	"trades-backtest/internal/marketdata"
)

// 数据不足或无波动时 RSI 的中性取值。
const neutralRSI = 50

// MACDResult 保存 MACD 关键值。
type MACDResult struct {
	Value         float64
	Signal        float64
	Histogram     float64
	PrevHistogram float64
}

// BollingerResult 保存布林带数据。
type BollingerResult struct {
	Upper     float64
	Middle    float64
	Lower     float64
	Bandwidth float64
	Position  float64
}

// VolumeResult 保存成交量相关统计。
type VolumeResult struct {
	Current   float64
	Average20 float64
	Ratio     float64
}

// Result 为一次指标计算的汇总，数据不足的均线为 NaN。
type Result struct {
	Symbol        string
	Bars          int
	SMA10         float64
	SMA50         float64
	EMA12         float64
	EMA26         float64
	EMA50         float64
	MACD          MACDResult
	Bollinger     BollingerResult
	RSI           float64
	Volume        VolumeResult
	Close         float64
	PreviousClose float64
}

type cacheEntry struct {
	key    string
	result Result
}

// Calculator 提供技术指标计算并按标的缓存最近一次结果。
type Calculator struct {
	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewCalculator 创建 Calculator。
func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[string]cacheEntry),
	}
}

// Compute 计算标的截至视图末尾的常用指标。
func (c *Calculator) Compute(symbol string, view marketdata.Series) (Result, error) {
	series := FromMarket(view, symbol)
	if series.Len() == 0 {
		return Result{}, fmt.Errorf("indicator: 标的 %s 无有效价格", symbol)
	}

	cacheKey := fmt.Sprintf("%d:%d", series.Len(), series.Timestamps[series.Len()-1].UnixNano())

	c.mu.Lock()
	if entry, ok := c.cache[symbol]; ok && entry.key == cacheKey {
		c.mu.Unlock()
		return entry.result, nil
	}
	c.mu.Unlock()

	result := calculate(series)

	c.mu.Lock()
	c.cache[symbol] = cacheEntry{key: cacheKey, result: result}
	c.mu.Unlock()

	return result, nil
}

func calculate(series Series) Result {
	closes := series.Close
	volumes := series.Volume

	volumeAvg20 := average(SliceTail(volumes, 20))
	volumeCurrent := Last(volumes)

	return Result{
		Symbol:        series.Symbol,
		Bars:          series.Len(),
		SMA10:         smaOrNaN(closes, 10),
		SMA50:         smaOrNaN(closes, 50),
		EMA12:         EMA(closes, 12),
		EMA26:         EMA(closes, 26),
		EMA50:         EMA(closes, 50),
		MACD:          macd(closes),
		Bollinger:     bollinger(closes),
		RSI:           RSI(closes, 14),
		Volume:        VolumeResult{Current: volumeCurrent, Average20: volumeAvg20, Ratio: SafeDivide(volumeCurrent, volumeAvg20)},
		Close:         Last(closes),
		PreviousClose: Prev(closes),
	}
}

// SMA 返回最近 period 个值的简单均线，数据不足时 ok=false。
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	return Last(talib.Sma(values, period)), true
}

// EMA 返回指数均线最新值，数据不足时为 NaN。
func EMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return math.NaN()
	}
	return Last(talib.Ema(values, period))
}

// RSI 返回相对强弱指标最新值。数据不足或价格无波动时返回 50。
func RSI(values []float64, period int) float64 {
	if period < 2 || len(values) <= period || flat(values) {
		return neutralRSI
	}
	v := Last(talib.Rsi(values, period))
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return neutralRSI
	}
	return v
}

func smaOrNaN(values []float64, period int) float64 {
	v, ok := SMA(values, period)
	if !ok {
		return math.NaN()
	}
	return v
}

func macd(closes []float64) MACDResult {
	// 慢线 26 加信号线 9
	if len(closes) < 34 {
		return MACDResult{Value: math.NaN(), Signal: math.NaN(), Histogram: math.NaN(), PrevHistogram: math.NaN()}
	}
	value, signal, hist := talib.Macd(closes, 12, 26, 9)
	return MACDResult{
		Value:         Last(value),
		Signal:        Last(signal),
		Histogram:     Last(hist),
		PrevHistogram: Prev(hist),
	}
}

func bollinger(closes []float64) BollingerResult {
	if len(closes) < 20 {
		return BollingerResult{Upper: math.NaN(), Middle: math.NaN(), Lower: math.NaN()}
	}
	upper, middle, lower := talib.BBands(closes, 20, 2, 2, talib.SMA)
	u := Last(upper)
	m := Last(middle)
	l := Last(lower)
	width := u - l

	position := 0.0
	if width > 0 {
		position = SafeDivide(Last(closes)-l, width)
	}
	position = math.Max(0, math.Min(1, position))

	return BollingerResult{
		Upper:     u,
		Middle:    m,
		Lower:     l,
		Bandwidth: SafeDivide(width, m),
		Position:  position,
	}
}

func flat(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] != values[0] {
			return false
		}
	}
	return true
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
