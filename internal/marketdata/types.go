package marketdata

import (
	"math"
	"time"
)

// Bar 表示一个时间步的行情：各标的参考价及用于展示的 OHLCV。
type Bar struct {
	Timestamp time.Time
	Prices    map[string]float64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Price 返回标的在该 bar 的参考价，缺失、非有限值或非正数均视为无价格。
func (b Bar) Price(symbol string) (float64, bool) {
	if b.Prices == nil {
		return 0, false
	}
	price, ok := b.Prices[symbol]
	if !ok || math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, false
	}
	return price, true
}

// HasPrice 判断该 bar 是否含有标的价格。
func (b Bar) HasPrice(symbol string) bool {
	_, ok := b.Price(symbol)
	return ok
}
