package marketdata

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrUnordered 表示行情时间戳未严格递增。
var ErrUnordered = errors.New("marketdata: bar 时间戳必须严格递增")

// Series 是按时间升序排列的只读行情序列。
// 切片操作共享底层数据，调用方不得修改返回的 Bar.Prices。
type Series struct {
	bars []Bar
}

// NewSeries 校验时间顺序后创建 Series。
func NewSeries(bars []Bar) (Series, error) {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return Series{}, fmt.Errorf("%w: index=%d ts=%s prev=%s",
				ErrUnordered, i, bars[i].Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	dst := make([]Bar, len(bars))
	copy(dst, bars)
	return Series{bars: dst}, nil
}

// Len 返回 bar 数量。
func (s Series) Len() int {
	return len(s.bars)
}

// At 返回第 i 根 bar。
func (s Series) At(i int) Bar {
	return s.bars[i]
}

// Last 返回最后一根 bar，序列为空时 ok=false。
func (s Series) Last() (Bar, bool) {
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Head 返回前 n 根 bar 组成的视图。
func (s Series) Head(n int) Series {
	if n > len(s.bars) {
		n = len(s.bars)
	}
	if n < 0 {
		n = 0
	}
	return Series{bars: s.bars[:n:n]}
}

// Slice 返回 [from, to) 区间视图，越界部分被截断。
func (s Series) Slice(from, to int) Series {
	if from < 0 {
		from = 0
	}
	if to > len(s.bars) {
		to = len(s.bars)
	}
	if from >= to {
		return Series{}
	}
	return Series{bars: s.bars[from:to:to]}
}

// Closes 返回标的的参考价序列，缺失价格的 bar 被跳过。
func (s Series) Closes(symbol string) []float64 {
	out := make([]float64, 0, len(s.bars))
	for _, bar := range s.bars {
		if price, ok := bar.Price(symbol); ok {
			out = append(out, price)
		}
	}
	return out
}

// Symbols 返回序列中出现过的全部标的，按字母序排列。
func (s Series) Symbols() []string {
	seen := make(map[string]struct{})
	for _, bar := range s.bars {
		for symbol := range bar.Prices {
			seen[symbol] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for symbol := range seen {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Start 返回首根 bar 的时间。
func (s Series) Start() time.Time {
	if len(s.bars) == 0 {
		return time.Time{}
	}
	return s.bars[0].Timestamp
}

// End 返回最后一根 bar 的时间。
func (s Series) End() time.Time {
	if len(s.bars) == 0 {
		return time.Time{}
	}
	return s.bars[len(s.bars)-1].Timestamp
}
