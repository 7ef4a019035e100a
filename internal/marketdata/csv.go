package marketdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var timestampColumns = map[string]struct{}{
	"timestamp": {},
	"time":      {},
	"date":      {},
	"datetime":  {},
}

var ohlcvColumns = map[string]struct{}{
	"open":   {},
	"high":   {},
	"low":    {},
	"close":  {},
	"volume": {},
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CSVOptions 控制 CSV 解析。
type CSVOptions struct {
	// CloseSymbol 非空时把 close 列同时作为该标的的参考价。
	CloseSymbol string
}

// LoadCSV 从文件读取行情。
func LoadCSV(path string, opts CSVOptions) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return Series{}, fmt.Errorf("marketdata: 打开行情文件失败: %w", err)
	}
	defer f.Close()

	return ReadCSV(f, opts)
}

// ReadCSV 解析 CSV 行情。首行为表头，需包含一列时间；
// open/high/low/close/volume 为展示字段，其余列均视为标的参考价，空单元格表示该 bar 无价格。
func ReadCSV(r io.Reader, opts CSVOptions) (Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Series{}, errors.New("marketdata: CSV 为空")
		}
		return Series{}, fmt.Errorf("marketdata: 读取表头失败: %w", err)
	}

	tsIdx := -1
	ohlcv := make(map[string]int)
	symbols := make(map[int]string)
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		lower := strings.ToLower(name)
		if _, ok := timestampColumns[lower]; ok && tsIdx == -1 {
			tsIdx = i
			continue
		}
		if _, ok := ohlcvColumns[lower]; ok {
			ohlcv[lower] = i
			continue
		}
		if name == "" {
			continue
		}
		symbols[i] = name
	}
	if tsIdx == -1 {
		return Series{}, errors.New("marketdata: CSV 缺少时间列")
	}
	closeIdx, hasClose := ohlcv["close"]
	if len(symbols) == 0 && (opts.CloseSymbol == "" || !hasClose) {
		return Series{}, errors.New("marketdata: CSV 未包含任何标的价格列")
	}

	bars := make([]Bar, 0, 256)
	line := 1
	for {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		line++
		if readErr != nil {
			return Series{}, fmt.Errorf("marketdata: 第 %d 行读取失败: %w", line, readErr)
		}

		ts, parseErr := ParseTimestamp(field(record, tsIdx))
		if parseErr != nil {
			return Series{}, fmt.Errorf("marketdata: 第 %d 行时间解析失败: %w", line, parseErr)
		}

		bar := Bar{
			Timestamp: ts,
			Prices:    make(map[string]float64, len(symbols)+1),
		}
		for idx, symbol := range symbols {
			value, ok, numErr := parseCell(field(record, idx))
			if numErr != nil {
				return Series{}, fmt.Errorf("marketdata: 第 %d 行 %s 价格解析失败: %w", line, symbol, numErr)
			}
			if ok {
				bar.Prices[symbol] = value
			}
		}
		for name, idx := range ohlcv {
			value, ok, numErr := parseCell(field(record, idx))
			if numErr != nil {
				return Series{}, fmt.Errorf("marketdata: 第 %d 行 %s 解析失败: %w", line, name, numErr)
			}
			if !ok {
				continue
			}
			switch name {
			case "open":
				bar.Open = value
			case "high":
				bar.High = value
			case "low":
				bar.Low = value
			case "close":
				bar.Close = value
			case "volume":
				bar.Volume = value
			}
		}
		if opts.CloseSymbol != "" && hasClose {
			if value, ok, _ := parseCell(field(record, closeIdx)); ok {
				bar.Prices[opts.CloseSymbol] = value
			}
		}

		bars = append(bars, bar)
	}

	return NewSeries(bars)
}

// ParseTimestamp 支持 RFC3339、常见日期格式以及秒/毫秒级 Unix 时间戳。
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("时间为空")
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		// 超过 1e11 视为毫秒
		if n > 1e11 || n < -1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法识别的时间格式 %q", value)
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parseCell(value string) (float64, bool, error) {
	if value == "" || strings.EqualFold(value, "nan") || strings.EqualFold(value, "null") {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false, err
	}
	return f, true, nil
}
