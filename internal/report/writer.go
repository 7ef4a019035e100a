package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	yaml "go.yaml.in/yaml/v3"

	"trades-backtest/internal/backtest"
	"trades-backtest/internal/ledger"
)

const (
	tradesFile  = "trades.csv"
	equityFile  = "equity.csv"
	summaryFile = "summary.yaml"
)

// Options 控制输出哪些文件。
type Options struct {
	Dir          string
	WriteTrades  bool
	WriteEquity  bool
	WriteSummary bool
}

// Writer 将回测结果写入输出目录。
type Writer struct {
	opts   Options
	logger *zap.Logger
}

// NewWriter 创建报告输出器。
func NewWriter(opts Options, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{opts: opts, logger: logger}
}

// WriteBacktest 输出单次回测的成交、权益与汇总，返回写入的文件路径。
func (w *Writer) WriteBacktest(runID string, meta Meta, res backtest.Result) ([]string, error) {
	dir := filepath.Join(w.opts.Dir, runID)
	var written []string

	if w.opts.WriteTrades {
		path := filepath.Join(dir, tradesFile)
		if err := writeFile(path, func(out io.Writer) error { return WriteTradesCSV(out, res.Trades) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if w.opts.WriteEquity {
		path := filepath.Join(dir, equityFile)
		if err := writeFile(path, func(out io.Writer) error { return WriteEquityCSV(out, res.EquityPoints) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if w.opts.WriteSummary {
		path := filepath.Join(dir, summaryFile)
		summary := NewBacktestSummary(runID, meta, res)
		if err := writeFile(path, func(out io.Writer) error { return WriteSummaryYAML(out, summary) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	w.logger.Info("回测报告已输出", zap.String("run_id", runID), zap.Strings("files", written))
	return written, nil
}

// WriteWalkForward 输出滚动验证汇总。各窗口成交写入 window_<n>_trades.csv。
func (w *Writer) WriteWalkForward(runID string, meta Meta, res backtest.WalkForwardResult) ([]string, error) {
	dir := filepath.Join(w.opts.Dir, runID)
	var written []string

	if w.opts.WriteTrades {
		for _, win := range res.Windows {
			path := filepath.Join(dir, fmt.Sprintf("window_%d_%s", win.Window.Index, tradesFile))
			trades := win.Result.Trades
			if err := writeFile(path, func(out io.Writer) error { return WriteTradesCSV(out, trades) }); err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}
	if w.opts.WriteSummary {
		path := filepath.Join(dir, summaryFile)
		summary := NewWalkForwardSummary(runID, meta, res)
		if err := writeFile(path, func(out io.Writer) error { return WriteSummaryYAML(out, summary) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	w.logger.Info("滚动验证报告已输出", zap.String("run_id", runID), zap.Strings("files", written))
	return written, nil
}

// WriteTradesCSV 以 CSV 输出成交列表。
func WriteTradesCSV(out io.Writer, trades []ledger.Trade) error {
	cw := csv.NewWriter(out)
	if err := cw.Write([]string{
		"symbol", "side", "quantity", "entry_price", "exit_price",
		"entry_time", "exit_time", "commission", "pnl", "return_pct", "holding_period",
	}); err != nil {
		return fmt.Errorf("report: 写入成交表头失败: %w", err)
	}
	for _, t := range trades {
		if err := cw.Write([]string{
			t.Symbol,
			string(t.Side),
			formatF(t.Quantity),
			formatF(t.EntryPrice),
			formatF(t.ExitPrice),
			t.EntryTimestamp.Format(time.RFC3339),
			t.ExitTimestamp.Format(time.RFC3339),
			formatF(t.Commission),
			formatF(t.PnL),
			formatF(t.ReturnPct),
			t.HoldingPeriod.String(),
		}); err != nil {
			return fmt.Errorf("report: 写入成交失败: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV 以 CSV 输出逐 bar 权益。
func WriteEquityCSV(out io.Writer, points []backtest.EquityPoint) error {
	cw := csv.NewWriter(out)
	if err := cw.Write([]string{"timestamp", "equity", "cash", "position_value"}); err != nil {
		return fmt.Errorf("report: 写入权益表头失败: %w", err)
	}
	for _, p := range points {
		if err := cw.Write([]string{
			p.Timestamp.Format(time.RFC3339),
			formatF(p.Equity),
			formatF(p.Cash),
			formatF(p.PositionValue),
		}); err != nil {
			return fmt.Errorf("report: 写入权益失败: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaryYAML 以 YAML 输出汇总。
func WriteSummaryYAML(out io.Writer, summary interface{}) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: 序列化汇总失败: %w", err)
	}
	return enc.Close()
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: 创建目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: 创建文件 %q 失败: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("report: 关闭文件 %q 失败: %w", path, closeErr)
		}
	}()
	return fn(f)
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
