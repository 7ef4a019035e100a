package ai

import (
	"errors"
	"fmt"
	"strings"

	"trades-backtest/internal/signal"
)

// Decision 表示大模型返回的交易指令。
type Decision struct {
	Symbol     string   `json:"symbol"`
	Action     string   `json:"action"`
	Quantity   *float64 `json:"quantity,omitempty"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// Validate 校验决策字段合法性。
func (d Decision) Validate() error {
	if strings.TrimSpace(d.Symbol) == "" {
		return errors.New("ai: symbol 不能为空")
	}
	if _, err := signal.ParseAction(d.Action); err != nil {
		return fmt.Errorf("ai: action 字段取值非法: %w", err)
	}
	if d.Quantity != nil && *d.Quantity < 0 {
		return fmt.Errorf("ai: quantity 不能为负，当前为 %f", *d.Quantity)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("ai: confidence 必须在 [0,1] 区间，目前为 %f", d.Confidence)
	}
	if strings.TrimSpace(d.Reasoning) == "" {
		return errors.New("ai: reasoning 不能为空")
	}
	return nil
}

// Signal 将已校验的决策转换为信号，hold 返回 ok=false。
func (d Decision) Signal() (signal.Signal, bool) {
	action, err := signal.ParseAction(d.Action)
	if err != nil || action == signal.ActionHold {
		return signal.Signal{}, false
	}
	return signal.Signal{
		Symbol:   strings.TrimSpace(d.Symbol),
		Action:   action,
		Quantity: d.Quantity,
	}, true
}
