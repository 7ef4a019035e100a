package signal

import (
	"fmt"
	"strings"
)

// Action 表示策略给出的动作。
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Signal 为策略在当前 bar 的输出。Quantity 为空表示未指定，由解释器按规则补全。
type Signal struct {
	Symbol   string   `json:"symbol"`
	Action   Action   `json:"action"`
	Quantity *float64 `json:"quantity,omitempty"`
}

// Buy 构造买入信号。
func Buy(symbol string) Signal {
	return Signal{Symbol: symbol, Action: ActionBuy}
}

// Sell 构造卖出信号。
func Sell(symbol string) Signal {
	return Signal{Symbol: symbol, Action: ActionSell}
}

// WithQuantity 返回指定数量的信号副本。
func (s Signal) WithQuantity(qty float64) Signal {
	s.Quantity = &qty
	return s
}

// ParseAction 解析动作字符串，none 与空值视为 hold。
func ParseAction(value string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "buy":
		return ActionBuy, nil
	case "sell":
		return ActionSell, nil
	case "hold", "none", "":
		return ActionHold, nil
	default:
		return "", fmt.Errorf("signal: 无法识别的动作 %q", value)
	}
}
