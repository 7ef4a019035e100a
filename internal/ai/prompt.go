package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"trades-backtest/internal/feature"
)

const decisionTemplate = `
你是一个专业的量化交易员，正在对历史行情做回测。你只能看到截至当前 bar 的数据，不能假设未来价格。

标的: {{ .Features.Symbol }}
时间: {{ .Features.GeneratedAt.Format "2006-01-02 15:04:05" }}
最新价格: {{ printf "%.6f" .Features.Close }}

市场特征：
{{ .FeaturesJSON }}

制定决策时请遵循：
1. 先判断趋势与动量，确认是否存在高胜率方向；
2. 方向不明确时返回 hold；
3. quantity 为下单数量，填 0 表示由系统按资金上限计算；卖出时填 0 表示全部平仓；
4. 只做多，不开空。

请严格输出唯一的 JSON 对象，格式如下：
{
  "symbol": "{{ .Features.Symbol }}",
  "action": "buy|sell|hold",
  "quantity": 0,
  "confidence": 0.0-1.0,
  "reasoning": "..."
}
`

var tmpl = template.Must(template.New("decision").Parse(decisionTemplate))

// PromptContext 用于渲染提示词。
type PromptContext struct {
	Features     feature.FeatureSet
	FeaturesJSON string
}

// BuildPrompt 将特征渲染成提示词字符串。
func BuildPrompt(features feature.FeatureSet) (string, error) {
	featuresJSON, err := json.MarshalIndent(features, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ai: 序列化特征失败: %w", err)
	}

	ctx := PromptContext{
		Features:     features,
		FeaturesJSON: string(featuresJSON),
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("ai: 渲染提示词失败: %w", err)
	}
	return buf.String(), nil
}
