package feature

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"trades-backtest/internal/indicator"
	"trades-backtest/internal/marketdata"
)

// ErrInsufficientHistory 表示有效价格数量不足以计算特征。
var ErrInsufficientHistory = errors.New("feature: 历史数据不足")

// 计算特征所需的最少有效 bar 数。
const MinBars = 20

// TrendFeatures 描述趋势相关指标。
type TrendFeatures struct {
	SMA10               float64 `json:"sma10"`
	SMA50               float64 `json:"sma50"`
	EMA12               float64 `json:"ema12"`
	EMA26               float64 `json:"ema26"`
	EMA50               float64 `json:"ema50"`
	EMARank             string  `json:"ema_rank"`
	PriceAboveEMA12     bool    `json:"price_above_ema12"`
	PriceAboveEMA26     bool    `json:"price_above_ema26"`
	DistanceToEMA12     float64 `json:"distance_to_ema12"`
	DistanceToEMA26     float64 `json:"distance_to_ema26"`
	MACDValue           float64 `json:"macd_value"`
	MACDSignal          float64 `json:"macd_signal"`
	MACDHistogram       float64 `json:"macd_histogram"`
	MACDHistogramChange float64 `json:"macd_histogram_change"`
	BollingerPosition   float64 `json:"bollinger_position"`
	BollingerBandwidth  float64 `json:"bollinger_bandwidth"`
}

// MomentumFeatures 描述动量相关指标。
type MomentumFeatures struct {
	RSIValue         float64 `json:"rsi"`
	RSIState         string  `json:"rsi_state"`
	VolumeRatio      float64 `json:"volume_ratio"`
	VolumeAverage20  float64 `json:"volume_average20"`
	VolumeDivergence string  `json:"volume_divergence"`
}

// VolatilityFeatures 描述波动率状况。
type VolatilityFeatures struct {
	RecentVolatility     float64 `json:"recent_volatility"`
	HistoricalVolatility float64 `json:"historical_volatility"`
	VolatilityRatio      float64 `json:"volatility_ratio"`
}

// StructureFeatures 描述近期价格区间。
type StructureFeatures struct {
	SupportLevel    float64 `json:"support"`
	ResistanceLevel float64 `json:"resistance"`
	PriceRange      float64 `json:"price_range"`
}

// FeatureSet 汇总全部特征，用于后续提示词拼装。
type FeatureSet struct {
	Symbol       string             `json:"symbol"`
	GeneratedAt  time.Time          `json:"generated_at"`
	Close        float64            `json:"close"`
	RecentCloses []float64          `json:"recent_closes"`
	Trend        TrendFeatures      `json:"trend"`
	Momentum     MomentumFeatures   `json:"momentum"`
	Volatility   VolatilityFeatures `json:"volatility"`
	Structure    StructureFeatures  `json:"structure"`
}

// Extractor 根据行情视图提取特征。
type Extractor struct {
	indicators *indicator.Calculator
	logger     *zap.Logger
}

// NewExtractor 创建特征提取器。
func NewExtractor(calc *indicator.Calculator, logger *zap.Logger) *Extractor {
	if calc == nil {
		calc = indicator.NewCalculator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		indicators: calc,
		logger:     logger,
	}
}

// Extract 计算标的截至视图末尾的特征。
func (e *Extractor) Extract(ctx context.Context, symbol string, view marketdata.Series) (FeatureSet, error) {
	if err := ctx.Err(); err != nil {
		return FeatureSet{}, err
	}

	series := indicator.FromMarket(view, symbol)
	if series.Len() < MinBars {
		return FeatureSet{}, fmt.Errorf("%w: 至少需要 %d 根，当前 %d", ErrInsufficientHistory, MinBars, series.Len())
	}

	res, err := e.indicators.Compute(symbol, view)
	if err != nil {
		return FeatureSet{}, fmt.Errorf("feature: 计算指标失败: %w", err)
	}

	features := FeatureSet{
		Symbol:       symbol,
		GeneratedAt:  series.Timestamps[series.Len()-1],
		Close:        clean(res.Close),
		RecentCloses: indicator.SliceTail(series.Close, 10),
		Trend:        buildTrendFeatures(res),
		Momentum:     buildMomentumFeatures(res),
		Volatility:   buildVolatilityFeatures(series.Close),
		Structure:    buildStructureFeatures(series.Close),
	}

	e.logger.Debug("特征提取完成",
		zap.String("symbol", features.Symbol),
		zap.Time("generated_at", features.GeneratedAt),
	)
	return features, nil
}

func buildTrendFeatures(res indicator.Result) TrendFeatures {
	closePrice := clean(res.Close)

	return TrendFeatures{
		SMA10:               clean(res.SMA10),
		SMA50:               clean(res.SMA50),
		EMA12:               clean(res.EMA12),
		EMA26:               clean(res.EMA26),
		EMA50:               clean(res.EMA50),
		EMARank:             determineEMARank(res.EMA12, res.EMA26, res.EMA50),
		PriceAboveEMA12:     closePrice > res.EMA12,
		PriceAboveEMA26:     closePrice > res.EMA26,
		DistanceToEMA12:     clean(indicator.SafeDivide(closePrice-res.EMA12, closePrice)),
		DistanceToEMA26:     clean(indicator.SafeDivide(closePrice-res.EMA26, closePrice)),
		MACDValue:           clean(res.MACD.Value),
		MACDSignal:          clean(res.MACD.Signal),
		MACDHistogram:       clean(res.MACD.Histogram),
		MACDHistogramChange: clean(res.MACD.Histogram - res.MACD.PrevHistogram),
		BollingerPosition:   clean(res.Bollinger.Position),
		BollingerBandwidth:  clean(res.Bollinger.Bandwidth),
	}
}

func buildMomentumFeatures(res indicator.Result) MomentumFeatures {
	return MomentumFeatures{
		RSIValue:         clean(res.RSI),
		RSIState:         determineRSIState(res.RSI),
		VolumeRatio:      clean(res.Volume.Ratio),
		VolumeAverage20:  clean(res.Volume.Average20),
		VolumeDivergence: determineVolumeDivergence(res),
	}
}

func buildVolatilityFeatures(closes []float64) VolatilityFeatures {
	recent, historical, ratio := computeVolatilityRatios(closes)
	return VolatilityFeatures{
		RecentVolatility:     clean(recent),
		HistoricalVolatility: clean(historical),
		VolatilityRatio:      clean(ratio),
	}
}

func buildStructureFeatures(closes []float64) StructureFeatures {
	support, resistance := computeSupportResistance(closes)
	return StructureFeatures{
		SupportLevel:    clean(support),
		ResistanceLevel: clean(resistance),
		PriceRange:      clean(resistance - support),
	}
}

func determineEMARank(ema12, ema26, ema50 float64) string {
	if math.IsNaN(ema50) {
		ema50 = ema26
	}
	switch {
	case ema12 > ema26 && ema26 >= ema50:
		return "bullish_alignment"
	case ema12 < ema26 && ema26 <= ema50:
		return "bearish_alignment"
	default:
		return "mixed_alignment"
	}
}

func determineRSIState(rsi float64) string {
	rsi = clean(rsi)
	switch {
	case rsi >= 70:
		return "overbought"
	case rsi <= 30:
		return "oversold"
	default:
		return "neutral"
	}
}

func determineVolumeDivergence(res indicator.Result) string {
	priceChange := clean(res.Close - res.PreviousClose)
	volumeRatio := clean(res.Volume.Ratio)

	switch {
	case priceChange > 0 && volumeRatio > 1:
		return "rally_with_volume"
	case priceChange > 0 && volumeRatio <= 1:
		return "rally_without_volume"
	case priceChange < 0 && volumeRatio > 1:
		return "selloff_with_volume"
	case priceChange < 0 && volumeRatio <= 1:
		return "selloff_without_volume"
	default:
		return "neutral"
	}
}

func computeVolatilityRatios(closes []float64) (recent, historical, ratio float64) {
	if len(closes) < 2 {
		return 0, 0, 0
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev == 0 {
			continue
		}
		returns = append(returns, closes[i]/prev-1)
	}
	if len(returns) == 0 {
		return 0, 0, 0
	}

	recentWindow := min(14, len(returns))
	historicalWindow := min(60, len(returns))

	recent = stdDev(returns[len(returns)-recentWindow:])
	historical = stdDev(returns[len(returns)-historicalWindow:])
	ratio = indicator.SafeDivide(recent, historical)
	return recent, historical, ratio
}

func computeSupportResistance(closes []float64) (float64, float64) {
	window := indicator.SliceTail(closes, 50)
	if len(window) == 0 {
		return 0, 0
	}
	support, resistance := window[0], window[0]
	for _, v := range window {
		if v > resistance {
			resistance = v
		}
		if v < support {
			support = v
		}
	}
	return support, resistance
}

func stdDev(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(n))
}

func clean(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}
