package ladder

import "time"

// TradeMode 首仓方向选择。
type TradeMode string

const (
	ModeLongOnly  TradeMode = "long_only"
	ModeShortOnly TradeMode = "short_only"
)

// Params 单交易对的阶梯策略参数。加载后不再修改；热更新通过
// 重建策略实例完成。
type Params struct {
	Symbol        string
	QuoteCurrency string
	TradeMode     TradeMode

	FirstEntryOffset float64 // 首仓相对锚定价的偏移（做多挂低、做空挂高）
	StepPct          float64 // 补仓相对上一档成交价的偏移

	Cooldown time.Duration // 两次入场委托之间的最小间隔

	PauseDuration time.Duration // 止损后的暂停时长
	VolThreshold  float64       // 振幅阈值，超过则延长暂停
	VolInterval   string        // 振幅检查用的 K 线周期
	VolCandles    int           // 振幅检查用的 K 线根数

	InternalStops       bool    // true 时由策略自行管理止损单
	StopLossOffsetLong  float64 // 多头止损触发偏移（负值）
	StopLossOffsetShort float64 // 空头止损触发偏移（正值）
	StopSlippage        float64 // 止损限价相对触发价的滑点系数

	TPOffsetLong  float64 // 方向默认止盈偏移
	TPOffsetShort float64

	Leverage     float64
	FundingRatio float64 // 单次入场动用余额的固定比例
	MinQty       float64
	QtyStep      float64
	MinNotional  float64

	MaxCreateAttempts int

	Levels Levels
}

// Normalize 填充缺省值。
func (p Params) Normalize() Params {
	if p.QuoteCurrency == "" {
		p.QuoteCurrency = "USDT"
	}
	if p.TradeMode == "" {
		p.TradeMode = ModeLongOnly
	}
	if p.FirstEntryOffset <= 0 {
		p.FirstEntryOffset = 0.001
	}
	if p.StepPct <= 0 {
		p.StepPct = 0.01
	}
	if p.Cooldown <= 0 {
		p.Cooldown = 60 * time.Second
	}
	if p.PauseDuration <= 0 {
		p.PauseDuration = time.Hour
	}
	if p.VolThreshold <= 0 {
		p.VolThreshold = 0.03
	}
	if p.VolInterval == "" {
		p.VolInterval = "1m"
	}
	if p.VolCandles <= 0 {
		p.VolCandles = 30
	}
	if p.StopSlippage <= 0 {
		p.StopSlippage = 0.005
	}
	if p.Leverage <= 0 {
		p.Leverage = 1
	}
	if p.FundingRatio <= 0 {
		p.FundingRatio = 0.1
	}
	if p.MaxCreateAttempts <= 0 {
		p.MaxCreateAttempts = 3
	}
	if len(p.Levels.Long) == 0 && len(p.Levels.Short) == 0 {
		p.Levels = DefaultLevels()
	}
	return p
}
