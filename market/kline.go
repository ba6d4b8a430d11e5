package market

import "time"

// Kline represents OHLC data.
type Kline struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
	Ts    time.Time
}

// Amplitude 计算一组 K 线的振幅 (maxHigh - minLow) / minLow。
// 数据为空或不合法时返回 ok=false，调用方按“数据不可用”处理。
func Amplitude(klines []Kline) (amp float64, ok bool) {
	if len(klines) == 0 {
		return 0, false
	}
	maxHigh := klines[0].High
	minLow := klines[0].Low
	for _, k := range klines[1:] {
		if k.High > maxHigh {
			maxHigh = k.High
		}
		if k.Low < minLow {
			minLow = k.Low
		}
	}
	if minLow <= 0 {
		return 0, false
	}
	return (maxHigh - minLow) / minLow, true
}
