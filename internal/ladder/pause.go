package ladder

import (
	"go.uber.org/zap"

	"ladder-trader-go/market"
)

// 暂停门三个状态：Active（无暂停）、Paused-Waiting（计时未到，
// 一切交易跳过）、Paused-Checking（计时已到，等波动率裁决）。

// gatePaused 每个 tick 只评估一次，且先于任何交易决策。返回 true
// 表示本次 tick 立即结束。
func (s *Strategy) gatePaused() bool {
	pw := s.st.Pause()
	if pw.Until.IsZero() {
		return false // Active
	}
	now := s.now()
	if now.Before(pw.Until) {
		return true // Paused-Waiting：不改状态、不碰订单
	}

	// Paused-Checking：计时已到，看近期振幅
	amp, ok := s.recentAmplitude()
	if !ok || amp > s.p.VolThreshold {
		until := now.Add(s.p.PauseDuration)
		s.st.ExtendPause(until)
		s.met.PauseExtended(s.p.Symbol)
		s.log.Warn("pause extended",
			zap.Float64("amplitude", amp),
			zap.Bool("data_available", ok),
			zap.Float64("threshold", s.p.VolThreshold),
			zap.Time("until", until))
		return true
	}

	// 振幅达标，回到 Active；如暂停要求重置则先走完整 reset
	needsReset := pw.NeedsReset
	s.st.ClearPause()
	s.met.PauseCleared(s.p.Symbol)
	s.log.Info("pause cleared",
		zap.Float64("amplitude", amp), zap.Bool("reset", needsReset))
	if needsReset {
		s.resetCycle("pause ended")
	}
	return false
}

// recentAmplitude 取最近 N 根短周期 K 线的振幅；任何失败都按
// “数据不可用”处理，绝不向上抛。
func (s *Strategy) recentAmplitude() (float64, bool) {
	klines, err := s.ex.GetKlines(s.p.Symbol, s.p.VolInterval, s.p.VolCandles)
	if err != nil {
		s.log.Warn("kline query failed during pause check", zap.Error(err))
		return 0, false
	}
	return market.Amplitude(klines)
}

// beginPause 开启暂停窗口。入口永远是止损单的确认成交，不会因为
// 价格触线但订单没成交就暂停。
func (s *Strategy) beginPause(reason string) {
	if err := s.ex.CancelAllOrders(s.p.Symbol); err != nil {
		s.log.Error("cancel-all on pause entry failed", zap.Error(err))
	}
	until := s.now().Add(s.p.PauseDuration)
	s.st.SetPause(PauseWindow{Until: until, Reason: reason, NeedsReset: true})
	s.met.PauseEntered(s.p.Symbol)
	s.log.Warn("pause window opened",
		zap.String("reason", reason), zap.Time("until", until))
}
