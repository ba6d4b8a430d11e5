package ladder

import (
	"go.uber.org/zap"

	"ladder-trader-go/order"
)

// resetCycle 清场：撤掉全部挂单（尽力而为）、重新锚定参考价、清空
// 在途追踪/冷却/成交去重/权威标记。顺序即语义，勿调整。
func (s *Strategy) resetCycle(reason string) {
	if err := s.ex.CancelAllOrders(s.p.Symbol); err != nil {
		s.log.Error("cancel-all during reset failed, continuing", zap.Error(err))
	}

	if tk, err := s.ex.GetTicker(s.p.Symbol); err == nil && tk != nil && tk.LastPrice > 0 {
		s.st.SetRefPrice(tk.LastPrice)
		s.met.SetReferencePrice(s.p.Symbol, tk.LastPrice)
	} else {
		s.log.Error("live price unavailable during reset, keeping old anchor", zap.Error(err))
	}

	s.st.ClearAllTracked()
	s.st.ResetCooldown()
	s.st.ResetFills()
	for _, pos := range order.Sides {
		s.st.SetAuthoritative(pos, false)
	}

	s.met.ResetDone(s.p.Symbol)
	s.log.Info("cycle reset", zap.String("reason", reason))
}

// Reset 外部显式请求的完整重置。
func (s *Strategy) Reset(reason string) {
	s.resetCycle(reason)
}

// requestRemoval 止盈收官后请求上层停止调度该交易对：先做完整重置，
// 再置摘除标记，由 supervisor 轮询后执行摘除。
func (s *Strategy) requestRemoval(reason string) {
	s.resetCycle(reason)
	s.st.RequestRemoval(reason)
}
