package ladder

import (
	"go.uber.org/zap"

	"ladder-trader-go/gateway"
	"ladder-trader-go/order"
)

// classifyRule 一条分类规则：matched 为 true 即终止评估。规则按
// 优先级排成显式列表，顺序可审计、可单独测试。
type classifyRule struct {
	name  string
	apply func(s *Strategy, upd gateway.OrderUpdate, composite string) (matched bool)
}

var classifyRules = []classifyRule{
	{"symbol_mismatch", ruleSymbolMismatch},
	{"not_filled", ruleNotFilled},
	{"manual_stop_filled", ruleManualStop},
	{"auto_take_profit_filled", ruleAutoTakeProfit},
	{"auto_stop_loss_filled", ruleAutoStopLoss},
	{"generic_auto_protective", ruleGenericProtective},
	{"reduce_only_flat", ruleReduceOnlyFlat},
	{"entry_filled", ruleEntry},
	{"unrecognized", ruleIgnore},
}

// OnOrderUpdate 订单回报入口。分类串由 tag 与 clientOrderId 拼接，
// 两者任一来源即可识别。每条回报都会命中且只命中一条规则。
func (s *Strategy) OnOrderUpdate(upd gateway.OrderUpdate) {
	composite := order.Composite(upd.Tag, upd.ClientID)
	for _, r := range classifyRules {
		if r.apply(s, upd, composite) {
			s.log.Debug("order update classified",
				zap.String("rule", r.name),
				zap.String("composite", composite),
				zap.String("status", string(upd.Status)))
			return
		}
	}
}

func ruleSymbolMismatch(s *Strategy, upd gateway.OrderUpdate, _ string) bool {
	return upd.Symbol != s.p.Symbol
}

// ruleNotFilled 未成交回报统一忽略；但撤销/拒绝/过期要顺手清掉
// 对应的在途止损标记，否则止损通道会一直被压制。
func ruleNotFilled(s *Strategy, upd gateway.OrderUpdate, _ string) bool {
	if upd.Status.IsFilled() {
		return false
	}
	// 已非成交，终态即撤销/拒绝/过期
	if upd.Status.IsFinal() {
		pending := s.st.PendingStop()
		if pending.Pending && (upd.CanonicalID("") == pending.OrderID || upd.ClientID == pending.Tag) {
			s.st.ClearPendingStop()
			s.log.Warn("pending stop-loss order terminated without fill",
				zap.String("status", string(upd.Status)))
		}
	}
	return true
}

func ruleManualStop(s *Strategy, upd gateway.OrderUpdate, composite string) bool {
	pos, ok := order.MatchManualStop(composite)
	if !ok {
		return false
	}
	s.st.SetAuthoritative(pos, false)
	s.st.ClearPendingStop()
	s.beginPause("manual stop-loss filled")
	return true
}

func ruleAutoTakeProfit(s *Strategy, upd gateway.OrderUpdate, composite string) bool {
	pos, ok := order.MatchAutoTakeProfit(composite)
	if !ok {
		return false
	}
	s.st.SetAuthoritative(pos, false)
	// 止盈收官：整轮结束，重置并请求摘除
	s.requestRemoval("take-profit cycle complete")
	return true
}

func ruleAutoStopLoss(s *Strategy, upd gateway.OrderUpdate, composite string) bool {
	pos, ok := order.MatchAutoStopLoss(composite)
	if !ok {
		return false
	}
	s.st.SetAuthoritative(pos, false)
	s.beginPause("auto stop-loss filled")
	return true
}

// ruleGenericProtective 带 auto 标记但方向数字缺失/损坏的保护单：
// 无法定位方向，整体重置兜底。
func ruleGenericProtective(s *Strategy, _ gateway.OrderUpdate, composite string) bool {
	if !order.IsAutoProtective(composite) {
		return false
	}
	s.resetCycle("generic protective order filled")
	return true
}

// ruleReduceOnlyFlat 减仓单成交后两侧都归零：整轮结束。持仓查询
// 失败时判定不了，留给后续规则。
func ruleReduceOnlyFlat(s *Strategy, upd gateway.OrderUpdate, _ string) bool {
	if !upd.ReduceOnly {
		return false
	}
	positions, err := s.ex.GetPositions(s.p.Symbol)
	if err != nil {
		return false
	}
	if sideQty(positions, order.Long) > 0 || sideQty(positions, order.Short) > 0 {
		return false
	}
	s.requestRemoval("position flat after reduce-only fill")
	return true
}

func ruleEntry(s *Strategy, upd gateway.OrderUpdate, composite string) bool {
	if order.IsAutomated(composite) {
		return false
	}
	level, pos, ok := order.MatchEntry(composite, s.p.Levels.LevelTags())
	if !ok {
		return false
	}
	s.onEntryFill(upd, level, pos)
	return true
}

// ruleIgnore 显式的兜底：决策是“忽略”，但必须是个决策。
func ruleIgnore(s *Strategy, upd gateway.OrderUpdate, composite string) bool {
	s.log.Debug("order update not recognized, ignoring",
		zap.String("composite", composite))
	return true
}
