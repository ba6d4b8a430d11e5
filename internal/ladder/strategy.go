package ladder

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ladder-trader-go/gateway"
	"ladder-trader-go/metrics"
	"ladder-trader-go/order"
)

// Strategy 单交易对阶梯策略状态机。
//
// OnTick 与 OnOrderUpdate 都不是并发安全的：调用方（supervisor）为
// 每个交易对持锁串行调用。所有交易所调用失败都被吞在本次 tick /
// 回调内，只记日志，绝不向上抛。
type Strategy struct {
	p    Params
	st   *SymbolState
	ex   gateway.Exchange
	sub  *order.Submitter
	cons order.SymbolConstraints
	log  *zap.Logger
	met  *metrics.Collectors

	now      func() time.Time
	nonceSeq atomic.Int64
}

// New 构建策略。met 可为 nil。
func New(p Params, st *SymbolState, ex gateway.Exchange, log *zap.Logger, met *metrics.Collectors) *Strategy {
	p = p.Normalize()
	if log == nil {
		log = zap.NewNop()
	}
	s := &Strategy{
		p:   p,
		st:  st,
		ex:  ex,
		sub: order.NewSubmitter(ex, p.MaxCreateAttempts, log),
		cons: order.SymbolConstraints{
			StepSize:    p.QtyStep,
			MinQty:      p.MinQty,
			MinNotional: p.MinNotional,
		},
		log: log.With(zap.String("symbol", p.Symbol)),
		met: met,
		now: time.Now,
	}
	s.nonceSeq.Store(time.Now().UnixMilli())
	return s
}

// State 返回策略持有的状态对象（supervisor 轮询摘除标记用）。
func (s *Strategy) State() *SymbolState { return s.st }

// Params 返回生效参数（含缺省填充）。
func (s *Strategy) Params() Params { return s.p }

func (s *Strategy) nonce() int64 {
	return s.nonceSeq.Add(1)
}

// OnTick 主循环：校验行情、对账在途单、补齐止盈保护、先查止损、
// 再考虑开首仓。任何一步失败都只跳过本次 tick 的对应动作。
func (s *Strategy) OnTick(snapshot *gateway.Ticker) {
	price, ok := s.observePrice(snapshot)
	if !ok {
		return
	}
	s.sanityReference(price)

	if s.gatePaused() {
		return
	}

	pending := s.st.PendingStop()

	open, openErr := s.ex.GetOpenOrders(s.p.Symbol)
	if openErr != nil {
		// 查询失败不等于没有挂单；此时把在途单当作消失会误判成交
		s.log.Warn("open orders query failed, skipping tracker cleanup", zap.Error(openErr))
	} else {
		present := make(map[string]bool, len(open))
		for _, o := range open {
			present[o.ClientID] = true
			present[o.ID] = true
		}
		if removed := s.st.ReconcileTracked(present); len(removed) > 0 {
			s.log.Info("cleared tracked orders missing from exchange snapshot",
				zap.Strings("ids", removed))
		}
	}

	positions, posErr := s.ex.GetPositions(s.p.Symbol)
	if posErr != nil {
		s.log.Warn("positions query failed", zap.Error(posErr))
	}

	if openErr == nil && posErr == nil {
		s.ensureProtection(open, positions)
	}

	// 止损检测先于开仓；一旦提交止损，本次 tick 到此为止
	if s.p.InternalStops && posErr == nil {
		if s.checkStopLoss(price, positions, pending) {
			return
		}
	}

	s.maybePlaceFirstEntry(positions, posErr)
}

// observePrice 取行情：优先外部快照，否则查询 ticker。非法价格返回 false。
func (s *Strategy) observePrice(snapshot *gateway.Ticker) (float64, bool) {
	if snapshot != nil && snapshot.LastPrice > 0 {
		return snapshot.LastPrice, true
	}
	tk, err := s.ex.GetTicker(s.p.Symbol)
	if err != nil {
		s.log.Warn("ticker query failed, skipping tick", zap.Error(err))
		return 0, false
	}
	if tk == nil || tk.LastPrice <= 0 {
		s.log.Warn("invalid ticker price, skipping tick")
		return 0, false
	}
	return tk.LastPrice, true
}

// sanityReference 锚定价守卫：未初始化则取现价；与现价偏离超过 10 倍
// 视为脏数据，重新锚定。
func (s *Strategy) sanityReference(live float64) {
	ref := s.st.RefPrice()
	if ref <= 0 {
		s.st.SetRefPrice(live)
		s.met.SetReferencePrice(s.p.Symbol, live)
		s.log.Info("reference price initialized", zap.Float64("price", live))
		return
	}
	if ref/live > 10 || live/ref > 10 {
		s.log.Warn("reference price drifted an order of magnitude, re-anchoring",
			zap.Float64("ref", ref), zap.Float64("live", live))
		s.st.SetRefPrice(live)
		s.met.SetReferencePrice(s.p.Symbol, live)
	}
}

// sideQty 汇总某方向的持仓数量（绝对值）。
func sideQty(positions []gateway.Position, pos order.PositionSide) float64 {
	total := 0.0
	for _, p := range positions {
		if p.PositionSide != pos {
			continue
		}
		amt := p.PositionAmt
		if amt < 0 {
			amt = -amt
		}
		total += amt
	}
	return total
}

// sideOpen 判定方向是否有仓：权威标记与快照取或。
func (s *Strategy) sideOpen(positions []gateway.Position, pos order.PositionSide) bool {
	return s.st.Authoritative(pos) || sideQty(positions, pos) > 0
}

// ensureProtection 为每个有仓方向补齐止盈保护单：按 tag 约定找不到
// 止盈挂单时，按全部持仓量在默认档位止盈价挂出。
func (s *Strategy) ensureProtection(open []order.Order, positions []gateway.Position) {
	ref := s.st.RefPrice()
	for _, pos := range order.Sides {
		qty := sideQty(positions, pos)
		if qty <= 0 {
			continue
		}
		if hasTakeProfit(open, pos) {
			continue
		}
		lvl, ok := s.p.Levels.First(pos)
		tpOff := s.sideTPOffset(pos)
		if ok && lvl.TPOffsetSet {
			tpOff = lvl.TPOffset
		}
		s.log.Info("position without take-profit protection, replacing",
			zap.String("side", string(pos)), zap.Float64("qty", qty))
		s.placeTakeProfit(pos, qty, ref*(1+tpOff))
	}
}

func hasTakeProfit(open []order.Order, pos order.PositionSide) bool {
	for _, o := range open {
		composite := order.Composite(o.Tag, o.ClientID)
		if p, ok := order.MatchAutoTakeProfit(composite); ok && p == pos {
			return true
		}
	}
	return false
}

func (s *Strategy) sideTPOffset(pos order.PositionSide) float64 {
	if pos == order.Long {
		return s.p.TPOffsetLong
	}
	return s.p.TPOffsetShort
}

// placeTakeProfit 挂出覆盖全部持仓的止盈单。
func (s *Strategy) placeTakeProfit(pos order.PositionSide, qty, price float64) {
	role := order.Role{Kind: order.RoleAutoTakeProfit, Pos: pos}
	req := order.Request{
		Symbol:       s.p.Symbol,
		Side:         pos.CloseSide(),
		PositionSide: pos,
		Type:         order.TypeTakeProfit,
		Quantity:     qty,
		Price:        price,
		TriggerPrice: price,
		ReduceOnly:   true,
		ClientID:     role.ClientID(s.nonce()),
		Role:         role,
	}
	if _, err := s.sub.Submit(req); err != nil {
		s.log.Error("take-profit placement failed", zap.String("side", string(pos)), zap.Error(err))
		s.met.OrderFailed(s.p.Symbol, "take_profit")
		return
	}
	s.met.OrderPlaced(s.p.Symbol, "take_profit")
	s.log.Info("take-profit placed",
		zap.String("side", string(pos)), zap.Float64("qty", qty), zap.Float64("price", price))
}

// checkStopLoss 内部止损路径：价格越过触发线即撤掉全部挂单并提交
// 减仓限价单，标记为在途止损。返回 true 表示本次 tick 短路。
func (s *Strategy) checkStopLoss(price float64, positions []gateway.Position, pending PendingStop) bool {
	ref := s.st.RefPrice()
	for _, pos := range order.Sides {
		if !s.sideOpen(positions, pos) {
			continue
		}
		// 已有在途止损时不再重复提交
		if pending.Pending && pending.Pos == pos {
			continue
		}
		var trigger float64
		var crossed bool
		if pos == order.Long {
			trigger = ref * (1 + s.p.StopLossOffsetLong)
			crossed = price <= trigger
		} else {
			trigger = ref * (1 + s.p.StopLossOffsetShort)
			crossed = price >= trigger
		}
		if !crossed {
			continue
		}

		qty := sideQty(positions, pos)
		if qty <= 0 {
			s.log.Error("stop-loss triggered but snapshot reports no position, skipping",
				zap.String("side", string(pos)))
			continue
		}

		s.log.Warn("stop-loss triggered",
			zap.String("side", string(pos)),
			zap.Float64("price", price), zap.Float64("trigger", trigger))
		s.met.StopLossTriggered(s.p.Symbol)

		if err := s.ex.CancelAllOrders(s.p.Symbol); err != nil {
			s.log.Error("cancel-all before stop-loss failed", zap.Error(err))
		}

		limit := trigger * (1 - s.p.StopSlippage)
		if pos == order.Short {
			limit = trigger * (1 + s.p.StopSlippage)
		}
		levelTag := byte('A')
		if lvl, ok := s.p.Levels.First(pos); ok {
			levelTag = lvl.Tag
		}
		role := order.Role{Kind: order.RoleManualStopLoss, Level: levelTag, Pos: pos}
		clientID := role.ClientID(s.nonce())
		req := order.Request{
			Symbol:       s.p.Symbol,
			Side:         pos.CloseSide(),
			PositionSide: pos,
			Type:         order.TypeLimit,
			Quantity:     qty,
			Price:        limit,
			ReduceOnly:   true,
			ClientID:     clientID,
			Role:         role,
		}
		ord, err := s.sub.Submit(req)
		if err != nil {
			s.log.Error("stop-loss submission failed", zap.Error(err))
			s.met.OrderFailed(s.p.Symbol, "manual_stop")
			continue
		}
		s.met.OrderPlaced(s.p.Symbol, "manual_stop")
		// 暂停窗口要等确认成交才开；这里只标记在途
		s.st.SetPendingStop(PendingStop{
			Pending: true,
			Tag:     clientID,
			OrderID: ord.CanonicalID(clientID),
			Pos:     pos,
		})
		return true
	}
	return false
}

// maybePlaceFirstEntry 两侧都无仓、冷却已过、首档无在途单时，
// 按交易方向模式开一张首仓限价单。
func (s *Strategy) maybePlaceFirstEntry(positions []gateway.Position, posErr error) {
	if posErr != nil {
		// 无法确认两侧是否空仓，宁可错过也不冒险加仓
		return
	}
	now := s.now()
	if !s.st.CooldownElapsed(now, s.p.Cooldown) {
		s.log.Debug("entry cooldown active",
			zap.Time("lastOrderAt", s.st.LastOrderAt()))
		return
	}
	if s.sideOpen(positions, order.Long) || s.sideOpen(positions, order.Short) {
		return
	}

	pos := order.Long
	if s.p.TradeMode == ModeShortOnly {
		pos = order.Short
	}
	lvl, ok := s.p.Levels.First(pos)
	if !ok {
		return
	}
	if s.st.HasTracked(order.Long, lvl.Tag) || s.st.HasTracked(order.Short, lvl.Tag) {
		return
	}

	ref := s.st.RefPrice()
	entry := ref * (1 - s.p.FirstEntryOffset)
	if pos == order.Short {
		entry = ref * (1 + s.p.FirstEntryOffset)
	}

	qty := s.sizeLevel(lvl, entry)
	if qty <= 0 {
		return
	}
	if err := s.cons.Validate(entry, qty); err != nil {
		s.log.Warn("first entry violates symbol constraints, skipping", zap.Error(err))
		return
	}

	role := order.Role{Kind: order.RoleEntry, Level: lvl.Tag, Pos: pos}
	clientID := role.ClientID(s.nonce())
	req := order.Request{
		Symbol:       s.p.Symbol,
		Side:         pos.OpenSide(),
		PositionSide: pos,
		Type:         order.TypeLimit,
		Quantity:     qty,
		Price:        entry,
		ClientID:     clientID,
		Role:         role,
	}
	ord, err := s.sub.Submit(req)
	if err != nil {
		s.log.Error("first entry placement failed", zap.Error(err))
		s.met.OrderFailed(s.p.Symbol, "entry")
		return
	}
	if err := s.st.Track(pos, lvl.Tag, ord.CanonicalID(clientID)); err != nil {
		s.log.Error("tracking first entry failed", zap.Error(err))
	}
	s.st.TouchOrderTime(now)
	s.met.OrderPlaced(s.p.Symbol, "entry")
	s.log.Info("first entry placed",
		zap.String("side", string(pos)),
		zap.String("level", string(lvl.Tag)),
		zap.Float64("price", entry), zap.Float64("qty", qty))
}

// sizeLevel 按档位参数算数量：固定数量优先，否则 Sizer 结果乘档位
// 倍数再向上对齐步长。余额查询失败返回 0 并记日志。
func (s *Strategy) sizeLevel(lvl Level, price float64) float64 {
	if lvl.FixedQty > 0 {
		return lvl.FixedQty
	}
	balance, err := s.ex.GetBalance(s.p.QuoteCurrency)
	if err != nil {
		s.log.Warn("balance query failed, skipping entry", zap.Error(err))
		return 0
	}
	qty := Quantity(price, balance, s.p.Leverage, s.p.FundingRatio,
		s.p.MinQty, s.p.QtyStep, s.p.MinNotional)
	if qty <= 0 {
		s.log.Warn("sizer returned non-positive quantity",
			zap.Float64("price", price), zap.Float64("balance", balance))
		return 0
	}
	factor := lvl.SizeFactor
	if factor <= 0 {
		factor = 1
	}
	return order.RoundUpToStep(qty*factor, s.p.QtyStep)
}
