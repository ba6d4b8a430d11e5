package ladder

import (
	"go.uber.org/zap"

	"ladder-trader-go/gateway"
	"ladder-trader-go/order"
)

// onEntryFill 入场成交处理：置权威标记、重挂覆盖全仓的止盈、
// 链式挂出下一档。每笔成交按规范 id 只处理一次。
func (s *Strategy) onEntryFill(upd gateway.OrderUpdate, levelTag byte, pos order.PositionSide) {
	id := upd.CanonicalID(upd.Symbol + string(levelTag) + string(pos))
	if !s.st.MarkFillHandled(id) {
		s.log.Debug("duplicate entry fill ignored", zap.String("id", id))
		return
	}

	s.st.Clear(pos, levelTag)
	s.st.SetAuthoritative(pos, true)
	s.st.TouchOrderTime(s.now())
	s.met.EntryFilled(s.p.Symbol, levelTag)

	fillPrice := upd.AvgPrice
	if fillPrice <= 0 {
		fillPrice = upd.Price
	}
	s.log.Info("entry filled",
		zap.String("level", string(levelTag)),
		zap.String("side", string(pos)),
		zap.Float64("price", fillPrice),
		zap.Float64("qty", upd.ExecutedQty))

	lvl, found := s.p.Levels.ByTag(pos, levelTag)
	if !found {
		// 未知档位：成交照常追加保护，但无法继续链式
		lvl = Level{Tag: levelTag, Enabled: true, SizeFactor: 1}
	}

	positions, posErr := s.ex.GetPositions(s.p.Symbol)
	if posErr != nil {
		// 快照拿不到就跳过止盈替换；链式挂下一档照常尝试
		s.log.Error("positions unavailable, skipping take-profit replacement", zap.Error(posErr))
	} else {
		total := sideQty(positions, pos)
		if total <= 0 {
			// 快照没跟上这笔成交，用本单成交量兜底估计
			total = upd.ExecutedQty
		}
		if total > 0 {
			s.replaceTakeProfit(pos, lvl, total)
		}
	}

	if found {
		s.chainNextLevel(pos, lvl, fillPrice)
	}
}

// replaceTakeProfit 只撤该方向的止盈单（不碰止损），再按全部持仓量
// 重挂一张——整仓一单的替换方案，不是按笔叠加。
func (s *Strategy) replaceTakeProfit(pos order.PositionSide, lvl Level, total float64) {
	open, err := s.ex.GetOpenOrders(s.p.Symbol)
	if err != nil {
		s.log.Warn("open orders unavailable while replacing take-profit", zap.Error(err))
	} else {
		for _, o := range open {
			composite := order.Composite(o.Tag, o.ClientID)
			p, ok := order.MatchAutoTakeProfit(composite)
			if !ok || p != pos {
				continue
			}
			if cancelErr := s.ex.CancelOrder(o.ID, s.p.Symbol); cancelErr != nil {
				s.log.Warn("canceling stale take-profit failed",
					zap.String("id", o.ID), zap.Error(cancelErr))
			}
		}
	}

	tpOff := s.sideTPOffset(pos)
	if lvl.TPOffsetSet {
		tpOff = lvl.TPOffset
	}
	s.placeTakeProfit(pos, total, s.st.RefPrice()*(1+tpOff))
}

// chainNextLevel 下一档入场价挂在本次成交价之外一个固定步长：
// 多头向下、空头向上，围着实际成交价滚动而不是原始锚定价。
func (s *Strategy) chainNextLevel(pos order.PositionSide, lvl Level, fillPrice float64) {
	next, ok := s.p.Levels.Next(pos, lvl.Tag)
	if !ok {
		s.log.Info("ladder exhausted for side", zap.String("side", string(pos)))
		return
	}
	if s.st.HasTracked(pos, next.Tag) {
		s.log.Warn("next level already has a tracked order, not chaining",
			zap.String("level", string(next.Tag)))
		return
	}

	entry := fillPrice * (1 - s.p.StepPct)
	if pos == order.Short {
		entry = fillPrice * (1 + s.p.StepPct)
	}

	qty := s.sizeLevel(next, fillPrice)
	if qty <= 0 {
		s.log.Warn("next level sized to zero, not placed",
			zap.String("level", string(next.Tag)))
		return
	}
	if err := s.cons.Validate(entry, qty); err != nil {
		s.log.Warn("next level violates symbol constraints, not placed",
			zap.String("level", string(next.Tag)), zap.Error(err))
		return
	}

	role := order.Role{Kind: order.RoleEntry, Level: next.Tag, Pos: pos}
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
		s.log.Error("next level placement failed",
			zap.String("level", string(next.Tag)), zap.Error(err))
		s.met.OrderFailed(s.p.Symbol, "entry")
		return
	}
	if trackErr := s.st.Track(pos, next.Tag, ord.CanonicalID(clientID)); trackErr != nil {
		s.log.Error("tracking next level failed", zap.Error(trackErr))
	}
	s.met.OrderPlaced(s.p.Symbol, "entry")
	s.log.Info("next level placed",
		zap.String("level", string(next.Tag)),
		zap.String("side", string(pos)),
		zap.Float64("price", entry), zap.Float64("qty", qty))
}
