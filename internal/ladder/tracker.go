package ladder

import (
	"errors"
	"sync"
	"time"

	"ladder-trader-go/order"
)

// PauseWindow 止损后的熔断窗口。Until 非零即处于暂停。
type PauseWindow struct {
	Until      time.Time
	Reason     string
	NeedsReset bool
}

// PendingStop 已提交、尚未确认成交的自管理止损单标记。
type PendingStop struct {
	Pending bool
	Tag     string
	OrderID string
	Pos     order.PositionSide
}

type trackKey struct {
	pos   order.PositionSide
	level byte
}

// ErrLevelBusy 同一 (方向, 档位) 已有在途订单。
var ErrLevelBusy = errors.New("level already has a tracked order")

// SymbolState 单交易对的全部可变状态：锚定价、在途订单、冷却时间、
// 权威持仓标记、暂停窗口与止损标记。
//
// Tick 与回报两条路径都会读写这里；上层（supervisor）为每个交易对
// 串行化这两条路径。成交去重集合例外：回报可能来自另一调度上下文，
// 用独立互斥锁保护。
type SymbolState struct {
	Symbol string

	mu          sync.Mutex
	refPrice    float64
	tracked     map[trackKey]string
	lastOrderAt time.Time
	auth        map[order.PositionSide]bool
	pause       PauseWindow
	pendingStop PendingStop

	removeRequested bool
	removeReason    string

	fillMu       sync.Mutex
	handledFills map[string]struct{}
}

func NewSymbolState(symbol string) *SymbolState {
	return &SymbolState{
		Symbol:       symbol,
		tracked:      make(map[trackKey]string),
		auth:         make(map[order.PositionSide]bool),
		handledFills: make(map[string]struct{}),
	}
}

// RefPrice 当前锚定价。
func (s *SymbolState) RefPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refPrice
}

func (s *SymbolState) SetRefPrice(p float64) {
	s.mu.Lock()
	s.refPrice = p
	s.mu.Unlock()
}

// Track 登记 (方向, 档位) 的在途订单。已占用时报错——一个档位同时
// 最多一张在途单。
func (s *SymbolState) Track(pos order.PositionSide, level byte, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := trackKey{pos, level}
	if _, exists := s.tracked[key]; exists {
		return ErrLevelBusy
	}
	s.tracked[key] = id
	return nil
}

// TrackedID 返回该档位在途订单 id。
func (s *SymbolState) TrackedID(pos order.PositionSide, level byte) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tracked[trackKey{pos, level}]
	return id, ok
}

func (s *SymbolState) HasTracked(pos order.PositionSide, level byte) bool {
	_, ok := s.TrackedID(pos, level)
	return ok
}

// Clear 清除该档位的追踪记录。
func (s *SymbolState) Clear(pos order.PositionSide, level byte) {
	s.mu.Lock()
	delete(s.tracked, trackKey{pos, level})
	s.mu.Unlock()
}

// ClearAllTracked 清除全部追踪记录（reset 用）。
func (s *SymbolState) ClearAllTracked() {
	s.mu.Lock()
	s.tracked = make(map[trackKey]string)
	s.mu.Unlock()
}

// ReconcileTracked 对照交易所挂单快照：不在快照里的在途单视为已成交
// 或已撤销，清除本地追踪。返回被清除的 id。
func (s *SymbolState) ReconcileTracked(present map[string]bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for key, id := range s.tracked {
		if !present[id] {
			delete(s.tracked, key)
			removed = append(removed, id)
		}
	}
	return removed
}

// TrackedCount 在途订单数（测试/指标用）。
func (s *SymbolState) TrackedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracked)
}

// CooldownElapsed 距上次入场下单是否已超过冷却时间。
func (s *SymbolState) CooldownElapsed(now time.Time, d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastOrderAt.IsZero() {
		return true
	}
	return now.Sub(s.lastOrderAt) >= d
}

func (s *SymbolState) TouchOrderTime(now time.Time) {
	s.mu.Lock()
	s.lastOrderAt = now
	s.mu.Unlock()
}

func (s *SymbolState) ResetCooldown() {
	s.mu.Lock()
	s.lastOrderAt = time.Time{}
	s.mu.Unlock()
}

// LastOrderAt 上次入场下单时间（零值表示从未）。
func (s *SymbolState) LastOrderAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOrderAt
}

// Authoritative 权威持仓标记：入场成交瞬间置位，用来掩盖交易所持仓
// 快照的延迟；判定方向是否有仓时与快照取或。
func (s *SymbolState) Authoritative(pos order.PositionSide) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth[pos]
}

func (s *SymbolState) SetAuthoritative(pos order.PositionSide, v bool) {
	s.mu.Lock()
	s.auth[pos] = v
	s.mu.Unlock()
}

// Pause 返回当前暂停窗口副本。
func (s *SymbolState) Pause() PauseWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pause
}

func (s *SymbolState) SetPause(p PauseWindow) {
	s.mu.Lock()
	s.pause = p
	s.mu.Unlock()
}

// ExtendPause 只推后到期时间，保留原因与 reset 标记。
func (s *SymbolState) ExtendPause(until time.Time) {
	s.mu.Lock()
	s.pause.Until = until
	s.mu.Unlock()
}

func (s *SymbolState) ClearPause() {
	s.mu.Lock()
	s.pause = PauseWindow{}
	s.mu.Unlock()
}

// PendingStop 返回止损在途标记副本。
func (s *SymbolState) PendingStop() PendingStop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingStop
}

func (s *SymbolState) SetPendingStop(p PendingStop) {
	s.mu.Lock()
	s.pendingStop = p
	s.mu.Unlock()
}

func (s *SymbolState) ClearPendingStop() {
	s.mu.Lock()
	s.pendingStop = PendingStop{}
	s.mu.Unlock()
}

// MarkFillHandled 原子登记成交 id；重复回报返回 false，调用方必须
// 在产生任何副作用之前调用。
func (s *SymbolState) MarkFillHandled(id string) bool {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	if _, seen := s.handledFills[id]; seen {
		return false
	}
	s.handledFills[id] = struct{}{}
	return true
}

// ResetFills 清空成交去重集合（reset 用）。
func (s *SymbolState) ResetFills() {
	s.fillMu.Lock()
	s.handledFills = make(map[string]struct{})
	s.fillMu.Unlock()
}

// RequestRemoval 请求上层停止调度该交易对；核心只暴露标记，不自己
// 执行摘除。
func (s *SymbolState) RequestRemoval(reason string) {
	s.mu.Lock()
	s.removeRequested = true
	s.removeReason = reason
	s.mu.Unlock()
}

// RemoveRequested 供上层轮询的摘除标记与原因。
func (s *SymbolState) RemoveRequested() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeRequested, s.removeReason
}
