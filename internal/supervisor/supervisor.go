package supervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ladder-trader-go/gateway"
	"ladder-trader-go/infrastructure/alert"
	"ladder-trader-go/internal/ladder"
	"ladder-trader-go/market"
)

// Symbol 是被调度的单交易对策略。OnTick 与 OnOrderUpdate 本身不要求
// 并发安全，串行化由 supervisor 的每交易对互斥锁保证。
type Symbol interface {
	OnTick(snapshot *gateway.Ticker)
	OnOrderUpdate(upd gateway.OrderUpdate)
	State() *ladder.SymbolState
	Params() ladder.Params
}

// entry 单交易对的调度项：策略、串行锁、摘除信号。锁按交易对复用，
// 热更新换入的新 entry 与被换出的旧循环争同一把锁，不会交错执行。
type entry struct {
	sym  Symbol
	mu   *sync.Mutex
	stop chan struct{}
	once sync.Once
}

func (e *entry) retire() {
	e.once.Do(func() { close(e.stop) })
}

// Supervisor 驱动一组交易对策略：每个交易对一个 tick 循环 goroutine，
// 订单回报按交易对路由。tick 与回报共用同一把每交易对锁，两条路径
// 对单个交易对永远串行。
type Supervisor struct {
	log      *zap.Logger
	ticks    *market.TickerCache
	alerts   *alert.Manager
	interval time.Duration

	mu      sync.RWMutex
	entries map[string]*entry
	locks   map[string]*sync.Mutex
	wg      sync.WaitGroup
}

// New 构建 supervisor。ticks 与 alerts 可为 nil：无行情缓存时 tick
// 退回 REST 查询，无告警器时只记日志。
func New(log *zap.Logger, ticks *market.TickerCache, alerts *alert.Manager, interval time.Duration) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Supervisor{
		log:      log,
		ticks:    ticks,
		alerts:   alerts,
		interval: interval,
		entries:  make(map[string]*entry),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Add 注册一个交易对。重复注册同一交易对是配置错误，后注册的覆盖并
// 记日志。循环在 Run 启动后自动接管新注册项。
func (s *Supervisor) Add(ctx context.Context, sym Symbol) {
	symbol := sym.Params().Symbol

	s.mu.Lock()
	lk, ok := s.locks[symbol]
	if !ok {
		lk = &sync.Mutex{}
		s.locks[symbol] = lk
	}
	e := &entry{sym: sym, mu: lk, stop: make(chan struct{})}
	if old, exists := s.entries[symbol]; exists {
		s.log.Warn("symbol re-registered, replacing", zap.String("symbol", symbol))
		old.retire()
	}
	s.entries[symbol] = e
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx, symbol, e)
}

// loop 单交易对 tick 循环：定时驱动 OnTick，之后轮询摘除标记。
func (s *Supervisor) loop(ctx context.Context, symbol string, e *entry) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log := s.log.With(zap.String("symbol", symbol))
	log.Info("symbol loop started")

	for {
		select {
		case <-ctx.Done():
			log.Info("symbol loop stopped", zap.Error(ctx.Err()))
			return
		case <-e.stop:
			log.Info("symbol loop retired")
			return
		case <-ticker.C:
			var snapshot *gateway.Ticker
			if s.ticks != nil {
				if tk, ok := s.ticks.Last(symbol); ok {
					snapshot = &gateway.Ticker{Symbol: tk.Symbol, LastPrice: tk.Price}
				}
			}
			e.mu.Lock()
			e.sym.OnTick(snapshot)
			requested, reason := e.sym.State().RemoveRequested()
			e.mu.Unlock()

			if requested {
				s.remove(symbol, e, reason)
				return
			}
		}
	}
}

// remove 执行摘除：从路由表删掉并告警。策略自己已经完成清场。
func (s *Supervisor) remove(symbol string, e *entry, reason string) {
	s.mu.Lock()
	if cur, ok := s.entries[symbol]; ok && cur == e {
		delete(s.entries, symbol)
	}
	s.mu.Unlock()
	e.retire()

	s.log.Info("symbol retired", zap.String("symbol", symbol), zap.String("reason", reason))
	if s.alerts != nil {
		_ = s.alerts.SendInfo("symbol retired", map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
		})
	}
}

// OnOrderUpdate 按交易对路由订单回报。未注册（或已摘除）交易对的
// 回报直接丢弃。
func (s *Supervisor) OnOrderUpdate(upd gateway.OrderUpdate) {
	s.mu.RLock()
	e, ok := s.entries[upd.Symbol]
	s.mu.RUnlock()
	if !ok {
		s.log.Debug("order update for unmanaged symbol dropped",
			zap.String("symbol", upd.Symbol))
		return
	}
	e.mu.Lock()
	e.sym.OnOrderUpdate(upd)
	requested, reason := e.sym.State().RemoveRequested()
	e.mu.Unlock()

	if requested {
		s.remove(upd.Symbol, e, reason)
	}
}

// ActiveSymbols 当前仍被调度的交易对。
func (s *Supervisor) ActiveSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for symbol := range s.entries {
		out = append(out, symbol)
	}
	return out
}

// Wait 阻塞到所有交易对循环退出（ctx 取消或全部摘除）。
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
