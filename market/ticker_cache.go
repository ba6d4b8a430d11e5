package market

import (
	"sync"
	"time"
)

// Tick 最近一次行情观察。
type Tick struct {
	Symbol string
	Price  float64
	Ts     time.Time
}

// TickerCache holds the last observed tick per symbol. The websocket push
// path writes here; the trading loop may read it as an advisory snapshot.
// Nothing in this cache ever places or cancels orders.
type TickerCache struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

func NewTickerCache() *TickerCache {
	return &TickerCache{ticks: make(map[string]Tick)}
}

// Update 记录一次行情推送；非法价格直接丢弃。
func (c *TickerCache) Update(symbol string, price float64, ts time.Time) {
	if symbol == "" || price <= 0 {
		return
	}
	c.mu.Lock()
	c.ticks[symbol] = Tick{Symbol: symbol, Price: price, Ts: ts}
	c.mu.Unlock()
}

// Last returns the most recent tick for symbol, if any.
func (c *TickerCache) Last(symbol string) (Tick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.ticks[symbol]
	return t, ok
}
