package ladder

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"ladder-trader-go/gateway"
	"ladder-trader-go/market"
	"ladder-trader-go/order"
)

// fakeExchange 可脚本化的交易所替身，记录全部写操作。
type fakeExchange struct {
	mu sync.Mutex

	ticker       *gateway.Ticker
	tickerErr    error
	positions    []gateway.Position
	positionsErr error
	open         []order.Order
	openErr      error
	klines       []market.Kline
	klinesErr    error
	balance      float64
	balanceErr   error

	createErr      error
	created        []order.Request
	canceled       []string
	cancelAllCalls int
	leverageCalls  int

	nextID int
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		ticker:  &gateway.Ticker{Symbol: "ETHUSDT", LastPrice: 2000},
		balance: 10_000,
	}
}

func (f *fakeExchange) GetTicker(symbol string) (*gateway.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tickerErr != nil {
		return nil, f.tickerErr
	}
	return f.ticker, nil
}

func (f *fakeExchange) GetPositions(symbol string) ([]gateway.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.positionsErr != nil {
		return nil, f.positionsErr
	}
	return f.positions, nil
}

func (f *fakeExchange) GetOpenOrders(symbol string) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.open, nil
}

func (f *fakeExchange) GetKlines(symbol, interval string, limit int) ([]market.Kline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.klinesErr != nil {
		return nil, f.klinesErr
	}
	return f.klines, nil
}

func (f *fakeExchange) GetBalance(currency string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeExchange) CreateOrder(req order.Request) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	f.nextID++
	return &order.Order{
		ID:           strconv.Itoa(f.nextID),
		ClientID:     req.ClientID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		PositionSide: req.PositionSide,
		Type:         req.Type,
		Price:        req.Price,
		Quantity:     req.Quantity,
		ReduceOnly:   req.ReduceOnly,
		Status:       order.StatusNew,
	}, nil
}

func (f *fakeExchange) CancelOrder(id, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, id)
	return nil
}

func (f *fakeExchange) CancelAllOrders(symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelAllCalls++
	return nil
}

func (f *fakeExchange) SetLeverage(symbol string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leverageCalls++
	return nil
}

func (f *fakeExchange) createdRequests() []order.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]order.Request, len(f.created))
	copy(out, f.created)
	return out
}

func (f *fakeExchange) resetRecorded() {
	f.mu.Lock()
	f.created = nil
	f.canceled = nil
	f.cancelAllCalls = 0
	f.mu.Unlock()
}

var _ gateway.Exchange = (*fakeExchange)(nil)
var errBoom = errors.New("boom")

// testParams 固定测试参数：两档阶梯，偏移全部显式。
func testParams() Params {
	levels := Levels{
		Long: []Level{
			{Tag: 'A', Enabled: true, EntryOffset: -0.001, TPOffset: 0.01, TPOffsetSet: true, SizeFactor: 1},
			{Tag: 'B', Enabled: true, EntryOffset: -0.075, TPOffset: 0.005, TPOffsetSet: true, SizeFactor: 1},
		},
		Short: []Level{
			{Tag: 'A', Enabled: true, EntryOffset: 0.001, TPOffset: -0.01, TPOffsetSet: true, SizeFactor: 1},
			{Tag: 'B', Enabled: true, EntryOffset: 0.075, TPOffset: -0.005, TPOffsetSet: true, SizeFactor: 1},
		},
	}
	return Params{
		Symbol:              "ETHUSDT",
		QuoteCurrency:       "USDT",
		TradeMode:           ModeLongOnly,
		FirstEntryOffset:    0.001,
		StepPct:             0.075,
		Cooldown:            time.Minute,
		PauseDuration:       time.Hour,
		VolThreshold:        0.03,
		VolInterval:         "1m",
		VolCandles:          5,
		InternalStops:       true,
		StopLossOffsetLong:  -0.05,
		StopLossOffsetShort: 0.05,
		StopSlippage:        0.005,
		TPOffsetLong:        0.01,
		TPOffsetShort:       -0.01,
		Leverage:            10,
		FundingRatio:        0.1,
		MinQty:              0.001,
		QtyStep:             0.001,
		MinNotional:         5,
		MaxCreateAttempts:   2,
		Levels:              levels,
	}
}

// newTestStrategy 固定时钟起点，避免与真实时间耦合。
func newTestStrategy(fx *fakeExchange) (*Strategy, *SymbolState, *fakeClock) {
	st := NewSymbolState("ETHUSDT")
	s := New(testParams(), st, fx, nil, nil)
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s.now = clk.Now
	return s, st, clk
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
