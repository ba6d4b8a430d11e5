package gateway

import (
	"ladder-trader-go/market"
	"ladder-trader-go/order"
)

// Ticker 行情快照。
type Ticker struct {
	Symbol             string
	LastPrice          float64
	MarkPrice          float64
	OpenPrice          float64
	PriceChangePercent float64
}

// Position 交易所上报的持仓。PositionAmt 带符号：空头为负。
type Position struct {
	Symbol           string
	PositionSide     order.PositionSide
	PositionAmt      float64
	LiquidationPrice float64
}

// OrderUpdate 用户数据流推送的订单回报。
type OrderUpdate struct {
	Symbol       string
	OrderID      string
	ClientID     string
	Tag          string
	Side         order.Side
	PositionSide order.PositionSide
	Type         order.Type
	Status       order.Status
	Price        float64
	AvgPrice     float64
	ExecutedQty  float64
	ReduceOnly   bool
}

// CanonicalID 与 order.Order 相同的规范 id 规则。
func (u OrderUpdate) CanonicalID(fallback string) string {
	if u.ClientID != "" {
		return u.ClientID
	}
	if u.OrderID != "" {
		return u.OrderID
	}
	return fallback
}

// Exchange is the abstraction the ladder core trades through.
//
// Snapshot queries distinguish failure from emptiness: a nil slice with a
// non-nil error means "could not fetch", an empty slice with nil error means
// "fetched, nothing there". Callers must not treat the former as the latter.
type Exchange interface {
	GetTicker(symbol string) (*Ticker, error)
	GetPositions(symbol string) ([]Position, error)
	GetOpenOrders(symbol string) ([]order.Order, error)
	GetKlines(symbol, interval string, limit int) ([]market.Kline, error)
	GetBalance(currency string) (float64, error)

	CreateOrder(req order.Request) (*order.Order, error)
	CancelOrder(id, symbol string) error
	CancelAllOrders(symbol string) error
	SetLeverage(symbol string, leverage int) error
}
