package order

// Status represents order lifecycle.
type Status string

const (
	StatusNew      Status = "NEW"
	StatusPartial  Status = "PARTIALLY_FILLED"
	StatusFilled   Status = "FILLED"
	StatusCanceled Status = "CANCELED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// IsFinal 判断是否是终态。
func (s Status) IsFinal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// IsFilled reports a fully executed order. Exchanges differ on the exact
// word ("FILLED" vs "CLOSED"), so both map here.
func (s Status) IsFilled() bool {
	return s == StatusFilled || s == "CLOSED"
}

// Side 委托方向 BUY/SELL。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PositionSide 持仓方向（双向持仓模式）。
type PositionSide string

const (
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
)

// Sides lists both position sides in a stable order.
var Sides = [2]PositionSide{Long, Short}

// CloseSide 返回平掉该方向仓位所需的委托方向。
func (p PositionSide) CloseSide() Side {
	if p == Long {
		return SideSell
	}
	return SideBuy
}

// OpenSide 返回开仓方向。
func (p PositionSide) OpenSide() Side {
	if p == Long {
		return SideBuy
	}
	return SideSell
}

// Type classifies the order endpoint path: plain limit orders go through
// the unified endpoint, stop/take-profit types may need the algo endpoint.
type Type string

const (
	TypeLimit      Type = "LIMIT"
	TypeTakeProfit Type = "TAKE_PROFIT"
	TypeStop       Type = "STOP"
)

// IsConditional reports whether the type belongs to the conditional/algo
// capability path.
func (t Type) IsConditional() bool {
	return t == TypeTakeProfit || t == TypeStop
}

// Order holds a simplified order view shared by the core and the gateway.
type Order struct {
	ID           string // exchange-assigned id
	ClientID     string
	Tag          string // exchange-side label, if the venue reports one
	Symbol       string
	Side         Side
	PositionSide PositionSide
	Type         Type
	Price        float64
	Quantity     float64
	ExecutedQty  float64
	AvgPrice     float64
	ReduceOnly   bool
	Status       Status
	LastError    string
}

// CanonicalID 返回用于去重/追踪的规范 id：优先 ClientID，其次交易所 id，
// 最后退回 fallback。
func (o Order) CanonicalID(fallback string) string {
	if o.ClientID != "" {
		return o.ClientID
	}
	if o.ID != "" {
		return o.ID
	}
	return fallback
}
