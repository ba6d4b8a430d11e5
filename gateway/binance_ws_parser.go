package gateway

import (
	"encoding/json"
	"strconv"
	"time"

	"ladder-trader-go/market"
	"ladder-trader-go/order"
)

// CombinedMessage 对应 binance combined stream 包装。
type CombinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type wsEvent struct {
	Event string          `json:"e"`
	Order json.RawMessage `json:"o"`
}

type wsOrder struct {
	Symbol       string `json:"s"`
	ClientID     string `json:"c"`
	Side         string `json:"S"`
	Type         string `json:"o"`
	PositionSide string `json:"ps"`
	Status       string `json:"X"`
	OrderID      int64  `json:"i"`
	Price        string `json:"p"`
	AvgPrice     string `json:"ap"`
	FilledQty    string `json:"z"`
	ReduceOnly   bool   `json:"R"`
}

type wsBookTicker struct {
	Event   string `json:"e"`
	Symbol  string `json:"s"`
	BestBid string `json:"b"`
	BestAsk string `json:"a"`
}

// ParseOrderUpdate 解析 ORDER_TRADE_UPDATE 消息；不是订单回报时返回 ok=false。
func ParseOrderUpdate(raw []byte) (OrderUpdate, bool) {
	var msg CombinedMessage
	data := raw
	if json.Unmarshal(raw, &msg) == nil && len(msg.Data) > 0 {
		data = msg.Data
	}
	var ev wsEvent
	if json.Unmarshal(data, &ev) != nil || ev.Event != "ORDER_TRADE_UPDATE" {
		return OrderUpdate{}, false
	}
	var o wsOrder
	if json.Unmarshal(ev.Order, &o) != nil || o.Symbol == "" {
		return OrderUpdate{}, false
	}
	id := ""
	if o.OrderID != 0 {
		id = strconv.FormatInt(o.OrderID, 10)
	}
	return OrderUpdate{
		Symbol:       o.Symbol,
		OrderID:      id,
		ClientID:     o.ClientID,
		Side:         order.Side(o.Side),
		PositionSide: order.PositionSide(o.PositionSide),
		Type:         order.Type(o.Type),
		Status:       order.Status(o.Status),
		Price:        parseFloat(o.Price),
		AvgPrice:     parseFloat(o.AvgPrice),
		ExecutedQty:  parseFloat(o.FilledQty),
		ReduceOnly:   o.ReduceOnly,
	}, true
}

// ParseBookTicker 解析 bookTicker 推送为一次行情观察（取 bid/ask 中值）。
func ParseBookTicker(raw []byte) (market.Tick, bool) {
	var msg CombinedMessage
	data := raw
	if json.Unmarshal(raw, &msg) == nil && len(msg.Data) > 0 {
		data = msg.Data
	}
	var bt wsBookTicker
	if json.Unmarshal(data, &bt) != nil || bt.Symbol == "" {
		return market.Tick{}, false
	}
	if bt.Event != "" && bt.Event != "bookTicker" {
		return market.Tick{}, false
	}
	bid := parseFloat(bt.BestBid)
	ask := parseFloat(bt.BestAsk)
	if bid <= 0 || ask <= 0 {
		return market.Tick{}, false
	}
	return market.Tick{Symbol: bt.Symbol, Price: (bid + ask) / 2, Ts: time.Now().UTC()}, true
}
