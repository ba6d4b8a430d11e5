package gateway

import (
	"testing"

	"ladder-trader-go/order"
)

func TestParseOrderUpdateCombined(t *testing.T) {
	raw := []byte(`{"stream":"abc","data":{"e":"ORDER_TRADE_UPDATE","o":{"s":"ETHUSDT","c":"A1_77","S":"BUY","o":"LIMIT","ps":"LONG","X":"FILLED","i":123456,"p":"1998.0","ap":"1998.0","z":"0.5","R":false}}}`)

	upd, ok := ParseOrderUpdate(raw)
	if !ok {
		t.Fatal("expected order update")
	}
	if upd.Symbol != "ETHUSDT" || upd.ClientID != "A1_77" || upd.OrderID != "123456" {
		t.Fatalf("bad identity fields: %+v", upd)
	}
	if upd.Status != order.StatusFilled || upd.PositionSide != order.Long {
		t.Fatalf("bad status/side: %+v", upd)
	}
	if upd.AvgPrice != 1998.0 || upd.ExecutedQty != 0.5 {
		t.Fatalf("bad fill fields: %+v", upd)
	}
}

func TestParseOrderUpdateRejectsOtherEvents(t *testing.T) {
	if _, ok := ParseOrderUpdate([]byte(`{"e":"ACCOUNT_UPDATE","a":{}}`)); ok {
		t.Fatal("account update must not parse as order update")
	}
	if _, ok := ParseOrderUpdate([]byte(`not json`)); ok {
		t.Fatal("garbage must not parse")
	}
}

func TestParseBookTicker(t *testing.T) {
	raw := []byte(`{"stream":"ethusdt@bookTicker","data":{"e":"bookTicker","s":"ETHUSDT","b":"1999.5","a":"2000.5"}}`)
	tick, ok := ParseBookTicker(raw)
	if !ok {
		t.Fatal("expected tick")
	}
	if tick.Symbol != "ETHUSDT" || tick.Price != 2000.0 {
		t.Fatalf("bad tick: %+v", tick)
	}
}

func TestParseBookTickerRejectsInvalid(t *testing.T) {
	if _, ok := ParseBookTicker([]byte(`{"e":"bookTicker","s":"ETHUSDT","b":"0","a":"2000"}`)); ok {
		t.Fatal("zero bid must not produce a tick")
	}
}
