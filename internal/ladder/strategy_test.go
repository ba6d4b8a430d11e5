package ladder

import (
	"strings"
	"testing"
	"time"

	"ladder-trader-go/gateway"
	"ladder-trader-go/order"
)

func tick(price float64) *gateway.Ticker {
	return &gateway.Ticker{Symbol: "ETHUSDT", LastPrice: price}
}

func TestFirstTickAnchorsAndPlacesEntry(t *testing.T) {
	fx := newFakeExchange()
	s, st, _ := newTestStrategy(fx)

	s.OnTick(tick(2000))

	if ref := st.RefPrice(); !almostEqual(ref, 2000) {
		t.Fatalf("ref = %v, want 2000", ref)
	}
	reqs := fx.createdRequests()
	if len(reqs) != 1 {
		t.Fatalf("created %d orders, want 1", len(reqs))
	}
	req := reqs[0]
	if req.Side != order.SideBuy || req.PositionSide != order.Long || req.Type != order.TypeLimit {
		t.Fatalf("unexpected request %+v", req)
	}
	if !almostEqual(req.Price, 1998.0) {
		t.Fatalf("entry price = %v, want 1998.0", req.Price)
	}
	if req.Quantity <= 0 || req.ReduceOnly {
		t.Fatalf("unexpected sizing %+v", req)
	}
	if !strings.HasPrefix(req.ClientID, "A1_") {
		t.Fatalf("client id = %q", req.ClientID)
	}
	if !st.HasTracked(order.Long, 'A') {
		t.Fatal("first level not tracked")
	}
}

func TestShortOnlyModePlacesShortEntry(t *testing.T) {
	fx := newFakeExchange()
	st := NewSymbolState("ETHUSDT")
	p := testParams()
	p.TradeMode = ModeShortOnly
	s := New(p, st, fx, nil, nil)

	s.OnTick(tick(2000))

	reqs := fx.createdRequests()
	if len(reqs) != 1 {
		t.Fatalf("created %d orders, want 1", len(reqs))
	}
	req := reqs[0]
	if req.Side != order.SideSell || req.PositionSide != order.Short {
		t.Fatalf("unexpected request %+v", req)
	}
	if !almostEqual(req.Price, 2002.0) {
		t.Fatalf("entry price = %v, want 2002.0", req.Price)
	}
	if !strings.HasPrefix(req.ClientID, "A2_") {
		t.Fatalf("client id = %q", req.ClientID)
	}
}

func TestCooldownBlocksReentry(t *testing.T) {
	fx := newFakeExchange()
	s, st, clk := newTestStrategy(fx)

	s.OnTick(tick(2000))
	if got := len(fx.createdRequests()); got != 1 {
		t.Fatalf("created %d, want 1", got)
	}

	// 挂单已消失（空快照清掉追踪），但冷却未过
	s.OnTick(tick(2000))
	if got := len(fx.createdRequests()); got != 1 {
		t.Fatalf("cooldown ignored, created %d", got)
	}
	if st.TrackedCount() != 0 {
		t.Fatal("tracker should be reconciled against empty snapshot")
	}

	clk.Advance(2 * time.Minute)
	s.OnTick(tick(2000))
	if got := len(fx.createdRequests()); got != 2 {
		t.Fatalf("expected re-entry after cooldown, created %d", got)
	}
}

func TestTrackedFirstLevelBlocksReentry(t *testing.T) {
	fx := newFakeExchange()
	s, st, clk := newTestStrategy(fx)

	s.OnTick(tick(2000))
	reqs := fx.createdRequests()
	if len(reqs) != 1 {
		t.Fatalf("created %d, want 1", len(reqs))
	}
	// 挂单仍在交易所快照里
	fx.open = []order.Order{{ID: "1", ClientID: reqs[0].ClientID, Symbol: "ETHUSDT"}}

	clk.Advance(time.Hour)
	s.OnTick(tick(2000))
	if got := len(fx.createdRequests()); got != 1 {
		t.Fatalf("duplicate first entry, created %d", got)
	}
	if !st.HasTracked(order.Long, 'A') {
		t.Fatal("live order lost from tracker")
	}
}

func TestOpenPositionBlocksFirstEntry(t *testing.T) {
	fx := newFakeExchange()
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)
	st.SetAuthoritative(order.Long, true)

	s.OnTick(tick(2000))
	for _, req := range fx.createdRequests() {
		if req.Type == order.TypeLimit && !req.ReduceOnly {
			t.Fatalf("entry placed while position open: %+v", req)
		}
	}
}

func TestPositionsErrorSkipsEntry(t *testing.T) {
	fx := newFakeExchange()
	fx.positionsErr = errBoom
	s, _, _ := newTestStrategy(fx)

	s.OnTick(tick(2000))
	if got := len(fx.createdRequests()); got != 0 {
		t.Fatalf("entry placed despite unknown position state, created %d", got)
	}
}

func TestInvalidTickerSkipsTick(t *testing.T) {
	fx := newFakeExchange()
	fx.ticker = &gateway.Ticker{Symbol: "ETHUSDT", LastPrice: 0}
	s, st, _ := newTestStrategy(fx)

	s.OnTick(nil)
	if st.RefPrice() != 0 {
		t.Fatal("ref anchored from invalid price")
	}
	if got := len(fx.createdRequests()); got != 0 {
		t.Fatalf("orders placed on invalid tick: %d", got)
	}
}

func TestReferenceReanchorsOnMagnitudeDrift(t *testing.T) {
	fx := newFakeExchange()
	fx.positionsErr = errBoom // 只看锚定，不让下单
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)

	s.OnTick(tick(2100))
	if ref := st.RefPrice(); !almostEqual(ref, 2000) {
		t.Fatalf("ref moved on ordinary drift: %v", ref)
	}

	s.OnTick(tick(25_000))
	if ref := st.RefPrice(); !almostEqual(ref, 25_000) {
		t.Fatalf("ref = %v, want re-anchored 25000", ref)
	}
}

func TestOpenOrdersFailureKeepsTracker(t *testing.T) {
	fx := newFakeExchange()
	fx.openErr = errBoom
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)
	if err := st.Track(order.Long, 'A', "A1_1"); err != nil {
		t.Fatal(err)
	}

	s.OnTick(tick(2000))
	if !st.HasTracked(order.Long, 'A') {
		t.Fatal("tracker cleaned against failed snapshot")
	}
}

func TestEnsureProtectionReplacesMissingTP(t *testing.T) {
	fx := newFakeExchange()
	fx.positions = []gateway.Position{{Symbol: "ETHUSDT", PositionSide: order.Long, PositionAmt: 5}}
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)

	s.OnTick(tick(2000))

	var tp order.Request
	var found bool
	for _, req := range fx.createdRequests() {
		if req.Type == order.TypeTakeProfit {
			tp, found = req, true
		}
	}
	if !found {
		t.Fatal("no take-profit placed for unprotected position")
	}
	if !tp.ReduceOnly || tp.Side != order.SideSell || tp.PositionSide != order.Long {
		t.Fatalf("unexpected take-profit %+v", tp)
	}
	if !almostEqual(tp.Quantity, 5) {
		t.Fatalf("tp qty = %v, want full position 5", tp.Quantity)
	}
	// A 档显式止盈偏移 0.01
	if !almostEqual(tp.Price, 2020.0) {
		t.Fatalf("tp price = %v, want 2020.0", tp.Price)
	}
}

func TestStopLossTriggersAndShortCircuits(t *testing.T) {
	fx := newFakeExchange()
	fx.positions = []gateway.Position{{Symbol: "ETHUSDT", PositionSide: order.Long, PositionAmt: 5}}
	// 快照里已有止盈，避免保护补挂混进断言
	fx.open = []order.Order{{ID: "7", ClientID: "AUTO_TP1_1", Symbol: "ETHUSDT"}}
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)

	// 触发线 2000×0.95 = 1900
	s.OnTick(tick(1899))

	if fx.cancelAllCalls == 0 {
		t.Fatal("cancel-all not issued before stop-loss")
	}
	reqs := fx.createdRequests()
	if len(reqs) != 1 {
		t.Fatalf("created %d orders, want only the stop", len(reqs))
	}
	stop := reqs[0]
	if stop.Side != order.SideSell || !stop.ReduceOnly || stop.Type != order.TypeLimit {
		t.Fatalf("unexpected stop request %+v", stop)
	}
	if !almostEqual(stop.Quantity, 5) {
		t.Fatalf("stop qty = %v, want 5", stop.Quantity)
	}
	// 限价 = 触发价 × (1 - 滑点)
	if !almostEqual(stop.Price, 1900*0.995) {
		t.Fatalf("stop price = %v, want %v", stop.Price, 1900*0.995)
	}
	if !strings.HasPrefix(stop.ClientID, "MANUAL_A1_SL_") {
		t.Fatalf("client id = %q", stop.ClientID)
	}

	pending := st.PendingStop()
	if !pending.Pending || pending.Pos != order.Long {
		t.Fatalf("pending stop = %+v", pending)
	}
	if st.Pause().Until != (time.Time{}) {
		t.Fatal("pause must wait for the fill confirmation")
	}
}

func TestPendingStopSuppressesResubmission(t *testing.T) {
	fx := newFakeExchange()
	fx.positions = []gateway.Position{{Symbol: "ETHUSDT", PositionSide: order.Long, PositionAmt: 5}}
	fx.open = []order.Order{{ID: "7", ClientID: "AUTO_TP1_1", Symbol: "ETHUSDT"}}
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)
	st.SetPendingStop(PendingStop{Pending: true, Tag: "MANUAL_A1_SL_1", OrderID: "9", Pos: order.Long})

	s.OnTick(tick(1899))
	if got := len(fx.createdRequests()); got != 0 {
		t.Fatalf("stop resubmitted while pending, created %d", got)
	}
}

func TestShortStopLossDirection(t *testing.T) {
	fx := newFakeExchange()
	fx.positions = []gateway.Position{{Symbol: "ETHUSDT", PositionSide: order.Short, PositionAmt: -3}}
	fx.open = []order.Order{{ID: "7", ClientID: "AUTO_TP2_1", Symbol: "ETHUSDT"}}
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)

	// 空头触发线 2000×1.05 = 2100
	s.OnTick(tick(2101))

	reqs := fx.createdRequests()
	if len(reqs) != 1 {
		t.Fatalf("created %d orders, want 1", len(reqs))
	}
	stop := reqs[0]
	if stop.Side != order.SideBuy || stop.PositionSide != order.Short {
		t.Fatalf("unexpected stop %+v", stop)
	}
	if !almostEqual(stop.Quantity, 3) {
		t.Fatalf("stop qty = %v, want abs(position) 3", stop.Quantity)
	}
	if !almostEqual(stop.Price, 2100*1.005) {
		t.Fatalf("stop price = %v, want %v", stop.Price, 2100*1.005)
	}
	if st.PendingStop().Pos != order.Short {
		t.Fatalf("pending stop = %+v", st.PendingStop())
	}
}
