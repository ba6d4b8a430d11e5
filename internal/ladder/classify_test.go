package ladder

import (
	"testing"

	"ladder-trader-go/gateway"
	"ladder-trader-go/order"
)

func TestForeignSymbolIgnored(t *testing.T) {
	fx := newFakeExchange()
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)

	s.OnOrderUpdate(gateway.OrderUpdate{
		Symbol:   "BTCUSDT",
		ClientID: "A1_11",
		Status:   order.StatusFilled,
		AvgPrice: 1998,
	})

	if got := len(fx.createdRequests()); got != 0 {
		t.Fatalf("foreign symbol produced orders: %d", got)
	}
	if st.Authoritative(order.Long) {
		t.Fatal("foreign symbol mutated state")
	}
}

func TestCanceledStopClearsPendingMarker(t *testing.T) {
	fx := newFakeExchange()
	s, st, _ := newTestStrategy(fx)
	st.SetPendingStop(PendingStop{Pending: true, Tag: "MANUAL_A1_SL_3", OrderID: "77", Pos: order.Long})

	s.OnOrderUpdate(gateway.OrderUpdate{
		Symbol:   "ETHUSDT",
		ClientID: "MANUAL_A1_SL_3",
		Status:   order.StatusCanceled,
	})

	if st.PendingStop().Pending {
		t.Fatal("canceled stop left the pending marker, stop path stays suppressed")
	}
	if !st.Pause().Until.IsZero() {
		t.Fatal("cancellation must not open a pause window")
	}
}

func TestCanceledUnrelatedOrderKeepsPendingMarker(t *testing.T) {
	fx := newFakeExchange()
	s, st, _ := newTestStrategy(fx)
	st.SetPendingStop(PendingStop{Pending: true, Tag: "MANUAL_A1_SL_3", OrderID: "77", Pos: order.Long})

	s.OnOrderUpdate(gateway.OrderUpdate{
		Symbol:   "ETHUSDT",
		OrderID:  "900",
		ClientID: "B1_5",
		Status:   order.StatusCanceled,
	})

	if !st.PendingStop().Pending {
		t.Fatal("unrelated cancellation cleared the pending stop")
	}
}

func TestAutoTakeProfitFillEndsCycle(t *testing.T) {
	fx := newFakeExchange()
	fx.ticker = &gateway.Ticker{Symbol: "ETHUSDT", LastPrice: 2020}
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)
	st.SetAuthoritative(order.Long, true)
	_ = st.Track(order.Long, 'B', "B1_5")

	s.OnOrderUpdate(gateway.OrderUpdate{
		Symbol:     "ETHUSDT",
		ClientID:   "AUTO_TP1_6",
		Status:     order.StatusFilled,
		ReduceOnly: true,
	})

	req, reason := st.RemoveRequested()
	if !req {
		t.Fatal("take-profit fill must request removal")
	}
	if reason == "" {
		t.Fatal("removal without a reason")
	}
	if st.TrackedCount() != 0 || st.Authoritative(order.Long) {
		t.Fatal("state survives the closing reset")
	}
	if !almostEqual(st.RefPrice(), 2020) {
		t.Fatalf("ref = %v, want re-anchored 2020", st.RefPrice())
	}
	if fx.cancelAllCalls == 0 {
		t.Fatal("closing reset must cancel outstanding orders")
	}
}

func TestAutoStopLossFillPausesWithoutRemoval(t *testing.T) {
	fx := newFakeExchange()
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)
	st.SetAuthoritative(order.Short, true)

	s.OnOrderUpdate(gateway.OrderUpdate{
		Symbol:     "ETHUSDT",
		ClientID:   "AUTO_SL2_8",
		Status:     order.StatusFilled,
		ReduceOnly: true,
	})

	if st.Pause().Until.IsZero() {
		t.Fatal("auto stop-loss fill must open a pause window")
	}
	if st.Authoritative(order.Short) {
		t.Fatal("authoritative flag survives stop-loss fill")
	}
	if req, _ := st.RemoveRequested(); req {
		t.Fatal("stop-loss must pause, not retire the symbol")
	}
}

func TestMalformedProtectiveTagFallsBackToReset(t *testing.T) {
	fx := newFakeExchange()
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)
	_ = st.Track(order.Long, 'A', "A1_1")

	// AUTO + SL 但方向数字损坏
	s.OnOrderUpdate(gateway.OrderUpdate{
		Symbol:   "ETHUSDT",
		ClientID: "AUTO_SLX_9",
		Status:   order.StatusFilled,
	})

	if st.TrackedCount() != 0 {
		t.Fatal("malformed protective fill must trigger a full reset")
	}
	if req, _ := st.RemoveRequested(); req {
		t.Fatal("reset fallback must not retire the symbol")
	}
	if !st.Pause().Until.IsZero() {
		t.Fatal("reset fallback must not pause")
	}
}

func TestReduceOnlyFlatRetiresSymbol(t *testing.T) {
	fx := newFakeExchange()
	fx.positions = []gateway.Position{} // 两侧归零
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)

	s.OnOrderUpdate(gateway.OrderUpdate{
		Symbol:     "ETHUSDT",
		OrderID:    "300",
		Status:     order.StatusFilled,
		ReduceOnly: true,
	})

	if req, _ := st.RemoveRequested(); !req {
		t.Fatal("flat after reduce-only fill must request removal")
	}
}

func TestReduceOnlyWithRemainingPositionIgnored(t *testing.T) {
	fx := newFakeExchange()
	fx.positions = []gateway.Position{{Symbol: "ETHUSDT", PositionSide: order.Long, PositionAmt: 2}}
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)

	s.OnOrderUpdate(gateway.OrderUpdate{
		Symbol:     "ETHUSDT",
		OrderID:    "301",
		Status:     order.StatusFilled,
		ReduceOnly: true,
	})

	if req, _ := st.RemoveRequested(); req {
		t.Fatal("partial reduce must not retire the symbol")
	}
}

func TestReduceOnlyPositionsErrorFallsThrough(t *testing.T) {
	fx := newFakeExchange()
	fx.positionsErr = errBoom
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)

	s.OnOrderUpdate(gateway.OrderUpdate{
		Symbol:     "ETHUSDT",
		OrderID:    "302",
		Status:     order.StatusFilled,
		ReduceOnly: true,
	})

	if req, _ := st.RemoveRequested(); req {
		t.Fatal("unknown position state must not retire the symbol")
	}
}

func TestEntryRecognizedFromVenueTag(t *testing.T) {
	fx := newFakeExchange()
	fx.positions = []gateway.Position{{Symbol: "ETHUSDT", PositionSide: order.Short, PositionAmt: -4}}
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)

	// clientOrderId 丢失，只有交易所侧 tag
	s.OnOrderUpdate(gateway.OrderUpdate{
		Symbol:      "ETHUSDT",
		OrderID:     "400",
		Tag:         "a2_33",
		Status:      order.StatusFilled,
		AvgPrice:    2002,
		ExecutedQty: 4,
	})

	if !st.Authoritative(order.Short) {
		t.Fatal("entry fill not recognized from venue tag")
	}
}

func TestManualStopNotMisreadAsEntry(t *testing.T) {
	fx := newFakeExchange()
	s, st, _ := newTestStrategy(fx)
	st.SetRefPrice(2000)
	st.SetPendingStop(PendingStop{Pending: true, Tag: "MANUAL_A1_SL_2", OrderID: "88", Pos: order.Long})

	s.OnOrderUpdate(gateway.OrderUpdate{
		Symbol:     "ETHUSDT",
		ClientID:   "MANUAL_A1_SL_2",
		Status:     order.StatusFilled,
		ReduceOnly: true,
	})

	// 应走止损规则开暂停，而不是当成 A1 入场去链式加仓
	if st.Pause().Until.IsZero() {
		t.Fatal("manual stop fill classified as something else")
	}
	for _, req := range fx.createdRequests() {
		if req.Type == order.TypeLimit && !req.ReduceOnly {
			t.Fatalf("manual stop fill chained an entry: %+v", req)
		}
	}
}
