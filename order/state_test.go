package order

import "testing"

func TestStatusIsFinal(t *testing.T) {
	for _, s := range []Status{StatusFilled, StatusCanceled, StatusRejected, StatusExpired} {
		if !s.IsFinal() {
			t.Fatalf("%s should be final", s)
		}
	}
	for _, s := range []Status{StatusNew, StatusPartial} {
		if s.IsFinal() {
			t.Fatalf("%s should not be final", s)
		}
	}
}

func TestStatusIsFilledAcceptsClosed(t *testing.T) {
	if !Status("CLOSED").IsFilled() {
		t.Fatal("CLOSED should count as filled")
	}
	if StatusCanceled.IsFilled() {
		t.Fatal("CANCELED is not filled")
	}
}

func TestPositionSideOrderSides(t *testing.T) {
	if Long.CloseSide() != SideSell || Short.CloseSide() != SideBuy {
		t.Fatal("close side wrong")
	}
	if Long.OpenSide() != SideBuy || Short.OpenSide() != SideSell {
		t.Fatal("open side wrong")
	}
}
