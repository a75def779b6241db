package outbound

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/epic1st/shadowfix/internal/fixproto"
)

func TestTruncateClOrdIDKeepsRightmost19(t *testing.T) {
	long := "COPY-SHADOWACCOUNT1-PRIMARYCLORDID12345"
	got := TruncateClOrdID(long)
	if len(got) != 19 {
		t.Fatalf("len(got) = %d, want 19", len(got))
	}
	if !strings.HasSuffix(long, got) {
		t.Errorf("expected %q to be the rightmost suffix of %q", got, long)
	}
}

func TestTruncateClOrdIDLeavesShortIDsUnchanged(t *testing.T) {
	short := "COPY-S1-AB"
	if got := TruncateClOrdID(short); got != short {
		t.Errorf("TruncateClOrdID(%q) = %q, want unchanged", short, got)
	}
}

func TestNewOrderSingleOmitsPriceForMarket(t *testing.T) {
	msg := NewOrderSingle(NewOrderParams{
		ClOrdID: "COPY-S1-ABC", OrdType: fixproto.OrdTypeMarket,
		Price: decimal.NewFromInt(150),
	})
	if !msg.Price.IsZero() {
		t.Errorf("expected Price to be omitted for MARKET, got %s", msg.Price)
	}
	if msg.HandlInst != "1" {
		t.Errorf("expected HandlInst=1, got %s", msg.HandlInst)
	}
	if msg.TimeInForce != fixproto.TIFDay {
		t.Errorf("expected TIF to default to DAY, got %s", msg.TimeInForce)
	}
}

func TestNewOrderSingleIncludesPriceForLimit(t *testing.T) {
	msg := NewOrderSingle(NewOrderParams{
		ClOrdID: "COPY-S1-ABC", OrdType: fixproto.OrdTypeLimit,
		Price: decimal.NewFromFloat(150.25),
	})
	if !msg.Price.Equal(decimal.NewFromFloat(150.25)) {
		t.Errorf("expected Price to be set for LIMIT, got %s", msg.Price)
	}
}

func TestNewOrderSingleIncludesStopPxForStop(t *testing.T) {
	msg := NewOrderSingle(NewOrderParams{
		ClOrdID: "COPY-S1-ABC", OrdType: fixproto.OrdTypeStop,
		StopPx: decimal.NewFromInt(100),
	})
	if !msg.StopPx.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected StopPx to be set for STOP, got %s", msg.StopPx)
	}
	if !msg.Price.IsZero() {
		t.Errorf("expected Price to be omitted for STOP, got %s", msg.Price)
	}
}

func TestOrderCancelReplaceRequestRejectsEqualIDs(t *testing.T) {
	msg := OrderCancelReplaceRequest(ReplaceParams{
		ClOrdID: "COPY-S1-ABC", OrigClOrdID: "COPY-S1-ABC",
	})
	if msg.ClOrdID == msg.OrigClOrdID {
		t.Fatalf("OrigClOrdID must never equal ClOrdID, got both = %s", msg.ClOrdID)
	}
}

func TestOrderCancelRequestAllowsEqualIDs(t *testing.T) {
	msg := OrderCancelRequest(CancelParams{ClOrdID: "COPY-S1-ABC", OrigClOrdID: "COPY-S1-ABC"})
	if msg.ClOrdID != msg.OrigClOrdID {
		t.Errorf("cancel allows equal ClOrdID/OrigClOrdID, got %s vs %s", msg.ClOrdID, msg.OrigClOrdID)
	}
}

func TestResolveTargetRoutePrefersLocateRouteForLocateOrders(t *testing.T) {
	got := ResolveTargetRoute(true, "LOCATE_ROUTE", "COPY_ROUTE", "ORIGINAL")
	if got != "LOCATE_ROUTE" {
		t.Errorf("got %s, want LOCATE_ROUTE", got)
	}
}

func TestResolveTargetRouteFallsBackToOriginal(t *testing.T) {
	got := ResolveTargetRoute(false, "", "", "ORIGINAL")
	if got != "ORIGINAL" {
		t.Errorf("got %s, want ORIGINAL", got)
	}
}
