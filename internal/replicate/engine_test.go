package replicate

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/epic1st/shadowfix/internal/classify"
	"github.com/epic1st/shadowfix/internal/execctx"
	"github.com/epic1st/shadowfix/internal/fixproto"
	"github.com/epic1st/shadowfix/internal/refcache"
	"github.com/epic1st/shadowfix/internal/store"
)

type fakeSender struct {
	newOrders []fixproto.NewOrderSingle
	replaces  []fixproto.OrderCancelReplaceRequest
	cancels   []fixproto.OrderCancelRequest
	quotes    []fixproto.QuoteRequest
	offers    []fixproto.LocateOfferResponse
}

func (f *fakeSender) SendNewOrderSingle(_ string, msg fixproto.NewOrderSingle) error {
	f.newOrders = append(f.newOrders, msg)
	return nil
}

func (f *fakeSender) SendOrderCancelReplaceRequest(_ string, msg fixproto.OrderCancelReplaceRequest) error {
	f.replaces = append(f.replaces, msg)
	return nil
}

func (f *fakeSender) SendOrderCancelRequest(_ string, msg fixproto.OrderCancelRequest) error {
	f.cancels = append(f.cancels, msg)
	return nil
}

func (f *fakeSender) SendQuoteRequest(_ string, msg fixproto.QuoteRequest) error {
	f.quotes = append(f.quotes, msg)
	return nil
}

func (f *fakeSender) SendLocateOfferResponse(_ string, msg fixproto.LocateOfferResponse) error {
	f.offers = append(f.offers, msg)
	return nil
}

type fakeLocate struct {
	calls []execctx.ExecReportContext
}

func (f *fakeLocate) HandleShortNewOrder(_ context.Context, ec execctx.ExecReportContext) error {
	f.calls = append(f.calls, ec)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeSender, store.EventStore) {
	t.Helper()
	cache := refcache.New("../../configs/reference_seed.yaml", nil)
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("refcache.Refresh: %v", err)
	}

	s := store.NewMemoryStore()
	sender := &fakeSender{}
	eng := New(Deps{
		Store: s, Cache: cache, Sender: sender,
		Locate: &fakeLocate{}, OrderEntrySessionID: "ORDERENTRY1",
	})
	return eng, sender, s
}

func newOrderReport(clOrdID string) fixproto.ExecutionReport {
	return fixproto.ExecutionReport{
		SessionID: "ORDERENTRY1", OrderID: "BROKER-1", ClOrdID: clOrdID,
		ExecID: "EX-" + clOrdID, ExecType: fixproto.ExecTypeNew, OrdStatus: fixproto.OrdStatusNew,
		Symbol: "AAPL", Side: fixproto.SideBuy, OrdType: fixproto.OrdTypeMarket,
		Account: "PRIMARY1", OrderQty: decimal.NewFromInt(1000), TransactTime: time.Now(),
	}
}

// Scenario 1 (spec.md §8): a primary market order replicates to every
// active shadow with its computed copy quantity.
func TestHandleNewOrderReplicatesMarketOrder(t *testing.T) {
	eng, sender, s := newTestEngine(t)
	ctx := context.Background()

	r := newOrderReport("CL1")
	ec := execctx.New(r, classify.ClassPrimary)

	if err := eng.HandleNewOrder(ctx, ec); err != nil {
		t.Fatalf("HandleNewOrder: %v", err)
	}

	if len(sender.newOrders) != 2 {
		t.Fatalf("expected 2 shadow orders sent, got %d", len(sender.newOrders))
	}

	byClOrdID := map[string]fixproto.NewOrderSingle{}
	for _, o := range sender.newOrders {
		byClOrdID[o.ClOrdID] = o
	}

	shdw1 := byClOrdID["COPY-SHDW1-CL1"]
	if !shdw1.OrderQty.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("SHDW1 (100%%) expected qty 1000, got %s", shdw1.OrderQty)
	}
	shdw2 := byClOrdID["COPY-SHDW2-CL1"]
	if !shdw2.OrderQty.Equal(decimal.NewFromInt(500)) {
		t.Errorf("SHDW2 (0.5x) expected qty 500, got %s", shdw2.OrderQty)
	}
	if !shdw1.Price.IsZero() {
		t.Errorf("expected no Price on a MARKET copy, got %s", shdw1.Price)
	}

	if _, err := s.FindOrderByClOrdID(ctx, "COPY-SHDW1-CL1"); err != nil {
		t.Errorf("expected staged shadow order row for SHDW1, got err %v", err)
	}
}

// Scenario 2 (spec.md §8): a STOP_LIMIT primary new order is persisted
// but never replicated to any shadow.
func TestHandleNewOrderSuppressesStopLimit(t *testing.T) {
	eng, sender, _ := newTestEngine(t)
	ctx := context.Background()

	r := newOrderReport("CL2")
	r.OrdType = fixproto.OrdTypeStopLimit
	r.Price = decimal.NewFromInt(100)
	r.StopPx = decimal.NewFromInt(99)
	ec := execctx.New(r, classify.ClassPrimary)

	if err := eng.HandleNewOrder(ctx, ec); err != nil {
		t.Fatalf("HandleNewOrder: %v", err)
	}
	if len(sender.newOrders) != 0 {
		t.Fatalf("expected no shadow orders for STOP_LIMIT, got %d", len(sender.newOrders))
	}
}

// Scenario 3 (spec.md §8): a replace that keeps the primary ClOrdID
// unchanged must still produce a unique shadow ClOrdID distinct from
// OrigClOrdID, via the chained -R<seq> suffix.
func TestHandleReplacedChainsSuffixWhenPrimaryClOrdIDUnchanged(t *testing.T) {
	eng, sender, _ := newTestEngine(t)
	ctx := context.Background()

	newOrder := newOrderReport("CL3")
	if err := eng.HandleNewOrder(ctx, execctx.New(newOrder, classify.ClassPrimary)); err != nil {
		t.Fatalf("HandleNewOrder: %v", err)
	}

	replace := newOrderReport("CL3")
	replace.ExecID = "EX-CL3-R1"
	replace.ExecType = fixproto.ExecTypeReplaced
	replace.OrdStatus = fixproto.OrdStatusReplaced
	replace.OrigClOrdID = "CL3"
	replace.OrderQty = decimal.NewFromInt(2000)

	if err := eng.HandleReplaced(ctx, execctx.New(replace, classify.ClassPrimary)); err != nil {
		t.Fatalf("HandleReplaced: %v", err)
	}

	if len(sender.replaces) != 2 {
		t.Fatalf("expected 2 shadow replaces, got %d", len(sender.replaces))
	}
	for _, rep := range sender.replaces {
		if rep.ClOrdID == rep.OrigClOrdID {
			t.Errorf("ClOrdID must differ from OrigClOrdID on replace, both were %s", rep.ClOrdID)
		}
		if rep.OrigClOrdID != "COPY-SHDW1-CL3" && rep.OrigClOrdID != "COPY-SHDW2-CL3" {
			t.Errorf("unexpected OrigClOrdID %s", rep.OrigClOrdID)
		}
	}
}

// Scenario 6 (spec.md §8): a duplicate ExecID must not re-trigger
// replication.
func TestHandleNewOrderIsIdempotentOnDuplicateExecID(t *testing.T) {
	eng, sender, _ := newTestEngine(t)
	ctx := context.Background()

	r := newOrderReport("CL4")
	ec := execctx.New(r, classify.ClassPrimary)

	if err := eng.HandleNewOrder(ctx, ec); err != nil {
		t.Fatalf("first HandleNewOrder: %v", err)
	}
	firstCount := len(sender.newOrders)

	if err := eng.HandleNewOrder(ctx, ec); err != nil {
		t.Fatalf("duplicate HandleNewOrder: %v", err)
	}
	if len(sender.newOrders) != firstCount {
		t.Errorf("duplicate ExecID must not re-replicate, count went from %d to %d", firstCount, len(sender.newOrders))
	}
}

// spec.md §8: a duplicate ExecID must leave the Order aggregate
// unchanged even when the resend carries a later TransactTime and
// different field values than the first delivery.
func TestDuplicateExecIDWithLaterTransactTimeLeavesOrderUnchanged(t *testing.T) {
	eng, _, s := newTestEngine(t)
	ctx := context.Background()

	r := newOrderReport("CL-DUP")
	r.OrderQty = decimal.NewFromInt(1000)
	if err := eng.HandleNewOrder(ctx, execctx.New(r, classify.ClassPrimary)); err != nil {
		t.Fatalf("first HandleNewOrder: %v", err)
	}

	before, err := s.FindOrderByClOrdID(ctx, "CL-DUP")
	if err != nil {
		t.Fatalf("FindOrderByClOrdID: %v", err)
	}

	resend := r
	resend.TransactTime = r.TransactTime.Add(time.Hour)
	resend.LastPx = decimal.NewFromInt(123)
	resend.CumQty = decimal.NewFromInt(1000)
	if err := eng.HandleNewOrder(ctx, execctx.New(resend, classify.ClassPrimary)); err != nil {
		t.Fatalf("resend HandleNewOrder: %v", err)
	}

	after, err := s.FindOrderByClOrdID(ctx, "CL-DUP")
	if err != nil {
		t.Fatalf("FindOrderByClOrdID after resend: %v", err)
	}
	if !after.Current.EventTime.Equal(before.Current.EventTime) {
		t.Errorf("duplicate ExecID mutated EventTime: before %v, after %v", before.Current.EventTime, after.Current.EventTime)
	}
	if !after.Current.LastPx.Equal(before.Current.LastPx) {
		t.Errorf("duplicate ExecID mutated LastPx: before %s, after %s", before.Current.LastPx, after.Current.LastPx)
	}
	if !after.Current.CumQty.Equal(before.Current.CumQty) {
		t.Errorf("duplicate ExecID mutated CumQty: before %s, after %s", before.Current.CumQty, after.Current.CumQty)
	}
}

func TestHandleNewOrderDelegatesShortSideToLocate(t *testing.T) {
	eng, sender, _ := newTestEngine(t)
	ctx := context.Background()

	r := newOrderReport("CL5")
	r.Side = fixproto.SideSellShort
	ec := execctx.New(r, classify.ClassPrimary)

	if err := eng.HandleNewOrder(ctx, ec); err != nil {
		t.Fatalf("HandleNewOrder: %v", err)
	}
	if len(sender.newOrders) != 0 {
		t.Errorf("short-sell new orders must not be replicated directly, got %d sends", len(sender.newOrders))
	}
}

// spec.md §4.3 Rule 3: Missing Account -> log warn, append event, do not
// replicate. The event must still land in the store, and no outbound
// shadow messages may be sent.
func TestHandleNewOrderUnknownAccountAppendsWithoutReplicating(t *testing.T) {
	eng, sender, s := newTestEngine(t)
	ctx := context.Background()

	r := newOrderReport("CL-UNKNOWN-1")
	r.Account = "NOSUCHACCOUNT"
	ec := execctx.New(r, classify.ClassPrimary)

	if err := eng.HandleNewOrder(ctx, ec); err != nil {
		t.Fatalf("HandleNewOrder: %v", err)
	}
	if len(sender.newOrders) != 0 {
		t.Errorf("expected no shadow orders for an unknown account, got %d", len(sender.newOrders))
	}
	if _, err := s.FindOrderByClOrdID(ctx, "CL-UNKNOWN-1"); err != nil {
		t.Errorf("expected the primary event to be appended despite the unknown account, got err %v", err)
	}
}

func TestHandleReplacedUnknownAccountAppendsWithoutReplicating(t *testing.T) {
	eng, sender, s := newTestEngine(t)
	ctx := context.Background()

	r := newOrderReport("CL-UNKNOWN-2")
	r.Account = "NOSUCHACCOUNT"
	r.ExecType = fixproto.ExecTypeReplaced
	r.OrdStatus = fixproto.OrdStatusReplaced
	r.OrigClOrdID = "CL-UNKNOWN-2"
	ec := execctx.New(r, classify.ClassPrimary)

	if err := eng.HandleReplaced(ctx, ec); err != nil {
		t.Fatalf("HandleReplaced: %v", err)
	}
	if len(sender.replaces) != 0 {
		t.Errorf("expected no shadow replaces for an unknown account, got %d", len(sender.replaces))
	}
	if _, err := s.FindOrderByClOrdID(ctx, "CL-UNKNOWN-2"); err != nil {
		t.Errorf("expected the primary event to be appended despite the unknown account, got err %v", err)
	}
}

func TestHandleCancelledUnknownAccountAppendsWithoutReplicating(t *testing.T) {
	eng, sender, s := newTestEngine(t)
	ctx := context.Background()

	r := newOrderReport("CL-UNKNOWN-3")
	r.Account = "NOSUCHACCOUNT"
	r.ExecType = fixproto.ExecTypeCancelled
	r.OrdStatus = fixproto.OrdStatusCancelled
	r.OrigClOrdID = "CL-UNKNOWN-3"
	ec := execctx.New(r, classify.ClassPrimary)

	if err := eng.HandleCancelled(ctx, ec); err != nil {
		t.Fatalf("HandleCancelled: %v", err)
	}
	if len(sender.cancels) != 0 {
		t.Errorf("expected no shadow cancels for an unknown account, got %d", len(sender.cancels))
	}
	if _, err := s.FindOrderByClOrdID(ctx, "CL-UNKNOWN-3"); err != nil {
		t.Errorf("expected the primary event to be appended despite the unknown account, got err %v", err)
	}
}

func TestHandleFillUnknownAccountAppendsWithoutError(t *testing.T) {
	eng, _, s := newTestEngine(t)
	ctx := context.Background()

	r := newOrderReport("CL-UNKNOWN-4")
	r.Account = "NOSUCHACCOUNT"
	r.ExecType = fixproto.ExecTypeFill
	r.OrdStatus = fixproto.OrdStatusFilled
	ec := execctx.New(r, classify.ClassPrimary)

	if err := eng.HandleFill(ctx, ec); err != nil {
		t.Fatalf("HandleFill: %v", err)
	}
	if _, err := s.FindOrderByClOrdID(ctx, "CL-UNKNOWN-4"); err != nil {
		t.Errorf("expected the primary event to be appended despite the unknown account, got err %v", err)
	}
}

func TestHandleCancelledAllowsEqualClOrdIDs(t *testing.T) {
	eng, sender, _ := newTestEngine(t)
	ctx := context.Background()

	newOrder := newOrderReport("CL6")
	if err := eng.HandleNewOrder(ctx, execctx.New(newOrder, classify.ClassPrimary)); err != nil {
		t.Fatalf("HandleNewOrder: %v", err)
	}

	cancel := newOrderReport("CL6")
	cancel.ExecID = "EX-CL6-CXL"
	cancel.ExecType = fixproto.ExecTypeCancelled
	cancel.OrdStatus = fixproto.OrdStatusCancelled
	cancel.OrigClOrdID = "CL6"

	if err := eng.HandleCancelled(ctx, execctx.New(cancel, classify.ClassPrimary)); err != nil {
		t.Fatalf("HandleCancelled: %v", err)
	}
	if len(sender.cancels) != 2 {
		t.Fatalf("expected 2 shadow cancels, got %d", len(sender.cancels))
	}
	for _, c := range sender.cancels {
		if c.ClOrdID != c.OrigClOrdID {
			t.Errorf("cancel allows equal ClOrdID/OrigClOrdID, got %s vs %s", c.ClOrdID, c.OrigClOrdID)
		}
	}
}
