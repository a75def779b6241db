package locate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/epic1st/shadowfix/internal/classify"
	"github.com/epic1st/shadowfix/internal/domain"
	"github.com/epic1st/shadowfix/internal/execctx"
	"github.com/epic1st/shadowfix/internal/fixproto"
	"github.com/epic1st/shadowfix/internal/refcache"
	"github.com/epic1st/shadowfix/internal/store"
)

type fakeSender struct {
	newOrders []fixproto.NewOrderSingle
	quotes    []fixproto.QuoteRequest
	offers    []fixproto.LocateOfferResponse
}

func (f *fakeSender) SendNewOrderSingle(_ string, msg fixproto.NewOrderSingle) error {
	f.newOrders = append(f.newOrders, msg)
	return nil
}

func (f *fakeSender) SendOrderCancelReplaceRequest(_ string, _ fixproto.OrderCancelReplaceRequest) error {
	return nil
}

func (f *fakeSender) SendOrderCancelRequest(_ string, _ fixproto.OrderCancelRequest) error {
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

type fakeAlertSink struct {
	messages []string
}

func (f *fakeAlertSink) Notify(_ context.Context, message string) {
	f.messages = append(f.messages, message)
}

func newTestEngine(t *testing.T) (*Engine, *fakeSender, store.EventStore, *fakeAlertSink) {
	t.Helper()
	cache := refcache.New("../../configs/reference_seed.yaml", nil)
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("refcache.Refresh: %v", err)
	}

	s := store.NewMemoryStore()
	sender := &fakeSender{}
	alerts := &fakeAlertSink{}
	eng := New(Deps{
		Store: s, Cache: cache, Sender: sender, Alerts: alerts,
		OrderEntrySessionID: "ORDERENTRY1", LocateTimeout: 30 * time.Second,
	})
	return eng, sender, s, alerts
}

func seedPrimaryShortOrder(t *testing.T, s store.EventStore, clOrdID string) fixproto.ExecutionReport {
	t.Helper()

	r := fixproto.ExecutionReport{
		SessionID: "ORDERENTRY1", OrderID: "BROKER-XYZ", ClOrdID: clOrdID,
		ExecID: "EX-" + clOrdID, ExecType: fixproto.ExecTypeNew, OrdStatus: fixproto.OrdStatusNew,
		Symbol: "TSLA", Side: fixproto.SideSellShort, OrdType: fixproto.OrdTypeMarket,
		Account: "PRIMARY1", OrderQty: decimal.NewFromInt(200), TransactTime: time.Now(),
	}
	ev := domain.OrderEvent{
		ExecID: r.ExecID, ExecType: r.ExecType, OrdStatus: r.OrdStatus,
		FixOrderID: r.OrderID, FixClOrdID: r.ClOrdID, Symbol: r.Symbol, Side: r.Side,
		Qty: r.OrderQty, TransactTime: r.TransactTime,
	}
	if _, err := s.UpsertOrderFromEvent(context.Background(), ev, uuid.New(), ""); err != nil {
		t.Fatalf("seeding primary order: %v", err)
	}
	return r
}

// Scenario 4 (spec.md §8): short-sell with a TYPE_0 locate route runs
// quote -> offer -> locate BUY -> confirmation -> deferred release.
func TestShortSellTypeZeroLocateFullFlow(t *testing.T) {
	eng, sender, s, _ := newTestEngine(t)
	ctx := context.Background()

	r := seedPrimaryShortOrder(t, s, "XYZ")
	if err := eng.HandleShortNewOrder(ctx, execctx.New(r, classify.ClassPrimary)); err != nil {
		t.Fatalf("HandleShortNewOrder: %v", err)
	}

	if len(sender.quotes) != 2 {
		t.Fatalf("expected 2 quote requests (SHDW1, SHDW2), got %d", len(sender.quotes))
	}
	if len(sender.newOrders) != 0 {
		t.Fatalf("expected no shadow orders before a locate is confirmed, got %d", len(sender.newOrders))
	}

	var shdw1QuoteReqID string
	for _, q := range sender.quotes {
		if q.Account == "SHDW1" {
			shdw1QuoteReqID = q.QuoteReqID
		}
	}
	if shdw1QuoteReqID == "" {
		t.Fatal("expected a quote request for SHDW1")
	}

	lr, err := s.FindLocateRequest(ctx, shdw1QuoteReqID)
	if err != nil {
		t.Fatalf("FindLocateRequest: %v", err)
	}
	if lr.Status != domain.LocateStatusPending {
		t.Fatalf("expected PENDING locate request, got %s", lr.Status)
	}

	resp := fixproto.QuoteResponse{
		QuoteReqID: shdw1QuoteReqID, Symbol: "TSLA",
		OfferPx: decimal.NewFromFloat(0.10), OfferSize: decimal.NewFromInt(200),
	}
	if err := eng.HandleQuoteResponse(ctx, resp); err != nil {
		t.Fatalf("HandleQuoteResponse: %v", err)
	}
	if len(sender.newOrders) != 1 {
		t.Fatalf("expected 1 locate BUY order sent, got %d", len(sender.newOrders))
	}
	locateBuy := sender.newOrders[0]
	if locateBuy.ClOrdID != "COPY-SHDW1-XYZ-LOC" {
		t.Errorf("expected locate BUY ClOrdID COPY-SHDW1-XYZ-LOC, got %s", locateBuy.ClOrdID)
	}
	if locateBuy.Side != fixproto.SideBuy {
		t.Errorf("expected locate order Side=BUY, got %s", locateBuy.Side)
	}

	confirm := fixproto.ExecutionReport{
		SessionID: "ORDERENTRY1", ClOrdID: shdw1QuoteReqID,
		ExecID: "EX-CONFIRM", ExecType: fixproto.ExecTypeCalculated, OrdStatus: fixproto.OrdStatusCalculated,
		Symbol: "TSLA", TransactTime: time.Now(),
	}
	if err := eng.HandleCalculated(ctx, execctx.New(confirm, classify.ClassUnknownAccount)); err != nil {
		t.Fatalf("HandleCalculated: %v", err)
	}

	if len(sender.newOrders) != 2 {
		t.Fatalf("expected 2 outbound orders (locate BUY + released short), got %d", len(sender.newOrders))
	}
	released := sender.newOrders[1]
	if released.ClOrdID != "COPY-SHDW1-XYZ" {
		t.Errorf("expected released shadow order ClOrdID COPY-SHDW1-XYZ, got %s", released.ClOrdID)
	}
	if released.Side != fixproto.SideSellShort {
		t.Errorf("expected released shadow order Side=SELL_SHORT, got %s", released.Side)
	}
	if !released.OrderQty.Equal(decimal.NewFromInt(200)) {
		t.Errorf("expected released shadow order qty 200, got %s", released.OrderQty)
	}

	lr, err = s.FindLocateRequest(ctx, shdw1QuoteReqID)
	if err != nil {
		t.Fatalf("FindLocateRequest after confirm: %v", err)
	}
	if lr.Status != domain.LocateStatusApprovedFull {
		t.Errorf("expected APPROVED_FULL, got %s", lr.Status)
	}
}

// Scenario 5 (spec.md §8): a locate with no broker response within the
// timeout expires and its draft shadow order is cancelled, with no
// sell-short shadow order ever emitted.
func TestLocateExpiryCancelsDraftAndAlerts(t *testing.T) {
	eng, sender, s, alerts := newTestEngine(t)
	ctx := context.Background()

	r := seedPrimaryShortOrder(t, s, "P1")
	if err := eng.HandleShortNewOrder(ctx, execctx.New(r, classify.ClassPrimary)); err != nil {
		t.Fatalf("HandleShortNewOrder: %v", err)
	}

	overdue, err := s.FindPendingLocatesOlderThan(ctx, time.Now())
	if err != nil {
		t.Fatalf("FindPendingLocatesOlderThan: %v", err)
	}
	if len(overdue) != 0 {
		t.Fatalf("locate requests should not be overdue immediately, got %d", len(overdue))
	}

	// Backdate both locate requests past the 30s timeout.
	for _, account := range []string{"SHDW1", "SHDW2"} {
		q := findQuoteForAccount(t, sender, account)
		lr, err := s.FindLocateRequest(ctx, q)
		if err != nil {
			t.Fatalf("FindLocateRequest(%s): %v", account, err)
		}
		lr.CreatedAt = time.Now().Add(-time.Minute)
		if _, err := s.SaveLocateRequest(ctx, lr); err != nil {
			t.Fatalf("backdating locate request: %v", err)
		}
	}

	eng.expireOverdueLocates(ctx)

	shdw1Quote := findQuoteForAccount(t, sender, "SHDW1")
	lr, err := s.FindLocateRequest(ctx, shdw1Quote)
	if err != nil {
		t.Fatalf("FindLocateRequest after expiry: %v", err)
	}
	if lr.Status != domain.LocateStatusExpired {
		t.Errorf("expected EXPIRED, got %s", lr.Status)
	}

	draft, err := s.FindOrderByClOrdID(ctx, "COPY-SHDW1-P1")
	if err != nil {
		t.Fatalf("FindOrderByClOrdID: %v", err)
	}
	if draft.RowStatus != domain.OrderRowStatusCancelled {
		t.Errorf("expected draft shadow order CANCELLED, got %s", draft.RowStatus)
	}

	if len(sender.newOrders) != 0 {
		t.Errorf("expected no sell-short shadow order ever emitted, got %d", len(sender.newOrders))
	}
	if len(alerts.messages) == 0 {
		t.Error("expected an ops alert on locate expiry")
	}
}

func findQuoteForAccount(t *testing.T, sender *fakeSender, account string) string {
	t.Helper()
	for _, q := range sender.quotes {
		if q.Account == account {
			return q.QuoteReqID
		}
	}
	t.Fatalf("no quote request found for account %s", account)
	return ""
}
