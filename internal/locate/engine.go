// Package locate is the Locate Protocol Engine (spec.md §4.5): short
// sell orders never replicate directly through internal/replicate;
// instead this package routes them through a broker short-locate
// workflow (quote/offer, accept/reject) and releases the deferred
// shadow orders only once a locate is confirmed.
package locate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/epic1st/shadowfix/internal/copyrule"
	"github.com/epic1st/shadowfix/internal/domain"
	"github.com/epic1st/shadowfix/internal/execctx"
	"github.com/epic1st/shadowfix/internal/fixproto"
	"github.com/epic1st/shadowfix/internal/logging"
	"github.com/epic1st/shadowfix/internal/metrics"
	"github.com/epic1st/shadowfix/internal/outbound"
	"github.com/epic1st/shadowfix/internal/refcache"
	"github.com/epic1st/shadowfix/internal/store"
)

// AlertSink receives one-line operational notices the engine has no
// other way to surface (spec.md's locate-timeout visibility gap,
// SPEC_FULL.md §4.16). A nil sink is a silent no-op.
type AlertSink interface {
	Notify(ctx context.Context, message string)
}

// Deps bundles Engine's collaborators.
type Deps struct {
	Store               store.EventStore
	Cache               *refcache.Cache
	Sender              fixproto.Sender
	Logger              *logging.Logger
	Decision            DecisionService
	Alerts              AlertSink
	OrderEntrySessionID string
	LocateTimeout       time.Duration // default 30s
}

// Engine implements the short-sell locate workflow of spec.md §4.5.
type Engine struct {
	store  store.EventStore
	cache  *refcache.Cache
	sender fixproto.Sender
	logger *logging.Logger

	decision DecisionService
	alerts   AlertSink
	mapper   *QuoteReqIdMapper

	orderEntrySessionID string
	locateTimeout       time.Duration
}

// New builds a locate Engine.
func New(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := d.LocateTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		store:               d.Store,
		cache:               d.Cache,
		sender:              d.Sender,
		logger:              logger.With(logging.Component("locate")),
		decision:            d.Decision,
		alerts:              d.Alerts,
		mapper:              NewQuoteReqIdMapper(),
		orderEntrySessionID: d.OrderEntrySessionID,
		locateTimeout:       timeout,
	}
}

func shadowClOrdID(shadowAccountNumber, primaryClOrdID string) string {
	return fmt.Sprintf("COPY-%s-%s", shadowAccountNumber, primaryClOrdID)
}

// HandleShortNewOrder implements spec.md §4.5's entry point: for a
// primary short-side NewOrder, select a locate route per shadow, emit a
// QuoteRequest, persist a PENDING LocateRequest, and stage a draft
// shadow order to be released only once the locate is confirmed.
func (e *Engine) HandleShortNewOrder(ctx context.Context, ec execctx.ExecReportContext) error {
	r := ec.Report
	log := e.logger.With(logging.FixClOrdID(r.ClOrdID), logging.Symbol(r.Symbol))

	account, ok := e.cache.AccountByNumber(r.Account)
	if !ok {
		return fmt.Errorf("locate: unknown primary account %s", r.Account)
	}

	primaryOrder, err := e.store.FindOrderByClOrdID(ctx, r.ClOrdID)
	if err != nil {
		log.Error("locate: primary order not yet materialized", logging.Err(err))
		return err
	}

	rules := e.cache.CopyRulesForPrimary(account.ID)
	resolve := func(id uuid.UUID) (domain.Account, bool) { return e.cache.Account(id) }
	plans := copyrule.Evaluate(rules, resolve, r.OrdType, r.OrderQty)

	for _, plan := range plans {
		if err := e.beginLocate(ctx, primaryOrder, plan, r); err != nil {
			log.Error("locate: failed to begin locate workflow for shadow",
				logging.String("shadowAccount", plan.ShadowAccount.Number), logging.Err(err))
		}
	}
	return nil
}

func (e *Engine) beginLocate(ctx context.Context, primaryOrder domain.Order, plan copyrule.Plan, r fixproto.ExecutionReport) error {
	route, ok := e.resolveLocateRoute(plan)
	if !ok {
		return fmt.Errorf("no active locate route configured for broker %s", plan.Rule.CopyBroker)
	}

	quoteReqID := e.mapper.New(plan.ShadowAccount.Number, r.ClOrdID, route.Name)

	draft := domain.Order{
		ID: uuid.New(), AccountID: plan.ShadowAccount.ID, PrimaryClOrdID: r.ClOrdID,
		FixClOrdID: shadowClOrdID(plan.ShadowAccount.Number, r.ClOrdID), Symbol: r.Symbol,
		Side: r.Side, OrdType: r.OrdType, Qty: plan.CopyQty, Price: r.Price, StopPx: r.StopPx,
		ExDestination: route.Name, RowStatus: domain.OrderRowStatusDraft, CreatedAt: time.Now(),
	}
	if _, err := e.store.UpsertShadowOrder(ctx, draft); err != nil {
		return fmt.Errorf("persisting draft shadow order: %w", err)
	}

	lr := domain.LocateRequest{
		ID: uuid.New(), OrderID: primaryOrder.ID, AccountID: plan.ShadowAccount.ID,
		Symbol: r.Symbol, Quantity: plan.CopyQty, Status: domain.LocateStatusPending,
		FixQuoteReqID: quoteReqID, LocateRoute: route.Name, CreatedAt: time.Now(),
	}
	if _, err := e.store.SaveLocateRequest(ctx, lr); err != nil {
		return fmt.Errorf("persisting locate request: %w", err)
	}
	metrics.RecordLocateTransition(string(domain.LocateStatusPending))

	msg := outbound.QuoteRequest(outbound.QuoteRequestParams{
		QuoteReqID: quoteReqID, Symbol: r.Symbol, Side: r.Side, Account: plan.ShadowAccount.Number,
		OrderQty: plan.CopyQty, ExDestination: route.Name, TransactTime: time.Now(),
	})
	return e.sender.SendQuoteRequest(e.orderEntrySessionID, msg)
}

// resolveLocateRoute implements spec.md §4.5 step 1: the CopyRule's own
// configured LocateRoute wins when set; otherwise fall back to the
// first active locate-eligible route on the rule's broker, by priority asc.
func (e *Engine) resolveLocateRoute(plan copyrule.Plan) (domain.Route, bool) {
	if plan.Rule.LocateRoute != "" {
		if route, ok := e.cache.RouteByName(plan.Rule.LocateRoute); ok {
			return route, true
		}
	}
	broker, ok := e.cache.BrokerByCode(plan.Rule.CopyBroker)
	if !ok {
		return domain.Route{}, false
	}
	routes := e.cache.LocateRoutesForBroker(broker.ID)
	if len(routes) == 0 {
		return domain.Route{}, false
	}
	return routes[0], true
}

// HandleQuoteResponse implements the TYPE_0/TYPE_2 branch of spec.md
// §4.5: the broker's MsgType=S reply carries the offer, which the
// engine records and immediately follows with the locate BUY order.
func (e *Engine) HandleQuoteResponse(ctx context.Context, resp fixproto.QuoteResponse) error {
	mapping, ok := e.mapper.Resolve(resp.QuoteReqID)
	if !ok {
		e.logger.Error("locate: unresolvable QuoteReqID on quote response", logging.String("quoteReqId", resp.QuoteReqID))
		return fmt.Errorf("unresolvable QuoteReqID %s", resp.QuoteReqID)
	}

	lr, err := e.store.FindLocateRequest(ctx, resp.QuoteReqID)
	if err != nil {
		e.logger.Error("locate: no PENDING LocateRequest for quote response", logging.Err(err))
		return err
	}

	lr.OfferPx = resp.OfferPx
	lr.OfferSize = resp.OfferSize
	lr.ApprovedQty = resp.OfferSize
	lr.LocateRoute = mapping.Route
	lr.UpdatedAt = time.Now()
	if _, err := e.store.SaveLocateRequest(ctx, lr); err != nil {
		return fmt.Errorf("recording quote offer: %w", err)
	}

	// The locate BUY carries the canonical ClOrdID suffixed "-LOC": the
	// canonical id itself is reserved for the deferred sell-short row
	// that is released once the locate is confirmed (scenario 4, §8),
	// so the two orders never collide on ClOrdID.
	locateBuyClOrdID := outbound.TruncateClOrdID(shadowClOrdID(mapping.ShadowAccountNumber, mapping.PrimaryClOrdID) + "-LOC")
	if _, err := e.store.FindOrderByClOrdID(ctx, locateBuyClOrdID); err == nil {
		e.logger.Info("locate order already exists, skipping duplicate emission", logging.String("shadowClOrdId", locateBuyClOrdID))
		return nil
	}

	msg := outbound.NewOrderSingle(outbound.NewOrderParams{
		ClOrdID: locateBuyClOrdID, Account: mapping.ShadowAccountNumber, Symbol: resp.Symbol,
		Side: fixproto.SideBuy, OrdType: fixproto.OrdTypeMarket, TimeInForce: fixproto.TIFDay,
		OrderQty: resp.OfferSize, ExDestination: mapping.Route, TransactTime: time.Now(),
	})
	if err := e.sender.SendNewOrderSingle(e.orderEntrySessionID, msg); err != nil {
		return fmt.Errorf("sending locate order: %w", err)
	}

	shadowAccount, _ := e.cache.AccountByNumber(mapping.ShadowAccountNumber)
	staged := domain.Order{
		ID: uuid.New(), AccountID: shadowAccount.ID, PrimaryClOrdID: mapping.PrimaryClOrdID,
		FixClOrdID: locateBuyClOrdID, Symbol: resp.Symbol, Side: fixproto.SideBuy, OrdType: fixproto.OrdTypeMarket,
		TimeInForce: fixproto.TIFDay, Qty: resp.OfferSize, ExDestination: mapping.Route,
		RowStatus: domain.OrderRowStatusStaged, CreatedAt: time.Now(),
	}
	_, err = e.store.UpsertShadowOrder(ctx, staged)
	return err
}

// HandleCalculated implements the confirmation/offer branch of spec.md
// §4.5: an ExecutionReport with OrdStatus=Calculated (B) either
// confirms a quote this engine already knows about, or — under TYPE_1
// — is an unsolicited broker offer requiring a fresh accept/reject decision.
func (e *Engine) HandleCalculated(ctx context.Context, ec execctx.ExecReportContext) error {
	r := ec.Report

	if lr, err := e.store.FindLocateRequest(ctx, r.ClOrdID); err == nil {
		return e.confirmLocate(ctx, lr)
	}

	return e.handleUnsolicitedOffer(ctx, r)
}

func (e *Engine) confirmLocate(ctx context.Context, lr domain.LocateRequest) error {
	if lr.ApprovedQty.Sign() > 0 && lr.ApprovedQty.LessThan(lr.Quantity) {
		lr.Status = domain.LocateStatusApprovedPartial
	} else {
		lr.Status = domain.LocateStatusApprovedFull
	}
	lr.UpdatedAt = time.Now()
	if _, err := e.store.SaveLocateRequest(ctx, lr); err != nil {
		return err
	}
	metrics.RecordLocateTransition(string(lr.Status))
	return e.releaseDeferredShadowOrders(ctx, lr)
}

// handleUnsolicitedOffer implements the TYPE_1 variant: the broker
// pushed an offer this engine never quoted for. A DecisionService
// accepts or rejects it.
func (e *Engine) handleUnsolicitedOffer(ctx context.Context, r fixproto.ExecutionReport) error {
	log := e.logger.With(logging.FixClOrdID(r.ClOrdID), logging.Symbol(r.Symbol))

	if e.decision == nil {
		log.Error("locate: unsolicited TYPE_1 offer received with no DecisionService configured")
		return fmt.Errorf("no DecisionService configured for unsolicited offer")
	}

	offer := Offer{Symbol: r.Symbol, Quantity: r.OrderQty, OfferPx: r.OfferPx, OfferSize: r.OfferSize}
	accept := e.decision.Decide(ctx, offer)

	resp := fixproto.LocateOfferResponse{
		OrderID: r.OrderID, Account: r.Account, Symbol: r.Symbol, Accept: accept, TransactTime: time.Now(),
	}
	if err := e.sender.SendLocateOfferResponse(e.orderEntrySessionID, resp); err != nil {
		return err
	}
	if !accept {
		log.Info("locate: rejected unsolicited offer, no alternative route retry implemented")
	}
	return nil
}

// releaseDeferredShadowOrders implements spec.md §4.5's "Deferred
// shadow release": the DRAFT row staged for lr's primary order is
// finalised into a live NewOrderSingle emission and marked NEW.
func (e *Engine) releaseDeferredShadowOrders(ctx context.Context, lr domain.LocateRequest) error {
	shadowAccount, ok := e.cache.Account(lr.AccountID)
	if !ok {
		return fmt.Errorf("locate: unknown shadow account %s for release", lr.AccountID)
	}

	mapping, ok := e.mapper.Resolve(lr.FixQuoteReqID)
	if !ok {
		return fmt.Errorf("locate: cannot resolve primary order for locate request %s", lr.FixQuoteReqID)
	}

	draft, err := e.store.FindOrderByClOrdID(ctx, shadowClOrdID(shadowAccount.Number, mapping.PrimaryClOrdID))
	if err != nil {
		return fmt.Errorf("locate: draft shadow order not found: %w", err)
	}
	return e.emitRelease(ctx, draft, shadowAccount)
}

func (e *Engine) emitRelease(ctx context.Context, draft domain.Order, shadowAccount domain.Account) error {
	if draft.RowStatus != domain.OrderRowStatusDraft {
		return nil
	}

	// Released with the same canonical ClOrdID used by the locate
	// request that staged it (spec.md §8 scenario 4: the "second" order
	// on COPY-<shadow>-<primaryClOrdId>, distinct from the "-LOC" BUY).
	releaseClOrdID := draft.FixClOrdID
	msg := outbound.NewOrderSingle(outbound.NewOrderParams{
		ClOrdID: outbound.TruncateClOrdID(releaseClOrdID), Account: shadowAccount.Number, Symbol: draft.Symbol,
		Side: draft.Side, OrdType: draft.OrdType, TimeInForce: draft.TimeInForce,
		OrderQty: draft.Qty, Price: draft.Price, StopPx: draft.StopPx,
		ExDestination: draft.ExDestination, TransactTime: time.Now(),
	})
	if err := e.sender.SendNewOrderSingle(e.orderEntrySessionID, msg); err != nil {
		return fmt.Errorf("emitting released short shadow order: %w", err)
	}

	draft.RowStatus = domain.OrderRowStatusNew
	draft.UpdatedAt = time.Now()
	_, err := e.store.UpsertShadowOrder(ctx, draft)
	return err
}

// RunTimeoutMonitor blocks, checking every 10s for PENDING
// LocateRequests older than the configured timeout and expiring them
// (spec.md §4.5 Timeouts), until ctx is cancelled.
func (e *Engine) RunTimeoutMonitor(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.expireOverdueLocates(ctx)
		}
	}
}

func (e *Engine) expireOverdueLocates(ctx context.Context) {
	cutoff := time.Now().Add(-e.locateTimeout)
	overdue, err := e.store.FindPendingLocatesOlderThan(ctx, cutoff)
	if err != nil {
		e.logger.Error("locate: timeout scan failed", logging.Err(err))
		return
	}
	for _, lr := range overdue {
		e.expireLocate(ctx, lr)
	}
}

func (e *Engine) expireLocate(ctx context.Context, lr domain.LocateRequest) {
	lr.Status = domain.LocateStatusExpired
	lr.UpdatedAt = time.Now()
	if _, err := e.store.SaveLocateRequest(ctx, lr); err != nil {
		e.logger.Error("locate: failed to mark locate request expired", logging.Err(err))
		return
	}
	metrics.RecordLocateTransition(string(domain.LocateStatusExpired))

	shadowAccount, ok := e.cache.Account(lr.AccountID)
	if ok {
		if mapping, ok := e.mapper.Resolve(lr.FixQuoteReqID); ok {
			if draft, err := e.store.FindOrderByClOrdID(ctx, shadowClOrdID(shadowAccount.Number, mapping.PrimaryClOrdID)); err == nil && draft.RowStatus == domain.OrderRowStatusDraft {
				draft.RowStatus = domain.OrderRowStatusCancelled
				draft.UpdatedAt = time.Now()
				if _, err := e.store.UpsertShadowOrder(ctx, draft); err != nil {
					e.logger.Error("locate: failed to cancel draft shadow order on expiry", logging.Err(err))
				}
			}
		}
	}

	if e.alerts != nil {
		e.alerts.Notify(ctx, fmt.Sprintf("locate request %s for %s expired with no broker response", lr.FixQuoteReqID, lr.Symbol))
	}
}
