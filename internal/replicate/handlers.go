package replicate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/epic1st/shadowfix/internal/domain"
	"github.com/epic1st/shadowfix/internal/execctx"
	"github.com/epic1st/shadowfix/internal/fixproto"
	"github.com/epic1st/shadowfix/internal/logging"
	"github.com/epic1st/shadowfix/internal/metrics"
	"github.com/epic1st/shadowfix/internal/outbound"
)

// HandleNewOrder implements spec.md §4.4's NewOrder handler.
func (e *Engine) HandleNewOrder(ctx context.Context, ec execctx.ExecReportContext) error {
	r := ec.Report
	log := e.logger.With(
		logging.SessionID(r.SessionID), logging.ExecID(r.ExecID),
		logging.FixOrderID(r.OrderID), logging.FixClOrdID(r.ClOrdID), logging.Symbol(r.Symbol),
	)

	account, ok := e.cache.AccountByNumber(r.Account)
	if !ok {
		log.Warn("primary new order references unknown account, appending without replication")
		account = domain.Account{}
	}

	_, isFresh, err := e.persistPrimaryEvent(ctx, account, r)
	if err != nil || !isFresh {
		return err
	}
	if !ok {
		return nil
	}

	if ec.IsShortSide && e.locate != nil {
		// Short sells are never replicated here; the Locate Protocol
		// Engine owns NewOrder for short side, per spec.md §4.4/§4.5.
		return e.locate.HandleShortNewOrder(ctx, ec)
	}

	switch r.OrdType {
	case fixproto.OrdTypeStopLimit:
		// StopPx is not carried on ExecutionReport in this dialect; a
		// copy would be built with a missing stop price, so persist
		// only, per spec.md §4.4.
		log.Info("stop-limit new order suppressed from replication")
		return nil
	case fixproto.OrdTypeMarket, fixproto.OrdTypeLimit, fixproto.OrdTypeStop:
		return e.replicateNewOrder(ctx, account, r, log)
	default:
		log.Info("unrecognised OrdType on new order, persisted only", logging.String("ordType", r.OrdType))
		return nil
	}
}

func (e *Engine) replicateNewOrder(ctx context.Context, account domain.Account, r fixproto.ExecutionReport, log *logging.Logger) error {
	plans := e.plansForPrimary(account, r.OrdType, r.OrderQty)
	for _, plan := range plans {
		shadowClOrdID := ShadowClOrdID(plan.ShadowAccount.Number, r.ClOrdID)

		if _, err := e.store.FindOrderByClOrdID(ctx, shadowClOrdID); err == nil {
			log.Info("shadow order already exists, skipping duplicate replication", logging.String("shadowClOrdId", shadowClOrdID))
			continue
		}

		route := outbound.ResolveTargetRoute(false, "", plan.Rule.CopyRoute, r.ExDestination)
		msg := outbound.NewOrderSingle(outbound.NewOrderParams{
			ClOrdID: shadowClOrdID, Account: plan.ShadowAccount.Number, Symbol: r.Symbol,
			Side: r.Side, OrdType: r.OrdType, TimeInForce: r.TimeInForce,
			OrderQty: plan.CopyQty, Price: r.Price, StopPx: r.StopPx,
			ExDestination: route, TransactTime: time.Now(),
		})

		if err := e.sender.SendNewOrderSingle(e.orderEntrySessionID, msg); err != nil {
			log.Error("failed to send shadow new order", logging.Err(err), logging.String("shadowClOrdId", shadowClOrdID))
			continue
		}
		metrics.RecordShadowOrderEmitted(fixproto.MsgTypeNewOrderSingle, plan.ShadowAccount.Number)
		metrics.RecordReplication(plan.Rule.ID.String())

		shadowOrder := domain.Order{
			ID: uuid.New(), AccountID: plan.ShadowAccount.ID, PrimaryClOrdID: r.ClOrdID,
			FixClOrdID: shadowClOrdID, Symbol: r.Symbol, Side: r.Side, OrdType: r.OrdType,
			TimeInForce: msg.TimeInForce, Qty: plan.CopyQty, Price: msg.Price, StopPx: msg.StopPx,
			ExDestination: route, RowStatus: domain.OrderRowStatusStaged, CreatedAt: time.Now(),
		}
		if _, err := e.store.UpsertShadowOrder(ctx, shadowOrder); err != nil {
			log.Error("failed to persist staged shadow order", logging.Err(err))
		}
	}
	return nil
}

// HandleReplaced implements spec.md §4.4's Replaced handler.
func (e *Engine) HandleReplaced(ctx context.Context, ec execctx.ExecReportContext) error {
	r := ec.Report
	log := e.logger.With(
		logging.SessionID(r.SessionID), logging.ExecID(r.ExecID),
		logging.FixOrderID(r.OrderID), logging.FixClOrdID(r.ClOrdID), logging.Symbol(r.Symbol),
	)

	account, ok := e.cache.AccountByNumber(r.Account)
	if !ok {
		log.Warn("primary replace references unknown account, appending without replication")
		account = domain.Account{}
	}

	_, isFresh, err := e.persistPrimaryEvent(ctx, account, r)
	if err != nil || !isFresh {
		return err
	}
	if !ok {
		return nil
	}

	primaryClOrdIDChanged := r.OrigClOrdID != "" && r.OrigClOrdID != r.ClOrdID
	newPrimaryClOrdID := r.ClOrdID

	plans := e.plansForPrimary(account, r.OrdType, r.OrderQty)
	for _, plan := range plans {
		canonical := ShadowClOrdID(plan.ShadowAccount.Number, newPrimaryClOrdID)

		var prevShadowClOrdID string
		if primaryClOrdIDChanged {
			prevShadowClOrdID = ShadowClOrdID(plan.ShadowAccount.Number, r.OrigClOrdID)
		} else {
			prevShadowClOrdID = canonical
		}

		newShadowClOrdID := canonical
		if !primaryClOrdIDChanged {
			// Qty/price-only replace: the canonical identity does not
			// change, so a unique wire ClOrdID needs a monotonic suffix
			// (spec.md §4.4, scenario 3). OrigClOrdID must still differ
			// from ClOrdID on the wire.
			newShadowClOrdID = e.nextChainedReplaceID(canonical)
		}

		route := outbound.ResolveTargetRoute(false, "", plan.Rule.CopyRoute, r.ExDestination)
		msg := outbound.OrderCancelReplaceRequest(outbound.ReplaceParams{
			ClOrdID: newShadowClOrdID, OrigClOrdID: prevShadowClOrdID, Account: plan.ShadowAccount.Number,
			Symbol: r.Symbol, Side: r.Side, OrdType: r.OrdType, TimeInForce: r.TimeInForce,
			OrderQty: plan.CopyQty, Price: r.Price, StopPx: r.StopPx,
			ExDestination: route, TransactTime: time.Now(),
		})

		if err := e.sender.SendOrderCancelReplaceRequest(e.orderEntrySessionID, msg); err != nil {
			log.Error("failed to send shadow replace", logging.Err(err), logging.String("shadowClOrdId", newShadowClOrdID))
			continue
		}
	}
	return nil
}

// nextChainedReplaceID returns canonical with a unique "-R<seq>" suffix
// appended, per spec.md §4.4/§9: the source convention is not
// prescribed, only uniqueness is required, so a monotonic per-canonical
// counter is used (see DESIGN.md).
func (e *Engine) nextChainedReplaceID(canonical string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replaceCounters[canonical]++
	seq := e.replaceCounters[canonical]
	return outbound.TruncateClOrdID(fmt.Sprintf("%s-R%d", canonical, seq))
}

// HandleCancelled implements spec.md §4.4's Cancelled handler.
func (e *Engine) HandleCancelled(ctx context.Context, ec execctx.ExecReportContext) error {
	r := ec.Report
	log := e.logger.With(
		logging.SessionID(r.SessionID), logging.ExecID(r.ExecID),
		logging.FixOrderID(r.OrderID), logging.FixClOrdID(r.ClOrdID), logging.Symbol(r.Symbol),
	)

	account, ok := e.cache.AccountByNumber(r.Account)
	if !ok {
		log.Warn("primary cancel references unknown account, appending without replication")
		account = domain.Account{}
	}

	_, isFresh, err := e.persistPrimaryEvent(ctx, account, r)
	if err != nil || !isFresh {
		return err
	}
	if !ok {
		return nil
	}

	plans := e.plansForPrimary(account, r.OrdType, r.OrderQty)
	for _, plan := range plans {
		canonical := ShadowClOrdID(plan.ShadowAccount.Number, r.ClOrdID)
		msg := outbound.OrderCancelRequest(outbound.CancelParams{
			ClOrdID: canonical, OrigClOrdID: canonical, Account: plan.ShadowAccount.Number,
			Symbol: r.Symbol, Side: r.Side, TransactTime: time.Now(),
		})
		if err := e.sender.SendOrderCancelRequest(e.orderEntrySessionID, msg); err != nil {
			log.Error("failed to send shadow cancel", logging.Err(err), logging.String("shadowClOrdId", canonical))
		}
	}
	return nil
}

// HandleFill implements spec.md §4.4's Fill handler: a primary fill is
// recorded only, never replicated directly.
func (e *Engine) HandleFill(ctx context.Context, ec execctx.ExecReportContext) error {
	r := ec.Report
	account, ok := e.cache.AccountByNumber(r.Account)
	if !ok {
		e.logger.Warn("fill references unknown account, appending without linkage", logging.FixClOrdID(r.ClOrdID))
		account = domain.Account{}
	}
	_, _, err := e.persistPrimaryEvent(ctx, account, r)
	return err
}

// HandlePendingReplace and HandlePendingCancel append the intermediate
// event only; spec.md §4.4 forbids emitting outbound orders for them.
func (e *Engine) HandlePendingReplace(ctx context.Context, ec execctx.ExecReportContext) error {
	return e.appendOnly(ctx, ec)
}

func (e *Engine) HandlePendingCancel(ctx context.Context, ec execctx.ExecReportContext) error {
	return e.appendOnly(ctx, ec)
}

func (e *Engine) appendOnly(ctx context.Context, ec execctx.ExecReportContext) error {
	r := ec.Report
	account, ok := e.cache.AccountByNumber(r.Account)
	if !ok {
		e.logger.Error("event references unknown account, appending without linkage", logging.FixClOrdID(r.ClOrdID))
		account = domain.Account{}
	}
	_, _, err := e.persistPrimaryEvent(ctx, account, r)
	return err
}

// rejectionReason classifies the free-text rejection per spec.md §4.4.
type rejectionReason int

const (
	rejectionPermanent rejectionReason = iota
	rejectionLocate
	rejectionRoute
)

func classifyRejectionText(text string) rejectionReason {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "locate"):
		return rejectionLocate
	case strings.Contains(lower, "route"):
		return rejectionRoute
	default:
		return rejectionPermanent
	}
}

// HandleRejected implements spec.md §4.4's Rejected handler.
func (e *Engine) HandleRejected(ctx context.Context, ec execctx.ExecReportContext) error {
	r := ec.Report
	log := e.logger.With(
		logging.SessionID(r.SessionID), logging.ExecID(r.ExecID),
		logging.FixOrderID(r.OrderID), logging.FixClOrdID(r.ClOrdID), logging.Symbol(r.Symbol),
	)

	account, ok := e.cache.AccountByNumber(r.Account)
	if !ok {
		log.Error("rejection references unknown account")
		account = domain.Account{}
	}
	if _, _, err := e.persistPrimaryEvent(ctx, account, r); err != nil {
		return err
	}

	reason := classifyRejectionText(r.Text)

	hasRetryFields := r.Symbol != "" && r.Side != "" && r.Account != "" &&
		(!r.AvgPx.IsZero() || !r.LastPx.IsZero())
	if !hasRetryFields {
		reason = rejectionPermanent
	}

	switch reason {
	case rejectionLocate:
		metrics.RecordRejection("locate")
		quoteReqID := r.QuoteReqID
		if quoteReqID == "" {
			quoteReqID = r.ClOrdID
		}
		if lr, err := e.store.FindLocateRequest(ctx, quoteReqID); err == nil {
			lr.Status = domain.LocateStatusRejected
			lr.ResponseMessage = r.Text
			if _, err := e.store.SaveLocateRequest(ctx, lr); err != nil {
				log.Error("failed to mark locate request rejected", logging.Err(err))
			} else {
				metrics.RecordLocateTransition(string(domain.LocateStatusRejected))
			}
		}
		log.Info("locate rejection recorded, not retried")
	case rejectionRoute:
		metrics.RecordRejection("route")
		log.Info("route rejection recorded, not retried (no explicit retry policy configured)")
	default:
		metrics.RecordRejection("permanent")
		log.Info("permanent rejection recorded")
	}
	return nil
}
