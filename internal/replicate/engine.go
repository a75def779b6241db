// Package replicate is the Replication Engine (spec.md §4.4): the
// New/Replace/Cancel/Fill/Reject handlers that fan a primary order out
// to its shadow accounts, track per-primary replace-chain state, and
// never re-replicate a shadow's own events.
package replicate

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/epic1st/shadowfix/internal/copyrule"
	"github.com/epic1st/shadowfix/internal/domain"
	"github.com/epic1st/shadowfix/internal/execctx"
	"github.com/epic1st/shadowfix/internal/fixproto"
	"github.com/epic1st/shadowfix/internal/logging"
	"github.com/epic1st/shadowfix/internal/metrics"
	"github.com/epic1st/shadowfix/internal/refcache"
	"github.com/epic1st/shadowfix/internal/store"
)

// LocateDelegate is the narrow surface the Replication Engine uses to
// hand off short-sell NewOrders to the Locate Protocol Engine, kept as
// an interface so replicate never imports locate directly (locate
// imports replicate's outbound-order helpers instead).
type LocateDelegate interface {
	HandleShortNewOrder(ctx context.Context, ec execctx.ExecReportContext) error
}

// Engine implements the primary-side handlers of spec.md §4.4.
type Engine struct {
	store  store.EventStore
	cache  *refcache.Cache
	sender fixproto.Sender
	logger *logging.Logger
	locate LocateDelegate

	orderEntrySessionID string

	mu              sync.Mutex
	replaceCounters map[string]int // canonical shadow ClOrdID -> next -R<seq>
}

// Deps bundles Engine's collaborators for construction.
type Deps struct {
	Store               store.EventStore
	Cache               *refcache.Cache
	Sender              fixproto.Sender
	Logger              *logging.Logger
	Locate              LocateDelegate
	OrderEntrySessionID string
}

func New(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:               d.Store,
		cache:               d.Cache,
		sender:              d.Sender,
		logger:              logger.With(logging.Component("replicate")),
		locate:              d.Locate,
		orderEntrySessionID: d.OrderEntrySessionID,
		replaceCounters:     make(map[string]int),
	}
}

// ShadowClOrdID is the canonical shadow identity spec.md §3 invariant 4
// and §4.4 both define: COPY-<shadowAccount>-<primaryClOrdId>.
func ShadowClOrdID(shadowAccountNumber, primaryClOrdID string) string {
	return fmt.Sprintf("%s%s-%s", "COPY-", shadowAccountNumber, primaryClOrdID)
}

func toEvent(r fixproto.ExecutionReport, orderID uuid.UUID) domain.OrderEvent {
	return domain.OrderEvent{
		ID:             uuid.New(),
		OrderID:        orderID,
		ExecID:         r.ExecID,
		ExecType:       r.ExecType,
		OrdStatus:      r.OrdStatus,
		FixOrderID:     r.OrderID,
		FixClOrdID:     r.ClOrdID,
		FixOrigClOrdID: r.OrigClOrdID,
		Symbol:         r.Symbol,
		Side:           r.Side,
		Qty:            r.OrderQty,
		Price:          r.Price,
		StopPx:         r.StopPx,
		AvgPx:          r.AvgPx,
		LastPx:         r.LastPx,
		LastQty:        r.LastQty,
		CumQty:         r.CumQty,
		LeavesQty:      r.LeavesQty,
		TransactTime:   r.TransactTime,
		SessionID:      r.SessionID,
		Raw:            nil,
	}
}

// persistPrimaryEvent appends the event and upserts the primary Order
// projection, swallowing duplicate-ExecID as a no-op per spec.md §7.
// The duplicate-ExecID check in AppendEvent runs before the Order
// projection is touched, so a resent ExecID never mutates the Order
// aggregate (spec.md §8 invariant) even when its TransactTime is newer
// than the previous delivery's.
// It returns the materialized primary Order and whether this call is
// the one that actually recorded the event (false on a duplicate).
func (e *Engine) persistPrimaryEvent(ctx context.Context, account domain.Account, r fixproto.ExecutionReport) (domain.Order, bool, error) {
	log := e.logger.With(
		logging.SessionID(r.SessionID), logging.ExecID(r.ExecID),
		logging.FixOrderID(r.OrderID), logging.FixClOrdID(r.ClOrdID), logging.Symbol(r.Symbol),
	)

	existing, err := e.store.FindOrderByClOrdID(ctx, r.ClOrdID)
	orderID := uuid.New()
	switch {
	case err == nil:
		orderID = existing.ID
	case err == store.ErrOrderNotFound:
		// no projection yet; orderID stays the freshly minted one below.
	default:
		log.Error("failed to look up primary order projection", logging.Err(err))
		return domain.Order{}, false, err
	}

	ev := toEvent(r, orderID)

	appendErr := e.store.AppendEvent(ctx, ev)
	if appendErr == store.ErrDuplicateExecID {
		log.Info("duplicate execId swallowed")
		metrics.RecordEventApplied("duplicate")
		return existing, false, nil
	}
	if appendErr != nil {
		log.Error("failed to append order event", logging.Err(appendErr))
		metrics.RecordEventApplied("error")
		return existing, false, appendErr
	}

	order, err := e.store.UpsertOrderFromEvent(ctx, ev, account.ID, "")
	if err != nil {
		log.Error("failed to upsert primary order projection", logging.Err(err))
		return order, false, err
	}
	metrics.RecordEventApplied("applied")
	return order, true, nil
}

// plansForPrimary resolves the CopyRule Evaluator's output for a
// primary order, restricted to the engine's reference-cache shadow-account lookup.
func (e *Engine) plansForPrimary(account domain.Account, ordType string, primaryQty decimal.Decimal) []copyrule.Plan {
	rules := e.cache.CopyRulesForPrimary(account.ID)
	resolve := func(id uuid.UUID) (domain.Account, bool) { return e.cache.Account(id) }
	return copyrule.Evaluate(rules, resolve, ordType, primaryQty)
}
