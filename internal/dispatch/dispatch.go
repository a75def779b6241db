// Package dispatch is the Execution-Report Dispatcher (spec.md §4.2): a
// selection-matrix table that routes one classified ExecutionReport to
// exactly one handler on the Replication Engine or the Locate Protocol
// Engine, then submits that handler onto the bounded per-key worker
// pool. Modeled on the teacher's router package, which keeps the same
// match-on-message-shape-then-submit-to-pool structure for inbound FIX
// traffic.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/epic1st/shadowfix/internal/classify"
	"github.com/epic1st/shadowfix/internal/execctx"
	"github.com/epic1st/shadowfix/internal/fixproto"
	"github.com/epic1st/shadowfix/internal/logging"
	"github.com/epic1st/shadowfix/internal/metrics"
	"github.com/epic1st/shadowfix/internal/workerpool"
)

// ReplicationHandlers is the subset of replicate.Engine the Dispatcher
// selects against, kept as an interface so dispatch never imports
// replicate's concrete type.
type ReplicationHandlers interface {
	HandleNewOrder(ctx context.Context, ec execctx.ExecReportContext) error
	HandleReplaced(ctx context.Context, ec execctx.ExecReportContext) error
	HandleCancelled(ctx context.Context, ec execctx.ExecReportContext) error
	HandleFill(ctx context.Context, ec execctx.ExecReportContext) error
	HandlePendingReplace(ctx context.Context, ec execctx.ExecReportContext) error
	HandlePendingCancel(ctx context.Context, ec execctx.ExecReportContext) error
	HandleRejected(ctx context.Context, ec execctx.ExecReportContext) error
}

// LocateHandlers is the subset of locate.Engine the Dispatcher selects
// against for the locate lifecycle's B/S message types.
type LocateHandlers interface {
	HandleCalculated(ctx context.Context, ec execctx.ExecReportContext) error
	HandleQuoteResponse(ctx context.Context, resp fixproto.QuoteResponse) error
}

// AccountLookup resolves a FIX Account tag to reference data, passed
// through to classify.Classify.
type AccountLookup = classify.AccountLookup

// Dispatcher owns the selection matrix and the worker pool inbound
// ExecutionReports are serialized through.
type Dispatcher struct {
	replication ReplicationHandlers
	locate      LocateHandlers
	lookup      AccountLookup
	pool        *workerpool.Pool
	logger      *logging.Logger
}

// Deps bundles the Dispatcher's collaborators for construction.
type Deps struct {
	Replication ReplicationHandlers
	Locate      LocateHandlers
	Lookup      AccountLookup
	Pool        *workerpool.Pool
	Logger      *logging.Logger
}

// New builds a Dispatcher. Pool may be nil, in which case handlers run
// synchronously on the calling goroutine (used by tests).
func New(d Deps) *Dispatcher {
	logger := d.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		replication: d.Replication,
		locate:      d.Locate,
		lookup:      d.Lookup,
		pool:        d.Pool,
		logger:      logger.With(logging.Component("dispatch")),
	}
}

// DispatchExecutionReport classifies r and submits the matching handler
// call onto the worker pool, keyed by fixOrderId (falling back to
// ClOrdID) so events for the same order are always processed in order.
func (d *Dispatcher) DispatchExecutionReport(ctx context.Context, r fixproto.ExecutionReport) {
	class := classify.Classify(r.ClOrdID, r.Account, d.lookup)
	ec := execctx.New(r, class)

	log := d.logger.With(
		logging.SessionID(r.SessionID), logging.ExecID(r.ExecID),
		logging.FixOrderID(r.OrderID), logging.FixClOrdID(r.ClOrdID), logging.Symbol(r.Symbol),
	)

	handler, label, err := d.selectHandler(ec)
	if err != nil {
		log.Warn("no handler selected for execution report", logging.Err(err),
			logging.String("execType", r.ExecType), logging.String("ordStatus", r.OrdStatus))
		return
	}

	d.submit(ec.SerializationKey, label, log, func(ctx context.Context) error {
		return handler(ctx, ec)
	})
}

// DispatchQuoteResponse submits a MsgType=S locate quote response onto
// the worker pool, keyed by QuoteReqID so a single locate's quote and
// its later confirmation never race each other.
func (d *Dispatcher) DispatchQuoteResponse(ctx context.Context, resp fixproto.QuoteResponse) {
	log := d.logger.With(logging.String("quoteReqId", resp.QuoteReqID), logging.Symbol(resp.Symbol))
	key := resp.QuoteReqID
	if key == "" {
		key = resp.Symbol
	}
	d.submit(key, "locate.HandleQuoteResponse", log, func(ctx context.Context) error {
		return d.locate.HandleQuoteResponse(ctx, resp)
	})
}

type handlerFunc func(ctx context.Context, ec execctx.ExecReportContext) error

// selectHandler implements spec.md §4.2's ordered (ExecType, OrdStatus)
// selection matrix. Exactly one handler is returned per report; the
// table is evaluated top to bottom and the first match wins.
func (d *Dispatcher) selectHandler(ec execctx.ExecReportContext) (handlerFunc, string, error) {
	r := ec.Report

	// Rejected and Calculated rows are handled independently of the
	// primary/shadow classifier: spec.md §4.2 lists Calculated as
	// "any | B | Locate" unconditionally, and a locate's draft shadow
	// order always carries a COPY-...-LOC ClOrdID, which classify.Classify
	// would otherwise resolve to ClassShadow before the locate lifecycle
	// ever sees it.
	switch {
	case r.OrdStatus == fixproto.OrdStatusRejected:
		return d.replication.HandleRejected, "replicate.HandleRejected", nil
	case r.OrdStatus == fixproto.OrdStatusCalculated:
		return d.locate.HandleCalculated, "locate.HandleCalculated", nil
	}

	if ec.Class == classify.ClassShadow {
		// Shadow-originated events are append-only observations; route
		// them through the same Fill/append handler path as a primary
		// fill so they are recorded but never re-replicated.
		return d.replication.HandleFill, "replicate.HandleFill(shadow)", nil
	}

	switch {
	case r.ExecType == fixproto.ExecTypeNew && r.OrdStatus == fixproto.OrdStatusNew:
		return d.replication.HandleNewOrder, "replicate.HandleNewOrder", nil
	case r.ExecType == fixproto.ExecTypePartialFill || r.ExecType == fixproto.ExecTypeFill:
		return d.replication.HandleFill, "replicate.HandleFill", nil
	case r.ExecType == fixproto.ExecTypeCancelled && r.OrdStatus == fixproto.OrdStatusCancelled:
		return d.replication.HandleCancelled, "replicate.HandleCancelled", nil
	case r.ExecType == fixproto.ExecTypeReplaced && r.OrdStatus == fixproto.OrdStatusReplaced:
		return d.replication.HandleReplaced, "replicate.HandleReplaced", nil
	case r.ExecType == fixproto.ExecTypePendingCancel && r.OrdStatus == fixproto.OrdStatusPendingCancel:
		return d.replication.HandlePendingCancel, "replicate.HandlePendingCancel", nil
	case r.ExecType == fixproto.ExecTypePendingReplace && r.OrdStatus == fixproto.OrdStatusPendingReplace:
		return d.replication.HandlePendingReplace, "replicate.HandlePendingReplace", nil
	default:
		return nil, "", fmt.Errorf("unmatched (execType=%s, ordStatus=%s)", r.ExecType, r.OrdStatus)
	}
}

// submit runs fn on the worker pool under key, or inline if no pool was
// configured, logging any handler error with the dispatcher's
// correlation fields per spec.md §7.
func (d *Dispatcher) submit(key, label string, log *logging.Logger, fn func(ctx context.Context) error) {
	run := func(ctx context.Context) {
		start := time.Now()
		err := fn(ctx)
		metrics.ObserveHandlerLatency(label, time.Since(start))
		if err != nil {
			log.Error("handler returned error", logging.Err(err), logging.String("handler", label))
		}
	}
	metrics.IncWorkerPoolSubmitted()
	if d.pool == nil {
		run(context.Background())
		return
	}
	d.pool.Submit(key, run)
}
