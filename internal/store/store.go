// Package store is the append-only Event Store (spec.md §4.7): every
// inbound ExecutionReport is appended once, keyed by ExecID, and the
// current Order projection is derived from the latest event by
// transaction time rather than mutated in place.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/epic1st/shadowfix/internal/domain"
)

// ErrDuplicateExecID is returned by AppendEvent when an event with the
// same ExecID has already been recorded; callers treat this as a no-op
// success, not a failure, per spec.md §7's idempotency requirement.
var ErrDuplicateExecID = errors.New("store: duplicate execId")

// ErrOrderNotFound is returned when a lookup can't find the named order.
var ErrOrderNotFound = errors.New("store: order not found")

// EventStore is the durable log of OrderEvents plus the Order
// projection materialized from them.
type EventStore interface {
	// AppendEvent idempotently records ev. If ev.ExecID has already been
	// recorded, AppendEvent returns ErrDuplicateExecID and the event is
	// not inserted a second time.
	AppendEvent(ctx context.Context, ev domain.OrderEvent) error

	// UpsertOrderFromEvent materializes or refreshes the Order row
	// linked to ev's FixClOrdID, but only if ev.TransactTime is not
	// older than the order's current projection (spec.md §3 invariant:
	// "Order reflects the state as of the latest event by event time,
	// not by arrival order").
	UpsertOrderFromEvent(ctx context.Context, ev domain.OrderEvent, accountID uuid.UUID, primaryClOrdID string) (domain.Order, error)

	// FindOrderByClOrdID looks up the current Order projection.
	FindOrderByClOrdID(ctx context.Context, fixClOrdID string) (domain.Order, error)

	// FindOrderByFixOrderID looks up the current Order projection by
	// the broker-assigned OrderID, used once a ClOrdID has been
	// superseded by a replace chain.
	FindOrderByFixOrderID(ctx context.Context, fixOrderID string) (domain.Order, error)

	// FindEventsForOrder returns all events recorded against orderID, in
	// the order they were appended.
	FindEventsForOrder(ctx context.Context, orderID uuid.UUID) ([]domain.OrderEvent, error)

	// UpsertShadowOrder persists a shadow Order row the replication
	// engine just originated (before any ExecutionReport has come back
	// for it), used for DRAFT/STAGED locate-pending rows.
	UpsertShadowOrder(ctx context.Context, o domain.Order) (domain.Order, error)

	// SaveLocateRequest inserts or updates a LocateRequest.
	SaveLocateRequest(ctx context.Context, lr domain.LocateRequest) (domain.LocateRequest, error)

	// FindLocateRequest looks up a LocateRequest by its FixQuoteReqID.
	FindLocateRequest(ctx context.Context, quoteReqID string) (domain.LocateRequest, error)

	// FindPendingLocatesOlderThan returns PENDING LocateRequests whose
	// CreatedAt is older than cutoff, used by the timeout monitor.
	FindPendingLocatesOlderThan(ctx context.Context, cutoff time.Time) ([]domain.LocateRequest, error)

	// Ping reports whether the store is reachable, used by the
	// readiness probe.
	Ping(ctx context.Context) error
}
