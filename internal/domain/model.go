// Package domain holds the entities the replication engine reasons
// about: reference data (Broker, Account, Route, CopyRule) and
// engine-owned state (Order, OrderEvent, LocateRequest). Physical
// storage layout is left to the store package; these are plain
// value types with no persistence concerns of their own.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType distinguishes a primary trading account from a shadow account.
type AccountType string

const (
	AccountTypePrimary AccountType = "PRIMARY"
	AccountTypeShadow  AccountType = "SHADOW"
)

// RouteType selects the locate protocol variant a route uses.
type RouteType string

const (
	RouteTypeZero RouteType = "TYPE_0"
	RouteTypeOne  RouteType = "TYPE_1"
	RouteTypeNull RouteType = "NULL"
)

// RatioType selects how a CopyRule scales primary quantity into copy quantity.
type RatioType string

const (
	RatioPercentage    RatioType = "PERCENTAGE"
	RatioMultiplier    RatioType = "MULTIPLIER"
	RatioFixedQuantity RatioType = "FIXED_QUANTITY"
)

// LocateStatus is the lifecycle state of a LocateRequest.
type LocateStatus string

const (
	LocateStatusPending         LocateStatus = "PENDING"
	LocateStatusApprovedFull    LocateStatus = "APPROVED_FULL"
	LocateStatusApprovedPartial LocateStatus = "APPROVED_PARTIAL"
	LocateStatusRejected        LocateStatus = "REJECTED"
	LocateStatusExpired         LocateStatus = "EXPIRED"
	LocateStatusCancelled       LocateStatus = "CANCELLED"
)

// IsApproved reports whether the status is one of the two terminal-approved states.
func (s LocateStatus) IsApproved() bool {
	return s == LocateStatusApprovedFull || s == LocateStatusApprovedPartial
}

// IsTerminal reports whether the status no longer accepts transitions.
func (s LocateStatus) IsTerminal() bool {
	return s.IsApproved() || s == LocateStatusRejected || s == LocateStatusExpired || s == LocateStatusCancelled
}

// OrderRowStatus distinguishes a staged (deferred) shadow order from a live one.
type OrderRowStatus string

const (
	OrderRowStatusDraft     OrderRowStatus = "DRAFT"
	OrderRowStatusStaged    OrderRowStatus = "STAGED"
	OrderRowStatusNew       OrderRowStatus = "NEW"
	OrderRowStatusCancelled OrderRowStatus = "CANCELLED"
)

// Broker is reference data identifying an execution counterparty.
type Broker struct {
	ID     uuid.UUID
	Name   string
	Code   string
	Active bool
}

// Account is a primary or shadow trading account.
type Account struct {
	ID         uuid.UUID
	Number     string
	Type       AccountType
	BrokerID   uuid.UUID
	StrategyKey string
	Active     bool
}

// Route is a broker-side execution destination.
type Route struct {
	ID           uuid.UUID
	Name         string
	BrokerID     uuid.UUID
	RouteType    RouteType
	IsLocateRoute bool
	Priority     int
}

// CopyRule deterministically maps a primary account to a shadow account.
type CopyRule struct {
	ID            uuid.UUID
	PrimaryAccountID uuid.UUID
	ShadowAccountID  uuid.UUID
	RatioType     RatioType
	RatioValue    decimal.Decimal
	OrderTypes    map[string]struct{} // nil/empty means unrestricted
	CopyRoute     string
	LocateRoute   string
	CopyBroker    string
	MinQuantity   decimal.Decimal
	MaxQuantity   decimal.Decimal
	Priority      int
	Active        bool
}

// AllowsOrdType reports whether the rule applies to the given FIX OrdType code.
func (r CopyRule) AllowsOrdType(ordType string) bool {
	if len(r.OrderTypes) == 0 {
		return true
	}
	_, ok := r.OrderTypes[ordType]
	return ok
}

// OrderAggregate is the latest-known execution state of an Order.
type OrderAggregate struct {
	ExecType  string
	OrdStatus string
	CumQty    decimal.Decimal
	LeavesQty decimal.Decimal
	AvgPx     decimal.Decimal
	LastPx    decimal.Decimal
	LastQty   decimal.Decimal
	EventTime time.Time
}

// Order is the current-state projection of one ClOrdID's order lifecycle.
type Order struct {
	ID              uuid.UUID
	AccountID       uuid.UUID
	PrimaryClOrdID  string // empty for primary orders; set for shadow orders
	FixOrderID      string
	FixClOrdID      string
	FixOrigClOrdID  string
	Symbol          string
	Side            string
	OrdType         string
	TimeInForce     string
	Qty             decimal.Decimal
	Price           decimal.Decimal
	StopPx          decimal.Decimal
	ExDestination   string
	RowStatus       OrderRowStatus
	Current         OrderAggregate
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsShadow reports whether this Order row was emitted by the engine on a
// shadow account rather than observed on the primary.
func (o Order) IsShadow() bool {
	return o.PrimaryClOrdID != ""
}

// OrderEvent is an immutable record of one ExecutionReport applied to the engine.
type OrderEvent struct {
	ID             uuid.UUID
	OrderID        uuid.UUID // zero value if the Order row does not exist yet
	ExecID         string
	ExecType       string
	OrdStatus      string
	FixOrderID     string
	FixClOrdID     string
	FixOrigClOrdID string
	Symbol         string
	Side           string
	Qty            decimal.Decimal
	Price          decimal.Decimal
	StopPx         decimal.Decimal
	AvgPx          decimal.Decimal
	LastPx         decimal.Decimal
	LastQty        decimal.Decimal
	CumQty         decimal.Decimal
	LeavesQty      decimal.Decimal
	TransactTime   time.Time
	SessionID      string
	RawMessage     []byte
}

// LocateRequest tracks one short-locate workflow for a (primary order, shadow account) pair.
type LocateRequest struct {
	ID            uuid.UUID
	OrderID       uuid.UUID // primary Order
	AccountID     uuid.UUID // shadow account awaiting locate
	Symbol        string
	Quantity      decimal.Decimal
	Status        LocateStatus
	FixQuoteReqID string
	LocateRoute   string
	OfferPx       decimal.Decimal
	OfferSize     decimal.Decimal
	ApprovedQty   decimal.Decimal
	ResponseMessage string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
