// Package fixproto holds the FIX 4.2 wire-level constants and decoded
// message shapes the replication engine consumes and produces. The
// session transport itself (framing, sequence numbers, store-and-forward)
// is an external collaborator — this package only knows about decoded
// application content.
package fixproto

import (
	"time"

	"github.com/shopspring/decimal"
)

// Message types — session level.
const (
	MsgTypeLogon         = "A"
	MsgTypeLogout        = "5"
	MsgTypeHeartbeat     = "0"
	MsgTypeTestRequest   = "1"
	MsgTypeResendRequest = "2"
	MsgTypeSequenceReset = "4"
	MsgTypeReject        = "3"
)

// Message types — trading and locate.
const (
	MsgTypeNewOrderSingle           = "D"
	MsgTypeOrderCancelRequest       = "F"
	MsgTypeOrderCancelReplaceRequest = "G"
	MsgTypeExecutionReport          = "8"
	MsgTypeQuoteRequest             = "R"
	MsgTypeQuoteResponse            = "S"
)

// Side (tag 54).
const (
	SideBuy            = "1"
	SideSell           = "2"
	SideSellShort      = "5"
	SideSellShortExempt = "6"
)

// OrdType (tag 40).
const (
	OrdTypeMarket    = "1"
	OrdTypeLimit     = "2"
	OrdTypeStop      = "3"
	OrdTypeStopLimit = "4"
)

// OrdStatus (tag 39).
const (
	OrdStatusNew             = "0"
	OrdStatusPartiallyFilled = "1"
	OrdStatusFilled          = "2"
	OrdStatusCancelled       = "4"
	OrdStatusReplaced        = "5"
	OrdStatusPendingCancel   = "6"
	OrdStatusRejected        = "8"
	OrdStatusCalculated      = "B"
	OrdStatusPendingReplace  = "E"
)

// ExecType (tag 150).
const (
	ExecTypeNew            = "0"
	ExecTypePartialFill    = "1"
	ExecTypeFill           = "2"
	ExecTypeCancelled      = "4"
	ExecTypeReplaced       = "5"
	ExecTypePendingCancel  = "6"
	ExecTypeRejected       = "8"
	ExecTypeCalculated     = "B"
	ExecTypePendingReplace = "E"
)

// TimeInForce (tag 59).
const (
	TIFDay = "0"
	TIFGTC = "1"
)

// DefaultClOrdIDMaxLen is the hard ClOrdID length limit to the order-entry peer.
const DefaultClOrdIDMaxLen = 19

// QuoteReqIDMaxLen is the hard length limit for locate quote-request identifiers.
const QuoteReqIDMaxLen = 39

// ExecutionReport is the decoded content of an inbound MsgType=8 message.
type ExecutionReport struct {
	SessionID    string
	OrderID      string
	ClOrdID      string
	OrigClOrdID  string
	ExecID       string
	ExecType     string
	OrdStatus    string
	Symbol       string
	Side         string
	OrdType      string
	TimeInForce  string
	Account      string
	ExDestination string
	OrderQty     decimal.Decimal
	Price        decimal.Decimal
	StopPx       decimal.Decimal
	AvgPx        decimal.Decimal
	LastPx       decimal.Decimal
	LastQty      decimal.Decimal
	CumQty       decimal.Decimal
	LeavesQty    decimal.Decimal
	Text         string
	QuoteReqID   string
	OfferPx      decimal.Decimal
	OfferSize    decimal.Decimal
	TransactTime time.Time
	Raw          []byte
}

// QuoteResponse is the decoded content of an inbound MsgType=S message
// (the TYPE_0/TYPE_2 locate quote-response).
type QuoteResponse struct {
	SessionID    string
	QuoteReqID   string
	Symbol       string
	OfferPx      decimal.Decimal
	OfferSize    decimal.Decimal
	TransactTime time.Time
	Raw          []byte
}

// Logout is the decoded content of an inbound MsgType=5 message.
type Logout struct {
	SessionID string
	Text      string
}

// NewOrderSingle is an outbound MsgType=D request.
type NewOrderSingle struct {
	ClOrdID       string
	Account       string
	Symbol        string
	Side          string
	OrdType       string
	TimeInForce   string
	OrderQty      decimal.Decimal
	Price         decimal.Decimal
	StopPx        decimal.Decimal
	ExDestination string
	HandlInst     string
	TransactTime  time.Time
}

// OrderCancelReplaceRequest is an outbound MsgType=G request.
type OrderCancelReplaceRequest struct {
	ClOrdID       string
	OrigClOrdID   string
	Account       string
	Symbol        string
	Side          string
	OrdType       string
	TimeInForce   string
	OrderQty      decimal.Decimal
	Price         decimal.Decimal
	StopPx        decimal.Decimal
	ExDestination string
	TransactTime  time.Time
}

// OrderCancelRequest is an outbound MsgType=F request.
type OrderCancelRequest struct {
	ClOrdID      string
	OrigClOrdID  string
	Account      string
	Symbol       string
	Side         string
	TransactTime time.Time
}

// QuoteRequest is an outbound short-locate MsgType=R request.
type QuoteRequest struct {
	QuoteReqID   string
	Symbol       string
	Side         string
	Account      string
	OrderQty     decimal.Decimal
	ExDestination string
	TransactTime time.Time
}

// LocateOfferResponse is an outbound accept/reject of a TYPE_1 unsolicited offer.
type LocateOfferResponse struct {
	OrderID      string
	Account      string
	Symbol       string
	Accept       bool
	Text         string
	TransactTime time.Time
}

// Sender submits outbound application messages on a named session.
// The concrete FIX session/transport library implements this; the
// engine never constructs wire bytes itself.
type Sender interface {
	SendNewOrderSingle(sessionID string, msg NewOrderSingle) error
	SendOrderCancelReplaceRequest(sessionID string, msg OrderCancelReplaceRequest) error
	SendOrderCancelRequest(sessionID string, msg OrderCancelRequest) error
	SendQuoteRequest(sessionID string, msg QuoteRequest) error
	SendLocateOfferResponse(sessionID string, msg LocateOfferResponse) error
}
