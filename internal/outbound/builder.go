// Package outbound is the Outbound Builder (spec.md §4.8): it builds
// legal FIX 4.2 application messages and enforces the hard rules no
// handler is allowed to bypass — ClOrdID/QuoteReqID length limits,
// OrigClOrdID != ClOrdID on replace, field legality by OrdType, and
// always targeting the shadow account.
package outbound

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/epic1st/shadowfix/internal/fixproto"
)

// TruncateClOrdID keeps the rightmost DefaultClOrdIDMaxLen characters
// of id when it exceeds the wire limit, per spec.md §4.8.
func TruncateClOrdID(id string) string {
	if len(id) <= fixproto.DefaultClOrdIDMaxLen {
		return id
	}
	return id[len(id)-fixproto.DefaultClOrdIDMaxLen:]
}

// TruncateQuoteReqID keeps the rightmost QuoteReqIDMaxLen characters.
func TruncateQuoteReqID(id string) string {
	if len(id) <= fixproto.QuoteReqIDMaxLen {
		return id
	}
	return id[len(id)-fixproto.QuoteReqIDMaxLen:]
}

// NewOrderParams is the caller-supplied content for a shadow
// NewOrderSingle; the Builder fills in the fields that are rule-derived
// rather than caller-derived (HandlInst, Price/StopPx legality, TIF default).
type NewOrderParams struct {
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
	TransactTime  time.Time
}

// NewOrderSingle builds a legal outbound NewOrderSingle.
func NewOrderSingle(p NewOrderParams) fixproto.NewOrderSingle {
	tif := p.TimeInForce
	if tif == "" {
		tif = fixproto.TIFDay
	}

	msg := fixproto.NewOrderSingle{
		ClOrdID:       TruncateClOrdID(p.ClOrdID),
		Account:       p.Account,
		Symbol:        p.Symbol,
		Side:          p.Side,
		OrdType:       p.OrdType,
		TimeInForce:   tif,
		OrderQty:      p.OrderQty,
		ExDestination: p.ExDestination,
		HandlInst:     "1",
		TransactTime:  p.TransactTime,
	}
	if allowsPrice(p.OrdType) {
		msg.Price = p.Price
	}
	if allowsStopPx(p.OrdType) {
		msg.StopPx = p.StopPx
	}
	return msg
}

// ReplaceParams is the caller-supplied content for a shadow
// OrderCancelReplaceRequest.
type ReplaceParams struct {
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

// OrderCancelReplaceRequest builds a legal outbound replace, enforcing
// OrigClOrdID != ClOrdID by appending a disambiguating suffix if the
// caller handed in identical values (should not happen when callers
// use the chained-replace suffixing in internal/replicate, but the
// Builder is the last line of defense for this protocol rule).
func OrderCancelReplaceRequest(p ReplaceParams) fixproto.OrderCancelReplaceRequest {
	tif := p.TimeInForce
	if tif == "" {
		tif = fixproto.TIFDay
	}

	clOrdID := TruncateClOrdID(p.ClOrdID)
	origClOrdID := TruncateClOrdID(p.OrigClOrdID)
	if clOrdID == origClOrdID {
		clOrdID = TruncateClOrdID(clOrdID + "-R1")
	}

	msg := fixproto.OrderCancelReplaceRequest{
		ClOrdID:       clOrdID,
		OrigClOrdID:   origClOrdID,
		Account:       p.Account,
		Symbol:        p.Symbol,
		Side:          p.Side,
		OrdType:       p.OrdType,
		TimeInForce:   tif,
		OrderQty:      p.OrderQty,
		ExDestination: p.ExDestination,
		TransactTime:  p.TransactTime,
	}
	if allowsPrice(p.OrdType) {
		msg.Price = p.Price
	}
	if allowsStopPx(p.OrdType) {
		msg.StopPx = p.StopPx
	}
	return msg
}

// CancelParams is the caller-supplied content for a shadow
// OrderCancelRequest. Unlike replace, equal ClOrdID/OrigClOrdID values
// are legal for a cancel under this dialect (spec.md §4.4 Cancelled handler).
type CancelParams struct {
	ClOrdID      string
	OrigClOrdID  string
	Account      string
	Symbol       string
	Side         string
	TransactTime time.Time
}

func OrderCancelRequest(p CancelParams) fixproto.OrderCancelRequest {
	return fixproto.OrderCancelRequest{
		ClOrdID:      TruncateClOrdID(p.ClOrdID),
		OrigClOrdID:  TruncateClOrdID(p.OrigClOrdID),
		Account:      p.Account,
		Symbol:       p.Symbol,
		Side:         p.Side,
		TransactTime: p.TransactTime,
	}
}

// QuoteRequestParams is the caller-supplied content for a short-locate
// quote request.
type QuoteRequestParams struct {
	QuoteReqID    string
	Symbol        string
	Side          string
	Account       string
	OrderQty      decimal.Decimal
	ExDestination string
	TransactTime  time.Time
}

func QuoteRequest(p QuoteRequestParams) fixproto.QuoteRequest {
	return fixproto.QuoteRequest{
		QuoteReqID:    TruncateQuoteReqID(p.QuoteReqID),
		Symbol:        p.Symbol,
		Side:          p.Side,
		Account:       p.Account,
		OrderQty:      p.OrderQty,
		ExDestination: p.ExDestination,
		TransactTime:  p.TransactTime,
	}
}

func allowsPrice(ordType string) bool {
	return ordType == fixproto.OrdTypeLimit || ordType == fixproto.OrdTypeStopLimit
}

func allowsStopPx(ordType string) bool {
	return ordType == fixproto.OrdTypeStop || ordType == fixproto.OrdTypeStopLimit
}

// ResolveTargetRoute implements spec.md §4.6's target-route resolution:
// a locate-originated order prefers locateRoute, then copyRoute, then
// the order's original ExDestination; a non-locate copy prefers
// copyRoute, then original.
func ResolveTargetRoute(isLocateOrder bool, locateRoute, copyRoute, originalRoute string) string {
	if isLocateOrder {
		if locateRoute != "" {
			return locateRoute
		}
	}
	if copyRoute != "" {
		return copyRoute
	}
	return originalRoute
}
