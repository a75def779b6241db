// Package execctx holds the ExecReportContext type shared by the
// Dispatcher and the handlers it selects (Replication Engine, Locate
// Protocol Engine), kept in its own package so neither handler package
// needs to import the Dispatcher.
package execctx

import (
	"github.com/epic1st/shadowfix/internal/classify"
	"github.com/epic1st/shadowfix/internal/fixproto"
)

// ExecReportContext is the parsed, classified view of one inbound
// ExecutionReport that every handler operates on.
type ExecReportContext struct {
	Report           fixproto.ExecutionReport
	Class            classify.Classification
	IsShortSide      bool // Side ∈ {SELL_SHORT, SELL_SHORT_EXEMPT}
	IsLocateOrder    bool // ClOrdID carries the legacy LOC- marker
	SerializationKey string // fixOrderId, falling back to ClOrdID
}

// New builds a context, applying the short-side/locate-order flags the
// selection matrix and the Replication/Locate engines both need.
func New(report fixproto.ExecutionReport, class classify.Classification) ExecReportContext {
	key := report.OrderID
	if key == "" {
		key = report.ClOrdID
	}
	return ExecReportContext{
		Report:           report,
		Class:            class,
		IsShortSide:      report.Side == fixproto.SideSellShort || report.Side == fixproto.SideSellShortExempt,
		IsLocateOrder:    classify.IsLocateClOrdID(report.ClOrdID),
		SerializationKey: key,
	}
}
