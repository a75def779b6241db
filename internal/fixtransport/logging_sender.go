// Package fixtransport provides the default fixproto.Sender used when
// no real FIX session engine is wired in. The wire-level session
// itself (framing, sequence numbers, store-and-forward, gap-fill) is
// explicitly an external collaborator per spec.md §4.1/§6 — this
// package does not implement one. LoggingSender exists so the gateway
// is runnable end to end in development and in this repo's tests
// without a live broker connection; production deployments inject a
// Sender backed by a real FIX engine instead.
package fixtransport

import (
	"github.com/epic1st/shadowfix/internal/fixproto"
	"github.com/epic1st/shadowfix/internal/logging"
)

// LoggingSender implements fixproto.Sender by logging every outbound
// message at Info level instead of writing to a wire session.
type LoggingSender struct {
	logger *logging.Logger
}

// NewLoggingSender builds a LoggingSender.
func NewLoggingSender(logger *logging.Logger) *LoggingSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LoggingSender{logger: logger.With(logging.Component("fixtransport"))}
}

func (s *LoggingSender) SendNewOrderSingle(sessionID string, msg fixproto.NewOrderSingle) error {
	s.logger.Info("outbound NewOrderSingle",
		logging.SessionID(sessionID), logging.FixClOrdID(msg.ClOrdID), logging.Symbol(msg.Symbol),
		logging.String("account", msg.Account), logging.String("side", msg.Side))
	return nil
}

func (s *LoggingSender) SendOrderCancelReplaceRequest(sessionID string, msg fixproto.OrderCancelReplaceRequest) error {
	s.logger.Info("outbound OrderCancelReplaceRequest",
		logging.SessionID(sessionID), logging.FixClOrdID(msg.ClOrdID), logging.OrigClOrdID(msg.OrigClOrdID), logging.Symbol(msg.Symbol))
	return nil
}

func (s *LoggingSender) SendOrderCancelRequest(sessionID string, msg fixproto.OrderCancelRequest) error {
	s.logger.Info("outbound OrderCancelRequest",
		logging.SessionID(sessionID), logging.FixClOrdID(msg.ClOrdID), logging.OrigClOrdID(msg.OrigClOrdID), logging.Symbol(msg.Symbol))
	return nil
}

func (s *LoggingSender) SendQuoteRequest(sessionID string, msg fixproto.QuoteRequest) error {
	s.logger.Info("outbound QuoteRequest",
		logging.SessionID(sessionID), logging.String("quoteReqId", msg.QuoteReqID), logging.Symbol(msg.Symbol))
	return nil
}

func (s *LoggingSender) SendLocateOfferResponse(sessionID string, msg fixproto.LocateOfferResponse) error {
	s.logger.Info("outbound LocateOfferResponse",
		logging.SessionID(sessionID), logging.String("account", msg.Account), logging.Symbol(msg.Symbol),
		logging.Bool("accept", msg.Accept))
	return nil
}
