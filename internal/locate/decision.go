package locate

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/epic1st/shadowfix/internal/logging"
)

// Offer is the unsolicited TYPE_1 locate offer a DecisionService judges.
type Offer struct {
	Symbol      string
	Quantity    decimal.Decimal
	OfferPx     decimal.Decimal
	OfferSize   decimal.Decimal
	MaxQuantity decimal.Decimal // the governing CopyRule's maxQuantity, 0 = unbounded
}

// DecisionService decides accept/reject for a TYPE_1 unsolicited offer
// (spec.md §4.5).
type DecisionService interface {
	Decide(ctx context.Context, offer Offer) bool
}

// LocateDecisionService is the default DecisionService, grounded on
// spec.md §4.15: a local heuristic runs first and an optional risk
// webhook can only veto an accept, never force one the heuristic
// rejected.
type LocateDecisionService struct {
	webhookClient *resty.Client
	webhookURL    string
	logger        *logging.Logger
}

// NewLocateDecisionService builds a decision service. webhookURL may be
// empty, in which case only the local heuristic is consulted.
func NewLocateDecisionService(webhookURL string, logger *logging.Logger) *LocateDecisionService {
	if logger == nil {
		logger = logging.Default()
	}
	svc := &LocateDecisionService{webhookURL: webhookURL, logger: logger.With(logging.Component("locate-decision"))}
	if webhookURL != "" {
		svc.webhookClient = resty.New().SetTimeout(2 * time.Second)
	}
	return svc
}

// Decide implements DecisionService.
func (s *LocateDecisionService) Decide(ctx context.Context, offer Offer) bool {
	if !s.passesLocalHeuristic(offer) {
		return false
	}
	if s.webhookClient == nil {
		return true
	}
	return s.passesWebhook(ctx, offer)
}

func (s *LocateDecisionService) passesLocalHeuristic(offer Offer) bool {
	if offer.OfferSize.Sign() <= 0 {
		return false
	}
	if !offer.MaxQuantity.IsZero() && offer.OfferSize.GreaterThan(offer.MaxQuantity) {
		return false
	}
	return true
}

type webhookDecisionRequest struct {
	Symbol    string `json:"symbol"`
	Quantity  string `json:"quantity"`
	OfferPx   string `json:"offerPx"`
	OfferSize string `json:"offerSize"`
}

type webhookDecisionResponse struct {
	Accept bool `json:"accept"`
}

// passesWebhook posts the offer to the configured risk webhook. Any
// non-2xx response, timeout, or decode failure defers to the local
// heuristic's verdict (accept) rather than blocking correctness on an
// external call the engine does not control (spec.md §4.15).
func (s *LocateDecisionService) passesWebhook(ctx context.Context, offer Offer) bool {
	var body webhookDecisionResponse
	resp, err := s.webhookClient.R().
		SetContext(ctx).
		SetBody(webhookDecisionRequest{
			Symbol: offer.Symbol, Quantity: offer.Quantity.String(),
			OfferPx: offer.OfferPx.String(), OfferSize: offer.OfferSize.String(),
		}).
		SetResult(&body).
		Post(s.webhookURL)
	if err != nil {
		s.logger.Warn("locate risk webhook call failed, deferring to local heuristic", logging.Err(err))
		return true
	}
	if resp.IsError() {
		s.logger.Warn("locate risk webhook returned non-2xx, deferring to local heuristic", logging.Int("status", resp.StatusCode()))
		return true
	}
	return body.Accept
}
