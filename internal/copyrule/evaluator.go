// Package copyrule implements the Copy-Rule Evaluator (spec.md §4.6):
// given a primary order and the set of active CopyRules targeting its
// account, compute the ordered list of shadow replications to emit.
package copyrule

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/epic1st/shadowfix/internal/domain"
)

// Plan is one shadow account's computed replication instruction for a
// single primary order.
type Plan struct {
	Rule          domain.CopyRule
	ShadowAccount domain.Account
	CopyQty       decimal.Decimal
}

// Evaluate filters rules to those that apply to a primary order of the
// given OrdType and quantity, computes each surviving rule's copy
// quantity, drops non-positive results, and returns the plans in the
// deterministic order the caller's rules slice is already sorted in
// (priority ascending, then shadow account lexicographic — the
// Reference Cache produces rules in that order already).
func Evaluate(rules []domain.CopyRule, resolveShadow func(shadowAccountID uuid.UUID) (domain.Account, bool), ordType string, primaryQty decimal.Decimal) []Plan {
	var plans []Plan
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if !r.AllowsOrdType(ordType) {
			continue
		}
		copyQty := ComputeCopyQty(r, primaryQty)
		if copyQty.Sign() <= 0 {
			continue
		}
		shadow, ok := resolveShadow(r.ShadowAccountID)
		if !ok {
			continue
		}
		plans = append(plans, Plan{Rule: r, ShadowAccount: shadow, CopyQty: copyQty})
	}
	return plans
}

// ComputeCopyQty filters the primary order quantity against
// [minQuantity, maxQuantity], dropping the rule entirely (returning
// zero) when it falls outside that range, then applies the rule's
// ratio to the primary quantity. spec.md §4.6 orders the algorithm
// "filter by [minQuantity, maxQuantity]" strictly before "compute
// copyQty" — the bounds gate eligibility of the primary order for this
// rule, they do not clamp the resulting copy quantity. A zero
// MinQuantity/MaxQuantity means "no bound" (the natural zero value for
// a field most rules never set).
func ComputeCopyQty(r domain.CopyRule, primaryQty decimal.Decimal) decimal.Decimal {
	if !r.MinQuantity.IsZero() && primaryQty.LessThan(r.MinQuantity) {
		return decimal.Zero
	}
	if !r.MaxQuantity.IsZero() && primaryQty.GreaterThan(r.MaxQuantity) {
		return decimal.Zero
	}

	switch r.RatioType {
	case domain.RatioPercentage:
		return primaryQty.Mul(r.RatioValue).Div(decimal.NewFromInt(100)).Truncate(0)
	case domain.RatioMultiplier:
		return primaryQty.Mul(r.RatioValue).Truncate(0)
	case domain.RatioFixedQuantity:
		return r.RatioValue.Truncate(0)
	default:
		return decimal.Zero
	}
}
