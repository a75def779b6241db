// Package classify implements the Primary/Shadow Classifier (spec.md
// §4.3): three ordered rules that decide whether an inbound
// ExecutionReport belongs to a primary order eligible for replication,
// a shadow order that must only be recorded, or an unknown account
// that is recorded and logged.
package classify

import (
	"strings"

	"github.com/epic1st/shadowfix/internal/domain"
)

// Classification is the outcome of classifying one ExecutionReport.
type Classification string

const (
	// ClassPrimary means the event is for a primary order; it is a
	// replication candidate.
	ClassPrimary Classification = "PRIMARY"
	// ClassShadow means the event is for an order the engine itself
	// emitted (ClOrdID begins with COPY-); append-only, never replicate.
	ClassShadow Classification = "SHADOW"
	// ClassUnknownAccount means the Account tag did not resolve in the
	// reference cache; append-only, log a warning.
	ClassUnknownAccount Classification = "UNKNOWN_ACCOUNT"
)

// ShadowClOrdIDPrefix is the marker identifying a shadow order's ClOrdID.
const ShadowClOrdIDPrefix = "COPY-"

// LocateClOrdIDPrefix is the legacy marker for a primary locate order,
// per spec.md §9 Open Questions — both LOC- and COPY- are valid locate
// markers and neither is synthesized by this engine.
const LocateClOrdIDPrefix = "LOC-"

// IsShadowClOrdID reports whether clOrdID marks a shadow order.
func IsShadowClOrdID(clOrdID string) bool {
	return strings.HasPrefix(clOrdID, ShadowClOrdIDPrefix)
}

// IsLocateClOrdID reports whether clOrdID marks a primary locate order
// under the legacy convention.
func IsLocateClOrdID(clOrdID string) bool {
	return strings.HasPrefix(clOrdID, LocateClOrdIDPrefix)
}

// AccountLookup resolves a FIX Account tag value to reference data.
type AccountLookup func(accountNumber string) (domain.Account, bool)

// Classify applies spec.md §4.3's three ordered rules.
func Classify(clOrdID, accountNumber string, lookup AccountLookup) Classification {
	if IsShadowClOrdID(clOrdID) {
		return ClassShadow
	}

	account, ok := lookup(accountNumber)
	if !ok {
		return ClassUnknownAccount
	}
	if account.Type == domain.AccountTypeShadow {
		// A shadow account event without the COPY- prefix: still
		// observational only, per rule 2.
		return ClassShadow
	}
	return ClassPrimary
}
