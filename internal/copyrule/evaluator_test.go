package copyrule

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/epic1st/shadowfix/internal/domain"
	"github.com/epic1st/shadowfix/internal/fixproto"
)

func TestComputeCopyQtyPercentage(t *testing.T) {
	r := domain.CopyRule{RatioType: domain.RatioPercentage, RatioValue: decimal.NewFromInt(50)}
	got := ComputeCopyQty(r, decimal.NewFromInt(1000))
	want := decimal.NewFromInt(500)
	if !got.Equal(want) {
		t.Errorf("ComputeCopyQty = %s, want %s", got, want)
	}
}

func TestComputeCopyQtyMultiplier(t *testing.T) {
	r := domain.CopyRule{RatioType: domain.RatioMultiplier, RatioValue: decimal.NewFromFloat(0.25)}
	got := ComputeCopyQty(r, decimal.NewFromInt(400))
	want := decimal.NewFromInt(100)
	if !got.Equal(want) {
		t.Errorf("ComputeCopyQty = %s, want %s", got, want)
	}
}

func TestComputeCopyQtyFixedQuantity(t *testing.T) {
	r := domain.CopyRule{RatioType: domain.RatioFixedQuantity, RatioValue: decimal.NewFromInt(75)}
	got := ComputeCopyQty(r, decimal.NewFromInt(10000))
	want := decimal.NewFromInt(75)
	if !got.Equal(want) {
		t.Errorf("ComputeCopyQty = %s, want %s", got, want)
	}
}

func TestComputeCopyQtyBelowMinimumDropsRule(t *testing.T) {
	r := domain.CopyRule{
		RatioType: domain.RatioPercentage, RatioValue: decimal.NewFromInt(10),
		MinQuantity: decimal.NewFromInt(200),
	}
	got := ComputeCopyQty(r, decimal.NewFromInt(100))
	if !got.IsZero() {
		t.Errorf("ComputeCopyQty = %s, want 0 (primaryQty below minQuantity drops the rule)", got)
	}
}

func TestComputeCopyQtyAboveMaximumDropsRule(t *testing.T) {
	// spec.md §4.6 filters the primary quantity against
	// [minQuantity, maxQuantity] before the ratio is ever applied, so a
	// primary quantity over the bound drops the rule even though the
	// post-ratio quantity would itself fall under maxQuantity.
	r := domain.CopyRule{
		RatioType: domain.RatioPercentage, RatioValue: decimal.NewFromInt(10),
		MaxQuantity: decimal.NewFromInt(1000),
	}
	got := ComputeCopyQty(r, decimal.NewFromInt(5000))
	if !got.IsZero() {
		t.Errorf("ComputeCopyQty = %s, want 0 (primaryQty above maxQuantity drops the rule)", got)
	}
}

func TestComputeCopyQtyWithinBoundsAppliesRatio(t *testing.T) {
	r := domain.CopyRule{
		RatioType: domain.RatioPercentage, RatioValue: decimal.NewFromInt(10),
		MinQuantity: decimal.NewFromInt(50), MaxQuantity: decimal.NewFromInt(1000),
	}
	got := ComputeCopyQty(r, decimal.NewFromInt(500))
	want := decimal.NewFromInt(50)
	if !got.Equal(want) {
		t.Errorf("ComputeCopyQty = %s, want %s", got, want)
	}
}

func TestEvaluateDropsInactiveAndDisallowedOrdTypes(t *testing.T) {
	activeRule := domain.CopyRule{
		ID: uuid.New(), ShadowAccountID: uuid.New(), Active: true,
		RatioType: domain.RatioPercentage, RatioValue: decimal.NewFromInt(100),
	}
	inactiveRule := domain.CopyRule{
		ID: uuid.New(), ShadowAccountID: uuid.New(), Active: false,
		RatioType: domain.RatioPercentage, RatioValue: decimal.NewFromInt(100),
	}
	restrictedRule := domain.CopyRule{
		ID: uuid.New(), ShadowAccountID: uuid.New(), Active: true,
		RatioType: domain.RatioPercentage, RatioValue: decimal.NewFromInt(100),
		OrderTypes: map[string]struct{}{fixproto.OrdTypeLimit: {}},
	}

	accounts := map[uuid.UUID]domain.Account{
		activeRule.ShadowAccountID:     {ID: activeRule.ShadowAccountID, Number: "SHDW1"},
		restrictedRule.ShadowAccountID: {ID: restrictedRule.ShadowAccountID, Number: "SHDW2"},
	}
	resolve := func(id uuid.UUID) (domain.Account, bool) {
		a, ok := accounts[id]
		return a, ok
	}

	plans := Evaluate([]domain.CopyRule{activeRule, inactiveRule, restrictedRule}, resolve, fixproto.OrdTypeMarket, decimal.NewFromInt(100))

	if len(plans) != 1 {
		t.Fatalf("expected 1 plan (market order skips the LIMIT-only rule and the inactive rule), got %d", len(plans))
	}
	if plans[0].ShadowAccount.Number != "SHDW1" {
		t.Errorf("expected plan for SHDW1, got %s", plans[0].ShadowAccount.Number)
	}
}
