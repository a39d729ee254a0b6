package domain

import "testing"

// =============================================================================
// Catalog Invariants
// =============================================================================

func TestTierOrderMatchesRanks(t *testing.T) {
	for i, tier := range TierOrder {
		if got := TierRank(tier); got != i {
			t.Errorf("TierRank(%s) = %d, want %d", tier, got, i)
		}
	}
}

func TestFeatureSetsAreSupersets(t *testing.T) {
	// Each tier must grant every feature of the tier below it. The minimum
	// tier lookup and all hierarchy comparisons rely on this.
	for i := 1; i < len(TierOrder); i++ {
		lower := GetPlan(TierOrder[i-1])
		higher := GetPlan(TierOrder[i])
		for feature := range lower.Features {
			if !higher.Features[feature] {
				t.Errorf("%s lacks %s granted by %s", higher.Tier, feature, lower.Tier)
			}
		}
	}
}

func TestLimitsNeverShrinkUpTier(t *testing.T) {
	actions := []MeterAction{MeterActionInvoices, MeterActionBills}
	for i := 1; i < len(TierOrder); i++ {
		for _, action := range actions {
			lower := LimitFor(TierOrder[i-1], action)
			higher := LimitFor(TierOrder[i], action)
			if higher.IsUnlimited() {
				continue
			}
			if lower.IsUnlimited() || higher < lower {
				t.Errorf("%s limit for %s (%d) below %s (%d)",
					TierOrder[i], action, higher, TierOrder[i-1], lower)
			}
		}
	}
}

func TestGetPlanUnknownTierFailsClosed(t *testing.T) {
	plan := GetPlan(PlanTier("enterprise"))
	if plan.Tier != PlanTierFree {
		t.Errorf("unknown tier resolved to %s, want free", plan.Tier)
	}
	if HasFeature("enterprise", FeatureAccounting) {
		t.Error("unknown tier granted a paid feature")
	}
}

func TestLimitForUnknownActionIsZero(t *testing.T) {
	if got := LimitFor(PlanTierPremium, MeterAction("exports")); got != 0 {
		t.Errorf("unknown action limit = %d, want 0", got)
	}
}

// =============================================================================
// Hierarchy Lookups
// =============================================================================

func TestMeetsMinimumTier(t *testing.T) {
	tests := []struct {
		tier     PlanTier
		required PlanTier
		want     bool
	}{
		{PlanTierFree, PlanTierFree, true},
		{PlanTierFree, PlanTierStarter, false},
		{PlanTierStarter, PlanTierStarter, true},
		{PlanTierProfessional, PlanTierStarter, true},
		{PlanTierPremium, PlanTierProfessional, true},
		{PlanTierStarter, PlanTierPremium, false},
		{PlanTier("bogus"), PlanTierStarter, false},
	}

	for _, tc := range tests {
		if got := MeetsMinimumTier(tc.tier, tc.required); got != tc.want {
			t.Errorf("MeetsMinimumTier(%s, %s) = %v, want %v", tc.tier, tc.required, got, tc.want)
		}
	}
}

func TestMinimumTierForFeature(t *testing.T) {
	tests := []struct {
		feature Feature
		want    PlanTier
		ok      bool
	}{
		{FeatureBranding, PlanTierStarter, true},
		{FeatureAccounting, PlanTierProfessional, true},
		{FeatureInventory, PlanTierProfessional, true},
		{FeatureAIScanner, PlanTierPremium, true},
		{FeatureAIChatbot, PlanTierPremium, true},
		{FeaturePayroll, PlanTierPremium, true},
		{Feature("time_travel"), "", false},
	}

	for _, tc := range tests {
		got, ok := MinimumTierForFeature(tc.feature)
		if got != tc.want || ok != tc.ok {
			t.Errorf("MinimumTierForFeature(%s) = (%s, %v), want (%s, %v)",
				tc.feature, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMinimumTierForAction(t *testing.T) {
	tests := []struct {
		action   MeterAction
		consumed int64
		want     PlanTier
	}{
		{MeterActionInvoices, 0, PlanTierFree},
		{MeterActionInvoices, 4, PlanTierFree},
		{MeterActionInvoices, 5, PlanTierStarter},
		{MeterActionInvoices, 49, PlanTierStarter},
		{MeterActionInvoices, 50, PlanTierProfessional},
		{MeterActionInvoices, 100000, PlanTierProfessional},
		{MeterActionBills, 5, PlanTierStarter},
	}

	for _, tc := range tests {
		if got := MinimumTierForAction(tc.action, tc.consumed); got != tc.want {
			t.Errorf("MinimumTierForAction(%s, %d) = %s, want %s",
				tc.action, tc.consumed, got, tc.want)
		}
	}
}

// =============================================================================
// Limit Arithmetic
// =============================================================================

func TestLimitAllows(t *testing.T) {
	tests := []struct {
		limit    Limit
		consumed int64
		want     bool
	}{
		{5, 0, true},
		{5, 4, true},
		{5, 5, false},
		{5, 6, false},
		{Unlimited, 1 << 40, true},
		{0, 0, false},
	}

	for _, tc := range tests {
		if got := tc.limit.Allows(tc.consumed); got != tc.want {
			t.Errorf("Limit(%d).Allows(%d) = %v, want %v", tc.limit, tc.consumed, got, tc.want)
		}
	}
}

func TestLimitRemaining(t *testing.T) {
	tests := []struct {
		limit    Limit
		consumed int64
		want     Limit
	}{
		{5, 0, 5},
		{5, 3, 2},
		{5, 5, 0},
		{5, 9, 0},
		{Unlimited, 123, Unlimited},
	}

	for _, tc := range tests {
		if got := tc.limit.Remaining(tc.consumed); got != tc.want {
			t.Errorf("Limit(%d).Remaining(%d) = %d, want %d", tc.limit, tc.consumed, got, tc.want)
		}
	}
}

func TestPlanTierValid(t *testing.T) {
	for _, tier := range TierOrder {
		if !tier.Valid() {
			t.Errorf("%s should be valid", tier)
		}
	}
	if PlanTier("platinum").Valid() {
		t.Error("unknown tier should not be valid")
	}
}
