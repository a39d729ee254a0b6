// Package domain contains core business types and interfaces.
//
// This file defines the plan catalog: the fixed, ordered set of subscription
// tiers with their prices, usage limits, and feature flags. The catalog is
// immutable and shared by every component that makes gating decisions.
package domain

// PlanTier represents the pricing tier of a subscription.
type PlanTier string

const (
	PlanTierFree         PlanTier = "free"
	PlanTierStarter      PlanTier = "starter"
	PlanTierProfessional PlanTier = "professional"
	PlanTierPremium      PlanTier = "premium"
)

// Valid reports whether t is a catalog tier.
func (t PlanTier) Valid() bool {
	_, ok := planCatalog[t]
	return ok
}

// TierOrder lists all tiers in ascending rank order. Hierarchy comparisons
// and "minimum tier" lookups iterate this slice; never reorder it.
var TierOrder = []PlanTier{
	PlanTierFree,
	PlanTierStarter,
	PlanTierProfessional,
	PlanTierPremium,
}

// Feature identifies a plan-gated capability.
type Feature string

const (
	FeatureBranding        Feature = "branding"
	FeatureAIScanner       Feature = "ai_scanner"
	FeatureAIChatbot       Feature = "ai_chatbot"
	FeatureAccounting      Feature = "accounting"
	FeatureInventory       Feature = "inventory"
	FeatureTaxCompliance   Feature = "tax_compliance"
	FeaturePayroll         Feature = "payroll"
	FeatureAdvancedReports Feature = "advanced_reports"
	FeaturePrioritySupport Feature = "priority_support"
)

// Features lists every known feature flag. Used to validate configuration
// and to report full entitlement sets to clients.
var Features = []Feature{
	FeatureBranding,
	FeatureAIScanner,
	FeatureAIChatbot,
	FeatureAccounting,
	FeatureInventory,
	FeatureTaxCompliance,
	FeaturePayroll,
	FeatureAdvancedReports,
	FeaturePrioritySupport,
}

// Limit is a per-period usage ceiling for a metered action.
// The Unlimited sentinel means the action is never limit-denied.
type Limit int64

// Unlimited marks a metered action with no per-period ceiling.
const Unlimited Limit = -1

// IsUnlimited reports whether the limit is the Unlimited sentinel.
func (l Limit) IsUnlimited() bool {
	return l == Unlimited
}

// Remaining returns how much quota is left given current consumption,
// floored at zero. Unlimited passes through unchanged.
func (l Limit) Remaining(consumed int64) Limit {
	if l.IsUnlimited() {
		return Unlimited
	}
	if consumed >= int64(l) {
		return 0
	}
	return l - Limit(consumed)
}

// Allows reports whether one more consumption is permitted at the given count.
func (l Limit) Allows(consumed int64) bool {
	return l.IsUnlimited() || consumed < int64(l)
}

// PlanLimits holds the per-period ceilings for each metered action.
type PlanLimits struct {
	Invoices Limit
	Bills    Limit
}

// Plan describes one tier of the catalog.
type Plan struct {
	Tier              PlanTier
	Rank              int
	MonthlyPriceCents int64
	Limits            PlanLimits
	Features          map[Feature]bool
}

// planCatalog is the fixed tier catalog. Feature sets are strict supersets up
// the rank order; tierRank comparisons rely on that.
var planCatalog = map[PlanTier]Plan{
	PlanTierFree: {
		Tier:              PlanTierFree,
		Rank:              0,
		MonthlyPriceCents: 0,
		Limits:            PlanLimits{Invoices: 5, Bills: 5},
		Features:          featureSet(),
	},
	PlanTierStarter: {
		Tier:              PlanTierStarter,
		Rank:              1,
		MonthlyPriceCents: 1900,
		Limits:            PlanLimits{Invoices: 50, Bills: 50},
		Features:          featureSet(FeatureBranding),
	},
	PlanTierProfessional: {
		Tier:              PlanTierProfessional,
		Rank:              2,
		MonthlyPriceCents: 4900,
		Limits:            PlanLimits{Invoices: Unlimited, Bills: Unlimited},
		Features: featureSet(
			FeatureBranding,
			FeatureAccounting,
			FeatureInventory,
			FeatureTaxCompliance,
			FeatureAdvancedReports,
		),
	},
	PlanTierPremium: {
		Tier:              PlanTierPremium,
		Rank:              3,
		MonthlyPriceCents: 9900,
		Limits:            PlanLimits{Invoices: Unlimited, Bills: Unlimited},
		Features: featureSet(
			FeatureBranding,
			FeatureAccounting,
			FeatureInventory,
			FeatureTaxCompliance,
			FeatureAdvancedReports,
			FeatureAIScanner,
			FeatureAIChatbot,
			FeaturePayroll,
			FeaturePrioritySupport,
		),
	},
}

func featureSet(features ...Feature) map[Feature]bool {
	set := make(map[Feature]bool, len(features))
	for _, f := range features {
		set[f] = true
	}
	return set
}

// GetPlan returns the catalog entry for a tier. Unknown tier values fall back
// to the Free plan, the most restrictive entry (fail-closed).
func GetPlan(tier PlanTier) Plan {
	if plan, ok := planCatalog[tier]; ok {
		return plan
	}
	return planCatalog[PlanTierFree]
}

// TierRank returns the ordinal rank of a tier (Free=0 ... Premium=3).
// Unknown tiers rank as Free.
func TierRank(tier PlanTier) int {
	return GetPlan(tier).Rank
}

// MeetsMinimumTier reports whether tier is at least the required tier.
// This is the sole hierarchy comparison rule: higher-ranked tiers inherit
// every capability of lower-ranked tiers.
func MeetsMinimumTier(tier, required PlanTier) bool {
	return TierRank(tier) >= TierRank(required)
}

// HasFeature reports whether the tier's plan grants the feature.
func HasFeature(tier PlanTier, feature Feature) bool {
	return GetPlan(tier).Features[feature]
}

// LimitFor returns the tier's per-period limit for a metered action.
func LimitFor(tier PlanTier, action MeterAction) Limit {
	limits := GetPlan(tier).Limits
	switch action {
	case MeterActionInvoices:
		return limits.Invoices
	case MeterActionBills:
		return limits.Bills
	default:
		// Unknown actions are never permitted.
		return 0
	}
}

// PriceFor returns the tier's monthly price in cents. Informational only;
// gating never consults price.
func PriceFor(tier PlanTier) int64 {
	return GetPlan(tier).MonthlyPriceCents
}

// MinimumTierForFeature returns the lowest-ranked tier that grants the
// feature, and false if no tier does.
func MinimumTierForFeature(feature Feature) (PlanTier, bool) {
	for _, tier := range TierOrder {
		if HasFeature(tier, feature) {
			return tier, true
		}
	}
	return "", false
}

// MinimumTierForAction returns the lowest-ranked tier whose limit for the
// action would still allow one more consumption at the given count.
// Premium is unlimited for every metered action, so a tier always exists.
func MinimumTierForAction(action MeterAction, consumed int64) PlanTier {
	for _, tier := range TierOrder {
		if LimitFor(tier, action).Allows(consumed) {
			return tier
		}
	}
	return PlanTierPremium
}
