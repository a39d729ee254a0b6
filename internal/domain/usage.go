// Package domain contains core business types and interfaces.
//
// This file defines usage metering types: the metered actions, period keys,
// per-period counters, and the GateDecision value returned to feature code.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MeterAction identifies a metered, per-period action.
type MeterAction string

const (
	MeterActionInvoices MeterAction = "invoices"
	MeterActionBills    MeterAction = "bills"
)

// MeterActions lists every metered action.
var MeterActions = []MeterAction{MeterActionInvoices, MeterActionBills}

// Valid checks if the action is a known metered action.
func (a MeterAction) Valid() bool {
	switch a {
	case MeterActionInvoices, MeterActionBills:
		return true
	default:
		return false
	}
}

// PeriodKey identifies one billing period. Periods follow the UTC calendar
// month ("2026-09"); rollover is implicit: a new key starts from a
// lazily-created zero counter, so no scheduled reset is required.
type PeriodKey string

// CurrentPeriodKey returns the period key for the given instant in UTC.
func CurrentPeriodKey(t time.Time) PeriodKey {
	return PeriodKey(t.UTC().Format("2006-01"))
}

// PeriodBounds returns the UTC start (inclusive) and end (exclusive) of the
// period the instant falls in.
func PeriodBounds(t time.Time) (start, end time.Time) {
	u := t.UTC()
	start = time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

// UsageCounter tracks consumption of one metered action for one company in
// one period. Counts are monotonically non-decreasing within a period and
// only the usage service mutates them.
type UsageCounter struct {
	CompanyID uuid.UUID
	PeriodKey PeriodKey
	Action    MeterAction
	Consumed  int64
	UpdatedAt time.Time
}

// UsageSummary reports consumption against the active plan's limits for
// display. Remaining is Unlimited when the plan limit is.
type UsageSummary struct {
	Action    MeterAction
	Consumed  int64
	Limit     Limit
	Remaining Limit
}

// GateReason explains a denial.
type GateReason string

const (
	GateReasonLimitExceeded    GateReason = "limit_exceeded"
	GateReasonPlanInsufficient GateReason = "plan_insufficient"
)

// GateDecision is the ephemeral result of a gating check. It is constructed
// per call and never persisted. Denials always carry the reason and the
// minimum tier that would resolve it so callers can render an upgrade prompt
// instead of a bare failure. Limit denials additionally carry the period's
// consumed count and the plan limit it ran into.
type GateDecision struct {
	Permitted   bool
	Reason      GateReason
	MinimumTier PlanTier
	Consumed    int64
	Limit       Limit
}

// Allow returns a permitting decision.
func Allow() GateDecision {
	return GateDecision{Permitted: true}
}

// Deny returns a denying decision with the reason and required tier.
func Deny(reason GateReason, minimum PlanTier) GateDecision {
	return GateDecision{Permitted: false, Reason: reason, MinimumTier: minimum}
}

// DenyLimited returns a limit-exceeded denial carrying the consumed count and
// the limit that blocked the action.
func DenyLimited(minimum PlanTier, consumed int64, limit Limit) GateDecision {
	return GateDecision{
		Permitted:   false,
		Reason:      GateReasonLimitExceeded,
		MinimumTier: minimum,
		Consumed:    consumed,
		Limit:       limit,
	}
}

func (d GateDecision) String() string {
	if d.Permitted {
		return "permitted"
	}
	return fmt.Sprintf("denied (%s, requires %s)", d.Reason, d.MinimumTier)
}

// Entitlements is the display view of a company's plan: its effective tier,
// the features that tier grants and the current period's metered usage.
type Entitlements struct {
	Tier     PlanTier
	Status   SubscriptionStatus
	Features []Feature
	Usage    []UsageSummary
}
