package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCurrentPeriodKey(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want PeriodKey
	}{
		{
			name: "utc instant",
			in:   time.Date(2026, time.September, 15, 12, 0, 0, 0, time.UTC),
			want: "2026-09",
		},
		{
			name: "local time normalized to utc",
			in:   time.Date(2026, time.October, 1, 0, 30, 0, 0, time.FixedZone("CEST", 2*3600)),
			want: "2026-09",
		},
		{
			name: "last instant of month",
			in:   time.Date(2026, time.September, 30, 23, 59, 59, 0, time.UTC),
			want: "2026-09",
		},
		{
			name: "first instant of next month",
			in:   time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC),
			want: "2026-10",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CurrentPeriodKey(tt.in); got != tt.want {
				t.Errorf("CurrentPeriodKey(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPeriodBounds(t *testing.T) {
	start, end := PeriodBounds(time.Date(2026, time.February, 14, 9, 30, 0, 0, time.UTC))
	wantStart := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}

	// December rolls over into the next year.
	start, end = PeriodBounds(time.Date(2026, time.December, 31, 23, 0, 0, 0, time.UTC))
	if got := end.Year(); got != 2027 {
		t.Errorf("end year = %d, want 2027", got)
	}
	if start.Month() != time.December || end.Month() != time.January {
		t.Errorf("bounds = %v..%v, want December..January", start, end)
	}
}

func TestMeterActionValid(t *testing.T) {
	for _, a := range MeterActions {
		if !a.Valid() {
			t.Errorf("MeterAction %q should be valid", a)
		}
	}
	if MeterAction("exports").Valid() {
		t.Error("unknown action should not be valid")
	}
	if MeterAction("").Valid() {
		t.Error("empty action should not be valid")
	}
}

func TestGateDecision(t *testing.T) {
	allow := Allow()
	if !allow.Permitted {
		t.Error("Allow() should be permitted")
	}
	if allow.Reason != "" || allow.MinimumTier != "" {
		t.Errorf("Allow() should carry no reason or tier, got %+v", allow)
	}

	deny := Deny(GateReasonLimitExceeded, PlanTierStarter)
	if deny.Permitted {
		t.Error("Deny() should not be permitted")
	}
	if deny.Reason != GateReasonLimitExceeded {
		t.Errorf("reason = %q, want %q", deny.Reason, GateReasonLimitExceeded)
	}
	if deny.MinimumTier != PlanTierStarter {
		t.Errorf("minimum tier = %q, want %q", deny.MinimumTier, PlanTierStarter)
	}

	limited := DenyLimited(PlanTierProfessional, 60, 50)
	if limited.Permitted {
		t.Error("DenyLimited() should not be permitted")
	}
	if limited.Reason != GateReasonLimitExceeded {
		t.Errorf("reason = %q, want %q", limited.Reason, GateReasonLimitExceeded)
	}
	if limited.Consumed != 60 || limited.Limit != 50 {
		t.Errorf("counters = (%d, %d), want (60, 50)", limited.Consumed, limited.Limit)
	}
}

func TestGateDecisionString(t *testing.T) {
	if got := Allow().String(); got != "permitted" {
		t.Errorf("String() = %q, want %q", got, "permitted")
	}
	got := Deny(GateReasonPlanInsufficient, PlanTierPremium).String()
	want := "denied (plan_insufficient, requires premium)"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSubscriptionIsActive(t *testing.T) {
	tests := []struct {
		status SubscriptionStatus
		want   bool
	}{
		{SubscriptionStatusActive, true},
		{SubscriptionStatusPastDue, true},
		{SubscriptionStatusInactive, false},
	}
	for _, tt := range tests {
		sub := &Subscription{Status: tt.status}
		if got := sub.IsActive(); got != tt.want {
			t.Errorf("IsActive() with status %q = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestSubscriptionEffectiveTier(t *testing.T) {
	sub := &Subscription{Tier: PlanTierPremium, Status: SubscriptionStatusActive}
	if got := sub.EffectiveTier(); got != PlanTierPremium {
		t.Errorf("active premium EffectiveTier() = %q, want premium", got)
	}

	sub.Status = SubscriptionStatusPastDue
	if got := sub.EffectiveTier(); got != PlanTierPremium {
		t.Errorf("past_due premium EffectiveTier() = %q, want premium", got)
	}

	sub.Status = SubscriptionStatusInactive
	if got := sub.EffectiveTier(); got != PlanTierFree {
		t.Errorf("inactive premium EffectiveTier() = %q, want free", got)
	}
}

func TestDefaultSubscription(t *testing.T) {
	companyID := uuid.New()
	sub := DefaultSubscription(companyID)

	if sub.CompanyID != companyID {
		t.Errorf("company ID = %v, want %v", sub.CompanyID, companyID)
	}
	if sub.Tier != PlanTierFree {
		t.Errorf("tier = %q, want free", sub.Tier)
	}
	if !sub.IsActive() {
		t.Error("default subscription should be active")
	}

	wantStart, _ := PeriodBounds(time.Now().UTC())
	if !sub.PeriodStart.Equal(wantStart) {
		t.Errorf("period start = %v, want %v", sub.PeriodStart, wantStart)
	}
}
