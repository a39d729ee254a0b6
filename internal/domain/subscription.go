// Package domain contains core business types and interfaces.
//
// This file defines the Subscription type: one row per company tracking the
// active plan tier and its lifecycle status. Subscriptions are mutated only by
// the subscription service and are never deleted; cancellation soft-transitions
// the company back to the Free tier.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
)

// Subscription is a company's current plan assignment.
//
// Invariant: exactly one subscription row per company. A company with no row
// yet is treated as Free/active with zero usage (new tenants are never blocked
// from free-tier functionality).
type Subscription struct {
	ID                   uuid.UUID
	CompanyID            uuid.UUID
	Tier                 PlanTier
	Status               SubscriptionStatus
	PeriodStart          time.Time
	StripeCustomerID     string
	StripeSubscriptionID string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsActive returns true if the subscription is in a state that grants access.
// Past-due subscriptions keep access until the payment processor gives up.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusPastDue
}

// EffectiveTier returns the tier used for gating decisions. An inactive
// subscription is gated as Free regardless of the recorded tier.
func (s *Subscription) EffectiveTier() PlanTier {
	if !s.IsActive() {
		return PlanTierFree
	}
	return s.Tier
}

// DefaultSubscription returns the in-memory subscription used for companies
// that have never been provisioned a row: Free tier, active, current period.
func DefaultSubscription(companyID uuid.UUID) *Subscription {
	now := time.Now().UTC()
	return &Subscription{
		CompanyID:   companyID,
		Tier:        PlanTierFree,
		Status:      SubscriptionStatusActive,
		PeriodStart: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC),
	}
}
