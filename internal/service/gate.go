// Package service contains the business logic layer.
//
// This file implements the entitlement gate that feature areas consult
// before performing plan-gated or metered operations.
package service

import (
	"context"
	"log/slog"

	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/metrics"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// GateService is the single entry point for entitlement checks. Denials are
// ordinary GateDecision values; errors mean the gate could not determine the
// company's entitlements and callers must treat the operation as denied.
type GateService interface {
	// CheckFeature reports whether the company's plan includes the feature.
	// A denial carries the cheapest tier that would grant it.
	CheckFeature(ctx context.Context, companyID uuid.UUID, feature domain.Feature) (domain.GateDecision, error)

	// CheckAndReserve reports whether one more unit of a metered action fits
	// under the company's plan limit. It does not consume the unit; callers
	// call RecordConsumption after their downstream write succeeds. A denial
	// carries the cheapest tier whose limit would permit the action.
	CheckAndReserve(ctx context.Context, companyID uuid.UUID, action domain.MeterAction) (domain.GateDecision, error)

	// RecordConsumption charges one unit of a metered action after the gated
	// write durably succeeded, and returns the new count.
	RecordConsumption(ctx context.Context, companyID uuid.UUID, action domain.MeterAction) (int64, error)

	// Entitlements returns the company's effective tier and usage summaries
	// for display.
	Entitlements(ctx context.Context, companyID uuid.UUID) (*domain.Entitlements, error)
}

// =============================================================================
// Implementation
// =============================================================================

type gateService struct {
	subscriptions SubscriptionService
	usage         UsageService
	logger        *slog.Logger
}

// NewGateService creates a new GateService.
func NewGateService(subscriptions SubscriptionService, usage UsageService, logger *slog.Logger) GateService {
	return &gateService{
		subscriptions: subscriptions,
		usage:         usage,
		logger:        logger,
	}
}

func (s *gateService) CheckFeature(ctx context.Context, companyID uuid.UUID, feature domain.Feature) (domain.GateDecision, error) {
	const op = "gate.check_feature"

	minimum, known := domain.MinimumTierForFeature(feature)
	if !known {
		// Unknown features are never granted.
		return domain.GateDecision{}, domain.Invalid(op, "unknown feature")
	}

	sub, err := s.subscriptions.GetOrProvision(ctx, companyID)
	if err != nil {
		return domain.GateDecision{}, err
	}

	tier := sub.EffectiveTier()
	if !domain.HasFeature(tier, feature) {
		metrics.RecordGateDecision(string(feature), "denied")
		return domain.Deny(domain.GateReasonPlanInsufficient, minimum), nil
	}

	metrics.RecordGateDecision(string(feature), "permitted")
	return domain.Allow(), nil
}

func (s *gateService) CheckAndReserve(ctx context.Context, companyID uuid.UUID, action domain.MeterAction) (domain.GateDecision, error) {
	const op = "gate.check_and_reserve"

	if !action.Valid() {
		return domain.GateDecision{}, domain.Invalid(op, "unknown metered action")
	}

	sub, err := s.subscriptions.GetOrProvision(ctx, companyID)
	if err != nil {
		return domain.GateDecision{}, err
	}
	tier := sub.EffectiveTier()

	ok, consumed, err := s.usage.CanConsume(ctx, companyID, tier, action)
	if err != nil {
		return domain.GateDecision{}, err
	}
	if !ok {
		// Suggest the cheapest tier whose limit clears the consumed count.
		// The count, not the current plan's limit, drives the lookup: after
		// a downgrade the counter can sit well above the new limit, and a
		// suggestion based on the limit would name a tier that still denies.
		minimum := domain.MinimumTierForAction(action, consumed)
		metrics.RecordGateDecision(string(action), "denied")
		return domain.DenyLimited(minimum, consumed, domain.LimitFor(tier, action)), nil
	}

	metrics.RecordGateDecision(string(action), "permitted")
	return domain.Allow(), nil
}

func (s *gateService) RecordConsumption(ctx context.Context, companyID uuid.UUID, action domain.MeterAction) (int64, error) {
	sub, err := s.subscriptions.GetOrProvision(ctx, companyID)
	if err != nil {
		return 0, err
	}

	consumed, err := s.usage.RecordConsumption(ctx, companyID, sub.EffectiveTier(), action)
	if err != nil {
		return 0, err
	}

	s.logger.Debug("Metered action recorded",
		"company_id", companyID,
		"action", action,
		"consumed", consumed)
	return consumed, nil
}

func (s *gateService) Entitlements(ctx context.Context, companyID uuid.UUID) (*domain.Entitlements, error) {
	sub, err := s.subscriptions.GetOrProvision(ctx, companyID)
	if err != nil {
		return nil, err
	}

	tier := sub.EffectiveTier()
	usage, err := s.usage.CurrentUsage(ctx, companyID, tier)
	if err != nil {
		return nil, err
	}

	plan := domain.GetPlan(tier)
	features := make([]domain.Feature, 0, len(plan.Features))
	for _, f := range domain.Features {
		if plan.Features[f] {
			features = append(features, f)
		}
	}

	return &domain.Entitlements{
		Tier:     tier,
		Status:   sub.Status,
		Features: features,
		Usage:    usage,
	}, nil
}
