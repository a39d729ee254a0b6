// Package service contains the business logic layer.
//
// This file implements subscription lifecycle management: provisioning,
// plan changes and the mapping from Stripe state to plan tiers.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SubscriptionService manages a company's subscription record. Every company
// has exactly one; companies without a row are treated as Free.
type SubscriptionService interface {
	// GetOrProvision returns the company's subscription, creating a Free one
	// if none exists yet.
	GetOrProvision(ctx context.Context, companyID uuid.UUID) (*domain.Subscription, error)

	// ChangePlan moves the company to the given tier. Upgrades take effect
	// immediately; downgrades also apply immediately but never reset the
	// period's consumed usage, so a Free downgrade mid-month can leave the
	// company over its new limit until rollover.
	ChangePlan(ctx context.Context, companyID uuid.UUID, tier domain.PlanTier) (*domain.Subscription, error)

	// Cancel reverts the company to the Free tier.
	Cancel(ctx context.Context, companyID uuid.UUID) (*domain.Subscription, error)

	// MarkPastDue flags the subscription after a failed payment. Entitlements
	// are retained while past due; only a transition to inactive drops them.
	MarkPastDue(ctx context.Context, companyID uuid.UUID) error

	// ApplyStripeState syncs the subscription from a Stripe webhook event.
	// An empty tier with an inactive status deactivates the subscription.
	ApplyStripeState(ctx context.Context, params ApplyStripeStateParams) error
}

// ApplyStripeStateParams carries the relevant fields of a Stripe
// subscription event.
type ApplyStripeStateParams struct {
	StripeCustomerID     string
	StripeSubscriptionID string
	Tier                 domain.PlanTier
	Status               domain.SubscriptionStatus
	PeriodStart          time.Time
}

// subscriptionStore is the persistence surface for subscriptions.
// *repository.Queries satisfies it.
type subscriptionStore interface {
	GetSubscriptionByCompany(ctx context.Context, companyID uuid.UUID) (domain.Subscription, error)
	GetSubscriptionByStripeCustomer(ctx context.Context, customerID string) (domain.Subscription, error)
	CreateSubscription(ctx context.Context, arg repository.CreateSubscriptionParams) (domain.Subscription, error)
	UpdateSubscriptionPlan(ctx context.Context, arg repository.UpdateSubscriptionPlanParams) (domain.Subscription, error)
	UpdateSubscriptionStripe(ctx context.Context, arg repository.UpdateSubscriptionStripeParams) error
}

// =============================================================================
// Implementation
// =============================================================================

type subscriptionService struct {
	store  subscriptionStore
	logger *slog.Logger
	now    func() time.Time
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(store subscriptionStore, logger *slog.Logger) SubscriptionService {
	return &subscriptionService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (s *subscriptionService) GetOrProvision(ctx context.Context, companyID uuid.UUID) (*domain.Subscription, error) {
	const op = "subscription.get_or_provision"

	sub, err := s.store.GetSubscriptionByCompany(ctx, companyID)
	if err == nil {
		return &sub, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "failed to load subscription")
	}

	def := domain.DefaultSubscription(companyID)
	sub, err = s.store.CreateSubscription(ctx, repository.CreateSubscriptionParams{
		CompanyID:   companyID,
		Tier:        string(def.Tier),
		Status:      string(def.Status),
		PeriodStart: def.PeriodStart,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to provision subscription")
	}

	s.logger.Info("Provisioned free subscription", "company_id", companyID)
	return &sub, nil
}

func (s *subscriptionService) ChangePlan(ctx context.Context, companyID uuid.UUID, tier domain.PlanTier) (*domain.Subscription, error) {
	const op = "subscription.change_plan"

	if !tier.Valid() {
		return nil, domain.Invalid(op, "unknown plan tier")
	}

	current, err := s.GetOrProvision(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if current.Tier == tier && current.Status == domain.SubscriptionStatusActive {
		return current, nil
	}

	direction := "upgrade"
	if domain.TierRank(tier) < domain.TierRank(current.Tier) {
		direction = "downgrade"
	}

	// Consumed usage carries across plan changes. A downgrade below the
	// period's consumption simply denies further metered actions until the
	// next month starts.
	updated, err := s.store.UpdateSubscriptionPlan(ctx, repository.UpdateSubscriptionPlanParams{
		CompanyID:   companyID,
		Tier:        string(tier),
		Status:      string(domain.SubscriptionStatusActive),
		PeriodStart: current.PeriodStart,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to change plan")
	}

	s.logger.Info("Plan changed",
		"company_id", companyID,
		"from", current.Tier,
		"to", tier,
		"direction", direction)
	return &updated, nil
}

func (s *subscriptionService) Cancel(ctx context.Context, companyID uuid.UUID) (*domain.Subscription, error) {
	const op = "subscription.cancel"

	sub, err := s.ChangePlan(ctx, companyID, domain.PlanTierFree)
	if err != nil {
		return nil, domain.Wrap(err, domain.ErrorCode(err), op, "failed to cancel subscription")
	}
	return sub, nil
}

func (s *subscriptionService) MarkPastDue(ctx context.Context, companyID uuid.UUID) error {
	const op = "subscription.mark_past_due"

	current, err := s.GetOrProvision(ctx, companyID)
	if err != nil {
		return err
	}

	_, err = s.store.UpdateSubscriptionPlan(ctx, repository.UpdateSubscriptionPlanParams{
		CompanyID:   companyID,
		Tier:        string(current.Tier),
		Status:      string(domain.SubscriptionStatusPastDue),
		PeriodStart: current.PeriodStart,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to mark subscription past due")
	}

	s.logger.Warn("Subscription past due", "company_id", companyID, "tier", current.Tier)
	return nil
}

func (s *subscriptionService) ApplyStripeState(ctx context.Context, params ApplyStripeStateParams) error {
	const op = "subscription.apply_stripe_state"

	sub, err := s.store.GetSubscriptionByStripeCustomer(ctx, params.StripeCustomerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "subscription", params.StripeCustomerID)
		}
		return domain.Internal(err, op, "failed to load subscription by stripe customer")
	}

	tier := params.Tier
	if params.Status == domain.SubscriptionStatusInactive {
		tier = domain.PlanTierFree
	}

	periodStart := params.PeriodStart
	if periodStart.IsZero() {
		periodStart = sub.PeriodStart
	}

	if _, err := s.store.UpdateSubscriptionPlan(ctx, repository.UpdateSubscriptionPlanParams{
		CompanyID:   sub.CompanyID,
		Tier:        string(tier),
		Status:      string(params.Status),
		PeriodStart: periodStart,
	}); err != nil {
		return domain.Internal(err, op, "failed to apply stripe subscription state")
	}

	if params.StripeSubscriptionID != "" && params.StripeSubscriptionID != sub.StripeSubscriptionID {
		if err := s.store.UpdateSubscriptionStripe(ctx, repository.UpdateSubscriptionStripeParams{
			CompanyID:            sub.CompanyID,
			StripeCustomerID:     params.StripeCustomerID,
			StripeSubscriptionID: params.StripeSubscriptionID,
		}); err != nil {
			return domain.Internal(err, op, "failed to link stripe subscription")
		}
	}

	s.logger.Info("Stripe subscription state applied",
		"company_id", sub.CompanyID,
		"tier", tier,
		"status", params.Status)
	return nil
}
