// Package service contains the business logic layer.
//
// This file implements the usage meter that tracks metered actions
// (invoice and bill creation) per company per calendar month.
package service

import (
	"context"
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

// UsageService tracks metered action consumption against plan limits.
// Counters are keyed by company, calendar month and action; a new month
// starts every counter at zero implicitly.
type UsageService interface {
	// CurrentUsage returns the consumption summaries for all metered actions
	// in the current period under the given tier's limits.
	CurrentUsage(ctx context.Context, companyID uuid.UUID, tier domain.PlanTier) ([]domain.UsageSummary, error)

	// Remaining returns the allowance left for one action. Unlimited plans
	// report domain.Unlimited.
	Remaining(ctx context.Context, companyID uuid.UUID, tier domain.PlanTier, action domain.MeterAction) (domain.Limit, error)

	// CanConsume reports whether one more unit of the action fits under the
	// tier's limit, along with the period's consumed count so denials can
	// report accurate numbers. Unlimited plans skip the counter read and
	// report zero consumed. Read-only; the caller records consumption
	// separately after its downstream write succeeds.
	CanConsume(ctx context.Context, companyID uuid.UUID, tier domain.PlanTier, action domain.MeterAction) (bool, int64, error)

	// RecordConsumption consumes one unit of the action and returns the new
	// count. Call only after the gated action has durably succeeded. The
	// increment is conditional at the storage layer, so concurrent requests
	// can never push a finite counter past the tier's limit; a request that
	// loses that race gets the ceiling value back without error.
	RecordConsumption(ctx context.Context, companyID uuid.UUID, tier domain.PlanTier, action domain.MeterAction) (int64, error)

	// Record consumes one unit unconditionally. The usage reconcile job uses
	// it to repair under-counted periods; request paths never call it.
	Record(ctx context.Context, companyID uuid.UUID, action domain.MeterAction) error

	// ResetPeriod zeroes the current period's counters for a company.
	// Support tooling only; plan changes never reset consumption.
	ResetPeriod(ctx context.Context, companyID uuid.UUID) error

	// PruneOldPeriods deletes counters from periods that ended more than
	// retainMonths ago and returns how many rows went. The retention job
	// calls this; closed periods stop mattering to gating the moment the
	// month rolls over, so old rows are only ever dead weight.
	PruneOldPeriods(ctx context.Context, retainMonths int) (int64, error)
}

// ErrLimitReached signals an exhausted period allowance. Re-exported so
// callers don't import the repository package.
var ErrLimitReached = repository.ErrLimitReached

// usageStore is the persistence surface the meter needs. *repository.Queries
// satisfies it.
type usageStore interface {
	GetUsage(ctx context.Context, companyID uuid.UUID, period domain.PeriodKey, action domain.MeterAction) (int64, error)
	IncrementUsageIfBelow(ctx context.Context, arg repository.IncrementUsageIfBelowParams) (int64, error)
	IncrementUsage(ctx context.Context, companyID uuid.UUID, period domain.PeriodKey, action domain.MeterAction) (int64, error)
	ResetUsagePeriod(ctx context.Context, companyID uuid.UUID, period domain.PeriodKey) error
	DeleteUsageBefore(ctx context.Context, period domain.PeriodKey) (int64, error)
}

// =============================================================================
// Implementation
// =============================================================================

type usageService struct {
	store  usageStore
	logger *slog.Logger
	now    func() time.Time
}

// NewUsageService creates a new UsageService.
func NewUsageService(store usageStore, logger *slog.Logger) UsageService {
	return &usageService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

func (s *usageService) CurrentUsage(ctx context.Context, companyID uuid.UUID, tier domain.PlanTier) ([]domain.UsageSummary, error) {
	const op = "usage.current"

	period := domain.CurrentPeriodKey(s.now())
	summaries := make([]domain.UsageSummary, 0, len(domain.MeterActions))
	for _, action := range domain.MeterActions {
		consumed, err := s.store.GetUsage(ctx, companyID, period, action)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to read usage counter")
		}
		limit := domain.LimitFor(tier, action)
		summaries = append(summaries, domain.UsageSummary{
			Action:    action,
			Consumed:  consumed,
			Limit:     limit,
			Remaining: limit.Remaining(consumed),
		})
	}
	return summaries, nil
}

func (s *usageService) Remaining(ctx context.Context, companyID uuid.UUID, tier domain.PlanTier, action domain.MeterAction) (domain.Limit, error) {
	const op = "usage.remaining"

	if !action.Valid() {
		return 0, domain.Invalid(op, "unknown metered action")
	}

	limit := domain.LimitFor(tier, action)
	if limit.IsUnlimited() {
		return domain.Unlimited, nil
	}

	period := domain.CurrentPeriodKey(s.now())
	consumed, err := s.store.GetUsage(ctx, companyID, period, action)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to read usage counter")
	}
	return limit.Remaining(consumed), nil
}

func (s *usageService) CanConsume(ctx context.Context, companyID uuid.UUID, tier domain.PlanTier, action domain.MeterAction) (bool, int64, error) {
	const op = "usage.can_consume"

	if !action.Valid() {
		return false, 0, domain.Invalid(op, "unknown metered action")
	}

	limit := domain.LimitFor(tier, action)
	if limit.IsUnlimited() {
		return true, 0, nil
	}

	period := domain.CurrentPeriodKey(s.now())
	consumed, err := s.store.GetUsage(ctx, companyID, period, action)
	if err != nil {
		return false, 0, domain.Internal(err, op, "failed to read usage counter")
	}
	return limit.Allows(consumed), consumed, nil
}

func (s *usageService) RecordConsumption(ctx context.Context, companyID uuid.UUID, tier domain.PlanTier, action domain.MeterAction) (int64, error) {
	const op = "usage.record_consumption"

	if !action.Valid() {
		return 0, domain.Invalid(op, "unknown metered action")
	}

	period := domain.CurrentPeriodKey(s.now())
	limit := domain.LimitFor(tier, action)

	// Unlimited plans count consumption for reporting but have no ceiling.
	if limit.IsUnlimited() {
		consumed, err := s.store.IncrementUsage(ctx, companyID, period, action)
		if err != nil {
			return 0, domain.Internal(err, op, "failed to increment usage counter")
		}
		return consumed, nil
	}

	consumed, err := s.store.IncrementUsageIfBelow(ctx, repository.IncrementUsageIfBelowParams{
		CompanyID: companyID,
		PeriodKey: period,
		Action:    action,
		Limit:     int64(limit),
	})
	if err != nil {
		if errors.Is(err, repository.ErrLimitReached) {
			// The action already happened; two requests raced past the same
			// check and this one lost. The counter stays clamped at the
			// limit so the next check denies.
			s.logger.Warn("Usage counter at limit during record",
				"company_id", companyID,
				"action", action,
				"limit", int64(limit))
			return int64(limit), nil
		}
		return 0, domain.Internal(err, op, "failed to increment usage counter")
	}
	return consumed, nil
}

func (s *usageService) Record(ctx context.Context, companyID uuid.UUID, action domain.MeterAction) error {
	const op = "usage.record"

	if !action.Valid() {
		return domain.Invalid(op, "unknown metered action")
	}

	period := domain.CurrentPeriodKey(s.now())
	if _, err := s.store.IncrementUsage(ctx, companyID, period, action); err != nil {
		return domain.Internal(err, op, "failed to record usage")
	}
	return nil
}

func (s *usageService) ResetPeriod(ctx context.Context, companyID uuid.UUID) error {
	const op = "usage.reset_period"

	period := domain.CurrentPeriodKey(s.now())
	if err := s.store.ResetUsagePeriod(ctx, companyID, period); err != nil {
		return domain.Internal(err, op, "failed to reset usage period")
	}
	s.logger.Info("Usage period reset", "company_id", companyID, "period", period)
	return nil
}

func (s *usageService) PruneOldPeriods(ctx context.Context, retainMonths int) (int64, error) {
	const op = "usage.prune_old_periods"

	if retainMonths < 1 {
		return 0, domain.Invalid(op, "retention must be at least one month")
	}

	// Anchor at the first of the current month so subtracting months can
	// never spill into a neighboring one. Period keys sort lexicographically
	// by month, so everything strictly below the cutoff key is out of the
	// retention window.
	start, _ := domain.PeriodBounds(s.now())
	cutoff := domain.CurrentPeriodKey(start.AddDate(0, -retainMonths, 0))
	deleted, err := s.store.DeleteUsageBefore(ctx, cutoff)
	if err != nil {
		return 0, domain.Internal(err, op, "failed to prune usage counters")
	}
	if deleted > 0 {
		s.logger.Info("Pruned old usage counters", "cutoff", cutoff, "deleted", deleted)
	}
	return deleted, nil
}
