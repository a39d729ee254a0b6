package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscriptionStore is an in-memory subscriptionStore keyed by company.
type fakeSubscriptionStore struct {
	byCompany map[uuid.UUID]domain.Subscription
	creates   int
	updates   int
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{byCompany: make(map[uuid.UUID]domain.Subscription)}
}

func (f *fakeSubscriptionStore) GetSubscriptionByCompany(_ context.Context, companyID uuid.UUID) (domain.Subscription, error) {
	sub, ok := f.byCompany[companyID]
	if !ok {
		return domain.Subscription{}, sql.ErrNoRows
	}
	return sub, nil
}

func (f *fakeSubscriptionStore) GetSubscriptionByStripeCustomer(_ context.Context, customerID string) (domain.Subscription, error) {
	for _, sub := range f.byCompany {
		if sub.StripeCustomerID == customerID {
			return sub, nil
		}
	}
	return domain.Subscription{}, sql.ErrNoRows
}

func (f *fakeSubscriptionStore) CreateSubscription(_ context.Context, arg repository.CreateSubscriptionParams) (domain.Subscription, error) {
	f.creates++
	sub := domain.Subscription{
		ID:          uuid.New(),
		CompanyID:   arg.CompanyID,
		Tier:        domain.PlanTier(arg.Tier),
		Status:      domain.SubscriptionStatus(arg.Status),
		PeriodStart: arg.PeriodStart,
	}
	f.byCompany[arg.CompanyID] = sub
	return sub, nil
}

func (f *fakeSubscriptionStore) UpdateSubscriptionPlan(_ context.Context, arg repository.UpdateSubscriptionPlanParams) (domain.Subscription, error) {
	f.updates++
	sub, ok := f.byCompany[arg.CompanyID]
	if !ok {
		return domain.Subscription{}, sql.ErrNoRows
	}
	sub.Tier = domain.PlanTier(arg.Tier)
	sub.Status = domain.SubscriptionStatus(arg.Status)
	sub.PeriodStart = arg.PeriodStart
	f.byCompany[arg.CompanyID] = sub
	return sub, nil
}

func (f *fakeSubscriptionStore) UpdateSubscriptionStripe(_ context.Context, arg repository.UpdateSubscriptionStripeParams) error {
	sub, ok := f.byCompany[arg.CompanyID]
	if !ok {
		return sql.ErrNoRows
	}
	sub.StripeCustomerID = arg.StripeCustomerID
	sub.StripeSubscriptionID = arg.StripeSubscriptionID
	f.byCompany[arg.CompanyID] = sub
	return nil
}

func newTestSubscriptionService(store *fakeSubscriptionStore) SubscriptionService {
	return NewSubscriptionService(store, testLogger())
}

func TestGetOrProvision(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	store := newFakeSubscriptionStore()
	svc := newTestSubscriptionService(store)

	sub, err := svc.GetOrProvision(ctx, companyID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanTierFree, sub.Tier)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, 1, store.creates)

	// Second call returns the existing row.
	again, err := svc.GetOrProvision(ctx, companyID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID)
	assert.Equal(t, 1, store.creates)
}

func TestChangePlan(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	store := newFakeSubscriptionStore()
	svc := newTestSubscriptionService(store)

	sub, err := svc.ChangePlan(ctx, companyID, domain.PlanTierProfessional)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanTierProfessional, sub.Tier)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)

	// Downgrade applies immediately.
	sub, err = svc.ChangePlan(ctx, companyID, domain.PlanTierStarter)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanTierStarter, sub.Tier)
}

func TestChangePlanSameTierIsNoop(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	store := newFakeSubscriptionStore()
	svc := newTestSubscriptionService(store)

	_, err := svc.ChangePlan(ctx, companyID, domain.PlanTierStarter)
	require.NoError(t, err)
	updatesAfterFirst := store.updates

	_, err = svc.ChangePlan(ctx, companyID, domain.PlanTierStarter)
	require.NoError(t, err)
	assert.Equal(t, updatesAfterFirst, store.updates)
}

func TestChangePlanUnknownTier(t *testing.T) {
	svc := newTestSubscriptionService(newFakeSubscriptionStore())

	_, err := svc.ChangePlan(context.Background(), uuid.New(), "enterprise")
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestChangePlanReactivatesPastDue(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	store := newFakeSubscriptionStore()
	svc := newTestSubscriptionService(store)

	_, err := svc.ChangePlan(ctx, companyID, domain.PlanTierStarter)
	require.NoError(t, err)
	require.NoError(t, svc.MarkPastDue(ctx, companyID))

	// Re-selecting the same tier while past due reactivates.
	sub, err := svc.ChangePlan(ctx, companyID, domain.PlanTierStarter)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	svc := newTestSubscriptionService(newFakeSubscriptionStore())

	_, err := svc.ChangePlan(ctx, companyID, domain.PlanTierPremium)
	require.NoError(t, err)

	sub, err := svc.Cancel(ctx, companyID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanTierFree, sub.Tier)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
}

func TestMarkPastDue(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	store := newFakeSubscriptionStore()
	svc := newTestSubscriptionService(store)

	_, err := svc.ChangePlan(ctx, companyID, domain.PlanTierPremium)
	require.NoError(t, err)
	require.NoError(t, svc.MarkPastDue(ctx, companyID))

	sub := store.byCompany[companyID]
	assert.Equal(t, domain.SubscriptionStatusPastDue, sub.Status)
	// The tier is retained; entitlements survive until deactivation.
	assert.Equal(t, domain.PlanTierPremium, sub.Tier)
	assert.True(t, sub.IsActive())
}

func TestApplyStripeState(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	store := newFakeSubscriptionStore()
	svc := newTestSubscriptionService(store)

	_, err := svc.GetOrProvision(ctx, companyID)
	require.NoError(t, err)
	sub := store.byCompany[companyID]
	sub.StripeCustomerID = "cus_123"
	store.byCompany[companyID] = sub

	periodStart := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	err = svc.ApplyStripeState(ctx, ApplyStripeStateParams{
		StripeCustomerID:     "cus_123",
		StripeSubscriptionID: "sub_456",
		Tier:                 domain.PlanTierProfessional,
		Status:               domain.SubscriptionStatusActive,
		PeriodStart:          periodStart,
	})
	require.NoError(t, err)

	got := store.byCompany[companyID]
	assert.Equal(t, domain.PlanTierProfessional, got.Tier)
	assert.Equal(t, domain.SubscriptionStatusActive, got.Status)
	assert.Equal(t, periodStart, got.PeriodStart)
	assert.Equal(t, "sub_456", got.StripeSubscriptionID)
}

func TestApplyStripeStateInactiveDowngradesToFree(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	store := newFakeSubscriptionStore()
	svc := newTestSubscriptionService(store)

	_, err := svc.ChangePlan(ctx, companyID, domain.PlanTierPremium)
	require.NoError(t, err)
	sub := store.byCompany[companyID]
	sub.StripeCustomerID = "cus_123"
	store.byCompany[companyID] = sub

	err = svc.ApplyStripeState(ctx, ApplyStripeStateParams{
		StripeCustomerID: "cus_123",
		Tier:             domain.PlanTierPremium,
		Status:           domain.SubscriptionStatusInactive,
	})
	require.NoError(t, err)

	got := store.byCompany[companyID]
	assert.Equal(t, domain.PlanTierFree, got.Tier)
	assert.Equal(t, domain.SubscriptionStatusInactive, got.Status)
	assert.Equal(t, domain.PlanTierFree, got.EffectiveTier())
}

func TestApplyStripeStateUnknownCustomer(t *testing.T) {
	svc := newTestSubscriptionService(newFakeSubscriptionStore())

	err := svc.ApplyStripeState(context.Background(), ApplyStripeStateParams{
		StripeCustomerID: "cus_unknown",
		Tier:             domain.PlanTierStarter,
		Status:           domain.SubscriptionStatusActive,
	})
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
