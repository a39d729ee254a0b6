package service

import (
	"context"
	"errors"
	"testing"

	"github.com/facturo/facturo/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscriptions returns a fixed subscription for every company.
type fakeSubscriptions struct {
	sub *domain.Subscription
	err error
}

func (f *fakeSubscriptions) GetOrProvision(_ context.Context, companyID uuid.UUID) (*domain.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.sub != nil {
		return f.sub, nil
	}
	return domain.DefaultSubscription(companyID), nil
}

func (f *fakeSubscriptions) ChangePlan(context.Context, uuid.UUID, domain.PlanTier) (*domain.Subscription, error) {
	panic("not used")
}

func (f *fakeSubscriptions) Cancel(context.Context, uuid.UUID) (*domain.Subscription, error) {
	panic("not used")
}

func (f *fakeSubscriptions) MarkPastDue(context.Context, uuid.UUID) error {
	panic("not used")
}

func (f *fakeSubscriptions) ApplyStripeState(context.Context, ApplyStripeStateParams) error {
	panic("not used")
}

func subscriptionFixture(tier domain.PlanTier, status domain.SubscriptionStatus) *fakeSubscriptions {
	return &fakeSubscriptions{sub: &domain.Subscription{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		Tier:      tier,
		Status:    status,
	}}
}

func newGateForTest(subs SubscriptionService, store *fakeUsageStore) GateService {
	return NewGateService(subs, NewUsageService(store, testLogger()), testLogger())
}

func TestCheckFeature(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()

	tests := []struct {
		name          string
		tier          domain.PlanTier
		status        domain.SubscriptionStatus
		feature       domain.Feature
		wantPermitted bool
		wantMinimum   domain.PlanTier
	}{
		{
			name:          "starter has branding",
			tier:          domain.PlanTierStarter,
			status:        domain.SubscriptionStatusActive,
			feature:       domain.FeatureBranding,
			wantPermitted: true,
		},
		{
			name:          "starter lacks ai scanner",
			tier:          domain.PlanTierStarter,
			status:        domain.SubscriptionStatusActive,
			feature:       domain.FeatureAIScanner,
			wantPermitted: false,
			wantMinimum:   domain.PlanTierPremium,
		},
		{
			name:          "free lacks branding",
			tier:          domain.PlanTierFree,
			status:        domain.SubscriptionStatusActive,
			feature:       domain.FeatureBranding,
			wantPermitted: false,
			wantMinimum:   domain.PlanTierStarter,
		},
		{
			name:          "professional has accounting",
			tier:          domain.PlanTierProfessional,
			status:        domain.SubscriptionStatusActive,
			feature:       domain.FeatureAccounting,
			wantPermitted: true,
		},
		{
			name:          "past due keeps entitlements",
			tier:          domain.PlanTierPremium,
			status:        domain.SubscriptionStatusPastDue,
			feature:       domain.FeaturePayroll,
			wantPermitted: true,
		},
		{
			name:          "inactive premium gated as free",
			tier:          domain.PlanTierPremium,
			status:        domain.SubscriptionStatusInactive,
			feature:       domain.FeaturePayroll,
			wantPermitted: false,
			wantMinimum:   domain.PlanTierPremium,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := newGateForTest(subscriptionFixture(tt.tier, tt.status), newFakeUsageStore())

			decision, err := gate.CheckFeature(ctx, companyID, tt.feature)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPermitted, decision.Permitted)
			if !tt.wantPermitted {
				assert.Equal(t, domain.GateReasonPlanInsufficient, decision.Reason)
				assert.Equal(t, tt.wantMinimum, decision.MinimumTier)
			}
		})
	}
}

func TestCheckFeatureUnknownFeature(t *testing.T) {
	gate := newGateForTest(subscriptionFixture(domain.PlanTierPremium, domain.SubscriptionStatusActive), newFakeUsageStore())

	_, err := gate.CheckFeature(context.Background(), uuid.New(), "time_travel")
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestCheckFeatureFailsClosed(t *testing.T) {
	subs := &fakeSubscriptions{err: errors.New("db down")}
	gate := newGateForTest(subs, newFakeUsageStore())

	decision, err := gate.CheckFeature(context.Background(), uuid.New(), domain.FeatureBranding)
	require.Error(t, err)
	assert.False(t, decision.Permitted)
}

func TestCheckAndReserve(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		tier          domain.PlanTier
		consumed      int64
		wantPermitted bool
		wantMinimum   domain.PlanTier
	}{
		{
			name:          "free under limit",
			tier:          domain.PlanTierFree,
			consumed:      4,
			wantPermitted: true,
		},
		{
			name:          "free at limit suggests starter",
			tier:          domain.PlanTierFree,
			consumed:      5,
			wantPermitted: false,
			wantMinimum:   domain.PlanTierStarter,
		},
		{
			name:          "starter at limit suggests professional",
			tier:          domain.PlanTierStarter,
			consumed:      50,
			wantPermitted: false,
			wantMinimum:   domain.PlanTierProfessional,
		},
		{
			name:          "professional never meters out",
			tier:          domain.PlanTierProfessional,
			consumed:      100000,
			wantPermitted: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeUsageStore()
			store.counters[currentKey(domain.MeterActionInvoices)] = tt.consumed
			gate := newGateForTest(subscriptionFixture(tt.tier, domain.SubscriptionStatusActive), store)

			decision, err := gate.CheckAndReserve(ctx, uuid.New(), domain.MeterActionInvoices)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPermitted, decision.Permitted)
			if !tt.wantPermitted {
				assert.Equal(t, domain.GateReasonLimitExceeded, decision.Reason)
				assert.Equal(t, tt.wantMinimum, decision.MinimumTier)
			}
		})
	}
}

func TestCheckAndReserveAfterDowngrade(t *testing.T) {
	ctx := context.Background()
	store := newFakeUsageStore()
	// 60 invoices consumed under a higher tier before the downgrade to free.
	// Starter's limit of 50 is already spent, so the suggestion must skip it.
	store.counters[currentKey(domain.MeterActionInvoices)] = 60
	gate := newGateForTest(subscriptionFixture(domain.PlanTierFree, domain.SubscriptionStatusActive), store)

	decision, err := gate.CheckAndReserve(ctx, uuid.New(), domain.MeterActionInvoices)
	require.NoError(t, err)
	require.False(t, decision.Permitted)
	assert.Equal(t, domain.PlanTierProfessional, decision.MinimumTier)
	assert.Equal(t, int64(60), decision.Consumed)
	assert.Equal(t, domain.LimitFor(domain.PlanTierFree, domain.MeterActionInvoices), decision.Limit)

	// The suggested tier must actually permit the action at this count.
	assert.True(t, domain.LimitFor(decision.MinimumTier, domain.MeterActionInvoices).Allows(decision.Consumed))

	upgraded := newGateForTest(subscriptionFixture(decision.MinimumTier, domain.SubscriptionStatusActive), store)
	after, err := upgraded.CheckAndReserve(ctx, uuid.New(), domain.MeterActionInvoices)
	require.NoError(t, err)
	assert.True(t, after.Permitted)
}

func TestCheckAndReserveDoesNotConsume(t *testing.T) {
	store := newFakeUsageStore()
	store.counters[currentKey(domain.MeterActionBills)] = 2
	gate := newGateForTest(subscriptionFixture(domain.PlanTierFree, domain.SubscriptionStatusActive), store)

	_, err := gate.CheckAndReserve(context.Background(), uuid.New(), domain.MeterActionBills)
	require.NoError(t, err)
	assert.Equal(t, int64(2), store.counters[currentKey(domain.MeterActionBills)])
}

func TestCheckAndReserveUnknownAction(t *testing.T) {
	gate := newGateForTest(subscriptionFixture(domain.PlanTierFree, domain.SubscriptionStatusActive), newFakeUsageStore())

	_, err := gate.CheckAndReserve(context.Background(), uuid.New(), "exports")
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestGateRecordConsumption(t *testing.T) {
	store := newFakeUsageStore()
	gate := newGateForTest(subscriptionFixture(domain.PlanTierFree, domain.SubscriptionStatusActive), store)

	consumed, err := gate.RecordConsumption(context.Background(), uuid.New(), domain.MeterActionInvoices)
	require.NoError(t, err)
	assert.Equal(t, int64(1), consumed)
	assert.Equal(t, int64(1), store.counters[currentKey(domain.MeterActionInvoices)])
}

func TestEntitlements(t *testing.T) {
	store := newFakeUsageStore()
	store.counters[currentKey(domain.MeterActionInvoices)] = 3
	gate := newGateForTest(subscriptionFixture(domain.PlanTierStarter, domain.SubscriptionStatusActive), store)

	ent, err := gate.Entitlements(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.PlanTierStarter, ent.Tier)
	assert.Equal(t, domain.SubscriptionStatusActive, ent.Status)
	assert.Equal(t, []domain.Feature{domain.FeatureBranding}, ent.Features)

	require.Len(t, ent.Usage, len(domain.MeterActions))
	for _, u := range ent.Usage {
		if u.Action == domain.MeterActionInvoices {
			assert.Equal(t, int64(3), u.Consumed)
			assert.Equal(t, domain.Limit(50), u.Limit)
			assert.Equal(t, domain.Limit(47), u.Remaining)
		}
	}
}
