package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUsageStore is an in-memory usageStore keyed by period and action.
type fakeUsageStore struct {
	counters  map[string]int64
	getErr    error
	incErr    error
	deleteErr error
}

func newFakeUsageStore() *fakeUsageStore {
	return &fakeUsageStore{counters: make(map[string]int64)}
}

func usageKey(period domain.PeriodKey, action domain.MeterAction) string {
	return string(period) + "/" + string(action)
}

func (f *fakeUsageStore) GetUsage(_ context.Context, _ uuid.UUID, period domain.PeriodKey, action domain.MeterAction) (int64, error) {
	if f.getErr != nil {
		return 0, f.getErr
	}
	return f.counters[usageKey(period, action)], nil
}

func (f *fakeUsageStore) IncrementUsageIfBelow(_ context.Context, arg repository.IncrementUsageIfBelowParams) (int64, error) {
	if f.incErr != nil {
		return 0, f.incErr
	}
	key := usageKey(arg.PeriodKey, arg.Action)
	if f.counters[key] >= arg.Limit {
		return 0, repository.ErrLimitReached
	}
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeUsageStore) IncrementUsage(_ context.Context, _ uuid.UUID, period domain.PeriodKey, action domain.MeterAction) (int64, error) {
	if f.incErr != nil {
		return 0, f.incErr
	}
	key := usageKey(period, action)
	f.counters[key]++
	return f.counters[key], nil
}

func (f *fakeUsageStore) ResetUsagePeriod(_ context.Context, _ uuid.UUID, period domain.PeriodKey) error {
	for _, action := range domain.MeterActions {
		delete(f.counters, usageKey(period, action))
	}
	return nil
}

func (f *fakeUsageStore) DeleteUsageBefore(_ context.Context, period domain.PeriodKey) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var deleted int64
	for key := range f.counters {
		if key < usageKey(period, "") {
			delete(f.counters, key)
			deleted++
		}
	}
	return deleted, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestUsageService(store *fakeUsageStore) UsageService {
	return NewUsageService(store, testLogger())
}

func currentKey(action domain.MeterAction) string {
	return usageKey(domain.CurrentPeriodKey(time.Now()), action)
}

func TestCanConsume(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()

	tests := []struct {
		name     string
		tier     domain.PlanTier
		action   domain.MeterAction
		consumed int64
		want     bool
	}{
		{"free with headroom", domain.PlanTierFree, domain.MeterActionInvoices, 4, true},
		{"free at limit", domain.PlanTierFree, domain.MeterActionInvoices, 5, false},
		{"starter with headroom", domain.PlanTierStarter, domain.MeterActionInvoices, 49, true},
		{"starter at limit", domain.PlanTierStarter, domain.MeterActionInvoices, 50, false},
		{"professional unlimited", domain.PlanTierProfessional, domain.MeterActionInvoices, 100000, true},
		{"bills metered separately", domain.PlanTierFree, domain.MeterActionBills, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeUsageStore()
			store.counters[currentKey(tt.action)] = tt.consumed
			svc := newTestUsageService(store)

			got, gotConsumed, err := svc.CanConsume(ctx, companyID, tt.tier, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if !domain.LimitFor(tt.tier, tt.action).IsUnlimited() {
				assert.Equal(t, tt.consumed, gotConsumed)
			}
		})
	}
}

func TestCanConsumeUnknownAction(t *testing.T) {
	svc := newTestUsageService(newFakeUsageStore())

	_, _, err := svc.CanConsume(context.Background(), uuid.New(), domain.PlanTierFree, "exports")
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestCanConsumeStoreError(t *testing.T) {
	store := newFakeUsageStore()
	store.getErr = errors.New("connection refused")
	svc := newTestUsageService(store)

	_, _, err := svc.CanConsume(context.Background(), uuid.New(), domain.PlanTierFree, domain.MeterActionInvoices)
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}

func TestRecordConsumption(t *testing.T) {
	ctx := context.Background()
	store := newFakeUsageStore()
	svc := newTestUsageService(store)

	consumed, err := svc.RecordConsumption(ctx, uuid.New(), domain.PlanTierFree, domain.MeterActionInvoices)
	require.NoError(t, err)
	assert.Equal(t, int64(1), consumed)

	consumed, err = svc.RecordConsumption(ctx, uuid.New(), domain.PlanTierFree, domain.MeterActionInvoices)
	require.NoError(t, err)
	assert.Equal(t, int64(2), consumed)
}

func TestRecordConsumptionClampsAtLimit(t *testing.T) {
	// A request that raced past the check and lost gets the ceiling back
	// without an error; the counter never exceeds the limit.
	ctx := context.Background()
	store := newFakeUsageStore()
	store.counters[currentKey(domain.MeterActionInvoices)] = 5
	svc := newTestUsageService(store)

	consumed, err := svc.RecordConsumption(ctx, uuid.New(), domain.PlanTierFree, domain.MeterActionInvoices)
	require.NoError(t, err)
	assert.Equal(t, int64(5), consumed)
	assert.Equal(t, int64(5), store.counters[currentKey(domain.MeterActionInvoices)])
}

func TestRecordConsumptionUnlimitedHasNoCeiling(t *testing.T) {
	ctx := context.Background()
	store := newFakeUsageStore()
	store.counters[currentKey(domain.MeterActionInvoices)] = 999
	svc := newTestUsageService(store)

	consumed, err := svc.RecordConsumption(ctx, uuid.New(), domain.PlanTierPremium, domain.MeterActionInvoices)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), consumed)
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	store := newFakeUsageStore()
	// Unconditional repair path ignores the limit entirely.
	store.counters[currentKey(domain.MeterActionBills)] = 5
	svc := newTestUsageService(store)

	err := svc.Record(ctx, uuid.New(), domain.MeterActionBills)
	require.NoError(t, err)
	assert.Equal(t, int64(6), store.counters[currentKey(domain.MeterActionBills)])
}

func TestRemaining(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()

	store := newFakeUsageStore()
	store.counters[currentKey(domain.MeterActionInvoices)] = 3
	svc := newTestUsageService(store)

	remaining, err := svc.Remaining(ctx, companyID, domain.PlanTierFree, domain.MeterActionInvoices)
	require.NoError(t, err)
	assert.Equal(t, domain.Limit(2), remaining)

	remaining, err = svc.Remaining(ctx, companyID, domain.PlanTierProfessional, domain.MeterActionInvoices)
	require.NoError(t, err)
	assert.Equal(t, domain.Unlimited, remaining)
}

func TestCurrentUsage(t *testing.T) {
	ctx := context.Background()
	store := newFakeUsageStore()
	store.counters[currentKey(domain.MeterActionInvoices)] = 2
	svc := newTestUsageService(store)

	summaries, err := svc.CurrentUsage(ctx, uuid.New(), domain.PlanTierFree)
	require.NoError(t, err)
	require.Len(t, summaries, len(domain.MeterActions))

	byAction := make(map[domain.MeterAction]domain.UsageSummary)
	for _, s := range summaries {
		byAction[s.Action] = s
	}
	invoices := byAction[domain.MeterActionInvoices]
	assert.Equal(t, int64(2), invoices.Consumed)
	assert.Equal(t, domain.Limit(5), invoices.Limit)
	assert.Equal(t, domain.Limit(3), invoices.Remaining)

	bills := byAction[domain.MeterActionBills]
	assert.Equal(t, int64(0), bills.Consumed)
	assert.Equal(t, domain.Limit(5), bills.Remaining)
}

func TestResetPeriod(t *testing.T) {
	ctx := context.Background()
	store := newFakeUsageStore()
	store.counters[currentKey(domain.MeterActionInvoices)] = 4
	store.counters[currentKey(domain.MeterActionBills)] = 2
	svc := newTestUsageService(store)

	require.NoError(t, svc.ResetPeriod(ctx, uuid.New()))
	assert.Empty(t, store.counters)
}

func TestResetPeriodRestoresAllowance(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	store := newFakeUsageStore()
	store.counters[currentKey(domain.MeterActionInvoices)] = 5
	svc := newTestUsageService(store)

	ok, _, err := svc.CanConsume(ctx, companyID, domain.PlanTierFree, domain.MeterActionInvoices)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, svc.ResetPeriod(ctx, companyID))

	ok, _, err = svc.CanConsume(ctx, companyID, domain.PlanTierFree, domain.MeterActionInvoices)
	require.NoError(t, err)
	assert.True(t, ok)

	consumed, err := svc.RecordConsumption(ctx, companyID, domain.PlanTierFree, domain.MeterActionInvoices)
	require.NoError(t, err)
	assert.Equal(t, int64(1), consumed)
}

func TestPruneOldPeriods(t *testing.T) {
	ctx := context.Background()
	store := newFakeUsageStore()
	start, _ := domain.PeriodBounds(time.Now())
	old := domain.CurrentPeriodKey(start.AddDate(0, -13, 0))
	recent := domain.CurrentPeriodKey(start.AddDate(0, -11, 0))
	store.counters[usageKey(old, domain.MeterActionInvoices)] = 7
	store.counters[usageKey(recent, domain.MeterActionBills)] = 3
	store.counters[currentKey(domain.MeterActionInvoices)] = 1
	svc := newTestUsageService(store)

	deleted, err := svc.PruneOldPeriods(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.NotContains(t, store.counters, usageKey(old, domain.MeterActionInvoices))
	assert.Contains(t, store.counters, usageKey(recent, domain.MeterActionBills))
	assert.Contains(t, store.counters, currentKey(domain.MeterActionInvoices))
}

func TestPruneOldPeriodsInvalidRetention(t *testing.T) {
	svc := newTestUsageService(newFakeUsageStore())

	_, err := svc.PruneOldPeriods(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestPruneOldPeriodsStoreError(t *testing.T) {
	store := newFakeUsageStore()
	store.deleteErr = errors.New("connection refused")
	svc := newTestUsageService(store)

	_, err := svc.PruneOldPeriods(context.Background(), 12)
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}
