package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGate is a GateService with scripted responses.
type fakeGate struct {
	decision  domain.GateDecision
	checkErr  error
	recordErr error
	recorded  []domain.MeterAction
}

func (f *fakeGate) CheckFeature(context.Context, uuid.UUID, domain.Feature) (domain.GateDecision, error) {
	if f.checkErr != nil {
		return domain.GateDecision{}, f.checkErr
	}
	return f.decision, nil
}

func (f *fakeGate) CheckAndReserve(context.Context, uuid.UUID, domain.MeterAction) (domain.GateDecision, error) {
	if f.checkErr != nil {
		return domain.GateDecision{}, f.checkErr
	}
	return f.decision, nil
}

func (f *fakeGate) RecordConsumption(_ context.Context, _ uuid.UUID, action domain.MeterAction) (int64, error) {
	if f.recordErr != nil {
		return 0, f.recordErr
	}
	f.recorded = append(f.recorded, action)
	return int64(len(f.recorded)), nil
}

func (f *fakeGate) Entitlements(context.Context, uuid.UUID) (*domain.Entitlements, error) {
	panic("not used")
}

func allowingGate() *fakeGate {
	return &fakeGate{decision: domain.Allow()}
}

// fakeInvoiceStore is an in-memory invoiceStore.
type fakeInvoiceStore struct {
	invoices     map[uuid.UUID]domain.Invoice
	transactions []repository.CreateTransactionParams
}

func newFakeInvoiceStore() *fakeInvoiceStore {
	return &fakeInvoiceStore{invoices: make(map[uuid.UUID]domain.Invoice)}
}

func (f *fakeInvoiceStore) CreateInvoice(_ context.Context, arg repository.CreateInvoiceParams) (domain.Invoice, error) {
	inv := domain.Invoice{
		ID:            uuid.New(),
		CompanyID:     arg.CompanyID,
		ContactID:     arg.ContactID,
		Number:        arg.Number,
		Status:        domain.InvoiceStatusDraft,
		IssueDate:     arg.IssueDate,
		DueDate:       arg.DueDate,
		Items:         arg.Items,
		Currency:      arg.Currency,
		SubtotalCents: arg.SubtotalCents,
		TaxRateBPS:    arg.TaxRateBPS,
		TaxCents:      arg.TaxCents,
		TotalCents:    arg.TotalCents,
		Notes:         arg.Notes,
	}
	f.invoices[inv.ID] = inv
	return inv, nil
}

func (f *fakeInvoiceStore) GetInvoice(_ context.Context, id, companyID uuid.UUID) (domain.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok || inv.CompanyID != companyID {
		return domain.Invoice{}, sql.ErrNoRows
	}
	return inv, nil
}

func (f *fakeInvoiceStore) ListInvoices(_ context.Context, arg repository.ListInvoicesParams) ([]domain.Invoice, error) {
	var out []domain.Invoice
	for _, inv := range f.invoices {
		if inv.CompanyID == arg.CompanyID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeInvoiceStore) CountInvoices(_ context.Context, companyID uuid.UUID, _ []string) (int64, error) {
	var n int64
	for _, inv := range f.invoices {
		if inv.CompanyID == companyID {
			n++
		}
	}
	return n, nil
}

func (f *fakeInvoiceStore) CountInvoicesForYear(_ context.Context, companyID uuid.UUID, _ int) (int64, error) {
	return f.CountInvoices(context.Background(), companyID, nil)
}

func (f *fakeInvoiceStore) UpdateInvoiceStatus(_ context.Context, arg repository.UpdateInvoiceStatusParams) (domain.Invoice, error) {
	inv, ok := f.invoices[arg.ID]
	if !ok || inv.CompanyID != arg.CompanyID {
		return domain.Invoice{}, sql.ErrNoRows
	}
	inv.Status = domain.InvoiceStatus(arg.Status)
	if arg.PaidAt.Valid {
		paidAt := arg.PaidAt.Time
		inv.PaidAt = &paidAt
	}
	f.invoices[arg.ID] = inv
	return inv, nil
}

func (f *fakeInvoiceStore) CreateTransaction(_ context.Context, arg repository.CreateTransactionParams) (domain.Transaction, error) {
	f.transactions = append(f.transactions, arg)
	return domain.Transaction{ID: uuid.New(), CompanyID: arg.CompanyID}, nil
}

// fakeEnqueuer records reconcile and delivery enqueues.
type fakeEnqueuer struct {
	reconciled []domain.MeterAction
	deliveries []uuid.UUID
	err        error
}

func (f *fakeEnqueuer) EnqueueReconcileUsage(_ context.Context, _ uuid.UUID, action domain.MeterAction) error {
	if f.err != nil {
		return f.err
	}
	f.reconciled = append(f.reconciled, action)
	return nil
}

func (f *fakeEnqueuer) EnqueueSendInvoiceEmail(_ context.Context, invoiceID, _ uuid.UUID, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.deliveries = append(f.deliveries, invoiceID)
	return nil
}

func validInvoiceParams(companyID uuid.UUID) domain.CreateInvoiceParams {
	issue := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	return domain.CreateInvoiceParams{
		CompanyID:  companyID,
		ContactID:  uuid.New(),
		IssueDate:  issue,
		DueDate:    issue.AddDate(0, 0, 14),
		Items:      []domain.LineItem{{Description: "Consulting", Quantity: 2, UnitCents: 10000}},
		Currency:   "EUR",
		TaxRateBPS: 2100,
	}
}

func TestInvoiceCreate(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	store := newFakeInvoiceStore()
	gate := allowingGate()
	svc := NewInvoiceService(store, gate, &fakeEnqueuer{}, &fakeEnqueuer{}, testLogger())

	inv, err := svc.Create(ctx, validInvoiceParams(companyID))
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, int64(20000), inv.SubtotalCents)
	assert.Equal(t, int64(4200), inv.TaxCents)
	assert.Equal(t, int64(24200), inv.TotalCents)
	assert.Equal(t, fmt.Sprintf("INV-%d-0001", time.Now().UTC().Year()), inv.Number)
	assert.Equal(t, []domain.MeterAction{domain.MeterActionInvoices}, gate.recorded)
}

func TestInvoiceCreateNumbersAreSequential(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	store := newFakeInvoiceStore()
	svc := NewInvoiceService(store, allowingGate(), &fakeEnqueuer{}, &fakeEnqueuer{}, testLogger())

	first, err := svc.Create(ctx, validInvoiceParams(companyID))
	require.NoError(t, err)
	second, err := svc.Create(ctx, validInvoiceParams(companyID))
	require.NoError(t, err)

	year := time.Now().UTC().Year()
	assert.Equal(t, fmt.Sprintf("INV-%d-0001", year), first.Number)
	assert.Equal(t, fmt.Sprintf("INV-%d-0002", year), second.Number)
}

func TestInvoiceCreateDeniedByGate(t *testing.T) {
	ctx := context.Background()
	store := newFakeInvoiceStore()
	gate := &fakeGate{decision: domain.DenyLimited(domain.PlanTierStarter, 5, 5)}
	svc := NewInvoiceService(store, gate, &fakeEnqueuer{}, &fakeEnqueuer{}, testLogger())

	_, err := svc.Create(ctx, validInvoiceParams(uuid.New()))
	require.Error(t, err)
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	// The denial reports the real counter and limit, not placeholders.
	assert.Contains(t, domain.ErrorMessage(err), "5 of 5 used this period")
	assert.Contains(t, domain.ErrorMessage(err), "upgrade to starter")
	assert.Empty(t, store.invoices)
	assert.Empty(t, gate.recorded)
}

func TestInvoiceCreateGateErrorFailsClosed(t *testing.T) {
	store := newFakeInvoiceStore()
	gate := &fakeGate{checkErr: errors.New("entitlements unavailable")}
	svc := NewInvoiceService(store, gate, &fakeEnqueuer{}, &fakeEnqueuer{}, testLogger())

	_, err := svc.Create(context.Background(), validInvoiceParams(uuid.New()))
	require.Error(t, err)
	assert.Empty(t, store.invoices)
}

func TestInvoiceCreateReconcilesOnRecordFailure(t *testing.T) {
	// The invoice write is durable before the meter is charged. If charging
	// fails the request still succeeds and a repair job is scheduled.
	ctx := context.Background()
	store := newFakeInvoiceStore()
	gate := allowingGate()
	gate.recordErr = errors.New("counter write failed")
	reconcile := &fakeEnqueuer{}
	svc := NewInvoiceService(store, gate, reconcile, &fakeEnqueuer{}, testLogger())

	inv, err := svc.Create(ctx, validInvoiceParams(uuid.New()))
	require.NoError(t, err)
	assert.Len(t, store.invoices, 1)
	assert.NotNil(t, inv)
	assert.Equal(t, []domain.MeterAction{domain.MeterActionInvoices}, reconcile.reconciled)
}

func TestInvoiceCreateValidation(t *testing.T) {
	companyID := uuid.New()

	tests := []struct {
		name   string
		mutate func(*domain.CreateInvoiceParams)
	}{
		{"missing contact", func(p *domain.CreateInvoiceParams) { p.ContactID = uuid.Nil }},
		{"no line items", func(p *domain.CreateInvoiceParams) { p.Items = nil }},
		{"empty description", func(p *domain.CreateInvoiceParams) { p.Items[0].Description = "" }},
		{"zero quantity", func(p *domain.CreateInvoiceParams) { p.Items[0].Quantity = 0 }},
		{"negative price", func(p *domain.CreateInvoiceParams) { p.Items[0].UnitCents = -1 }},
		{"missing currency", func(p *domain.CreateInvoiceParams) { p.Currency = "" }},
		{"tax rate above 100 percent", func(p *domain.CreateInvoiceParams) { p.TaxRateBPS = 10001 }},
		{"due before issue", func(p *domain.CreateInvoiceParams) { p.DueDate = p.IssueDate.AddDate(0, 0, -1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewInvoiceService(newFakeInvoiceStore(), allowingGate(), &fakeEnqueuer{}, &fakeEnqueuer{}, testLogger())
			params := validInvoiceParams(companyID)
			tt.mutate(&params)

			_, err := svc.Create(context.Background(), params)
			require.Error(t, err)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		})
	}
}

func TestInvoiceMarkPaidWritesLedgerEntry(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	store := newFakeInvoiceStore()
	svc := NewInvoiceService(store, allowingGate(), &fakeEnqueuer{}, &fakeEnqueuer{}, testLogger())

	inv, err := svc.Create(ctx, validInvoiceParams(companyID))
	require.NoError(t, err)
	_, err = svc.MarkSent(ctx, inv.ID, companyID)
	require.NoError(t, err)

	paid, err := svc.MarkPaid(ctx, inv.ID, companyID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	require.Len(t, store.transactions, 1)
	tx := store.transactions[0]
	assert.Equal(t, domain.TransactionKindIncome, tx.Kind)
	assert.Equal(t, domain.TransactionSourceInvoice, tx.Source)
	assert.Equal(t, inv.TotalCents, tx.AmountCents)
	assert.Equal(t, inv.ID, tx.SourceID.UUID)
}

func TestInvoiceTransitionRejected(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	store := newFakeInvoiceStore()
	svc := NewInvoiceService(store, allowingGate(), &fakeEnqueuer{}, &fakeEnqueuer{}, testLogger())

	inv, err := svc.Create(ctx, validInvoiceParams(companyID))
	require.NoError(t, err)

	// A draft cannot be paid directly.
	_, err = svc.MarkPaid(ctx, inv.ID, companyID)
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestInvoiceSendQueuesDelivery(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	store := newFakeInvoiceStore()
	delivery := &fakeEnqueuer{}
	svc := NewInvoiceService(store, allowingGate(), &fakeEnqueuer{}, delivery, testLogger())

	inv, err := svc.Create(ctx, validInvoiceParams(companyID))
	require.NoError(t, err)

	sent, err := svc.Send(ctx, inv.ID, companyID, "customer@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusSent, sent.Status)
	assert.Equal(t, []uuid.UUID{inv.ID}, delivery.deliveries)

	// Re-sending an already sent invoice queues another delivery without a
	// status change.
	again, err := svc.Send(ctx, inv.ID, companyID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusSent, again.Status)
	assert.Len(t, delivery.deliveries, 2)
}

func TestInvoiceGetScopedToCompany(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	store := newFakeInvoiceStore()
	svc := NewInvoiceService(store, allowingGate(), &fakeEnqueuer{}, &fakeEnqueuer{}, testLogger())

	inv, err := svc.Create(ctx, validInvoiceParams(companyID))
	require.NoError(t, err)

	_, err = svc.Get(ctx, inv.ID, uuid.New())
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
