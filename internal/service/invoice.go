// Package service contains the business logic layer.
//
// This file implements invoice management. Invoice creation is metered:
// the entitlement gate is checked first, the invoice is written, and the
// consumed unit is recorded only after the write is durable.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/metrics"
	"github.com/facturo/facturo/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// InvoiceService defines invoice operations.
type InvoiceService interface {
	// Create writes a new draft invoice. Returns domain.EPAYMENT with the
	// minimum sufficient tier when the plan's invoice limit is exhausted.
	Create(ctx context.Context, params domain.CreateInvoiceParams) (*domain.Invoice, error)

	// Get returns one invoice scoped to the company.
	Get(ctx context.Context, id, companyID uuid.UUID) (*domain.Invoice, error)

	// List returns a page of invoices with the total match count.
	List(ctx context.Context, params domain.ListInvoicesParams) (*domain.ListInvoicesResult, error)

	// MarkSent transitions a draft invoice to sent.
	MarkSent(ctx context.Context, id, companyID uuid.UUID) (*domain.Invoice, error)

	// Send transitions a draft invoice to sent and queues email delivery to
	// the customer. An empty recipient falls back to the contact's email.
	Send(ctx context.Context, id, companyID uuid.UUID, recipient string) (*domain.Invoice, error)

	// MarkPaid transitions a sent invoice to paid and writes the matching
	// income entry to the ledger.
	MarkPaid(ctx context.Context, id, companyID uuid.UUID) (*domain.Invoice, error)

	// Void cancels a draft or sent invoice.
	Void(ctx context.Context, id, companyID uuid.UUID) (*domain.Invoice, error)
}

// ReconcileEnqueuer schedules a usage reconcile job when recording
// consumption fails after a durable write.
type ReconcileEnqueuer interface {
	EnqueueReconcileUsage(ctx context.Context, companyID uuid.UUID, action domain.MeterAction) error
}

// InvoiceEmailEnqueuer schedules background delivery of an invoice.
type InvoiceEmailEnqueuer interface {
	EnqueueSendInvoiceEmail(ctx context.Context, invoiceID, companyID uuid.UUID, recipient string) error
}

// invoiceStore is the persistence surface for invoices.
// *repository.Queries satisfies it.
type invoiceStore interface {
	CreateInvoice(ctx context.Context, arg repository.CreateInvoiceParams) (domain.Invoice, error)
	GetInvoice(ctx context.Context, id, companyID uuid.UUID) (domain.Invoice, error)
	ListInvoices(ctx context.Context, arg repository.ListInvoicesParams) ([]domain.Invoice, error)
	CountInvoices(ctx context.Context, companyID uuid.UUID, statuses []string) (int64, error)
	CountInvoicesForYear(ctx context.Context, companyID uuid.UUID, year int) (int64, error)
	UpdateInvoiceStatus(ctx context.Context, arg repository.UpdateInvoiceStatusParams) (domain.Invoice, error)
	CreateTransaction(ctx context.Context, arg repository.CreateTransactionParams) (domain.Transaction, error)
}

// =============================================================================
// Implementation
// =============================================================================

type invoiceService struct {
	store     invoiceStore
	gate      GateService
	reconcile ReconcileEnqueuer
	delivery  InvoiceEmailEnqueuer
	logger    *slog.Logger
	now       func() time.Time
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(store invoiceStore, gate GateService, reconcile ReconcileEnqueuer, delivery InvoiceEmailEnqueuer, logger *slog.Logger) InvoiceService {
	return &invoiceService{
		store:     store,
		gate:      gate,
		reconcile: reconcile,
		delivery:  delivery,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *invoiceService) Create(ctx context.Context, params domain.CreateInvoiceParams) (*domain.Invoice, error) {
	const op = "invoice.create"

	if err := validateInvoiceParams(op, params); err != nil {
		return nil, err
	}

	decision, err := s.gate.CheckAndReserve(ctx, params.CompanyID, domain.MeterActionInvoices)
	if err != nil {
		// Fail closed: if entitlements cannot be determined, deny.
		return nil, err
	}
	if !decision.Permitted {
		return nil, domain.LimitExceeded(op, domain.MeterActionInvoices, decision.Consumed, decision.Limit, decision.MinimumTier)
	}

	number, err := s.nextNumber(ctx, params.CompanyID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to allocate invoice number")
	}

	draft := domain.Invoice{
		Items:      params.Items,
		TaxRateBPS: params.TaxRateBPS,
	}
	draft.ComputeTotals()

	invoice, err := s.store.CreateInvoice(ctx, repository.CreateInvoiceParams{
		CompanyID:     params.CompanyID,
		ContactID:     params.ContactID,
		Number:        number,
		IssueDate:     params.IssueDate,
		DueDate:       params.DueDate,
		Items:         params.Items,
		Currency:      params.Currency,
		SubtotalCents: draft.SubtotalCents,
		TaxRateBPS:    params.TaxRateBPS,
		TaxCents:      draft.TaxCents,
		TotalCents:    draft.TotalCents,
		Notes:         params.Notes,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create invoice")
	}

	// The invoice is durable; charge the meter now. A failure here must not
	// fail the request, but it cannot be dropped either or the company would
	// get free units, so a reconcile job repairs the counter.
	if _, err := s.gate.RecordConsumption(ctx, params.CompanyID, domain.MeterActionInvoices); err != nil {
		s.logger.Error("Failed to record invoice consumption, scheduling reconcile",
			"company_id", params.CompanyID,
			"invoice_id", invoice.ID,
			"error", err)
		if enqErr := s.reconcile.EnqueueReconcileUsage(ctx, params.CompanyID, domain.MeterActionInvoices); enqErr != nil {
			s.logger.Error("Failed to enqueue usage reconcile job",
				"company_id", params.CompanyID,
				"error", enqErr)
		}
	}

	metrics.InvoicesCreated.Inc()
	s.logger.Info("Invoice created",
		"invoice_id", invoice.ID,
		"company_id", params.CompanyID,
		"number", invoice.Number,
		"total_cents", invoice.TotalCents)
	return &invoice, nil
}

func (s *invoiceService) Get(ctx context.Context, id, companyID uuid.UUID) (*domain.Invoice, error) {
	const op = "invoice.get"

	invoice, err := s.store.GetInvoice(ctx, id, companyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "invoice", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load invoice")
	}
	return &invoice, nil
}

func (s *invoiceService) List(ctx context.Context, params domain.ListInvoicesParams) (*domain.ListInvoicesResult, error) {
	const op = "invoice.list"

	statuses := make([]string, 0, len(params.Statuses))
	for _, st := range params.Statuses {
		if !st.Valid() {
			return nil, domain.Invalid(op, "unknown invoice status")
		}
		statuses = append(statuses, string(st))
	}

	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	invoices, err := s.store.ListInvoices(ctx, repository.ListInvoicesParams{
		CompanyID: params.CompanyID,
		Statuses:  statuses,
		Limit:     limit,
		Offset:    params.Offset,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list invoices")
	}

	total, err := s.store.CountInvoices(ctx, params.CompanyID, statuses)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count invoices")
	}

	return &domain.ListInvoicesResult{Invoices: invoices, TotalCount: total}, nil
}

func (s *invoiceService) MarkSent(ctx context.Context, id, companyID uuid.UUID) (*domain.Invoice, error) {
	return s.transition(ctx, "invoice.mark_sent", id, companyID, domain.InvoiceStatusSent)
}

func (s *invoiceService) Send(ctx context.Context, id, companyID uuid.UUID, recipient string) (*domain.Invoice, error) {
	const op = "invoice.send"

	invoice, err := s.Get(ctx, id, companyID)
	if err != nil {
		return nil, err
	}

	// A sent invoice can be re-delivered; anything else must transition first.
	if invoice.Status != domain.InvoiceStatusSent {
		invoice, err = s.transition(ctx, op, id, companyID, domain.InvoiceStatusSent)
		if err != nil {
			return nil, err
		}
	}

	if err := s.delivery.EnqueueSendInvoiceEmail(ctx, id, companyID, recipient); err != nil {
		return nil, domain.Internal(err, op, "failed to queue invoice delivery")
	}

	s.logger.Info("Invoice delivery queued",
		"invoice_id", id,
		"company_id", companyID)
	return invoice, nil
}

func (s *invoiceService) MarkPaid(ctx context.Context, id, companyID uuid.UUID) (*domain.Invoice, error) {
	const op = "invoice.mark_paid"

	invoice, err := s.transition(ctx, op, id, companyID, domain.InvoiceStatusPaid)
	if err != nil {
		return nil, err
	}

	// Paid invoices flow into the ledger as income. The entry is written
	// best-effort; a failure is logged rather than unwinding the payment.
	if _, err := s.store.CreateTransaction(ctx, repository.CreateTransactionParams{
		CompanyID:   companyID,
		Kind:        domain.TransactionKindIncome,
		Source:      domain.TransactionSourceInvoice,
		SourceID:    uuid.NullUUID{UUID: invoice.ID, Valid: true},
		Date:        s.now(),
		Category:    "sales",
		Description: fmt.Sprintf("Invoice %s", invoice.Number),
		AmountCents: invoice.TotalCents,
	}); err != nil {
		s.logger.Error("Failed to write ledger entry for paid invoice",
			"invoice_id", invoice.ID,
			"error", err)
	}

	return invoice, nil
}

func (s *invoiceService) Void(ctx context.Context, id, companyID uuid.UUID) (*domain.Invoice, error) {
	return s.transition(ctx, "invoice.void", id, companyID, domain.InvoiceStatusVoid)
}

func (s *invoiceService) transition(ctx context.Context, op string, id, companyID uuid.UUID, next domain.InvoiceStatus) (*domain.Invoice, error) {
	invoice, err := s.Get(ctx, id, companyID)
	if err != nil {
		return nil, err
	}

	if !invoice.CanTransitionTo(next) {
		return nil, domain.Invalid(op, fmt.Sprintf("cannot move invoice from %s to %s", invoice.Status, next))
	}

	var paidAt sql.NullTime
	if next == domain.InvoiceStatusPaid {
		paidAt = sql.NullTime{Time: s.now(), Valid: true}
	}

	updated, err := s.store.UpdateInvoiceStatus(ctx, repository.UpdateInvoiceStatusParams{
		ID:        id,
		CompanyID: companyID,
		Status:    string(next),
		PaidAt:    paidAt,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update invoice status")
	}

	s.logger.Info("Invoice status changed",
		"invoice_id", id,
		"from", invoice.Status,
		"to", next)
	return &updated, nil
}

// nextNumber allocates a sequential per-company invoice number like
// INV-2026-0042.
func (s *invoiceService) nextNumber(ctx context.Context, companyID uuid.UUID) (string, error) {
	year := s.now().UTC().Year()
	count, err := s.store.CountInvoicesForYear(ctx, companyID, year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%d-%04d", year, count+1), nil
}

func validateInvoiceParams(op string, params domain.CreateInvoiceParams) error {
	if params.ContactID == uuid.Nil {
		return domain.Invalid(op, "A customer is required")
	}
	if len(params.Items) == 0 {
		return domain.Invalid(op, "At least one line item is required")
	}
	for _, item := range params.Items {
		if item.Description == "" {
			return domain.Invalid(op, "Line item description is required")
		}
		if item.Quantity <= 0 {
			return domain.Invalid(op, "Line item quantity must be positive")
		}
		if item.UnitCents < 0 {
			return domain.Invalid(op, "Line item price cannot be negative")
		}
	}
	if params.Currency == "" {
		return domain.Invalid(op, "Currency is required")
	}
	if params.TaxRateBPS < 0 || params.TaxRateBPS > 10000 {
		return domain.Invalid(op, "Tax rate must be between 0% and 100%")
	}
	if !params.DueDate.IsZero() && params.DueDate.Before(params.IssueDate) {
		return domain.Invalid(op, "Due date cannot be before issue date")
	}
	return nil
}
