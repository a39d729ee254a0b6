// Package service contains the business logic layer.
//
// This file implements supplier bill management. Bill creation is metered
// the same way invoice creation is.
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

// BillService defines supplier bill operations.
type BillService interface {
	// Create records a new open bill. Returns domain.EPAYMENT with the
	// minimum sufficient tier when the plan's bill limit is exhausted.
	Create(ctx context.Context, params domain.CreateBillParams) (*domain.Bill, error)

	// Get returns one bill scoped to the company.
	Get(ctx context.Context, id, companyID uuid.UUID) (*domain.Bill, error)

	// List returns a page of bills with the total match count.
	List(ctx context.Context, params domain.ListBillsParams) (*domain.ListBillsResult, error)

	// MarkPaid transitions an open bill to paid and writes the matching
	// expense entry to the ledger.
	MarkPaid(ctx context.Context, id, companyID uuid.UUID) (*domain.Bill, error)

	// Void cancels an open bill.
	Void(ctx context.Context, id, companyID uuid.UUID) (*domain.Bill, error)
}

// billStore is the persistence surface for bills. *repository.Queries
// satisfies it.
type billStore interface {
	CreateBill(ctx context.Context, arg repository.CreateBillParams) (domain.Bill, error)
	GetBill(ctx context.Context, id, companyID uuid.UUID) (domain.Bill, error)
	ListBills(ctx context.Context, arg repository.ListBillsParams) ([]domain.Bill, error)
	CountBills(ctx context.Context, companyID uuid.UUID, statuses []string) (int64, error)
	UpdateBillStatus(ctx context.Context, arg repository.UpdateBillStatusParams) (domain.Bill, error)
	CreateTransaction(ctx context.Context, arg repository.CreateTransactionParams) (domain.Transaction, error)
}

// =============================================================================
// Implementation
// =============================================================================

type billService struct {
	store     billStore
	gate      GateService
	reconcile ReconcileEnqueuer
	logger    *slog.Logger
	now       func() time.Time
}

// NewBillService creates a new BillService.
func NewBillService(store billStore, gate GateService, reconcile ReconcileEnqueuer, logger *slog.Logger) BillService {
	return &billService{
		store:     store,
		gate:      gate,
		reconcile: reconcile,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *billService) Create(ctx context.Context, params domain.CreateBillParams) (*domain.Bill, error) {
	const op = "bill.create"

	if err := validateBillParams(op, params); err != nil {
		return nil, err
	}

	decision, err := s.gate.CheckAndReserve(ctx, params.CompanyID, domain.MeterActionBills)
	if err != nil {
		return nil, err
	}
	if !decision.Permitted {
		return nil, domain.LimitExceeded(op, domain.MeterActionBills, decision.Consumed, decision.Limit, decision.MinimumTier)
	}

	draft := domain.Bill{
		Items:      params.Items,
		TaxRateBPS: params.TaxRateBPS,
	}
	draft.ComputeTotals()

	bill, err := s.store.CreateBill(ctx, repository.CreateBillParams{
		CompanyID:     params.CompanyID,
		ContactID:     params.ContactID,
		Reference:     params.Reference,
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
		return nil, domain.Internal(err, op, "failed to create bill")
	}

	if _, err := s.gate.RecordConsumption(ctx, params.CompanyID, domain.MeterActionBills); err != nil {
		s.logger.Error("Failed to record bill consumption, scheduling reconcile",
			"company_id", params.CompanyID,
			"bill_id", bill.ID,
			"error", err)
		if enqErr := s.reconcile.EnqueueReconcileUsage(ctx, params.CompanyID, domain.MeterActionBills); enqErr != nil {
			s.logger.Error("Failed to enqueue usage reconcile job",
				"company_id", params.CompanyID,
				"error", enqErr)
		}
	}

	metrics.BillsCreated.Inc()
	s.logger.Info("Bill recorded",
		"bill_id", bill.ID,
		"company_id", params.CompanyID,
		"total_cents", bill.TotalCents)
	return &bill, nil
}

func (s *billService) Get(ctx context.Context, id, companyID uuid.UUID) (*domain.Bill, error) {
	const op = "bill.get"

	bill, err := s.store.GetBill(ctx, id, companyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "bill", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load bill")
	}
	return &bill, nil
}

func (s *billService) List(ctx context.Context, params domain.ListBillsParams) (*domain.ListBillsResult, error) {
	const op = "bill.list"

	statuses := make([]string, 0, len(params.Statuses))
	for _, st := range params.Statuses {
		if !st.Valid() {
			return nil, domain.Invalid(op, "unknown bill status")
		}
		statuses = append(statuses, string(st))
	}

	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	bills, err := s.store.ListBills(ctx, repository.ListBillsParams{
		CompanyID: params.CompanyID,
		Statuses:  statuses,
		Limit:     limit,
		Offset:    params.Offset,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list bills")
	}

	total, err := s.store.CountBills(ctx, params.CompanyID, statuses)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count bills")
	}

	return &domain.ListBillsResult{Bills: bills, TotalCount: total}, nil
}

func (s *billService) MarkPaid(ctx context.Context, id, companyID uuid.UUID) (*domain.Bill, error) {
	const op = "bill.mark_paid"

	bill, err := s.transition(ctx, op, id, companyID, domain.BillStatusPaid)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.CreateTransaction(ctx, repository.CreateTransactionParams{
		CompanyID:   companyID,
		Kind:        domain.TransactionKindExpense,
		Source:      domain.TransactionSourceBill,
		SourceID:    uuid.NullUUID{UUID: bill.ID, Valid: true},
		Date:        s.now(),
		Category:    "purchases",
		Description: fmt.Sprintf("Bill %s", bill.Reference),
		AmountCents: bill.TotalCents,
	}); err != nil {
		s.logger.Error("Failed to write ledger entry for paid bill",
			"bill_id", bill.ID,
			"error", err)
	}

	return bill, nil
}

func (s *billService) Void(ctx context.Context, id, companyID uuid.UUID) (*domain.Bill, error) {
	return s.transition(ctx, "bill.void", id, companyID, domain.BillStatusVoid)
}

func (s *billService) transition(ctx context.Context, op string, id, companyID uuid.UUID, next domain.BillStatus) (*domain.Bill, error) {
	bill, err := s.Get(ctx, id, companyID)
	if err != nil {
		return nil, err
	}

	if !bill.CanTransitionTo(next) {
		return nil, domain.Invalid(op, fmt.Sprintf("cannot move bill from %s to %s", bill.Status, next))
	}

	var paidAt sql.NullTime
	if next == domain.BillStatusPaid {
		paidAt = sql.NullTime{Time: s.now(), Valid: true}
	}

	updated, err := s.store.UpdateBillStatus(ctx, repository.UpdateBillStatusParams{
		ID:        id,
		CompanyID: companyID,
		Status:    string(next),
		PaidAt:    paidAt,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update bill status")
	}

	s.logger.Info("Bill status changed",
		"bill_id", id,
		"from", bill.Status,
		"to", next)
	return &updated, nil
}

func validateBillParams(op string, params domain.CreateBillParams) error {
	if params.ContactID == uuid.Nil {
		return domain.Invalid(op, "A supplier is required")
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
	return nil
}
