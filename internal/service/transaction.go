// Package service contains the business logic layer.
//
// This file implements the income/expense ledger. Automatic entries from
// paid invoices and bills are always written; manual entries, summaries
// and exports are gated behind the accounting feature.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// LedgerService defines ledger operations.
type LedgerService interface {
	// CreateEntry records a manual income or expense entry. Requires the
	// accounting feature.
	CreateEntry(ctx context.Context, params domain.CreateTransactionParams) (*domain.Transaction, error)

	// List returns a page of ledger entries. Requires the accounting feature.
	List(ctx context.Context, params domain.ListTransactionsParams) (*domain.ListTransactionsResult, error)

	// Summary aggregates the ledger over a date range. Requires the
	// accounting feature.
	Summary(ctx context.Context, companyID uuid.UUID, from, to time.Time) (*domain.LedgerSummary, error)

	// Export renders the ledger for a date range as an XLSX workbook.
	// Requires the accounting feature.
	Export(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]byte, error)
}

// LedgerExporter renders ledger entries to a spreadsheet.
type LedgerExporter interface {
	ExportLedger(company *domain.Company, summary *domain.LedgerSummary, entries []domain.Transaction) ([]byte, error)
}

// =============================================================================
// Implementation
// =============================================================================

type ledgerService struct {
	queries  *repository.Queries
	gate     GateService
	exporter LedgerExporter
	logger   *slog.Logger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(queries *repository.Queries, gate GateService, exporter LedgerExporter, logger *slog.Logger) LedgerService {
	return &ledgerService{
		queries:  queries,
		gate:     gate,
		exporter: exporter,
		logger:   logger,
	}
}

func (s *ledgerService) CreateEntry(ctx context.Context, params domain.CreateTransactionParams) (*domain.Transaction, error) {
	const op = "ledger.create_entry"

	if err := s.requireAccounting(ctx, op, params.CompanyID); err != nil {
		return nil, err
	}

	if params.Kind != domain.TransactionKindIncome && params.Kind != domain.TransactionKindExpense {
		return nil, domain.Invalid(op, "Entry kind must be income or expense")
	}
	if params.AmountCents <= 0 {
		return nil, domain.Invalid(op, "Amount must be positive")
	}
	if strings.TrimSpace(params.Description) == "" {
		return nil, domain.Invalid(op, "Description is required")
	}

	date := params.Date
	if date.IsZero() {
		date = time.Now()
	}

	txn, err := s.queries.CreateTransaction(ctx, repository.CreateTransactionParams{
		CompanyID:   params.CompanyID,
		Kind:        params.Kind,
		Source:      domain.TransactionSourceManual,
		Date:        date,
		Category:    params.Category,
		Description: params.Description,
		AmountCents: params.AmountCents,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create ledger entry")
	}

	s.logger.Info("Ledger entry created",
		"transaction_id", txn.ID,
		"company_id", params.CompanyID,
		"kind", txn.Kind,
		"amount_cents", txn.AmountCents)
	return &txn, nil
}

func (s *ledgerService) List(ctx context.Context, params domain.ListTransactionsParams) (*domain.ListTransactionsResult, error) {
	const op = "ledger.list"

	if err := s.requireAccounting(ctx, op, params.CompanyID); err != nil {
		return nil, err
	}

	if params.Limit <= 0 || params.Limit > 200 {
		params.Limit = 50
	}

	txns, err := s.queries.ListTransactions(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list ledger entries")
	}

	total, err := s.queries.CountTransactions(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count ledger entries")
	}

	return &domain.ListTransactionsResult{Transactions: txns, TotalCount: total}, nil
}

func (s *ledgerService) Summary(ctx context.Context, companyID uuid.UUID, from, to time.Time) (*domain.LedgerSummary, error) {
	const op = "ledger.summary"

	if err := s.requireAccounting(ctx, op, companyID); err != nil {
		return nil, err
	}

	summary, err := s.queries.SummarizeTransactions(ctx, companyID, from, to)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to summarize ledger")
	}
	return &summary, nil
}

func (s *ledgerService) Export(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]byte, error) {
	const op = "ledger.export"

	// Exports are a reporting feature, gated separately from ledger access.
	if err := s.requireFeature(ctx, op, companyID, domain.FeatureAdvancedReports); err != nil {
		return nil, err
	}

	company, err := s.queries.GetCompanyByID(ctx, companyID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load company")
	}

	summary, err := s.queries.SummarizeTransactions(ctx, companyID, from, to)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to summarize ledger")
	}

	entries, err := s.queries.ListTransactions(ctx, domain.ListTransactionsParams{
		CompanyID: companyID,
		From:      from,
		To:        to,
		Limit:     10000,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list ledger entries")
	}

	data, err := s.exporter.ExportLedger(&company, &summary, entries)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to render ledger export")
	}

	s.logger.Info("Ledger exported",
		"company_id", companyID,
		"entries", len(entries))
	return data, nil
}

func (s *ledgerService) requireAccounting(ctx context.Context, op string, companyID uuid.UUID) error {
	return s.requireFeature(ctx, op, companyID, domain.FeatureAccounting)
}

func (s *ledgerService) requireFeature(ctx context.Context, op string, companyID uuid.UUID, feature domain.Feature) error {
	decision, err := s.gate.CheckFeature(ctx, companyID, feature)
	if err != nil {
		return err
	}
	if !decision.Permitted {
		return domain.PlanRequired(op, feature, decision.MinimumTier)
	}
	return nil
}
