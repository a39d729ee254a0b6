package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CreateInvoiceParams contains the fields for inserting an invoice.
type CreateInvoiceParams struct {
	CompanyID     uuid.UUID
	ContactID     uuid.UUID
	Number        string
	IssueDate     time.Time
	DueDate       time.Time
	Items         []domain.LineItem
	Currency      string
	SubtotalCents int64
	TaxRateBPS    int64
	TaxCents      int64
	TotalCents    int64
	Notes         string
}

const createInvoice = `
INSERT INTO invoices (company_id, contact_id, number, status, issue_date, due_date,
                      items, currency, subtotal_cents, tax_rate_bps, tax_cents, total_cents, notes)
VALUES ($1, $2, $3, 'draft', $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id, company_id, contact_id, number, status, issue_date, due_date, items,
          currency, subtotal_cents, tax_rate_bps, tax_cents, total_cents, notes,
          pdf_key, paid_at, created_at, updated_at
`

func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (domain.Invoice, error) {
	items, err := json.Marshal(arg.Items)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("marshal line items: %w", err)
	}
	row := q.db.QueryRowContext(ctx, createInvoice,
		arg.CompanyID, arg.ContactID, arg.Number, arg.IssueDate, arg.DueDate,
		items, arg.Currency, arg.SubtotalCents, arg.TaxRateBPS, arg.TaxCents,
		arg.TotalCents, arg.Notes)
	return scanInvoice(row)
}

const getInvoice = `
SELECT id, company_id, contact_id, number, status, issue_date, due_date, items,
       currency, subtotal_cents, tax_rate_bps, tax_cents, total_cents, notes,
       pdf_key, paid_at, created_at, updated_at
FROM invoices WHERE id = $1 AND company_id = $2
`

func (q *Queries) GetInvoice(ctx context.Context, id, companyID uuid.UUID) (domain.Invoice, error) {
	return scanInvoice(q.db.QueryRowContext(ctx, getInvoice, id, companyID))
}

// ListInvoicesParams filters the invoice listing. An empty Statuses slice
// matches all statuses.
type ListInvoicesParams struct {
	CompanyID uuid.UUID
	Statuses  []string
	Limit     int32
	Offset    int32
}

const listInvoices = `
SELECT id, company_id, contact_id, number, status, issue_date, due_date, items,
       currency, subtotal_cents, tax_rate_bps, tax_cents, total_cents, notes,
       pdf_key, paid_at, created_at, updated_at
FROM invoices
WHERE company_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
ORDER BY issue_date DESC, created_at DESC
LIMIT $3 OFFSET $4
`

func (q *Queries) ListInvoices(ctx context.Context, arg ListInvoicesParams) ([]domain.Invoice, error) {
	rows, err := q.db.QueryContext(ctx, listInvoices,
		arg.CompanyID, pq.Array(arg.Statuses), arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

const countInvoices = `
SELECT count(*) FROM invoices
WHERE company_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
`

func (q *Queries) CountInvoices(ctx context.Context, companyID uuid.UUID, statuses []string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countInvoices, companyID, pq.Array(statuses)).Scan(&count)
	return count, err
}

// UpdateInvoiceStatusParams moves an invoice through its lifecycle.
type UpdateInvoiceStatusParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Status    string
	PaidAt    sql.NullTime
}

const updateInvoiceStatus = `
UPDATE invoices SET status = $3, paid_at = $4, updated_at = now()
WHERE id = $1 AND company_id = $2
RETURNING id, company_id, contact_id, number, status, issue_date, due_date, items,
          currency, subtotal_cents, tax_rate_bps, tax_cents, total_cents, notes,
          pdf_key, paid_at, created_at, updated_at
`

func (q *Queries) UpdateInvoiceStatus(ctx context.Context, arg UpdateInvoiceStatusParams) (domain.Invoice, error) {
	row := q.db.QueryRowContext(ctx, updateInvoiceStatus, arg.ID, arg.CompanyID, arg.Status, arg.PaidAt)
	return scanInvoice(row)
}

const updateInvoicePDFKey = `
UPDATE invoices SET pdf_key = $3, updated_at = now()
WHERE id = $1 AND company_id = $2
`

func (q *Queries) UpdateInvoicePDFKey(ctx context.Context, id, companyID uuid.UUID, pdfKey string) error {
	_, err := q.db.ExecContext(ctx, updateInvoicePDFKey, id, companyID, pdfKey)
	return err
}

const countInvoicesForYear = `
SELECT count(*) FROM invoices
WHERE company_id = $1 AND date_part('year', issue_date) = $2
`

// CountInvoicesForYear supports sequential invoice numbering per company/year.
func (q *Queries) CountInvoicesForYear(ctx context.Context, companyID uuid.UUID, year int) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countInvoicesForYear, companyID, year).Scan(&count)
	return count, err
}

func scanInvoice(row rowScanner) (domain.Invoice, error) {
	var (
		inv    domain.Invoice
		items  []byte
		paidAt sql.NullTime
	)
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.ContactID, &inv.Number, &inv.Status,
		&inv.IssueDate, &inv.DueDate, &items, &inv.Currency, &inv.SubtotalCents,
		&inv.TaxRateBPS, &inv.TaxCents, &inv.TotalCents, &inv.Notes, &inv.PDFKey,
		&paidAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return domain.Invoice{}, err
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return domain.Invoice{}, fmt.Errorf("unmarshal line items: %w", err)
	}
	inv.PaidAt = domain.NullTimeValue(paidAt)
	return inv, nil
}
