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

// CreateBillParams contains the fields for inserting a supplier bill.
type CreateBillParams struct {
	CompanyID     uuid.UUID
	ContactID     uuid.UUID
	Reference     string
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

const createBill = `
INSERT INTO bills (company_id, contact_id, reference, status, issue_date, due_date,
                   items, currency, subtotal_cents, tax_rate_bps, tax_cents, total_cents, notes)
VALUES ($1, $2, $3, 'open', $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id, company_id, contact_id, reference, status, issue_date, due_date, items,
          currency, subtotal_cents, tax_rate_bps, tax_cents, total_cents, notes,
          paid_at, created_at, updated_at
`

func (q *Queries) CreateBill(ctx context.Context, arg CreateBillParams) (domain.Bill, error) {
	items, err := json.Marshal(arg.Items)
	if err != nil {
		return domain.Bill{}, fmt.Errorf("marshal line items: %w", err)
	}
	row := q.db.QueryRowContext(ctx, createBill,
		arg.CompanyID, arg.ContactID, arg.Reference, arg.IssueDate, arg.DueDate,
		items, arg.Currency, arg.SubtotalCents, arg.TaxRateBPS, arg.TaxCents,
		arg.TotalCents, arg.Notes)
	return scanBill(row)
}

const getBill = `
SELECT id, company_id, contact_id, reference, status, issue_date, due_date, items,
       currency, subtotal_cents, tax_rate_bps, tax_cents, total_cents, notes,
       paid_at, created_at, updated_at
FROM bills WHERE id = $1 AND company_id = $2
`

func (q *Queries) GetBill(ctx context.Context, id, companyID uuid.UUID) (domain.Bill, error) {
	return scanBill(q.db.QueryRowContext(ctx, getBill, id, companyID))
}

// ListBillsParams filters the bill listing. An empty Statuses slice matches
// all statuses.
type ListBillsParams struct {
	CompanyID uuid.UUID
	Statuses  []string
	Limit     int32
	Offset    int32
}

const listBills = `
SELECT id, company_id, contact_id, reference, status, issue_date, due_date, items,
       currency, subtotal_cents, tax_rate_bps, tax_cents, total_cents, notes,
       paid_at, created_at, updated_at
FROM bills
WHERE company_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
ORDER BY issue_date DESC, created_at DESC
LIMIT $3 OFFSET $4
`

func (q *Queries) ListBills(ctx context.Context, arg ListBillsParams) ([]domain.Bill, error) {
	rows, err := q.db.QueryContext(ctx, listBills,
		arg.CompanyID, pq.Array(arg.Statuses), arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []domain.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

const countBills = `
SELECT count(*) FROM bills
WHERE company_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
`

func (q *Queries) CountBills(ctx context.Context, companyID uuid.UUID, statuses []string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countBills, companyID, pq.Array(statuses)).Scan(&count)
	return count, err
}

// UpdateBillStatusParams moves a bill through its lifecycle.
type UpdateBillStatusParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Status    string
	PaidAt    sql.NullTime
}

const updateBillStatus = `
UPDATE bills SET status = $3, paid_at = $4, updated_at = now()
WHERE id = $1 AND company_id = $2
RETURNING id, company_id, contact_id, reference, status, issue_date, due_date, items,
          currency, subtotal_cents, tax_rate_bps, tax_cents, total_cents, notes,
          paid_at, created_at, updated_at
`

func (q *Queries) UpdateBillStatus(ctx context.Context, arg UpdateBillStatusParams) (domain.Bill, error) {
	row := q.db.QueryRowContext(ctx, updateBillStatus, arg.ID, arg.CompanyID, arg.Status, arg.PaidAt)
	return scanBill(row)
}

func scanBill(row rowScanner) (domain.Bill, error) {
	var (
		b      domain.Bill
		items  []byte
		paidAt sql.NullTime
	)
	err := row.Scan(&b.ID, &b.CompanyID, &b.ContactID, &b.Reference, &b.Status,
		&b.IssueDate, &b.DueDate, &items, &b.Currency, &b.SubtotalCents,
		&b.TaxRateBPS, &b.TaxCents, &b.TotalCents, &b.Notes,
		&paidAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return domain.Bill{}, err
	}
	if err := json.Unmarshal(items, &b.Items); err != nil {
		return domain.Bill{}, fmt.Errorf("unmarshal line items: %w", err)
	}
	b.PaidAt = domain.NullTimeValue(paidAt)
	return b, nil
}
