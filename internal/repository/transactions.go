package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/google/uuid"
)

const transactionColumns = `id, company_id, kind, source, source_id, date, category, description, amount_cents, created_at`

// CreateTransactionParams inserts a ledger entry from any source. Manual
// entries come through the service layer; invoice/bill entries are created
// when documents are marked paid.
type CreateTransactionParams struct {
	CompanyID   uuid.UUID
	Kind        domain.TransactionKind
	Source      domain.TransactionSource
	SourceID    uuid.NullUUID
	Date        time.Time
	Category    string
	Description string
	AmountCents int64
}

const createTransaction = `
INSERT INTO transactions (company_id, kind, source, source_id, date, category, description, amount_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + transactionColumns

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (domain.Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.CompanyID, arg.Kind, arg.Source, arg.SourceID, arg.Date,
		arg.Category, arg.Description, arg.AmountCents)
	return scanTransaction(row)
}

const getTransaction = `
SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 AND company_id = $2
`

func (q *Queries) GetTransaction(ctx context.Context, id, companyID uuid.UUID) (domain.Transaction, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id, companyID))
}

const listTransactions = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE company_id = $1
  AND ($2 = '' OR kind = $2)
  AND ($3::timestamptz IS NULL OR date >= $3)
  AND ($4::timestamptz IS NULL OR date < $4)
ORDER BY date DESC, created_at DESC
LIMIT $5 OFFSET $6
`

func (q *Queries) ListTransactions(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions,
		arg.CompanyID, string(arg.Kind), nullableTime(arg.From), nullableTime(arg.To),
		arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

const countTransactions = `
SELECT count(*) FROM transactions
WHERE company_id = $1
  AND ($2 = '' OR kind = $2)
  AND ($3::timestamptz IS NULL OR date >= $3)
  AND ($4::timestamptz IS NULL OR date < $4)
`

func (q *Queries) CountTransactions(ctx context.Context, arg domain.ListTransactionsParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countTransactions,
		arg.CompanyID, string(arg.Kind), nullableTime(arg.From), nullableTime(arg.To)).Scan(&count)
	return count, err
}

const summarizeTransactions = `
SELECT
  coalesce(sum(amount_cents) FILTER (WHERE kind = 'income'), 0),
  coalesce(sum(amount_cents) FILTER (WHERE kind = 'expense'), 0),
  count(*)
FROM transactions
WHERE company_id = $1
  AND ($2::timestamptz IS NULL OR date >= $2)
  AND ($3::timestamptz IS NULL OR date < $3)
`

func (q *Queries) SummarizeTransactions(ctx context.Context, companyID uuid.UUID, from, to time.Time) (domain.LedgerSummary, error) {
	s := domain.LedgerSummary{From: from, To: to}
	err := q.db.QueryRowContext(ctx, summarizeTransactions,
		companyID, nullableTime(from), nullableTime(to)).
		Scan(&s.IncomeCents, &s.ExpenseCents, &s.EntryCount)
	if err != nil {
		return domain.LedgerSummary{}, err
	}
	s.NetCents = s.IncomeCents - s.ExpenseCents
	return s, nil
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		t        domain.Transaction
		sourceID uuid.NullUUID
	)
	err := row.Scan(&t.ID, &t.CompanyID, &t.Kind, &t.Source, &sourceID,
		&t.Date, &t.Category, &t.Description, &t.AmountCents, &t.CreatedAt)
	if err != nil {
		return domain.Transaction{}, err
	}
	if sourceID.Valid {
		id := sourceID.UUID
		t.SourceID = &id
	}
	return t, nil
}

func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
