// Package domain contains core business types and interfaces.
//
// This file defines the ledger Transaction type for the accounting module,
// which is gated by the accounting feature flag. Transactions are posted
// automatically when invoices and bills are paid, and can be entered manually.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind distinguishes money in from money out.
type TransactionKind string

const (
	TransactionKindIncome  TransactionKind = "income"
	TransactionKindExpense TransactionKind = "expense"
)

// Valid checks if the kind is a known transaction kind.
func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionKindIncome, TransactionKindExpense:
		return true
	default:
		return false
	}
}

// TransactionSource records what produced a ledger entry.
type TransactionSource string

const (
	TransactionSourceManual  TransactionSource = "manual"
	TransactionSourceInvoice TransactionSource = "invoice"
	TransactionSourceBill    TransactionSource = "bill"
)

// Transaction is one entry in the company's ledger. Amounts are in cents and
// always positive; the kind carries the sign.
type Transaction struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	Kind        TransactionKind
	Source      TransactionSource
	SourceID    *uuid.UUID // invoice or bill ID when not manual
	Date        time.Time
	Category    string
	Description string
	AmountCents int64
	CreatedAt   time.Time
}

// CreateTransactionParams contains the validated parameters for a manual
// ledger entry. Invoice/bill-sourced entries are constructed internally.
type CreateTransactionParams struct {
	CompanyID   uuid.UUID
	Kind        TransactionKind
	Date        time.Time
	Category    string
	Description string
	AmountCents int64
}

// ListTransactionsParams contains filters for listing ledger entries.
type ListTransactionsParams struct {
	CompanyID uuid.UUID
	Kind      TransactionKind // empty = all
	From      time.Time       // zero = unbounded
	To        time.Time       // zero = unbounded
	Limit     int32
	Offset    int32
}

// ListTransactionsResult is a page of transactions with the total match count.
type ListTransactionsResult struct {
	Transactions []Transaction
	TotalCount   int64
}

// LedgerSummary aggregates a date range of the ledger.
type LedgerSummary struct {
	From         time.Time
	To           time.Time
	IncomeCents  int64
	ExpenseCents int64
	NetCents     int64
	EntryCount   int64
}
