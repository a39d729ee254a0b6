// Package domain contains core business types and interfaces.
//
// This file defines the Bill domain type: supplier bills recorded against the
// company. Bill creation is a metered action gated by the subscription plan.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// BillStatus represents the lifecycle state of a bill.
type BillStatus string

const (
	BillStatusOpen BillStatus = "open"
	BillStatusPaid BillStatus = "paid"
	BillStatusVoid BillStatus = "void"
)

// Valid checks if the status is a known bill status.
func (s BillStatus) Valid() bool {
	switch s {
	case BillStatusOpen, BillStatusPaid, BillStatusVoid:
		return true
	default:
		return false
	}
}

// Bill is a supplier bill owed by the company.
type Bill struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	ContactID     uuid.UUID // supplier contact
	Reference     string    // supplier's invoice reference
	Status        BillStatus
	IssueDate     time.Time
	DueDate       time.Time
	Items         []LineItem
	Currency      string
	SubtotalCents int64
	TaxRateBPS    int64
	TaxCents      int64
	TotalCents    int64
	Notes         string
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ComputeTotals recalculates subtotal, tax, and total from the line items.
func (b *Bill) ComputeTotals() {
	var subtotal int64
	for _, li := range b.Items {
		subtotal += li.TotalCents()
	}
	b.SubtotalCents = subtotal
	b.TaxCents = (subtotal*b.TaxRateBPS + 5000) / 10000
	b.TotalCents = subtotal + b.TaxCents
}

// CanTransitionTo reports whether the status change is a legal lifecycle
// move. Paid and void are terminal.
func (b *Bill) CanTransitionTo(next BillStatus) bool {
	switch b.Status {
	case BillStatusOpen:
		return next == BillStatusPaid || next == BillStatusVoid
	default:
		return false
	}
}

// CreateBillParams contains the validated parameters for recording a bill.
type CreateBillParams struct {
	CompanyID  uuid.UUID
	ContactID  uuid.UUID
	Reference  string
	IssueDate  time.Time
	DueDate    time.Time
	Items      []LineItem
	Currency   string
	TaxRateBPS int64
	Notes      string
}

// ListBillsParams contains filters for listing bills.
type ListBillsParams struct {
	CompanyID uuid.UUID
	Statuses  []BillStatus // empty = all
	Limit     int32
	Offset    int32
}

// ListBillsResult is a page of bills with the total match count.
type ListBillsResult struct {
	Bills      []Bill
	TotalCount int64
}
