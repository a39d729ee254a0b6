// Package domain contains core business types and interfaces.
//
// This file defines the Invoice domain type: customer-facing documents with
// line items, tax, and a draft -> sent -> paid lifecycle. Invoice creation is
// a metered action gated by the subscription plan.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus represents the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusSent  InvoiceStatus = "sent"
	InvoiceStatusPaid  InvoiceStatus = "paid"
	InvoiceStatusVoid  InvoiceStatus = "void"
)

// Valid checks if the status is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusVoid:
		return true
	default:
		return false
	}
}

// LineItem is one line of an invoice or bill. Amounts are in cents.
type LineItem struct {
	Description string    `json:"description"`
	Quantity    float64   `json:"quantity"`
	UnitCents   int64     `json:"unit_cents"`
	ProductID   uuid.UUID `json:"product_id,omitempty"`
}

// TotalCents returns the line total, rounded to the nearest cent.
func (li LineItem) TotalCents() int64 {
	return int64(li.Quantity*float64(li.UnitCents) + 0.5)
}

// Invoice is a customer-facing invoice document.
type Invoice struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	ContactID     uuid.UUID
	Number        string // e.g., "INV-2026-0042", unique per company
	Status        InvoiceStatus
	IssueDate     time.Time
	DueDate       time.Time
	Items         []LineItem
	Currency      string // ISO 4217 code, informational only
	SubtotalCents int64
	TaxRateBPS    int64 // tax rate in basis points (e.g., 2100 = 21%)
	TaxCents      int64
	TotalCents    int64
	Notes         string
	PDFKey        string // object storage key of the rendered PDF, if any
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ComputeTotals recalculates subtotal, tax, and total from the line items.
// Tax is applied to the subtotal and rounded half-up per document, matching
// how the generated PDF presents it.
func (inv *Invoice) ComputeTotals() {
	var subtotal int64
	for _, li := range inv.Items {
		subtotal += li.TotalCents()
	}
	inv.SubtotalCents = subtotal
	inv.TaxCents = (subtotal*inv.TaxRateBPS + 5000) / 10000
	inv.TotalCents = subtotal + inv.TaxCents
}

// IsOverdue returns true for unpaid invoices past their due date.
func (inv *Invoice) IsOverdue(now time.Time) bool {
	return inv.Status == InvoiceStatusSent && now.After(inv.DueDate)
}

// CanTransitionTo reports whether the status change is a legal lifecycle move.
// Draft invoices may be sent or voided; sent invoices may be paid or voided;
// paid and void are terminal.
func (inv *Invoice) CanTransitionTo(next InvoiceStatus) bool {
	switch inv.Status {
	case InvoiceStatusDraft:
		return next == InvoiceStatusSent || next == InvoiceStatusVoid
	case InvoiceStatusSent:
		return next == InvoiceStatusPaid || next == InvoiceStatusVoid
	default:
		return false
	}
}

// CreateInvoiceParams contains the validated parameters for invoice creation.
type CreateInvoiceParams struct {
	CompanyID  uuid.UUID
	ContactID  uuid.UUID
	IssueDate  time.Time
	DueDate    time.Time
	Items      []LineItem
	Currency   string
	TaxRateBPS int64
	Notes      string
}

// ListInvoicesParams contains filters for listing invoices.
type ListInvoicesParams struct {
	CompanyID uuid.UUID
	Statuses  []InvoiceStatus // empty = all
	Limit     int32
	Offset    int32
}

// ListInvoicesResult is a page of invoices with the total match count.
type ListInvoicesResult struct {
	Invoices   []Invoice
	TotalCount int64
}
