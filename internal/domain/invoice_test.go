package domain

import (
	"testing"
	"time"
)

func TestLineItemTotalCents(t *testing.T) {
	tests := []struct {
		name string
		item LineItem
		want int64
	}{
		{"whole quantity", LineItem{Quantity: 3, UnitCents: 1500}, 4500},
		{"fractional quantity rounds up", LineItem{Quantity: 2.5, UnitCents: 333}, 833},
		{"fractional quantity rounds down", LineItem{Quantity: 1.5, UnitCents: 333}, 500},
		{"zero quantity", LineItem{Quantity: 0, UnitCents: 9900}, 0},
		{"hours times rate", LineItem{Quantity: 7.25, UnitCents: 8000}, 58000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.TotalCents(); got != tt.want {
				t.Errorf("TotalCents() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInvoiceComputeTotals(t *testing.T) {
	tests := []struct {
		name         string
		items        []LineItem
		taxRateBPS   int64
		wantSubtotal int64
		wantTax      int64
		wantTotal    int64
	}{
		{
			name:         "no tax",
			items:        []LineItem{{Quantity: 2, UnitCents: 5000}},
			taxRateBPS:   0,
			wantSubtotal: 10000,
			wantTax:      0,
			wantTotal:    10000,
		},
		{
			name:         "21 percent vat",
			items:        []LineItem{{Quantity: 1, UnitCents: 10000}},
			taxRateBPS:   2100,
			wantSubtotal: 10000,
			wantTax:      2100,
			wantTotal:    12100,
		},
		{
			name:         "tax rounds half up",
			items:        []LineItem{{Quantity: 1, UnitCents: 50}},
			taxRateBPS:   2100, // 50 * 0.21 = 10.5 cents
			wantSubtotal: 50,
			wantTax:      11,
			wantTotal:    61,
		},
		{
			name:         "tax below half rounds down",
			items:        []LineItem{{Quantity: 1, UnitCents: 49}},
			taxRateBPS:   2100, // 49 * 0.21 = 10.29 cents
			wantSubtotal: 49,
			wantTax:      10,
			wantTotal:    59,
		},
		{
			name: "multiple lines summed before tax",
			items: []LineItem{
				{Quantity: 2, UnitCents: 1250},
				{Quantity: 0.5, UnitCents: 9900},
			},
			taxRateBPS:   1000,
			wantSubtotal: 7450,
			wantTax:      745,
			wantTotal:    8195,
		},
		{
			name:         "no items",
			items:        nil,
			taxRateBPS:   2100,
			wantSubtotal: 0,
			wantTax:      0,
			wantTotal:    0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &Invoice{Items: tt.items, TaxRateBPS: tt.taxRateBPS}
			inv.ComputeTotals()
			if inv.SubtotalCents != tt.wantSubtotal {
				t.Errorf("subtotal = %d, want %d", inv.SubtotalCents, tt.wantSubtotal)
			}
			if inv.TaxCents != tt.wantTax {
				t.Errorf("tax = %d, want %d", inv.TaxCents, tt.wantTax)
			}
			if inv.TotalCents != tt.wantTotal {
				t.Errorf("total = %d, want %d", inv.TotalCents, tt.wantTotal)
			}
		})
	}
}

func TestInvoiceCanTransitionTo(t *testing.T) {
	tests := []struct {
		from InvoiceStatus
		to   InvoiceStatus
		want bool
	}{
		{InvoiceStatusDraft, InvoiceStatusSent, true},
		{InvoiceStatusDraft, InvoiceStatusVoid, true},
		{InvoiceStatusDraft, InvoiceStatusPaid, false},
		{InvoiceStatusSent, InvoiceStatusPaid, true},
		{InvoiceStatusSent, InvoiceStatusVoid, true},
		{InvoiceStatusSent, InvoiceStatusDraft, false},
		{InvoiceStatusPaid, InvoiceStatusVoid, false},
		{InvoiceStatusPaid, InvoiceStatusSent, false},
		{InvoiceStatusVoid, InvoiceStatusDraft, false},
		{InvoiceStatusVoid, InvoiceStatusSent, false},
	}
	for _, tt := range tests {
		inv := &Invoice{Status: tt.from}
		if got := inv.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("CanTransitionTo(%q -> %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestInvoiceIsOverdue(t *testing.T) {
	now := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, -1)

	inv := &Invoice{Status: InvoiceStatusSent, DueDate: due}
	if !inv.IsOverdue(now) {
		t.Error("sent invoice past due date should be overdue")
	}

	inv.DueDate = now.AddDate(0, 0, 14)
	if inv.IsOverdue(now) {
		t.Error("sent invoice before due date should not be overdue")
	}

	for _, status := range []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusPaid, InvoiceStatusVoid} {
		inv := &Invoice{Status: status, DueDate: due}
		if inv.IsOverdue(now) {
			t.Errorf("%q invoice should never be overdue", status)
		}
	}
}

func TestInvoiceStatusValid(t *testing.T) {
	for _, s := range []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusVoid} {
		if !s.Valid() {
			t.Errorf("status %q should be valid", s)
		}
	}
	if InvoiceStatus("overdue").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestBillCanTransitionTo(t *testing.T) {
	tests := []struct {
		from BillStatus
		to   BillStatus
		want bool
	}{
		{BillStatusOpen, BillStatusPaid, true},
		{BillStatusOpen, BillStatusVoid, true},
		{BillStatusPaid, BillStatusOpen, false},
		{BillStatusPaid, BillStatusVoid, false},
		{BillStatusVoid, BillStatusOpen, false},
	}
	for _, tt := range tests {
		b := &Bill{Status: tt.from}
		if got := b.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("CanTransitionTo(%q -> %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
