// Package domain contains core business types and interfaces.
//
// This file defines the Contact domain type: the customers and suppliers a
// company does business with. Contacts are not plan-gated.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContactKind distinguishes customers from suppliers. A contact can be both.
type ContactKind string

const (
	ContactKindCustomer ContactKind = "customer"
	ContactKindSupplier ContactKind = "supplier"
	ContactKindBoth     ContactKind = "both"
)

// Valid checks if the kind is a known contact kind.
func (k ContactKind) Valid() bool {
	switch k {
	case ContactKindCustomer, ContactKindSupplier, ContactKindBoth:
		return true
	default:
		return false
	}
}

// IsCustomer returns true if the contact can receive invoices.
func (k ContactKind) IsCustomer() bool {
	return k == ContactKindCustomer || k == ContactKindBoth
}

// IsSupplier returns true if the contact can be billed from.
func (k ContactKind) IsSupplier() bool {
	return k == ContactKindSupplier || k == ContactKindBoth
}

// Contact represents a customer or supplier of the company.
type Contact struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Kind      ContactKind
	Name      string
	Email     string
	Phone     string
	Address   string
	City      string
	Country   string
	TaxID     string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateContactParams contains the validated parameters for contact creation.
type CreateContactParams struct {
	CompanyID uuid.UUID
	Kind      ContactKind
	Name      string
	Email     string
	Phone     string
	Address   string
	City      string
	Country   string
	TaxID     string
	Notes     string
}

// UpdateContactParams contains parameters for updating a contact.
type UpdateContactParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Kind      ContactKind
	Name      string
	Email     string
	Phone     string
	Address   string
	City      string
	Country   string
	TaxID     string
	Notes     string
}

// ListContactsParams contains filters for listing contacts.
type ListContactsParams struct {
	CompanyID uuid.UUID
	Kind      ContactKind // empty = all
	Search    string      // matches name or email
	Limit     int32
	Offset    int32
}

// ListContactsResult is a page of contacts with the total match count.
type ListContactsResult struct {
	Contacts   []Contact
	TotalCount int64
}
