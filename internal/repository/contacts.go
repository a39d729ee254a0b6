package repository

import (
	"context"

	"github.com/facturo/facturo/internal/domain"
	"github.com/google/uuid"
)

const contactColumns = `id, company_id, kind, name, email, phone, address, city, country, tax_id, notes, created_at, updated_at`

const createContact = `
INSERT INTO contacts (company_id, kind, name, email, phone, address, city, country, tax_id, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + contactColumns

func (q *Queries) CreateContact(ctx context.Context, arg domain.CreateContactParams) (domain.Contact, error) {
	row := q.db.QueryRowContext(ctx, createContact,
		arg.CompanyID, arg.Kind, arg.Name, arg.Email, arg.Phone,
		arg.Address, arg.City, arg.Country, arg.TaxID, arg.Notes)
	return scanContact(row)
}

const getContact = `
SELECT ` + contactColumns + ` FROM contacts WHERE id = $1 AND company_id = $2
`

func (q *Queries) GetContact(ctx context.Context, id, companyID uuid.UUID) (domain.Contact, error) {
	return scanContact(q.db.QueryRowContext(ctx, getContact, id, companyID))
}

const updateContact = `
UPDATE contacts
SET kind = $3, name = $4, email = $5, phone = $6, address = $7, city = $8,
    country = $9, tax_id = $10, notes = $11, updated_at = now()
WHERE id = $1 AND company_id = $2
RETURNING ` + contactColumns

func (q *Queries) UpdateContact(ctx context.Context, arg domain.UpdateContactParams) (domain.Contact, error) {
	row := q.db.QueryRowContext(ctx, updateContact,
		arg.ID, arg.CompanyID, arg.Kind, arg.Name, arg.Email, arg.Phone,
		arg.Address, arg.City, arg.Country, arg.TaxID, arg.Notes)
	return scanContact(row)
}

const deleteContact = `DELETE FROM contacts WHERE id = $1 AND company_id = $2`

func (q *Queries) DeleteContact(ctx context.Context, id, companyID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteContact, id, companyID)
	return err
}

// ListContactsParams filters the contact listing. An empty Kind matches all
// kinds; a "customer" or "supplier" kind also matches "both".
type ListContactsParams struct {
	CompanyID uuid.UUID
	Kind      string
	Search    string
	Limit     int32
	Offset    int32
}

const listContacts = `
SELECT ` + contactColumns + `
FROM contacts
WHERE company_id = $1
  AND ($2 = '' OR kind = $2 OR kind = 'both')
  AND ($3 = '' OR name ILIKE '%' || $3 || '%' OR email ILIKE '%' || $3 || '%')
ORDER BY name
LIMIT $4 OFFSET $5
`

func (q *Queries) ListContacts(ctx context.Context, arg ListContactsParams) ([]domain.Contact, error) {
	rows, err := q.db.QueryContext(ctx, listContacts,
		arg.CompanyID, arg.Kind, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

const countContacts = `
SELECT count(*) FROM contacts
WHERE company_id = $1
  AND ($2 = '' OR kind = $2 OR kind = 'both')
  AND ($3 = '' OR name ILIKE '%' || $3 || '%' OR email ILIKE '%' || $3 || '%')
`

func (q *Queries) CountContacts(ctx context.Context, arg ListContactsParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countContacts, arg.CompanyID, arg.Kind, arg.Search).Scan(&count)
	return count, err
}

func scanContact(row rowScanner) (domain.Contact, error) {
	var c domain.Contact
	err := row.Scan(&c.ID, &c.CompanyID, &c.Kind, &c.Name, &c.Email, &c.Phone,
		&c.Address, &c.City, &c.Country, &c.TaxID, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
