package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/facturo/facturo/internal/domain"
	"github.com/google/uuid"
)

// ErrInsufficientStock is returned when a stock adjustment would take the
// on-hand quantity below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

const productColumns = `id, company_id, sku, name, description, unit_cents, tax_rate_bps, track_stock, stock, created_at, updated_at`

const createProduct = `
INSERT INTO products (company_id, sku, name, description, unit_cents, tax_rate_bps, track_stock)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + productColumns

func (q *Queries) CreateProduct(ctx context.Context, arg domain.CreateProductParams) (domain.Product, error) {
	row := q.db.QueryRowContext(ctx, createProduct,
		arg.CompanyID, arg.SKU, arg.Name, arg.Description,
		arg.UnitCents, arg.TaxRateBPS, arg.TrackStock)
	return scanProduct(row)
}

const getProduct = `
SELECT ` + productColumns + ` FROM products WHERE id = $1 AND company_id = $2
`

func (q *Queries) GetProduct(ctx context.Context, id, companyID uuid.UUID) (domain.Product, error) {
	return scanProduct(q.db.QueryRowContext(ctx, getProduct, id, companyID))
}

const updateProduct = `
UPDATE products
SET name = $3, description = $4, unit_cents = $5, tax_rate_bps = $6, track_stock = $7, updated_at = now()
WHERE id = $1 AND company_id = $2
RETURNING ` + productColumns

func (q *Queries) UpdateProduct(ctx context.Context, arg domain.UpdateProductParams) (domain.Product, error) {
	row := q.db.QueryRowContext(ctx, updateProduct,
		arg.ID, arg.CompanyID, arg.Name, arg.Description,
		arg.UnitCents, arg.TaxRateBPS, arg.TrackStock)
	return scanProduct(row)
}

const deleteProduct = `DELETE FROM products WHERE id = $1 AND company_id = $2`

func (q *Queries) DeleteProduct(ctx context.Context, id, companyID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteProduct, id, companyID)
	return err
}

// Stock adjustments are conditional so concurrent sales cannot drive the
// on-hand quantity negative.
const adjustProductStock = `
UPDATE products SET stock = stock + $3, updated_at = now()
WHERE id = $1 AND company_id = $2 AND stock + $3 >= 0
RETURNING ` + productColumns

func (q *Queries) AdjustProductStock(ctx context.Context, id, companyID uuid.UUID, delta int64) (domain.Product, error) {
	p, err := scanProduct(q.db.QueryRowContext(ctx, adjustProductStock, id, companyID, delta))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the product is missing or the delta would go negative.
			if _, getErr := q.GetProduct(ctx, id, companyID); getErr == nil {
				return domain.Product{}, ErrInsufficientStock
			}
		}
		return domain.Product{}, err
	}
	return p, nil
}

const listProducts = `
SELECT ` + productColumns + `
FROM products
WHERE company_id = $1
  AND ($2 = '' OR sku ILIKE '%' || $2 || '%' OR name ILIKE '%' || $2 || '%')
ORDER BY sku
LIMIT $3 OFFSET $4
`

func (q *Queries) ListProducts(ctx context.Context, arg domain.ListProductsParams) ([]domain.Product, error) {
	rows, err := q.db.QueryContext(ctx, listProducts, arg.CompanyID, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const countProducts = `
SELECT count(*) FROM products
WHERE company_id = $1
  AND ($2 = '' OR sku ILIKE '%' || $2 || '%' OR name ILIKE '%' || $2 || '%')
`

func (q *Queries) CountProducts(ctx context.Context, arg domain.ListProductsParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countProducts, arg.CompanyID, arg.Search).Scan(&count)
	return count, err
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.CompanyID, &p.SKU, &p.Name, &p.Description,
		&p.UnitCents, &p.TaxRateBPS, &p.TrackStock, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
