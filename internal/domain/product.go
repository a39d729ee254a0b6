// Package domain contains core business types and interfaces.
//
// This file defines the Product domain type for the inventory module, which
// is gated by the inventory feature flag.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product is a sellable item or service with optional stock tracking.
type Product struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	SKU         string // unique per company
	Name        string
	Description string
	UnitCents   int64
	TaxRateBPS  int64
	TrackStock  bool
	Stock       int64 // current on-hand quantity; only meaningful when TrackStock
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateProductParams contains the validated parameters for product creation.
type CreateProductParams struct {
	CompanyID   uuid.UUID
	SKU         string
	Name        string
	Description string
	UnitCents   int64
	TaxRateBPS  int64
	TrackStock  bool
	Stock       int64
}

// UpdateProductParams contains parameters for updating a product.
type UpdateProductParams struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	Name        string
	Description string
	UnitCents   int64
	TaxRateBPS  int64
	TrackStock  bool
}

// AdjustStockParams moves stock up (delivery) or down (sale, shrinkage).
type AdjustStockParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Delta     int64
	Reason    string
}

// ListProductsParams contains filters for listing products.
type ListProductsParams struct {
	CompanyID uuid.UUID
	Search    string // matches SKU or name
	Limit     int32
	Offset    int32
}

// ListProductsResult is a page of products with the total match count.
type ListProductsResult struct {
	Products   []Product
	TotalCount int64
}
