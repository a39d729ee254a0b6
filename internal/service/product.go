// Package service contains the business logic layer.
//
// This file implements the product catalog. Basic catalog management is
// open to every tier; stock tracking is gated behind the inventory feature.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/repository"
	"github.com/google/uuid"
)

// ProductService defines product catalog operations.
type ProductService interface {
	Create(ctx context.Context, params domain.CreateProductParams) (*domain.Product, error)
	Get(ctx context.Context, id, companyID uuid.UUID) (*domain.Product, error)
	Update(ctx context.Context, params domain.UpdateProductParams) (*domain.Product, error)
	Delete(ctx context.Context, id, companyID uuid.UUID) error
	List(ctx context.Context, params domain.ListProductsParams) (*domain.ListProductsResult, error)

	// AdjustStock moves on-hand stock up or down. Requires the inventory
	// feature; returns domain.EPAYMENT when the plan lacks it.
	AdjustStock(ctx context.Context, params domain.AdjustStockParams) (*domain.Product, error)
}

type productService struct {
	queries *repository.Queries
	gate    GateService
	logger  *slog.Logger
}

// NewProductService creates a new ProductService.
func NewProductService(queries *repository.Queries, gate GateService, logger *slog.Logger) ProductService {
	return &productService{queries: queries, gate: gate, logger: logger}
}

func (s *productService) Create(ctx context.Context, params domain.CreateProductParams) (*domain.Product, error) {
	const op = "product.create"

	if strings.TrimSpace(params.SKU) == "" {
		return nil, domain.Invalid(op, "SKU is required")
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, domain.Invalid(op, "Product name is required")
	}
	if params.UnitCents < 0 {
		return nil, domain.Invalid(op, "Price cannot be negative")
	}

	if params.TrackStock {
		if err := s.requireInventory(ctx, op, params.CompanyID); err != nil {
			return nil, err
		}
	}

	product, err := s.queries.CreateProduct(ctx, params)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflict(op, "A product with this SKU already exists")
		}
		return nil, domain.Internal(err, op, "failed to create product")
	}

	s.logger.Info("Product created", "product_id", product.ID, "sku", product.SKU)
	return &product, nil
}

func (s *productService) Get(ctx context.Context, id, companyID uuid.UUID) (*domain.Product, error) {
	const op = "product.get"

	product, err := s.queries.GetProduct(ctx, id, companyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "product", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load product")
	}
	return &product, nil
}

func (s *productService) Update(ctx context.Context, params domain.UpdateProductParams) (*domain.Product, error) {
	const op = "product.update"

	if strings.TrimSpace(params.Name) == "" {
		return nil, domain.Invalid(op, "Product name is required")
	}
	if params.UnitCents < 0 {
		return nil, domain.Invalid(op, "Price cannot be negative")
	}

	if params.TrackStock {
		if err := s.requireInventory(ctx, op, params.CompanyID); err != nil {
			return nil, err
		}
	}

	product, err := s.queries.UpdateProduct(ctx, params)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "product", params.ID.String())
		}
		return nil, domain.Internal(err, op, "failed to update product")
	}
	return &product, nil
}

func (s *productService) Delete(ctx context.Context, id, companyID uuid.UUID) error {
	const op = "product.delete"

	if err := s.queries.DeleteProduct(ctx, id, companyID); err != nil {
		return domain.Internal(err, op, "failed to delete product")
	}
	return nil
}

func (s *productService) List(ctx context.Context, params domain.ListProductsParams) (*domain.ListProductsResult, error) {
	const op = "product.list"

	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 50
	}

	products, err := s.queries.ListProducts(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list products")
	}

	total, err := s.queries.CountProducts(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count products")
	}

	return &domain.ListProductsResult{Products: products, TotalCount: total}, nil
}

func (s *productService) AdjustStock(ctx context.Context, params domain.AdjustStockParams) (*domain.Product, error) {
	const op = "product.adjust_stock"

	if params.Delta == 0 {
		return nil, domain.Invalid(op, "Stock adjustment cannot be zero")
	}

	if err := s.requireInventory(ctx, op, params.CompanyID); err != nil {
		return nil, err
	}

	product, err := s.queries.AdjustProductStock(ctx, params.ID, params.CompanyID, params.Delta)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientStock):
			return nil, domain.Invalid(op, "Not enough stock on hand")
		case errors.Is(err, sql.ErrNoRows):
			return nil, domain.NotFound(op, "product", params.ID.String())
		default:
			return nil, domain.Internal(err, op, "failed to adjust stock")
		}
	}

	s.logger.Info("Stock adjusted",
		"product_id", product.ID,
		"delta", params.Delta,
		"stock", product.Stock,
		"reason", params.Reason)
	return &product, nil
}

func (s *productService) requireInventory(ctx context.Context, op string, companyID uuid.UUID) error {
	decision, err := s.gate.CheckFeature(ctx, companyID, domain.FeatureInventory)
	if err != nil {
		return err
	}
	if !decision.Permitted {
		return domain.PlanRequired(op, domain.FeatureInventory, decision.MinimumTier)
	}
	return nil
}
