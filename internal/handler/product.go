package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/service"
)

// ProductHandler serves the product catalog and stock endpoints.
type ProductHandler struct {
	products service.ProductService
	logger   *slog.Logger
}

func NewProductHandler(products service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{products: products, logger: logger}
}

func (h *ProductHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/products", requireUser(http.HandlerFunc(h.HandleCreate)))
	mux.Handle("GET /api/products", requireUser(http.HandlerFunc(h.HandleList)))
	mux.Handle("GET /api/products/{id}", requireUser(http.HandlerFunc(h.HandleGet)))
	mux.Handle("PUT /api/products/{id}", requireUser(http.HandlerFunc(h.HandleUpdate)))
	mux.Handle("DELETE /api/products/{id}", requireUser(http.HandlerFunc(h.HandleDelete)))
	mux.Handle("POST /api/products/{id}/adjust-stock", requireUser(http.HandlerFunc(h.HandleAdjustStock)))
}

type createProductRequest struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitCents   int64  `json:"unit_cents"`
	TaxRateBPS  int64  `json:"tax_rate_bps"`
	TrackStock  bool   `json:"track_stock"`
	Stock       int64  `json:"stock"`
}

type updateProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	UnitCents   int64  `json:"unit_cents"`
	TaxRateBPS  int64  `json:"tax_rate_bps"`
	TrackStock  bool   `json:"track_stock"`
}

type productResponse struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	UnitCents   int64     `json:"unit_cents"`
	TaxRateBPS  int64     `json:"tax_rate_bps"`
	TrackStock  bool      `json:"track_stock"`
	Stock       int64     `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
}

func toProductResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:          p.ID.String(),
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		UnitCents:   p.UnitCents,
		TaxRateBPS:  p.TaxRateBPS,
		TrackStock:  p.TrackStock,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
	}
}

func (h *ProductHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	product, err := h.products.Create(r.Context(), domain.CreateProductParams{
		CompanyID:   user.CompanyID,
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		UnitCents:   req.UnitCents,
		TaxRateBPS:  req.TaxRateBPS,
		TrackStock:  req.TrackStock,
		Stock:       req.Stock,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

type productListResponse struct {
	Products   []productResponse `json:"products"`
	TotalCount int64             `json:"total_count"`
}

func (h *ProductHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	limit, offset := listParams(r, 20, 100)
	result, err := h.products.List(r.Context(), domain.ListProductsParams{
		CompanyID: user.CompanyID,
		Search:    r.URL.Query().Get("q"),
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := productListResponse{
		Products:   make([]productResponse, 0, len(result.Products)),
		TotalCount: result.TotalCount,
	}
	for i := range result.Products {
		out.Products = append(out.Products, toProductResponse(&result.Products[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProductHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	product, err := h.products.Get(r.Context(), id, user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *ProductHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req updateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	product, err := h.products.Update(r.Context(), domain.UpdateProductParams{
		ID:          id,
		CompanyID:   user.CompanyID,
		Name:        req.Name,
		Description: req.Description,
		UnitCents:   req.UnitCents,
		TaxRateBPS:  req.TaxRateBPS,
		TrackStock:  req.TrackStock,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *ProductHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.products.Delete(r.Context(), id, user.CompanyID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustStockRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

// HandleAdjustStock moves on-hand stock. Gated on the inventory feature.
func (h *ProductHandler) HandleAdjustStock(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req adjustStockRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	product, err := h.products.AdjustStock(r.Context(), domain.AdjustStockParams{
		ID:        id,
		CompanyID: user.CompanyID,
		Delta:     req.Delta,
		Reason:    req.Reason,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}
