package handler

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/report"
	"github.com/facturo/facturo/internal/repository"
	"github.com/facturo/facturo/internal/service"
	"github.com/facturo/facturo/internal/storage"
)

// InvoiceHandler serves the customer invoice endpoints, including PDF
// rendering for download.
type InvoiceHandler struct {
	invoices service.InvoiceService
	gate     service.GateService
	queries  *repository.Queries
	pdf      *report.PDFGenerator
	storage  storage.Storage
	logger   *slog.Logger
}

func NewInvoiceHandler(
	invoices service.InvoiceService,
	gate service.GateService,
	queries *repository.Queries,
	pdf *report.PDFGenerator,
	storage storage.Storage,
	logger *slog.Logger,
) *InvoiceHandler {
	return &InvoiceHandler{
		invoices: invoices,
		gate:     gate,
		queries:  queries,
		pdf:      pdf,
		storage:  storage,
		logger:   logger,
	}
}

func (h *InvoiceHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/invoices", requireUser(http.HandlerFunc(h.HandleCreate)))
	mux.Handle("GET /api/invoices", requireUser(http.HandlerFunc(h.HandleList)))
	mux.Handle("GET /api/invoices/{id}", requireUser(http.HandlerFunc(h.HandleGet)))
	mux.Handle("GET /api/invoices/{id}/pdf", requireUser(http.HandlerFunc(h.HandlePDF)))
	mux.Handle("POST /api/invoices/{id}/send", requireUser(http.HandlerFunc(h.HandleSend)))
	mux.Handle("POST /api/invoices/{id}/mark-sent", requireUser(http.HandlerFunc(h.HandleMarkSent)))
	mux.Handle("POST /api/invoices/{id}/mark-paid", requireUser(http.HandlerFunc(h.HandleMarkPaid)))
	mux.Handle("POST /api/invoices/{id}/void", requireUser(http.HandlerFunc(h.HandleVoid)))
}

type lineItemRequest struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitCents   int64   `json:"unit_cents"`
	ProductID   string  `json:"product_id,omitempty"`
}

type createInvoiceRequest struct {
	ContactID  string            `json:"contact_id"`
	IssueDate  string            `json:"issue_date"`
	DueDate    string            `json:"due_date"`
	Items      []lineItemRequest `json:"items"`
	Currency   string            `json:"currency"`
	TaxRateBPS int64             `json:"tax_rate_bps"`
	Notes      string            `json:"notes"`
}

type invoiceResponse struct {
	ID            string            `json:"id"`
	ContactID     string            `json:"contact_id"`
	Number        string            `json:"number"`
	Status        string            `json:"status"`
	IssueDate     string            `json:"issue_date"`
	DueDate       string            `json:"due_date"`
	Items         []domain.LineItem `json:"items"`
	Currency      string            `json:"currency"`
	SubtotalCents int64             `json:"subtotal_cents"`
	TaxRateBPS    int64             `json:"tax_rate_bps"`
	TaxCents      int64             `json:"tax_cents"`
	TotalCents    int64             `json:"total_cents"`
	Notes         string            `json:"notes,omitempty"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toInvoiceResponse(inv *domain.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:            inv.ID.String(),
		ContactID:     inv.ContactID.String(),
		Number:        inv.Number,
		Status:        string(inv.Status),
		IssueDate:     inv.IssueDate.Format("2006-01-02"),
		DueDate:       inv.DueDate.Format("2006-01-02"),
		Items:         inv.Items,
		Currency:      inv.Currency,
		SubtotalCents: inv.SubtotalCents,
		TaxRateBPS:    inv.TaxRateBPS,
		TaxCents:      inv.TaxCents,
		TotalCents:    inv.TotalCents,
		Notes:         inv.Notes,
		PaidAt:        inv.PaidAt,
		CreatedAt:     inv.CreatedAt,
	}
}

func (h *InvoiceHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req createInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	params, err := h.createParams(user.CompanyID, req)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	inv, err := h.invoices.Create(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (h *InvoiceHandler) createParams(companyID uuid.UUID, req createInvoiceRequest) (domain.CreateInvoiceParams, error) {
	const op = "invoice.create"

	contactID, err := uuid.Parse(req.ContactID)
	if err != nil {
		return domain.CreateInvoiceParams{}, domain.Invalid(op, "invalid contact_id")
	}
	issueDate, err := parseDate(req.IssueDate)
	if err != nil {
		return domain.CreateInvoiceParams{}, domain.Invalid(op, "issue_date must be YYYY-MM-DD")
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return domain.CreateInvoiceParams{}, domain.Invalid(op, "due_date must be YYYY-MM-DD")
	}

	items := make([]domain.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		li := domain.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitCents:   it.UnitCents,
		}
		if it.ProductID != "" {
			pid, err := uuid.Parse(it.ProductID)
			if err != nil {
				return domain.CreateInvoiceParams{}, domain.Invalid(op, "invalid product_id in items")
			}
			li.ProductID = pid
		}
		items = append(items, li)
	}

	return domain.CreateInvoiceParams{
		CompanyID:  companyID,
		ContactID:  contactID,
		IssueDate:  issueDate,
		DueDate:    dueDate,
		Items:      items,
		Currency:   req.Currency,
		TaxRateBPS: req.TaxRateBPS,
		Notes:      req.Notes,
	}, nil
}

type invoiceListResponse struct {
	Invoices   []invoiceResponse `json:"invoices"`
	TotalCount int64             `json:"total_count"`
}

func (h *InvoiceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	limit, offset := listParams(r, 20, 100)
	var statuses []domain.InvoiceStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.InvoiceStatus(raw)
		if !status.Valid() {
			ErrorResponse(w, r, h.logger, domain.Invalid("invoice.list", "unknown status filter"))
			return
		}
		statuses = append(statuses, status)
	}

	result, err := h.invoices.List(r.Context(), domain.ListInvoicesParams{
		CompanyID: user.CompanyID,
		Statuses:  statuses,
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := invoiceListResponse{
		Invoices:   make([]invoiceResponse, 0, len(result.Invoices)),
		TotalCount: result.TotalCount,
	}
	for i := range result.Invoices {
		out.Invoices = append(out.Invoices, toInvoiceResponse(&result.Invoices[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *InvoiceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

type sendInvoiceRequest struct {
	Recipient string `json:"recipient,omitempty"`
}

// HandleSend transitions the invoice to sent and queues email delivery.
func (h *InvoiceHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
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

	var req sendInvoiceRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
	}

	inv, err := h.invoices.Send(r.Context(), id, user.CompanyID, req.Recipient)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *InvoiceHandler) HandleMarkSent(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.invoices.MarkSent)
}

func (h *InvoiceHandler) HandleMarkPaid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.invoices.MarkPaid)
}

func (h *InvoiceHandler) HandleVoid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.invoices.Void)
}

func (h *InvoiceHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, id, companyID uuid.UUID) (*domain.Invoice, error),
) {
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

	inv, err := fn(r.Context(), id, user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

// HandlePDF streams the invoice PDF. A stored render is served as-is;
// otherwise the document is rendered on the fly without persisting it.
func (h *InvoiceHandler) HandlePDF(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.loadInvoice(w, r)
	if !ok {
		return
	}

	filename := fmt.Sprintf("%s.pdf", inv.Number)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if inv.PDFKey != "" {
		reader, _, err := h.storage.Get(r.Context(), inv.PDFKey)
		if err == nil {
			defer reader.Close()
			if _, err := io.Copy(w, reader); err != nil {
				h.logger.Error("failed to stream invoice pdf", "invoice_id", inv.ID, "error", err)
			}
			return
		}
		h.logger.Warn("stored invoice pdf missing, rendering fresh",
			"invoice_id", inv.ID, "key", inv.PDFKey, "error", err)
	}

	doc, err := h.buildDocument(r, inv)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var buf bytes.Buffer
	if _, err := h.pdf.Generate(r.Context(), doc, &buf); err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "invoice.pdf", "failed to render invoice"))
		return
	}
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Error("failed to write invoice pdf", "invoice_id", inv.ID, "error", err)
	}
}

func (h *InvoiceHandler) buildDocument(r *http.Request, inv *domain.Invoice) (*report.InvoiceDocument, error) {
	const op = "invoice.pdf"
	ctx := r.Context()

	company, err := h.queries.GetCompanyByID(ctx, inv.CompanyID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load company")
	}
	contact, err := h.queries.GetContact(ctx, inv.ContactID, inv.CompanyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "contact", inv.ContactID.String())
		}
		return nil, domain.Internal(err, op, "failed to load contact")
	}

	branded := false
	if decision, err := h.gate.CheckFeature(ctx, inv.CompanyID, domain.FeatureBranding); err == nil {
		branded = decision.Permitted
	}

	return &report.InvoiceDocument{
		Company:  &company,
		Customer: &contact,
		Invoice:  inv,
		Branded:  branded,
	}, nil
}

func (h *InvoiceHandler) loadInvoice(w http.ResponseWriter, r *http.Request) (*domain.Invoice, bool) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return nil, false
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return nil, false
	}
	inv, err := h.invoices.Get(r.Context(), id, user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return nil, false
	}
	return inv, true
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
