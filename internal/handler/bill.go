package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/service"
)

// BillHandler serves the supplier bill endpoints.
type BillHandler struct {
	bills  service.BillService
	logger *slog.Logger
}

func NewBillHandler(bills service.BillService, logger *slog.Logger) *BillHandler {
	return &BillHandler{bills: bills, logger: logger}
}

func (h *BillHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/bills", requireUser(http.HandlerFunc(h.HandleCreate)))
	mux.Handle("GET /api/bills", requireUser(http.HandlerFunc(h.HandleList)))
	mux.Handle("GET /api/bills/{id}", requireUser(http.HandlerFunc(h.HandleGet)))
	mux.Handle("POST /api/bills/{id}/mark-paid", requireUser(http.HandlerFunc(h.HandleMarkPaid)))
	mux.Handle("POST /api/bills/{id}/void", requireUser(http.HandlerFunc(h.HandleVoid)))
}

type createBillRequest struct {
	ContactID  string            `json:"contact_id"`
	Reference  string            `json:"reference"`
	IssueDate  string            `json:"issue_date"`
	DueDate    string            `json:"due_date"`
	Items      []lineItemRequest `json:"items"`
	Currency   string            `json:"currency"`
	TaxRateBPS int64             `json:"tax_rate_bps"`
	Notes      string            `json:"notes"`
}

type billResponse struct {
	ID            string            `json:"id"`
	ContactID     string            `json:"contact_id"`
	Reference     string            `json:"reference"`
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

func toBillResponse(b *domain.Bill) billResponse {
	return billResponse{
		ID:            b.ID.String(),
		ContactID:     b.ContactID.String(),
		Reference:     b.Reference,
		Status:        string(b.Status),
		IssueDate:     b.IssueDate.Format("2006-01-02"),
		DueDate:       b.DueDate.Format("2006-01-02"),
		Items:         b.Items,
		Currency:      b.Currency,
		SubtotalCents: b.SubtotalCents,
		TaxRateBPS:    b.TaxRateBPS,
		TaxCents:      b.TaxCents,
		TotalCents:    b.TotalCents,
		Notes:         b.Notes,
		PaidAt:        b.PaidAt,
		CreatedAt:     b.CreatedAt,
	}
}

func (h *BillHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req createBillRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	params, err := h.createParams(user.CompanyID, req)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	bill, err := h.bills.Create(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBillResponse(bill))
}

func (h *BillHandler) createParams(companyID uuid.UUID, req createBillRequest) (domain.CreateBillParams, error) {
	const op = "bill.create"

	contactID, err := uuid.Parse(req.ContactID)
	if err != nil {
		return domain.CreateBillParams{}, domain.Invalid(op, "invalid contact_id")
	}
	issueDate, err := parseDate(req.IssueDate)
	if err != nil {
		return domain.CreateBillParams{}, domain.Invalid(op, "issue_date must be YYYY-MM-DD")
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return domain.CreateBillParams{}, domain.Invalid(op, "due_date must be YYYY-MM-DD")
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
				return domain.CreateBillParams{}, domain.Invalid(op, "invalid product_id in items")
			}
			li.ProductID = pid
		}
		items = append(items, li)
	}

	return domain.CreateBillParams{
		CompanyID:  companyID,
		ContactID:  contactID,
		Reference:  req.Reference,
		IssueDate:  issueDate,
		DueDate:    dueDate,
		Items:      items,
		Currency:   req.Currency,
		TaxRateBPS: req.TaxRateBPS,
		Notes:      req.Notes,
	}, nil
}

type billListResponse struct {
	Bills      []billResponse `json:"bills"`
	TotalCount int64          `json:"total_count"`
}

func (h *BillHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	limit, offset := listParams(r, 20, 100)
	var statuses []domain.BillStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.BillStatus(raw)
		if !status.Valid() {
			ErrorResponse(w, r, h.logger, domain.Invalid("bill.list", "unknown status filter"))
			return
		}
		statuses = append(statuses, status)
	}

	result, err := h.bills.List(r.Context(), domain.ListBillsParams{
		CompanyID: user.CompanyID,
		Statuses:  statuses,
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := billListResponse{
		Bills:      make([]billResponse, 0, len(result.Bills)),
		TotalCount: result.TotalCount,
	}
	for i := range result.Bills {
		out.Bills = append(out.Bills, toBillResponse(&result.Bills[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *BillHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
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

	bill, err := h.bills.Get(r.Context(), id, user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillResponse(bill))
}

func (h *BillHandler) HandleMarkPaid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bills.MarkPaid)
}

func (h *BillHandler) HandleVoid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bills.Void)
}

func (h *BillHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, id, companyID uuid.UUID) (*domain.Bill, error),
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

	bill, err := fn(r.Context(), id, user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillResponse(bill))
}
