package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/service"
)

// LedgerHandler serves the accounting ledger endpoints. Access is gated on
// the accounting feature inside the service layer.
type LedgerHandler struct {
	ledger service.LedgerService
	logger *slog.Logger
}

func NewLedgerHandler(ledger service.LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, logger: logger}
}

func (h *LedgerHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/ledger/entries", requireUser(http.HandlerFunc(h.HandleCreateEntry)))
	mux.Handle("GET /api/ledger/entries", requireUser(http.HandlerFunc(h.HandleList)))
	mux.Handle("GET /api/ledger/summary", requireUser(http.HandlerFunc(h.HandleSummary)))
	mux.Handle("GET /api/ledger/export", requireUser(http.HandlerFunc(h.HandleExport)))
}

type createEntryRequest struct {
	Kind        string `json:"kind"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
}

type transactionResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Source      string    `json:"source"`
	SourceID    string    `json:"source_id,omitempty"`
	Date        string    `json:"date"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTransactionResponse(t *domain.Transaction) transactionResponse {
	out := transactionResponse{
		ID:          t.ID.String(),
		Kind:        string(t.Kind),
		Source:      string(t.Source),
		Date:        t.Date.Format("2006-01-02"),
		Category:    t.Category,
		Description: t.Description,
		AmountCents: t.AmountCents,
		CreatedAt:   t.CreatedAt,
	}
	if t.SourceID != nil {
		out.SourceID = t.SourceID.String()
	}
	return out
}

func (h *LedgerHandler) HandleCreateEntry(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req createEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("ledger.create_entry", "date must be YYYY-MM-DD"))
		return
	}

	entry, err := h.ledger.CreateEntry(r.Context(), domain.CreateTransactionParams{
		CompanyID:   user.CompanyID,
		Kind:        domain.TransactionKind(req.Kind),
		Date:        date,
		Category:    req.Category,
		Description: req.Description,
		AmountCents: req.AmountCents,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTransactionResponse(entry))
}

type ledgerListResponse struct {
	Entries    []transactionResponse `json:"entries"`
	TotalCount int64                 `json:"total_count"`
}

func (h *LedgerHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	from, to, err := dateRange(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	limit, offset := listParams(r, 50, 200)
	kind := domain.TransactionKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		ErrorResponse(w, r, h.logger, domain.Invalid("ledger.list", "unknown kind filter"))
		return
	}

	result, err := h.ledger.List(r.Context(), domain.ListTransactionsParams{
		CompanyID: user.CompanyID,
		Kind:      kind,
		From:      from,
		To:        to,
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := ledgerListResponse{
		Entries:    make([]transactionResponse, 0, len(result.Transactions)),
		TotalCount: result.TotalCount,
	}
	for i := range result.Transactions {
		out.Entries = append(out.Entries, toTransactionResponse(&result.Transactions[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type summaryResponse struct {
	From         string `json:"from"`
	To           string `json:"to"`
	IncomeCents  int64  `json:"income_cents"`
	ExpenseCents int64  `json:"expense_cents"`
	NetCents     int64  `json:"net_cents"`
	EntryCount   int64  `json:"entry_count"`
}

func (h *LedgerHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	from, to, err := dateRange(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	summary, err := h.ledger.Summary(r.Context(), user.CompanyID, from, to)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		From:         summary.From.Format("2006-01-02"),
		To:           summary.To.Format("2006-01-02"),
		IncomeCents:  summary.IncomeCents,
		ExpenseCents: summary.ExpenseCents,
		NetCents:     summary.NetCents,
		EntryCount:   summary.EntryCount,
	})
}

// HandleExport streams the ledger for a date range as an XLSX download.
func (h *LedgerHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	from, to, err := dateRange(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	data, err := h.ledger.Export(r.Context(), user.CompanyID, from, to)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	filename := fmt.Sprintf("ledger-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write ledger export", "company_id", user.CompanyID, "error", err)
	}
}

// dateRange reads optional from/to query parameters. Zero times mean
// unbounded.
func dateRange(r *http.Request) (from, to time.Time, err error) {
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = parseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, domain.Invalid("ledger.range", "from must be YYYY-MM-DD")
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err = parseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, domain.Invalid("ledger.range", "to must be YYYY-MM-DD")
		}
	}
	return from, to, nil
}
