package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/service"
)

// ContactHandler serves the customer and supplier directory endpoints.
type ContactHandler struct {
	contacts service.ContactService
	logger   *slog.Logger
}

func NewContactHandler(contacts service.ContactService, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{contacts: contacts, logger: logger}
}

func (h *ContactHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/contacts", requireUser(http.HandlerFunc(h.HandleCreate)))
	mux.Handle("GET /api/contacts", requireUser(http.HandlerFunc(h.HandleList)))
	mux.Handle("GET /api/contacts/{id}", requireUser(http.HandlerFunc(h.HandleGet)))
	mux.Handle("PUT /api/contacts/{id}", requireUser(http.HandlerFunc(h.HandleUpdate)))
	mux.Handle("DELETE /api/contacts/{id}", requireUser(http.HandlerFunc(h.HandleDelete)))
}

type contactRequest struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
	TaxID   string `json:"tax_id"`
	Notes   string `json:"notes"`
}

type contactResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	City      string    `json:"city,omitempty"`
	Country   string    `json:"country,omitempty"`
	TaxID     string    `json:"tax_id,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toContactResponse(c *domain.Contact) contactResponse {
	return contactResponse{
		ID:        c.ID.String(),
		Kind:      string(c.Kind),
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		City:      c.City,
		Country:   c.Country,
		TaxID:     c.TaxID,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
	}
}

func (h *ContactHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	contact, err := h.contacts.Create(r.Context(), domain.CreateContactParams{
		CompanyID: user.CompanyID,
		Kind:      domain.ContactKind(req.Kind),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		City:      req.City,
		Country:   req.Country,
		TaxID:     req.TaxID,
		Notes:     req.Notes,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toContactResponse(contact))
}

type contactListResponse struct {
	Contacts   []contactResponse `json:"contacts"`
	TotalCount int64             `json:"total_count"`
}

func (h *ContactHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	limit, offset := listParams(r, 20, 100)
	kind := domain.ContactKind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		ErrorResponse(w, r, h.logger, domain.Invalid("contact.list", "unknown kind filter"))
		return
	}

	result, err := h.contacts.List(r.Context(), domain.ListContactsParams{
		CompanyID: user.CompanyID,
		Kind:      kind,
		Search:    r.URL.Query().Get("q"),
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := contactListResponse{
		Contacts:   make([]contactResponse, 0, len(result.Contacts)),
		TotalCount: result.TotalCount,
	}
	for i := range result.Contacts {
		out.Contacts = append(out.Contacts, toContactResponse(&result.Contacts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ContactHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
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

	contact, err := h.contacts.Get(r.Context(), id, user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toContactResponse(contact))
}

func (h *ContactHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
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

	var req contactRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	contact, err := h.contacts.Update(r.Context(), domain.UpdateContactParams{
		ID:        id,
		CompanyID: user.CompanyID,
		Kind:      domain.ContactKind(req.Kind),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		City:      req.City,
		Country:   req.Country,
		TaxID:     req.TaxID,
		Notes:     req.Notes,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toContactResponse(contact))
}

func (h *ContactHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.contacts.Delete(r.Context(), id, user.CompanyID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
