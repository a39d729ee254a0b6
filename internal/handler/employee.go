package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/service"
)

// EmployeeHandler serves the payroll employee endpoints. Every route is
// gated on the payroll feature inside the service layer.
type EmployeeHandler struct {
	employees service.EmployeeService
	logger    *slog.Logger
}

func NewEmployeeHandler(employees service.EmployeeService, logger *slog.Logger) *EmployeeHandler {
	return &EmployeeHandler{employees: employees, logger: logger}
}

func (h *EmployeeHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/employees", requireUser(http.HandlerFunc(h.HandleCreate)))
	mux.Handle("GET /api/employees", requireUser(http.HandlerFunc(h.HandleList)))
	mux.Handle("GET /api/employees/{id}", requireUser(http.HandlerFunc(h.HandleGet)))
	mux.Handle("PUT /api/employees/{id}", requireUser(http.HandlerFunc(h.HandleUpdate)))
	mux.Handle("POST /api/employees/{id}/terminate", requireUser(http.HandlerFunc(h.HandleTerminate)))
}

type createEmployeeRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Position          string `json:"position"`
	GrossMonthlyCents int64  `json:"gross_monthly_cents"`
	NetMonthlyCents   int64  `json:"net_monthly_cents"`
	HiredAt           string `json:"hired_at"`
}

type updateEmployeeRequest struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Position          string `json:"position"`
	GrossMonthlyCents int64  `json:"gross_monthly_cents"`
	NetMonthlyCents   int64  `json:"net_monthly_cents"`
}

type employeeResponse struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email,omitempty"`
	Position          string     `json:"position,omitempty"`
	GrossMonthlyCents int64      `json:"gross_monthly_cents"`
	NetMonthlyCents   int64      `json:"net_monthly_cents"`
	HiredAt           string     `json:"hired_at"`
	TerminatedAt      *time.Time `json:"terminated_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func toEmployeeResponse(e *domain.Employee) employeeResponse {
	return employeeResponse{
		ID:                e.ID.String(),
		Name:              e.Name,
		Email:             e.Email,
		Position:          e.Position,
		GrossMonthlyCents: e.GrossMonthlyCents,
		NetMonthlyCents:   e.NetMonthlyCents,
		HiredAt:           e.HiredAt.Format("2006-01-02"),
		TerminatedAt:      e.TerminatedAt,
		CreatedAt:         e.CreatedAt,
	}
}

func (h *EmployeeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req createEmployeeRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	hiredAt, err := parseDate(req.HiredAt)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("employee.create", "hired_at must be YYYY-MM-DD"))
		return
	}

	employee, err := h.employees.Create(r.Context(), domain.CreateEmployeeParams{
		CompanyID:         user.CompanyID,
		Name:              req.Name,
		Email:             req.Email,
		Position:          req.Position,
		GrossMonthlyCents: req.GrossMonthlyCents,
		NetMonthlyCents:   req.NetMonthlyCents,
		HiredAt:           hiredAt,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEmployeeResponse(employee))
}

func (h *EmployeeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	includeTerminated := r.URL.Query().Get("include_terminated") == "true"
	employees, err := h.employees.List(r.Context(), user.CompanyID, includeTerminated)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]employeeResponse, 0, len(employees))
	for i := range employees {
		out = append(out, toEmployeeResponse(&employees[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *EmployeeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
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

	employee, err := h.employees.Get(r.Context(), id, user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeResponse(employee))
}

func (h *EmployeeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
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

	var req updateEmployeeRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	employee, err := h.employees.Update(r.Context(), domain.UpdateEmployeeParams{
		ID:                id,
		CompanyID:         user.CompanyID,
		Name:              req.Name,
		Email:             req.Email,
		Position:          req.Position,
		GrossMonthlyCents: req.GrossMonthlyCents,
		NetMonthlyCents:   req.NetMonthlyCents,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeResponse(employee))
}

func (h *EmployeeHandler) HandleTerminate(w http.ResponseWriter, r *http.Request) {
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

	employee, err := h.employees.Terminate(r.Context(), id, user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeResponse(employee))
}
