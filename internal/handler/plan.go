package handler

import (
	"log/slog"
	"net/http"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/service"
)

// PlanHandler serves the plan catalog and the company's entitlement state.
type PlanHandler struct {
	gate   service.GateService
	logger *slog.Logger
}

func NewPlanHandler(gate service.GateService, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{gate: gate, logger: logger}
}

func (h *PlanHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/plans", h.HandleListPlans)
	mux.Handle("GET /api/entitlements", requireUser(http.HandlerFunc(h.HandleEntitlements)))
}

type planResponse struct {
	Tier              string            `json:"tier"`
	MonthlyPriceCents int64             `json:"monthly_price_cents"`
	Limits            map[string]*int64 `json:"limits"`
	Features          []string          `json:"features"`
}

// HandleListPlans returns the full plan catalog. Public: pricing pages use
// it unauthenticated.
func (h *PlanHandler) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	plans := make([]planResponse, 0, len(domain.TierOrder))
	for _, tier := range domain.TierOrder {
		plan := domain.GetPlan(tier)
		features := make([]string, 0, len(plan.Features))
		for _, f := range domain.Features {
			if plan.Features[f] {
				features = append(features, string(f))
			}
		}
		plans = append(plans, planResponse{
			Tier:              string(plan.Tier),
			MonthlyPriceCents: plan.MonthlyPriceCents,
			Limits: map[string]*int64{
				string(domain.MeterActionInvoices): limitValue(plan.Limits.Invoices),
				string(domain.MeterActionBills):    limitValue(plan.Limits.Bills),
			},
			Features: features,
		})
	}
	writeJSON(w, http.StatusOK, plans)
}

type usageResponse struct {
	Action    string `json:"action"`
	Consumed  int64  `json:"consumed"`
	Limit     *int64 `json:"limit"`
	Remaining *int64 `json:"remaining"`
}

type entitlementsResponse struct {
	Tier     string          `json:"tier"`
	Status   string          `json:"status"`
	Features []string        `json:"features"`
	Usage    []usageResponse `json:"usage"`
}

// HandleEntitlements returns the company's effective tier, feature set and
// current-period usage. Clients use it to hide gated UI upfront; the server
// still enforces every gate on write.
func (h *PlanHandler) HandleEntitlements(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	ent, err := h.gate.Entitlements(r.Context(), user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	features := make([]string, 0, len(ent.Features))
	for _, f := range ent.Features {
		features = append(features, string(f))
	}
	usage := make([]usageResponse, 0, len(ent.Usage))
	for _, u := range ent.Usage {
		usage = append(usage, usageResponse{
			Action:    string(u.Action),
			Consumed:  u.Consumed,
			Limit:     limitValue(u.Limit),
			Remaining: limitValue(u.Remaining),
		})
	}

	writeJSON(w, http.StatusOK, entitlementsResponse{
		Tier:     string(ent.Tier),
		Status:   string(ent.Status),
		Features: features,
		Usage:    usage,
	})
}

// limitValue renders a Limit for JSON: unlimited limits serialize as null.
func limitValue(l domain.Limit) *int64 {
	if l.IsUnlimited() {
		return nil
	}
	v := int64(l)
	return &v
}
