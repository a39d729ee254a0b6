package handler

import (
	"log/slog"
	"net/http"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/billing"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/repository"
	"github.com/facturo/facturo/internal/service"
)

// BillingHandler serves the Stripe-backed plan management endpoints.
// All routes are owner-only; members see plan state through the plan
// endpoints instead.
type BillingHandler struct {
	billing       billing.Service
	subscriptions service.SubscriptionService
	queries       *repository.Queries
	baseURL       string
	logger        *slog.Logger
}

func NewBillingHandler(
	billing billing.Service,
	subscriptions service.SubscriptionService,
	queries *repository.Queries,
	baseURL string,
	logger *slog.Logger,
) *BillingHandler {
	return &BillingHandler{
		billing:       billing,
		subscriptions: subscriptions,
		queries:       queries,
		baseURL:       baseURL,
		logger:        logger,
	}
}

func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireOwner func(http.Handler) http.Handler) {
	mux.Handle("POST /api/billing/checkout", requireOwner(http.HandlerFunc(h.HandleCheckout)))
	mux.Handle("POST /api/billing/portal", requireOwner(http.HandlerFunc(h.HandlePortal)))
	mux.Handle("POST /api/billing/cancel", requireOwner(http.HandlerFunc(h.HandleCancel)))
	mux.Handle("POST /api/billing/reactivate", requireOwner(http.HandlerFunc(h.HandleReactivate)))
}

type checkoutRequest struct {
	Tier   string `json:"tier"`
	Yearly bool   `json:"yearly"`
}

type redirectResponse struct {
	URL string `json:"url"`
}

// HandleCheckout creates a Stripe Checkout session for upgrading to a paid
// tier. The actual plan change happens when the webhook confirms payment.
func (h *BillingHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	tier := domain.PlanTier(req.Tier)
	if !tier.Valid() || tier == domain.PlanTierFree {
		ErrorResponse(w, r, h.logger, domain.Invalid("billing.checkout", "tier must be a paid plan"))
		return
	}
	priceID, ok := h.billing.PriceIDForTier(tier, req.Yearly)
	if !ok {
		ErrorResponse(w, r, h.logger, domain.Invalid("billing.checkout", "no price configured for tier"))
		return
	}

	sub, err := h.subscriptions.GetOrProvision(r.Context(), user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	customerID := sub.StripeCustomerID
	if customerID == "" {
		customerID, err = h.billing.CreateCustomer(user.Email, user.Name)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Internal(err, "billing.checkout", "failed to create stripe customer"))
			return
		}
		err = h.queries.UpdateSubscriptionStripe(r.Context(), repository.UpdateSubscriptionStripeParams{
			CompanyID:        user.CompanyID,
			StripeCustomerID: customerID,
		})
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Internal(err, "billing.checkout", "failed to save stripe customer"))
			return
		}
	}

	url, err := h.billing.CreateCheckoutSession(
		user.CompanyID.String(),
		customerID,
		priceID,
		h.baseURL+"/billing?checkout=success",
		h.baseURL+"/billing?checkout=cancelled",
	)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "billing.checkout", "failed to create checkout session"))
		return
	}

	writeJSON(w, http.StatusOK, redirectResponse{URL: url})
}

// HandlePortal creates a Stripe Customer Portal session for managing the
// payment method and invoices.
func (h *BillingHandler) HandlePortal(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	sub, err := h.subscriptions.GetOrProvision(r.Context(), user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if sub.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("billing.portal", "no billing account yet"))
		return
	}

	url, err := h.billing.CreatePortalSession(sub.StripeCustomerID, h.baseURL+"/billing")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "billing.portal", "failed to create portal session"))
		return
	}

	writeJSON(w, http.StatusOK, redirectResponse{URL: url})
}

// HandleCancel schedules the Stripe subscription to end at the period
// boundary. Companies without a Stripe subscription are downgraded to Free
// immediately.
func (h *BillingHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	sub, err := h.subscriptions.GetOrProvision(r.Context(), user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if sub.StripeSubscriptionID != "" {
		if err := h.billing.CancelSubscription(sub.StripeSubscriptionID); err != nil {
			ErrorResponse(w, r, h.logger, domain.Internal(err, "billing.cancel", "failed to cancel stripe subscription"))
			return
		}
		h.logger.Info("subscription cancellation scheduled",
			"company_id", user.CompanyID, "tier", sub.Tier)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if _, err := h.subscriptions.Cancel(r.Context(), user.CompanyID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReactivate removes a scheduled cancellation before the period ends.
func (h *BillingHandler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	sub, err := h.subscriptions.GetOrProvision(r.Context(), user.CompanyID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if sub.StripeSubscriptionID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("billing.reactivate", "no stripe subscription to reactivate"))
		return
	}

	if err := h.billing.ReactivateSubscription(sub.StripeSubscriptionID); err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "billing.reactivate", "failed to reactivate stripe subscription"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
