package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"

	"github.com/facturo/facturo/internal/billing"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/email"
	"github.com/facturo/facturo/internal/repository"
	"github.com/facturo/facturo/internal/service"
)

// maxWebhookBodySize caps Stripe webhook payloads.
const maxWebhookBodySize = 64 << 10

// WebhookHandler processes Stripe webhook events and syncs subscription
// state. Stripe retries failed deliveries, so handlers are idempotent and
// only return non-2xx for errors that a retry could fix.
type WebhookHandler struct {
	billing       billing.Service
	subscriptions service.SubscriptionService
	queries       *repository.Queries
	email         email.EmailService
	billingURL    string
	logger        *slog.Logger
}

func NewWebhookHandler(
	billing billing.Service,
	subscriptions service.SubscriptionService,
	queries *repository.Queries,
	email email.EmailService,
	billingURL string,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		billing:       billing,
		subscriptions: subscriptions,
		queries:       queries,
		email:         email,
		billingURL:    billingURL,
		logger:        logger,
	}
}

func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	// The request context is tied to Stripe's delivery timeout. Handlers use
	// a detached context so a slow database write is not abandoned mid-sync.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 30*time.Second)
	defer cancel()

	switch event.Type {
	case "checkout.session.completed":
		err = h.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		err = h.handleSubscriptionChange(ctx, event)
	case "customer.subscription.deleted":
		err = h.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_succeeded":
		err = h.handlePaymentSucceeded(ctx, event)
	case "invoice.payment_failed":
		err = h.handlePaymentFailed(ctx, event)
	default:
		h.logger.Debug("ignoring webhook event", "type", event.Type)
	}

	if err != nil {
		// Unknown customers are not retryable: the checkout flow records the
		// customer ID before Stripe starts sending subscription events, so a
		// miss means the customer belongs to a different environment.
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			h.logger.Warn("webhook for unknown customer", "type", event.Type, "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("webhook handling failed", "type", event.Type, "error", err)
		http.Error(w, "webhook handling failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleCheckoutCompleted links the company to its Stripe customer and
// subscription. The subscription.created event that follows carries the
// plan details.
func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return domain.Invalid("webhook.checkout_completed", "malformed checkout session payload")
	}
	if sess.Customer == nil || sess.Subscription == nil {
		h.logger.Warn("checkout session missing customer or subscription", "session", sess.ID)
		return nil
	}

	companyID, err := companyIDFromMetadata(sess.Metadata)
	if err != nil {
		return err
	}

	err = h.queries.UpdateSubscriptionStripe(ctx, repository.UpdateSubscriptionStripeParams{
		CompanyID:            companyID,
		StripeCustomerID:     sess.Customer.ID,
		StripeSubscriptionID: sess.Subscription.ID,
	})
	if err != nil {
		return domain.Internal(err, "webhook.checkout_completed", "failed to link stripe customer")
	}

	h.logger.Info("checkout completed",
		"company_id", companyID,
		"stripe_customer", sess.Customer.ID)
	return nil
}

func (h *WebhookHandler) handleSubscriptionChange(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return domain.Invalid("webhook.subscription_change", "malformed subscription payload")
	}
	if sub.Customer == nil || len(sub.Items.Data) == 0 {
		h.logger.Warn("subscription event missing customer or items", "subscription", sub.ID)
		return nil
	}

	priceID := sub.Items.Data[0].Price.ID
	tier, ok := h.billing.TierForPriceID(priceID)
	if !ok {
		h.logger.Warn("subscription references unknown price", "price_id", priceID)
		return nil
	}

	return h.subscriptions.ApplyStripeState(ctx, service.ApplyStripeStateParams{
		StripeCustomerID:     sub.Customer.ID,
		StripeSubscriptionID: sub.ID,
		Tier:                 tier,
		Status:               subscriptionStatus(sub.Status),
		PeriodStart:          time.Unix(sub.CurrentPeriodStart, 0).UTC(),
	})
}

func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return domain.Invalid("webhook.subscription_deleted", "malformed subscription payload")
	}
	if sub.Customer == nil {
		return nil
	}

	return h.subscriptions.ApplyStripeState(ctx, service.ApplyStripeStateParams{
		StripeCustomerID: sub.Customer.ID,
		Tier:             domain.PlanTierFree,
		Status:           domain.SubscriptionStatusInactive,
	})
}

func (h *WebhookHandler) handlePaymentSucceeded(ctx context.Context, event stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return domain.Invalid("webhook.payment_succeeded", "malformed invoice payload")
	}
	if inv.Customer == nil {
		return nil
	}

	sub, err := h.queries.GetSubscriptionByStripeCustomer(ctx, inv.Customer.ID)
	if err != nil {
		return domain.NotFound("webhook.payment_succeeded", "subscription", inv.Customer.ID)
	}
	if sub.Status != domain.SubscriptionStatusPastDue {
		return nil
	}

	// A successful charge clears the past-due flag on the recorded tier.
	return h.subscriptions.ApplyStripeState(ctx, service.ApplyStripeStateParams{
		StripeCustomerID:     inv.Customer.ID,
		StripeSubscriptionID: sub.StripeSubscriptionID,
		Tier:                 sub.Tier,
		Status:               domain.SubscriptionStatusActive,
	})
}

func (h *WebhookHandler) handlePaymentFailed(ctx context.Context, event stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return domain.Invalid("webhook.payment_failed", "malformed invoice payload")
	}
	if inv.Customer == nil {
		return nil
	}

	sub, err := h.queries.GetSubscriptionByStripeCustomer(ctx, inv.Customer.ID)
	if err != nil {
		return domain.NotFound("webhook.payment_failed", "subscription", inv.Customer.ID)
	}

	if err := h.subscriptions.MarkPastDue(ctx, sub.CompanyID); err != nil {
		return err
	}

	h.notifyPaymentIssue(ctx, sub.CompanyID)
	return nil
}

// notifyPaymentIssue emails the company owner about a failed charge.
// Notification failures are logged, never retried through the webhook.
func (h *WebhookHandler) notifyPaymentIssue(ctx context.Context, companyID uuid.UUID) {
	if h.email == nil {
		return
	}
	owner, err := h.queries.GetCompanyOwner(ctx, companyID)
	if err != nil {
		h.logger.Error("failed to look up company owner for payment notice",
			"company_id", companyID, "error", err)
		return
	}
	if err := h.email.SendPaymentIssueEmail(ctx, owner.Email, owner.Name, h.billingURL); err != nil {
		h.logger.Error("failed to send payment issue email",
			"company_id", companyID, "error", err)
	}
}

func companyIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	raw, ok := metadata["company_id"]
	if !ok {
		return uuid.Nil, domain.Invalid("webhook.metadata", "missing company_id metadata")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.Invalid("webhook.metadata", "malformed company_id metadata")
	}
	return id, nil
}

func subscriptionStatus(s stripe.SubscriptionStatus) domain.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue:
		return domain.SubscriptionStatusPastDue
	default:
		return domain.SubscriptionStatusInactive
	}
}
