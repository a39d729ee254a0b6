package repository

import (
	"context"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/google/uuid"
)

const getSubscriptionByCompany = `
SELECT id, company_id, tier, status, period_start,
       stripe_customer_id, stripe_subscription_id, created_at, updated_at
FROM subscriptions WHERE company_id = $1
`

func (q *Queries) GetSubscriptionByCompany(ctx context.Context, companyID uuid.UUID) (domain.Subscription, error) {
	return scanSubscription(q.db.QueryRowContext(ctx, getSubscriptionByCompany, companyID))
}

const getSubscriptionByStripeCustomer = `
SELECT id, company_id, tier, status, period_start,
       stripe_customer_id, stripe_subscription_id, created_at, updated_at
FROM subscriptions WHERE stripe_customer_id = $1
`

func (q *Queries) GetSubscriptionByStripeCustomer(ctx context.Context, customerID string) (domain.Subscription, error) {
	return scanSubscription(q.db.QueryRowContext(ctx, getSubscriptionByStripeCustomer, customerID))
}

// CreateSubscriptionParams contains the fields for provisioning a subscription.
type CreateSubscriptionParams struct {
	CompanyID   uuid.UUID
	Tier        string
	Status      string
	PeriodStart time.Time
}

const createSubscription = `
INSERT INTO subscriptions (company_id, tier, status, period_start)
VALUES ($1, $2, $3, $4)
ON CONFLICT (company_id) DO UPDATE SET updated_at = now()
RETURNING id, company_id, tier, status, period_start,
          stripe_customer_id, stripe_subscription_id, created_at, updated_at
`

// CreateSubscription provisions the company's subscription row. The upsert
// keeps the call idempotent when two requests provision concurrently; the
// existing row always wins.
func (q *Queries) CreateSubscription(ctx context.Context, arg CreateSubscriptionParams) (domain.Subscription, error) {
	row := q.db.QueryRowContext(ctx, createSubscription,
		arg.CompanyID, arg.Tier, arg.Status, arg.PeriodStart)
	return scanSubscription(row)
}

// UpdateSubscriptionPlanParams sets the plan tier and status for a company.
type UpdateSubscriptionPlanParams struct {
	CompanyID   uuid.UUID
	Tier        string
	Status      string
	PeriodStart time.Time
}

const updateSubscriptionPlan = `
UPDATE subscriptions
SET tier = $2, status = $3, period_start = $4, updated_at = now()
WHERE company_id = $1
RETURNING id, company_id, tier, status, period_start,
          stripe_customer_id, stripe_subscription_id, created_at, updated_at
`

func (q *Queries) UpdateSubscriptionPlan(ctx context.Context, arg UpdateSubscriptionPlanParams) (domain.Subscription, error) {
	row := q.db.QueryRowContext(ctx, updateSubscriptionPlan,
		arg.CompanyID, arg.Tier, arg.Status, arg.PeriodStart)
	return scanSubscription(row)
}

// UpdateSubscriptionStripeParams links a subscription to its Stripe records.
type UpdateSubscriptionStripeParams struct {
	CompanyID            uuid.UUID
	StripeCustomerID     string
	StripeSubscriptionID string
}

const updateSubscriptionStripe = `
UPDATE subscriptions
SET stripe_customer_id = $2, stripe_subscription_id = $3, updated_at = now()
WHERE company_id = $1
`

func (q *Queries) UpdateSubscriptionStripe(ctx context.Context, arg UpdateSubscriptionStripeParams) error {
	_, err := q.db.ExecContext(ctx, updateSubscriptionStripe,
		arg.CompanyID, arg.StripeCustomerID, arg.StripeSubscriptionID)
	return err
}

func scanSubscription(row rowScanner) (domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(&s.ID, &s.CompanyID, &s.Tier, &s.Status, &s.PeriodStart,
		&s.StripeCustomerID, &s.StripeSubscriptionID, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
