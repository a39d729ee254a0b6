package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/facturo/facturo/internal/domain"
	"github.com/google/uuid"
)

// ErrLimitReached is returned by IncrementUsageIfBelow when the conditional
// increment found no headroom. Callers translate it into a gate denial.
var ErrLimitReached = errors.New("usage limit reached")

const getUsage = `
SELECT consumed FROM usage_counters
WHERE company_id = $1 AND period_key = $2 AND action = $3
`

// GetUsage returns the consumed count for one counter, defaulting to zero
// when no row exists yet for the period.
func (q *Queries) GetUsage(ctx context.Context, companyID uuid.UUID, period domain.PeriodKey, action domain.MeterAction) (int64, error) {
	var consumed int64
	err := q.db.QueryRowContext(ctx, getUsage, companyID, string(period), string(action)).Scan(&consumed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return consumed, err
}

// IncrementUsageIfBelowParams identifies the counter and its ceiling.
type IncrementUsageIfBelowParams struct {
	CompanyID uuid.UUID
	PeriodKey domain.PeriodKey
	Action    domain.MeterAction
	Limit     int64
}

const incrementUsageIfBelow = `
INSERT INTO usage_counters (company_id, period_key, action, consumed)
VALUES ($1, $2, $3, 1)
ON CONFLICT (company_id, period_key, action) DO UPDATE
SET consumed = usage_counters.consumed + 1, updated_at = now()
WHERE usage_counters.consumed < $4
RETURNING consumed
`

// IncrementUsageIfBelow atomically increments the counter by one, but only if
// the current count is below the limit. The condition is evaluated inside the
// row update, so concurrent requests can never push the counter past the
// limit. Returns ErrLimitReached when the counter was already at the ceiling.
func (q *Queries) IncrementUsageIfBelow(ctx context.Context, arg IncrementUsageIfBelowParams) (int64, error) {
	var consumed int64
	err := q.db.QueryRowContext(ctx, incrementUsageIfBelow,
		arg.CompanyID, string(arg.PeriodKey), string(arg.Action), arg.Limit).Scan(&consumed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrLimitReached
	}
	return consumed, err
}

const incrementUsage = `
INSERT INTO usage_counters (company_id, period_key, action, consumed)
VALUES ($1, $2, $3, 1)
ON CONFLICT (company_id, period_key, action) DO UPDATE
SET consumed = usage_counters.consumed + 1, updated_at = now()
RETURNING consumed
`

// IncrementUsage increments the counter unconditionally. Used for unlimited
// plans, where the count is tracked for display but never enforced.
func (q *Queries) IncrementUsage(ctx context.Context, companyID uuid.UUID, period domain.PeriodKey, action domain.MeterAction) (int64, error) {
	var consumed int64
	err := q.db.QueryRowContext(ctx, incrementUsage,
		companyID, string(period), string(action)).Scan(&consumed)
	return consumed, err
}

const resetUsagePeriod = `
UPDATE usage_counters SET consumed = 0, updated_at = now()
WHERE company_id = $1 AND period_key = $2
`

// ResetUsagePeriod zeroes every counter the company holds for the period.
func (q *Queries) ResetUsagePeriod(ctx context.Context, companyID uuid.UUID, period domain.PeriodKey) error {
	_, err := q.db.ExecContext(ctx, resetUsagePeriod, companyID, string(period))
	return err
}

const deleteUsageBefore = `
DELETE FROM usage_counters WHERE period_key < $1
`

// DeleteUsageBefore removes counters from periods older than the given key.
// Period keys sort lexicographically by month, so a plain comparison works.
func (q *Queries) DeleteUsageBefore(ctx context.Context, period domain.PeriodKey) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteUsageBefore, string(period))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
