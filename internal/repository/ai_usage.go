package repository

import (
	"context"

	"github.com/google/uuid"
)

// RecordAIUsageParams captures token counts and cost for one model request.
type RecordAIUsageParams struct {
	CompanyID    uuid.UUID
	UserID       uuid.UUID
	RequestType  string
	Model        string
	InputTokens  int32
	OutputTokens int32
	CostCents    int32
}

const recordAIUsage = `
INSERT INTO ai_usage (company_id, user_id, request_type, model, input_tokens, output_tokens, cost_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (q *Queries) RecordAIUsage(ctx context.Context, arg RecordAIUsageParams) error {
	_, err := q.db.ExecContext(ctx, recordAIUsage,
		arg.CompanyID, arg.UserID, arg.RequestType, arg.Model,
		arg.InputTokens, arg.OutputTokens, arg.CostCents)
	return err
}

// AIUsageTotals aggregates a company's model spend.
type AIUsageTotals struct {
	RequestCount int64
	InputTokens  int64
	OutputTokens int64
	CostCents    int64
}

const getAIUsageTotals = `
SELECT count(*), coalesce(sum(input_tokens), 0), coalesce(sum(output_tokens), 0), coalesce(sum(cost_cents), 0)
FROM ai_usage
WHERE company_id = $1 AND created_at >= date_trunc('month', now())
`

// GetAIUsageTotals returns the current calendar month's totals.
func (q *Queries) GetAIUsageTotals(ctx context.Context, companyID uuid.UUID) (AIUsageTotals, error) {
	var t AIUsageTotals
	err := q.db.QueryRowContext(ctx, getAIUsageTotals, companyID).
		Scan(&t.RequestCount, &t.InputTokens, &t.OutputTokens, &t.CostCents)
	return t, err
}
