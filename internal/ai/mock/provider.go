package mock

import (
	"context"
	"log/slog"
	"time"

	"github.com/facturo/facturo/internal/ai"
	"github.com/facturo/facturo/internal/domain"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	ExtractResponse *ai.ExtractResult
	ExtractError    error
	ChatResponse    *ai.ChatResult
	ChatError       error

	// Call tracking for testing
	ExtractCalls int
	ChatCalls    int
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// ExtractDocument returns a canned receipt extraction
func (p *Provider) ExtractDocument(ctx context.Context, params ai.ExtractParams) (*ai.ExtractResult, error) {
	p.ExtractCalls++

	if p.ExtractError != nil {
		return nil, p.ExtractError
	}
	if p.ExtractResponse != nil {
		return p.ExtractResponse, nil
	}

	p.logger.Debug("Mock document extraction", "scan_id", params.ScanID)

	return &ai.ExtractResult{
		Document: domain.ScanResult{
			DocumentKind: "receipt",
			VendorName:   "Office Depot",
			Reference:    "R-2024-00318",
			IssueDate:    "2024-11-03",
			Currency:     "EUR",
			TotalCents:   4250,
			TaxCents:     678,
			Items: []domain.LineItem{
				{Description: "Printer paper A4 500 sheets", Quantity: 2, UnitCents: 899},
				{Description: "Toner cartridge", Quantity: 1, UnitCents: 2452},
			},
			Confidence: "high",
		},
		Usage: ai.UsageInfo{
			Model:        "mock",
			InputTokens:  1200,
			OutputTokens: 150,
			CostCents:    1,
			Duration:     50 * time.Millisecond,
		},
	}, nil
}

// Chat returns a canned assistant reply
func (p *Provider) Chat(ctx context.Context, params ai.ChatParams) (*ai.ChatResult, error) {
	p.ChatCalls++

	if p.ChatError != nil {
		return nil, p.ChatError
	}
	if p.ChatResponse != nil {
		return p.ChatResponse, nil
	}

	return &ai.ChatResult{
		Reply: "To record that expense, create a bill for the supplier and mark it paid once the money leaves your account.",
		Usage: ai.UsageInfo{
			Model:        "mock",
			InputTokens:  300,
			OutputTokens: 40,
			CostCents:    0,
			Duration:     20 * time.Millisecond,
		},
	}, nil
}
