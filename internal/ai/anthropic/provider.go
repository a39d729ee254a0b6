package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/facturo/facturo/internal/ai"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/metrics"
	"github.com/facturo/facturo/internal/repository"
	"github.com/google/uuid"
)

const (
	// APIBaseURL is the base URL for the Anthropic API
	APIBaseURL = "https://api.anthropic.com/v1/messages"

	// APIVersion is the Anthropic API version
	APIVersion = "2023-06-01"

	// DefaultModel is the default Claude model to use
	DefaultModel = "claude-3-5-sonnet-20241022"

	// MaxImageSize is the maximum image size in bytes (20MB)
	MaxImageSize = 20 * 1024 * 1024

	// Pricing in cents per 1M tokens for claude-3-5-sonnet
	PricingInputCents  = 300  // $3 per 1M input tokens
	PricingOutputCents = 1500 // $15 per 1M output tokens
)

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey         string
	Model          string
	ProviderConfig ai.ProviderConfig
}

// Provider implements the ai.Provider interface using Anthropic's Claude API
type Provider struct {
	config  Config
	client  *http.Client
	queries *repository.Queries
	logger  *slog.Logger
}

// New creates a new Anthropic AI provider
func New(config Config, queries *repository.Queries, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	// Set defaults
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.ProviderConfig.MaxRetries == 0 {
		config.ProviderConfig.MaxRetries = 3
	}
	if config.ProviderConfig.RetryBaseDelay == 0 {
		config.ProviderConfig.RetryBaseDelay = 1 * time.Second
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 60 * time.Second
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		queries: queries,
		logger:  logger,
	}, nil
}

// ExtractDocument reads an invoice or receipt photo with Claude and returns
// the structured fields.
func (p *Provider) ExtractDocument(ctx context.Context, params ai.ExtractParams) (*ai.ExtractResult, error) {
	startTime := time.Now()

	if err := p.validateImageParams(params); err != nil {
		return nil, ai.WrapError("extract document", err)
	}

	body, err := p.buildExtractionBody(params)
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	resp, err := p.executeWithRetry(ctx, body)
	if err != nil {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		return nil, ai.WrapError("execute request", err)
	}
	metrics.AIAPICalls.WithLabelValues("success").Inc()

	document, err := p.parseExtractionResponse(resp)
	if err != nil {
		return nil, ai.WrapError("parse response", err)
	}

	result := &ai.ExtractResult{
		Document: *document,
		Usage: ai.UsageInfo{
			Model:        p.config.Model,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CostCents:    p.calculateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
			Duration:     time.Since(startTime),
		},
	}

	p.trackUsage(ctx, params.CompanyID, params.UserID, result.Usage, "extract_document")
	return result, nil
}

// Chat answers a bookkeeping question given the conversation history.
func (p *Provider) Chat(ctx context.Context, params ai.ChatParams) (*ai.ChatResult, error) {
	startTime := time.Now()

	if params.Message == "" {
		return nil, ai.WrapError("chat", fmt.Errorf("message is required"))
	}

	body, err := p.buildChatBody(params)
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	resp, err := p.executeWithRetry(ctx, body)
	if err != nil {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		return nil, ai.WrapError("execute request", err)
	}
	metrics.AIAPICalls.WithLabelValues("success").Inc()

	reply := textContent(resp)
	if reply == "" {
		return nil, ai.WrapError("parse response", fmt.Errorf("no text content in response"))
	}

	result := &ai.ChatResult{
		Reply: reply,
		Usage: ai.UsageInfo{
			Model:        p.config.Model,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CostCents:    p.calculateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
			Duration:     time.Since(startTime),
		},
	}

	p.trackUsage(ctx, params.CompanyID, params.UserID, result.Usage, "chat")
	return result, nil
}

// validateImageParams validates the document extraction parameters
func (p *Provider) validateImageParams(params ai.ExtractParams) error {
	if len(params.ImageData) == 0 {
		return ai.EAIInvalidImage
	}
	if len(params.ImageData) > MaxImageSize {
		return fmt.Errorf("%w: image size %d exceeds maximum %d", ai.EAIInvalidImage, len(params.ImageData), MaxImageSize)
	}
	if params.ContentType == "" {
		return fmt.Errorf("%w: content type is required", ai.EAIInvalidImage)
	}
	validTypes := map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
		"image/gif":  true,
		"image/webp": true,
	}
	if !validTypes[params.ContentType] {
		return fmt.Errorf("%w: unsupported content type %s", ai.EAIInvalidImage, params.ContentType)
	}
	return nil
}

// buildExtractionBody builds the request body for document extraction
func (p *Provider) buildExtractionBody(params ai.ExtractParams) ([]byte, error) {
	imageB64 := base64.StdEncoding.EncodeToString(params.ImageData)

	reqBody := apiRequest{
		Model:     p.config.Model,
		MaxTokens: 2048,
		Messages: []apiMessage{
			{
				Role: "user",
				Content: []apiContent{
					{
						Type: "image",
						Source: &apiImageSource{
							Type:      "base64",
							MediaType: params.ContentType,
							Data:      imageB64,
						},
					},
					{
						Type: "text",
						Text: buildExtractionPrompt(),
					},
				},
			},
		},
	}

	return json.Marshal(reqBody)
}

// buildChatBody builds the request body for an assistant chat turn
func (p *Provider) buildChatBody(params ai.ChatParams) ([]byte, error) {
	messages := make([]apiMessage, 0, len(params.History)+1)
	for _, m := range params.History {
		messages = append(messages, apiMessage{
			Role:    string(m.Role),
			Content: []apiContent{{Type: "text", Text: m.Content}},
		})
	}
	messages = append(messages, apiMessage{
		Role:    "user",
		Content: []apiContent{{Type: "text", Text: params.Message}},
	})

	reqBody := apiRequest{
		Model:     p.config.Model,
		MaxTokens: 1024,
		System:    chatSystemPrompt,
		Messages:  messages,
	}

	return json.Marshal(reqBody)
}

// executeWithRetry executes the request with exponential backoff retry.
// The body is re-sent from the byte slice on each attempt.
func (p *Provider) executeWithRetry(ctx context.Context, body []byte) (*apiResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= p.config.ProviderConfig.MaxRetries; attempt++ {
		resp, err := p.executeRequest(ctx, body)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !ai.IsRetryable(err) {
			return nil, err
		}
		if attempt >= p.config.ProviderConfig.MaxRetries {
			break
		}

		delay := p.config.ProviderConfig.RetryBaseDelay * time.Duration(1<<(attempt-1))
		p.logger.Info("Retrying AI request", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// executeRequest executes a single HTTP request
func (p *Provider) executeRequest(ctx context.Context, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", APIBaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		// Network errors are typically retryable
		return nil, ai.EAIUnavailable
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to domain errors
func (p *Provider) mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout:
		return ai.EAITimeout
	case http.StatusBadRequest:
		if errResp.Error.Type == "invalid_request_error" {
			return ai.EAIInvalidImage
		}
		return fmt.Errorf("bad request: %s", errResp.Error.Message)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ai.EAIUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

// parseExtractionResponse parses the API response into a scan result
func (p *Provider) parseExtractionResponse(resp *apiResponse) (*domain.ScanResult, error) {
	text := textContent(resp)
	if text == "" {
		return nil, fmt.Errorf("no text content in response")
	}

	var output extractionOutput
	if err := json.Unmarshal([]byte(text), &output); err != nil {
		return nil, fmt.Errorf("parse extraction output: %w", err)
	}

	result := &domain.ScanResult{
		DocumentKind: output.DocumentKind,
		VendorName:   output.VendorName,
		Reference:    output.Reference,
		IssueDate:    output.IssueDate,
		Currency:     output.Currency,
		TotalCents:   output.TotalCents,
		TaxCents:     output.TaxCents,
		Confidence:   output.Confidence,
	}
	if result.Currency == "" {
		result.Currency = "EUR"
	}
	if result.Confidence == "" {
		result.Confidence = "low"
	}

	for _, item := range output.Items {
		result.Items = append(result.Items, domain.LineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitCents:   item.UnitCents,
		})
	}

	return result, nil
}

func textContent(resp *apiResponse) string {
	for _, content := range resp.Content {
		if content.Type == "text" {
			return content.Text
		}
	}
	return ""
}

// calculateCost calculates the cost in cents for the given token usage
func (p *Provider) calculateCost(inputTokens, outputTokens int) int {
	inputCost := (inputTokens * PricingInputCents) / 1_000_000
	outputCost := (outputTokens * PricingOutputCents) / 1_000_000
	return inputCost + outputCost
}

// trackUsage records AI usage in the database. Failures are logged, never
// surfaced to the caller.
func (p *Provider) trackUsage(ctx context.Context, companyID, userID uuid.UUID, usage ai.UsageInfo, requestType string) {
	err := p.queries.RecordAIUsage(ctx, repository.RecordAIUsageParams{
		CompanyID:    companyID,
		UserID:       userID,
		RequestType:  requestType,
		Model:        usage.Model,
		InputTokens:  int32(usage.InputTokens),
		OutputTokens: int32(usage.OutputTokens),
		CostCents:    int32(usage.CostCents),
	})
	if err != nil {
		p.logger.Error("Failed to track AI usage", "error", err)
	}

	metrics.AITokensTotal.WithLabelValues("input").Add(float64(usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues("output").Add(float64(usage.OutputTokens))
	metrics.AICostCentsTotal.Add(float64(usage.CostCents))
}

// API request/response types

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *apiImageSource `json:"source,omitempty"`
}

type apiImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type apiResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []apiContentOutput `json:"content"`
	Model   string             `json:"model"`
	Usage   apiUsage           `json:"usage"`
}

type apiContentOutput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorResponse struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// extractionOutput represents the JSON structure returned by Claude
type extractionOutput struct {
	DocumentKind string           `json:"document_kind"`
	VendorName   string           `json:"vendor_name"`
	Reference    string           `json:"reference"`
	IssueDate    string           `json:"issue_date"`
	Currency     string           `json:"currency"`
	TotalCents   int64            `json:"total_cents"`
	TaxCents     int64            `json:"tax_cents"`
	Items        []extractionItem `json:"items"`
	Confidence   string           `json:"confidence"`
}

type extractionItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitCents   int64   `json:"unit_cents"`
}
