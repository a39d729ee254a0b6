package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/google/uuid"
)

// Provider defines the interface for AI-powered document extraction and the
// bookkeeping assistant chat.
type Provider interface {
	// ExtractDocument reads an invoice or receipt photo and returns the
	// structured fields found in it.
	ExtractDocument(ctx context.Context, params ExtractParams) (*ExtractResult, error)

	// Chat answers a bookkeeping question given the conversation so far.
	Chat(ctx context.Context, params ChatParams) (*ChatResult, error)
}

// ExtractParams contains parameters for document extraction.
type ExtractParams struct {
	ImageData   []byte    // Raw image bytes
	ContentType string    // MIME type (e.g., "image/jpeg")
	ScanID      uuid.UUID // Scan ID for tracking
	CompanyID   uuid.UUID // Company ID for usage tracking
	UserID      uuid.UUID // User ID for usage tracking
}

// ExtractResult contains the structured document data plus usage info.
type ExtractResult struct {
	Document domain.ScanResult
	Usage    UsageInfo
}

// ChatParams contains the conversation history and the new user message.
// History must be in chronological order and already trimmed by the caller.
type ChatParams struct {
	History   []domain.ChatMessage
	Message   string
	CompanyID uuid.UUID
	UserID    uuid.UUID
}

// ChatResult contains the assistant's reply plus usage info.
type ChatResult struct {
	Reply string
	Usage UsageInfo
}

// UsageInfo tracks API usage for billing and monitoring.
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	CostCents    int           // Estimated cost in cents
	Duration     time.Duration // Request duration
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidImage indicates the image format or content is invalid
	EAIInvalidImage = errors.New("invalid image format or content")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")
)

// IsRetryable returns true if the error is a transient error that can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}

// ProviderConfig contains common configuration for AI providers.
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}
