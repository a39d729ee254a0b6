// Package domain contains core business types and interfaces.
//
// This file defines types for the AI assistant: scanned documents processed by
// the OCR extraction pipeline (AI scanner feature) and persisted chat messages
// (AI chatbot feature).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScanStatus tracks a scanned document through the extraction pipeline.
type ScanStatus string

const (
	ScanStatusPending    ScanStatus = "pending"
	ScanStatusProcessing ScanStatus = "processing"
	ScanStatusCompleted  ScanStatus = "completed"
	ScanStatusFailed     ScanStatus = "failed"
)

// DocumentScan is an uploaded receipt or invoice image queued for AI
// extraction. The original image and its thumbnail live in object storage;
// the extraction result is stored as JSON once the background job completes.
type DocumentScan struct {
	ID           uuid.UUID
	CompanyID    uuid.UUID
	UserID       uuid.UUID
	Status       ScanStatus
	ImageKey     string // object storage key of the uploaded image
	ThumbnailKey string // object storage key of the generated thumbnail
	ContentType  string
	Result       *ScanResult // populated when Status is completed
	ErrorMessage string      // populated when Status is failed
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ScanResult is the structured data the AI extracted from a document image.
type ScanResult struct {
	DocumentKind string     `json:"document_kind"` // "invoice" or "receipt"
	VendorName   string     `json:"vendor_name"`
	Reference    string     `json:"reference"`
	IssueDate    string     `json:"issue_date"` // ISO date as extracted, unvalidated
	Currency     string     `json:"currency"`
	TotalCents   int64      `json:"total_cents"`
	TaxCents     int64      `json:"tax_cents"`
	Items        []LineItem `json:"items"`
	Confidence   string     `json:"confidence"` // "high", "medium", "low"
}

// SupportedScanImageTypes maps accepted upload MIME types to display names.
var SupportedScanImageTypes = map[string]string{
	"image/jpeg": "JPEG",
	"image/png":  "PNG",
}

const (
	// MaxScanImageSize is the maximum allowed size for uploaded documents (10MB).
	MaxScanImageSize = 10 * 1024 * 1024

	// ScanThumbnailMaxWidth is the maximum width for generated thumbnails.
	ScanThumbnailMaxWidth = 200

	// ScanThumbnailMaxHeight is the maximum height for generated thumbnails.
	ScanThumbnailMaxHeight = 200
)

// IsValidScanContentType checks if the content type is supported.
func IsValidScanContentType(contentType string) bool {
	_, ok := SupportedScanImageTypes[contentType]
	return ok
}

// ValidateScanImageSize checks if the file size is within limits.
func ValidateScanImageSize(size int64) error {
	if size > MaxScanImageSize {
		return Errorf(ETOOLARGE, "scan.validate", "Document image size %d bytes exceeds maximum of %d bytes (%.1fMB)", size, MaxScanImageSize, float64(MaxScanImageSize)/(1024*1024))
	}
	if size == 0 {
		return Invalid("scan.validate", "Document image file is empty")
	}
	return nil
}

const (
	// MaxChatMessageLength bounds a single user message to the assistant.
	MaxChatMessageLength = 4000

	// ChatHistoryWindow is how many recent messages are replayed to the
	// model for conversational context.
	ChatHistoryWindow = 20
)

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one persisted turn of an assistant conversation.
// History is stored per user so the assistant can carry context.
type ChatMessage struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	UserID    uuid.UUID
	Role      ChatRole
	Content   string
	CreatedAt time.Time
}
