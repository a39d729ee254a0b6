// Package service contains business logic for the Facturo application.
//
// This file implements the assistant service: the AI document scanner and the
// bookkeeping chatbot. Both features are plan-gated and only available on the
// premium tier.
package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/facturo/facturo/internal/ai"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/repository"
	"github.com/facturo/facturo/internal/storage"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ScanEnqueuer schedules background extraction of an uploaded document.
type ScanEnqueuer interface {
	EnqueueScanDocument(ctx context.Context, scanID uuid.UUID) error
}

// AssistantService defines the interface for AI assistant operations.
type AssistantService interface {
	// UploadScan stores an uploaded document image, creates a pending scan
	// record, and enqueues background extraction.
	// Returns domain.EPAYMENT if the plan does not include the AI scanner.
	// Returns domain.EINVALID or domain.ETOOLARGE for bad uploads.
	UploadScan(ctx context.Context, file multipart.File, header *multipart.FileHeader, companyID, userID uuid.UUID) (*domain.DocumentScan, error)

	// GetScan retrieves a scan by ID scoped to the company.
	// Returns domain.ENOTFOUND if the scan doesn't exist or belongs elsewhere.
	GetScan(ctx context.Context, id, companyID uuid.UUID) (*domain.DocumentScan, error)

	// ListScans retrieves recent scans for a company, newest first.
	ListScans(ctx context.Context, companyID uuid.UUID, limit, offset int32) ([]domain.DocumentScan, error)

	// ScanImageURL returns a presigned/public URL for the original document.
	ScanImageURL(ctx context.Context, id, companyID uuid.UUID) (string, error)

	// ScanThumbnailURL returns a presigned/public URL for the thumbnail.
	ScanThumbnailURL(ctx context.Context, id, companyID uuid.UUID) (string, error)

	// Chat sends a message to the bookkeeping assistant and returns the
	// assistant's reply. Both turns are persisted to the user's history.
	// Returns domain.EPAYMENT if the plan does not include the AI chatbot.
	Chat(ctx context.Context, companyID, userID uuid.UUID, message string) (*domain.ChatMessage, error)

	// ChatHistory retrieves the user's recent conversation in chronological
	// order.
	ChatHistory(ctx context.Context, companyID, userID uuid.UUID, limit int32) ([]domain.ChatMessage, error)

	// ClearChatHistory deletes the user's conversation history.
	ClearChatHistory(ctx context.Context, userID uuid.UUID) error
}

// =============================================================================
// Implementation
// =============================================================================

// assistantService implements the AssistantService interface.
type assistantService struct {
	queries            *repository.Queries
	gate               GateService
	provider           ai.Provider
	storage            storage.Storage
	thumbnailProcessor ThumbnailProcessor
	enqueuer           ScanEnqueuer
	logger             *slog.Logger
}

// NewAssistantService creates a new AssistantService.
func NewAssistantService(
	queries *repository.Queries,
	gate GateService,
	provider ai.Provider,
	store storage.Storage,
	thumbnailProcessor ThumbnailProcessor,
	enqueuer ScanEnqueuer,
	logger *slog.Logger,
) AssistantService {
	return &assistantService{
		queries:            queries,
		gate:               gate,
		provider:           provider,
		storage:            store,
		thumbnailProcessor: thumbnailProcessor,
		enqueuer:           enqueuer,
		logger:             logger,
	}
}

// requireFeature checks the plan gate and converts a denial into an error.
func (s *assistantService) requireFeature(ctx context.Context, op string, companyID uuid.UUID, feature domain.Feature) error {
	decision, err := s.gate.CheckFeature(ctx, companyID, feature)
	if err != nil {
		return err
	}
	if !decision.Permitted {
		return domain.PlanRequired(op, feature, decision.MinimumTier)
	}
	return nil
}

// =============================================================================
// Document Scanning
// =============================================================================

// UploadScan stores an uploaded document image and queues it for extraction.
func (s *assistantService) UploadScan(ctx context.Context, file multipart.File, header *multipart.FileHeader, companyID, userID uuid.UUID) (*domain.DocumentScan, error) {
	const op = "assistant.upload_scan"

	if err := s.requireFeature(ctx, op, companyID, domain.FeatureAIScanner); err != nil {
		return nil, err
	}

	if err := domain.ValidateScanImageSize(header.Size); err != nil {
		return nil, err
	}

	// Detect content type from the leading bytes rather than trusting the
	// client-supplied header.
	headerBytes := make([]byte, 512)
	n, err := file.Read(headerBytes)
	if err != nil && err != io.EOF {
		return nil, domain.Internal(err, op, "failed to read file header")
	}
	contentType := http.DetectContentType(headerBytes[:n])

	if !domain.IsValidScanContentType(contentType) {
		return nil, domain.Invalid(op, fmt.Sprintf("Unsupported document type: %s. Only JPEG and PNG are supported.", contentType))
	}

	if seeker, ok := file.(io.Seeker); ok {
		if _, err := seeker.Seek(0, 0); err != nil {
			return nil, domain.Internal(err, op, "failed to reset file pointer")
		}
	}

	fileData, err := io.ReadAll(file)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read file data")
	}

	thumbnailBytes, _, _, err := s.thumbnailProcessor.GenerateThumbnail(
		bytes.NewReader(fileData),
		domain.ScanThumbnailMaxWidth,
		domain.ScanThumbnailMaxHeight,
	)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to generate thumbnail")
	}

	scanID := uuid.New()
	imageKey := storage.ScanImageKey(companyID, scanID, header.Filename)
	thumbnailKey := storage.ScanThumbnailKey(companyID, scanID)

	if err := s.storage.Put(ctx, imageKey, bytes.NewReader(fileData), storage.PutOptions{
		ContentType: contentType,
		MaxSize:     domain.MaxScanImageSize,
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to upload document image")
	}

	if err := s.storage.Put(ctx, thumbnailKey, bytes.NewReader(thumbnailBytes), storage.PutOptions{
		ContentType: "image/jpeg",
	}); err != nil {
		_ = s.storage.Delete(ctx, imageKey)
		return nil, domain.Internal(err, op, "failed to upload thumbnail")
	}

	scan, err := s.queries.CreateDocumentScan(ctx, repository.CreateDocumentScanParams{
		CompanyID:   companyID,
		UserID:      userID,
		ImageKey:    imageKey,
		ContentType: contentType,
	})
	if err != nil {
		_ = s.storage.Delete(ctx, imageKey)
		_ = s.storage.Delete(ctx, thumbnailKey)
		return nil, domain.Internal(err, op, "failed to create scan record")
	}

	if err := s.queries.UpdateDocumentScanThumbnail(ctx, scan.ID, thumbnailKey); err != nil {
		s.logger.Error("Failed to record scan thumbnail key",
			"error", err,
			"scan_id", scan.ID)
	} else {
		scan.ThumbnailKey = thumbnailKey
	}

	if err := s.enqueuer.EnqueueScanDocument(ctx, scan.ID); err != nil {
		// The scan record stays pending; a manual retry can pick it up.
		s.logger.Error("Failed to enqueue document extraction",
			"error", err,
			"scan_id", scan.ID,
			"company_id", companyID)
		return nil, domain.Internal(err, op, "failed to queue document for extraction")
	}

	s.logger.Info("Document scan queued",
		"scan_id", scan.ID,
		"company_id", companyID,
		"content_type", contentType,
		"size_bytes", header.Size)

	return &scan, nil
}

// GetScan retrieves a scan by ID scoped to the company.
func (s *assistantService) GetScan(ctx context.Context, id, companyID uuid.UUID) (*domain.DocumentScan, error) {
	const op = "assistant.get_scan"

	scan, err := s.queries.GetDocumentScan(ctx, id, companyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "scan", id.String())
		}
		return nil, domain.Internal(err, op, "failed to fetch scan")
	}
	return &scan, nil
}

// ListScans retrieves recent scans for a company, newest first.
func (s *assistantService) ListScans(ctx context.Context, companyID uuid.UUID, limit, offset int32) ([]domain.DocumentScan, error) {
	const op = "assistant.list_scans"

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	scans, err := s.queries.ListDocumentScans(ctx, companyID, limit, offset)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to fetch scans")
	}
	return scans, nil
}

// ScanImageURL returns a presigned/public URL for the original document.
func (s *assistantService) ScanImageURL(ctx context.Context, id, companyID uuid.UUID) (string, error) {
	const op = "assistant.scan_image_url"

	scan, err := s.GetScan(ctx, id, companyID)
	if err != nil {
		return "", err
	}

	url, err := s.storage.URL(ctx, scan.ImageKey, 1*time.Hour)
	if err != nil {
		return "", domain.Internal(err, op, "failed to generate image URL")
	}
	return url, nil
}

// ScanThumbnailURL returns a presigned/public URL for the thumbnail.
func (s *assistantService) ScanThumbnailURL(ctx context.Context, id, companyID uuid.UUID) (string, error) {
	const op = "assistant.scan_thumbnail_url"

	scan, err := s.GetScan(ctx, id, companyID)
	if err != nil {
		return "", err
	}
	if scan.ThumbnailKey == "" {
		return "", domain.NotFound(op, "thumbnail", id.String())
	}

	url, err := s.storage.URL(ctx, scan.ThumbnailKey, 1*time.Hour)
	if err != nil {
		return "", domain.Internal(err, op, "failed to generate thumbnail URL")
	}
	return url, nil
}

// =============================================================================
// Chat
// =============================================================================

// Chat sends a message to the bookkeeping assistant and persists both turns.
func (s *assistantService) Chat(ctx context.Context, companyID, userID uuid.UUID, message string) (*domain.ChatMessage, error) {
	const op = "assistant.chat"

	if err := s.requireFeature(ctx, op, companyID, domain.FeatureAIChatbot); err != nil {
		return nil, err
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.Invalid(op, "Message is required")
	}
	if len(message) > domain.MaxChatMessageLength {
		return nil, domain.Invalid(op, fmt.Sprintf("Message exceeds maximum length of %d characters", domain.MaxChatMessageLength))
	}

	history, err := s.queries.ListRecentChatMessages(ctx, userID, domain.ChatHistoryWindow)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to fetch chat history")
	}

	// Persist the user's turn before calling the model so a provider failure
	// doesn't lose it.
	if _, err := s.queries.CreateChatMessage(ctx, repository.CreateChatMessageParams{
		CompanyID: companyID,
		UserID:    userID,
		Role:      domain.ChatRoleUser,
		Content:   message,
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to save message")
	}

	result, err := s.provider.Chat(ctx, ai.ChatParams{
		History:   history,
		Message:   message,
		CompanyID: companyID,
		UserID:    userID,
	})
	if err != nil {
		s.logger.Error("Assistant chat request failed",
			"error", err,
			"company_id", companyID,
			"user_id", userID)
		return nil, err
	}

	reply, err := s.queries.CreateChatMessage(ctx, repository.CreateChatMessageParams{
		CompanyID: companyID,
		UserID:    userID,
		Role:      domain.ChatRoleAssistant,
		Content:   result.Reply,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to save reply")
	}

	s.logger.Info("Assistant chat completed",
		"company_id", companyID,
		"user_id", userID,
		"model", result.Usage.Model,
		"cost_cents", result.Usage.CostCents,
		"duration_ms", result.Usage.Duration.Milliseconds())

	return &reply, nil
}

// ChatHistory retrieves the user's recent conversation in chronological order.
func (s *assistantService) ChatHistory(ctx context.Context, companyID, userID uuid.UUID, limit int32) ([]domain.ChatMessage, error) {
	const op = "assistant.chat_history"

	if err := s.requireFeature(ctx, op, companyID, domain.FeatureAIChatbot); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	messages, err := s.queries.ListRecentChatMessages(ctx, userID, limit)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to fetch chat history")
	}
	return messages, nil
}

// ClearChatHistory deletes the user's conversation history.
func (s *assistantService) ClearChatHistory(ctx context.Context, userID uuid.UUID) error {
	const op = "assistant.clear_chat_history"

	if err := s.queries.DeleteChatHistory(ctx, userID); err != nil {
		return domain.Internal(err, op, "failed to delete chat history")
	}
	return nil
}
