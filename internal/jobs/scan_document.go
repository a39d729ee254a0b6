// Package jobs contains background job handlers for the Facturo application.
//
// This file implements the document extraction job: it downloads an uploaded
// receipt or invoice image from storage, sends it to the AI provider, and
// stores the structured result on the scan record.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/facturo/facturo/internal/ai"
	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/metrics"
	"github.com/facturo/facturo/internal/repository"
	"github.com/facturo/facturo/internal/storage"
	"github.com/facturo/facturo/internal/worker"
	"github.com/google/uuid"
)

// ScanDocumentHandler processes jobs that extract structured data from
// uploaded document images.
type ScanDocumentHandler struct {
	queries  *repository.Queries
	provider ai.Provider
	storage  storage.Storage
	logger   *slog.Logger
}

// NewScanDocumentHandler creates a new handler for document extraction jobs.
func NewScanDocumentHandler(
	queries *repository.Queries,
	provider ai.Provider,
	store storage.Storage,
	logger *slog.Logger,
) *ScanDocumentHandler {
	return &ScanDocumentHandler{
		queries:  queries,
		provider: provider,
		storage:  store,
		logger:   logger,
	}
}

// Type returns the job type identifier.
func (h *ScanDocumentHandler) Type() string {
	return worker.JobTypeScanDocument
}

// Handle executes the document extraction job.
func (h *ScanDocumentHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.ScanDocumentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	scan, err := h.queries.GetDocumentScanByID(ctx, p.ScanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return worker.NewPermanentError(fmt.Errorf("scan not found: %w", err))
		}
		return fmt.Errorf("fetch scan: %w", err)
	}

	// A retried job may find the scan already finished.
	if scan.Status == domain.ScanStatusCompleted {
		h.logger.Info("Scan already completed, skipping", "scan_id", scan.ID)
		return nil
	}

	h.logger.Info("Extracting document",
		"scan_id", scan.ID,
		"company_id", scan.CompanyID,
		"content_type", scan.ContentType,
	)

	if err := h.queries.UpdateDocumentScanStatus(ctx, scan.ID, domain.ScanStatusProcessing); err != nil {
		return fmt.Errorf("update scan status to processing: %w", err)
	}

	imageData, err := h.downloadImage(ctx, scan.ImageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.markFailed(ctx, scan.ID, "uploaded image is no longer available")
			return worker.NewPermanentError(fmt.Errorf("image missing from storage: %w", err))
		}
		return fmt.Errorf("download image: %w", err)
	}

	result, err := h.provider.ExtractDocument(ctx, ai.ExtractParams{
		ImageData:   imageData,
		ContentType: scan.ContentType,
		ScanID:      scan.ID,
		CompanyID:   scan.CompanyID,
		UserID:      scan.UserID,
	})
	if err != nil {
		if ai.IsRetryable(err) {
			// Roll the status back so the retry doesn't look stale.
			if statusErr := h.queries.UpdateDocumentScanStatus(ctx, scan.ID, domain.ScanStatusPending); statusErr != nil {
				h.logger.Error("Failed to reset scan status for retry", "error", statusErr, "scan_id", scan.ID)
			}
			return fmt.Errorf("extract document: %w", err)
		}
		h.markFailed(ctx, scan.ID, extractionFailureMessage(err))
		return worker.NewPermanentError(fmt.Errorf("extract document: %w", err))
	}

	if err := h.queries.UpdateDocumentScanResult(ctx, scan.ID, result.Document); err != nil {
		return fmt.Errorf("store scan result: %w", err)
	}

	metrics.DocumentsScanned.WithLabelValues(string(domain.ScanStatusCompleted)).Inc()

	h.logger.Info("Document extracted",
		"scan_id", scan.ID,
		"company_id", scan.CompanyID,
		"document_kind", result.Document.DocumentKind,
		"total_cents", result.Document.TotalCents,
		"confidence", result.Document.Confidence,
		"cost_cents", result.Usage.CostCents,
	)

	return nil
}

// downloadImage reads the full image from storage.
func (h *ScanDocumentHandler) downloadImage(ctx context.Context, key string) ([]byte, error) {
	reader, _, err := h.storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// markFailed records a terminal extraction failure on the scan.
func (h *ScanDocumentHandler) markFailed(ctx context.Context, scanID uuid.UUID, message string) {
	if err := h.queries.UpdateDocumentScanError(ctx, scanID, message); err != nil {
		h.logger.Error("Failed to mark scan as failed", "error", err, "scan_id", scanID)
		return
	}
	metrics.DocumentsScanned.WithLabelValues(string(domain.ScanStatusFailed)).Inc()
}

// extractionFailureMessage converts a provider error into a message safe to
// show the user.
func extractionFailureMessage(err error) string {
	switch {
	case errors.Is(err, ai.EAIInvalidImage):
		return "The image could not be read. Try a clearer photo of the document."
	case errors.Is(err, ai.EAIUnauthorized):
		return "Document extraction is temporarily unavailable."
	default:
		return "Document extraction failed."
	}
}
