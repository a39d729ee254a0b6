package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/repository"
	"github.com/google/uuid"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeScanDocument     = "scan_document"
	JobTypeReconcileUsage   = "reconcile_usage"
	JobTypeSendInvoiceEmail = "send_invoice_email"
	JobTypePruneUsage       = "prune_usage"
)

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// ScanDocumentPayload is the payload for document extraction jobs.
type ScanDocumentPayload struct {
	ScanID uuid.UUID `json:"scan_id"`
}

// ReconcileUsagePayload is the payload for usage reconciliation jobs. These
// are enqueued when a usage counter increment fails after the gated write
// already committed, so the counter catches up to reality.
type ReconcileUsagePayload struct {
	CompanyID uuid.UUID          `json:"company_id"`
	Action    domain.MeterAction `json:"action"`
}

// PruneUsagePayload is the payload for usage retention jobs. Counters from
// periods older than RetainMonths are deleted.
type PruneUsagePayload struct {
	RetainMonths int `json:"retain_months"`
}

// SendInvoiceEmailPayload is the payload for invoice delivery jobs.
type SendInvoiceEmailPayload struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	CompanyID uuid.UUID `json:"company_id"`
	Recipient string    `json:"recipient"`
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// EnqueueJob is a generic helper for enqueuing jobs with custom options.
func EnqueueJob(
	ctx context.Context,
	queries *repository.Queries,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	// Marshal the payload to JSON
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	// Default parameters
	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}

	// Apply options
	for _, opt := range opts {
		opt(&params)
	}

	// Enqueue the job
	job, err := queries.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

// EnqueueScanDocument enqueues a job to extract data from an uploaded
// document image. This is called right after the upload is stored.
func EnqueueScanDocument(
	ctx context.Context,
	queries *repository.Queries,
	scanID uuid.UUID,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := ScanDocumentPayload{ScanID: scanID}

	return EnqueueJob(ctx, queries, JobTypeScanDocument, payload, opts...)
}

// EnqueueReconcileUsage enqueues a job to bring a usage counter back in sync
// after an increment failed post-write. Runs at high priority so the window
// where the counter undercounts stays small.
func EnqueueReconcileUsage(
	ctx context.Context,
	queries *repository.Queries,
	companyID uuid.UUID,
	action domain.MeterAction,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := ReconcileUsagePayload{
		CompanyID: companyID,
		Action:    action,
	}

	opts = append([]EnqueueOption{WithPriority(PriorityHigh)}, opts...)
	return EnqueueJob(ctx, queries, JobTypeReconcileUsage, payload, opts...)
}

// EnqueuePruneUsage enqueues a job to delete usage counters that fell out of
// the retention window. Runs at low priority; retention is housekeeping and
// must never delay request-driven jobs.
func EnqueuePruneUsage(
	ctx context.Context,
	queries *repository.Queries,
	retainMonths int,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := PruneUsagePayload{RetainMonths: retainMonths}

	opts = append([]EnqueueOption{WithPriority(PriorityLow)}, opts...)
	return EnqueueJob(ctx, queries, JobTypePruneUsage, payload, opts...)
}

// EnqueueSendInvoiceEmail enqueues a job to deliver an invoice to a customer.
func EnqueueSendInvoiceEmail(
	ctx context.Context,
	queries *repository.Queries,
	invoiceID, companyID uuid.UUID,
	recipient string,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := SendInvoiceEmailPayload{
		InvoiceID: invoiceID,
		CompanyID: companyID,
		Recipient: recipient,
	}

	return EnqueueJob(ctx, queries, JobTypeSendInvoiceEmail, payload, opts...)
}

// Enqueuer adapts the package-level enqueue helpers to the narrow interfaces
// the service layer depends on.
type Enqueuer struct {
	queries *repository.Queries
}

// NewEnqueuer creates an Enqueuer backed by the given queries.
func NewEnqueuer(queries *repository.Queries) *Enqueuer {
	return &Enqueuer{queries: queries}
}

// EnqueueScanDocument implements service.ScanEnqueuer.
func (e *Enqueuer) EnqueueScanDocument(ctx context.Context, scanID uuid.UUID) error {
	_, err := EnqueueScanDocument(ctx, e.queries, scanID)
	return err
}

// EnqueueReconcileUsage implements service.ReconcileEnqueuer.
func (e *Enqueuer) EnqueueReconcileUsage(ctx context.Context, companyID uuid.UUID, action domain.MeterAction) error {
	_, err := EnqueueReconcileUsage(ctx, e.queries, companyID, action)
	return err
}

// EnqueueSendInvoiceEmail implements service.InvoiceEmailEnqueuer.
func (e *Enqueuer) EnqueueSendInvoiceEmail(ctx context.Context, invoiceID, companyID uuid.UUID, recipient string) error {
	_, err := EnqueueSendInvoiceEmail(ctx, e.queries, invoiceID, companyID, recipient)
	return err
}
