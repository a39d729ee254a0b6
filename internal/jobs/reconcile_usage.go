// This file implements the usage reconciliation job. When a gated write
// commits but the usage counter increment afterwards fails, the caller
// enqueues one of these so the counter catches up to what actually happened.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/facturo/facturo/internal/service"
	"github.com/facturo/facturo/internal/worker"
)

// ReconcileUsageHandler processes jobs that replay a missed usage increment.
type ReconcileUsageHandler struct {
	usage  service.UsageService
	logger *slog.Logger
}

// NewReconcileUsageHandler creates a new handler for usage reconciliation jobs.
func NewReconcileUsageHandler(usage service.UsageService, logger *slog.Logger) *ReconcileUsageHandler {
	return &ReconcileUsageHandler{
		usage:  usage,
		logger: logger,
	}
}

// Type returns the job type identifier.
func (h *ReconcileUsageHandler) Type() string {
	return worker.JobTypeReconcileUsage
}

// Handle executes the reconciliation job. The increment is unconditional:
// the action it accounts for already happened, so the counter must reflect
// it even if that lands the counter at or past the plan limit.
func (h *ReconcileUsageHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.ReconcileUsagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	if !p.Action.Valid() {
		return worker.NewPermanentError(fmt.Errorf("unknown metered action: %s", p.Action))
	}

	if err := h.usage.Record(ctx, p.CompanyID, p.Action); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}

	h.logger.Info("Reconciled usage counter",
		"company_id", p.CompanyID,
		"action", p.Action,
	)

	return nil
}
