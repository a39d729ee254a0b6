// This file implements the usage retention job. Counters from closed periods
// stop mattering once the month rolls over; a periodic prune keeps the
// usage_counters table from growing without bound.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/facturo/facturo/internal/service"
	"github.com/facturo/facturo/internal/worker"
)

// DefaultUsageRetentionMonths is how long closed-period counters are kept
// when the job payload does not say otherwise. A year covers any plausible
// billing dispute window.
const DefaultUsageRetentionMonths = 12

// PruneUsageHandler processes jobs that delete usage counters older than the
// retention window.
type PruneUsageHandler struct {
	usage  service.UsageService
	logger *slog.Logger
}

// NewPruneUsageHandler creates a new handler for usage retention jobs.
func NewPruneUsageHandler(usage service.UsageService, logger *slog.Logger) *PruneUsageHandler {
	return &PruneUsageHandler{
		usage:  usage,
		logger: logger,
	}
}

// Type returns the job type identifier.
func (h *PruneUsageHandler) Type() string {
	return worker.JobTypePruneUsage
}

// Handle executes the retention job.
func (h *PruneUsageHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.PruneUsagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	retain := p.RetainMonths
	if retain == 0 {
		retain = DefaultUsageRetentionMonths
	}
	if retain < 1 {
		return worker.NewPermanentError(fmt.Errorf("invalid retention: %d months", retain))
	}

	deleted, err := h.usage.PruneOldPeriods(ctx, retain)
	if err != nil {
		return fmt.Errorf("prune usage counters: %w", err)
	}

	h.logger.Info("Usage retention pass finished",
		"retain_months", retain,
		"deleted", deleted,
	)

	return nil
}
