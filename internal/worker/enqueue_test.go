package worker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/facturo/facturo/internal/domain"
	"github.com/facturo/facturo/internal/repository"
	"github.com/google/uuid"
)

func TestEnqueueOptions(t *testing.T) {
	params := repository.EnqueueJobParams{
		JobType:     JobTypeScanDocument,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}

	WithPriority(PriorityHigh)(&params)
	if params.Priority != PriorityHigh {
		t.Errorf("Priority = %d, want %d", params.Priority, PriorityHigh)
	}

	WithMaxAttempts(5)(&params)
	if params.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", params.MaxAttempts)
	}

	before := time.Now()
	WithDelay(10 * time.Minute)(&params)
	if params.ScheduledAt.Before(before.Add(9 * time.Minute)) {
		t.Errorf("ScheduledAt = %v, want roughly 10m in the future", params.ScheduledAt)
	}
}

func TestReconcileUsagePayloadRoundTrip(t *testing.T) {
	payload := ReconcileUsagePayload{
		CompanyID: uuid.New(),
		Action:    domain.MeterActionInvoices,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded ReconcileUsagePayload
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.CompanyID != payload.CompanyID {
		t.Errorf("CompanyID = %v, want %v", decoded.CompanyID, payload.CompanyID)
	}
	if decoded.Action != domain.MeterActionInvoices {
		t.Errorf("Action = %q, want %q", decoded.Action, domain.MeterActionInvoices)
	}
}

func TestSendInvoiceEmailPayloadFields(t *testing.T) {
	payload := SendInvoiceEmailPayload{
		InvoiceID: uuid.New(),
		CompanyID: uuid.New(),
		Recipient: "customer@example.com",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"invoice_id", "company_id", "recipient"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("payload missing %q field", key)
		}
	}
}
