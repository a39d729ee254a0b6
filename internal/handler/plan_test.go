package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/facturo/facturo/internal/auth"
	"github.com/facturo/facturo/internal/domain"
	"github.com/google/uuid"
)

// stubGate returns fixed entitlements.
type stubGate struct {
	entitlements *domain.Entitlements
	err          error
}

func (s *stubGate) CheckFeature(context.Context, uuid.UUID, domain.Feature) (domain.GateDecision, error) {
	return domain.Allow(), nil
}

func (s *stubGate) CheckAndReserve(context.Context, uuid.UUID, domain.MeterAction) (domain.GateDecision, error) {
	return domain.Allow(), nil
}

func (s *stubGate) RecordConsumption(context.Context, uuid.UUID, domain.MeterAction) (int64, error) {
	return 1, nil
}

func (s *stubGate) Entitlements(context.Context, uuid.UUID) (*domain.Entitlements, error) {
	return s.entitlements, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleListPlans(t *testing.T) {
	h := NewPlanHandler(&stubGate{}, discardLogger())

	rec := httptest.NewRecorder()
	h.HandleListPlans(rec, httptest.NewRequest(http.MethodGet, "/api/plans", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var plans []struct {
		Tier              string            `json:"tier"`
		MonthlyPriceCents int64             `json:"monthly_price_cents"`
		Limits            map[string]*int64 `json:"limits"`
		Features          []string          `json:"features"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &plans); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(plans) != 4 {
		t.Fatalf("got %d plans, want 4", len(plans))
	}

	// Plans are ordered cheapest first.
	if plans[0].Tier != "free" || plans[3].Tier != "premium" {
		t.Errorf("plan order = %s..%s, want free..premium", plans[0].Tier, plans[3].Tier)
	}
	if plans[0].MonthlyPriceCents != 0 {
		t.Errorf("free price = %d, want 0", plans[0].MonthlyPriceCents)
	}

	// Finite limits carry a number, unlimited ones serialize as null.
	free := plans[0].Limits["invoices"]
	if free == nil || *free != 5 {
		t.Errorf("free invoice limit = %v, want 5", free)
	}
	if pro := plans[2].Limits["invoices"]; pro != nil {
		t.Errorf("professional invoice limit = %v, want null", *pro)
	}
}

func TestHandleEntitlements(t *testing.T) {
	gate := &stubGate{entitlements: &domain.Entitlements{
		Tier:     domain.PlanTierStarter,
		Status:   domain.SubscriptionStatusActive,
		Features: []domain.Feature{domain.FeatureBranding},
		Usage: []domain.UsageSummary{
			{Action: domain.MeterActionInvoices, Consumed: 12, Limit: 50, Remaining: 38},
		},
	}}
	h := NewPlanHandler(gate, discardLogger())

	user := &domain.User{ID: uuid.New(), CompanyID: uuid.New(), Role: domain.UserRoleMember}
	req := httptest.NewRequest(http.MethodGet, "/api/entitlements", nil)
	req = req.WithContext(auth.SetUser(req.Context(), user))
	rec := httptest.NewRecorder()
	h.HandleEntitlements(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got struct {
		Tier     string   `json:"tier"`
		Status   string   `json:"status"`
		Features []string `json:"features"`
		Usage    []struct {
			Action    string `json:"action"`
			Consumed  int64  `json:"consumed"`
			Limit     *int64 `json:"limit"`
			Remaining *int64 `json:"remaining"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Tier != "starter" || got.Status != "active" {
		t.Errorf("tier/status = %s/%s, want starter/active", got.Tier, got.Status)
	}
	if len(got.Features) != 1 || got.Features[0] != "branding" {
		t.Errorf("features = %v, want [branding]", got.Features)
	}
	if len(got.Usage) != 1 {
		t.Fatalf("usage entries = %d, want 1", len(got.Usage))
	}
	u := got.Usage[0]
	if u.Consumed != 12 || u.Limit == nil || *u.Limit != 50 || u.Remaining == nil || *u.Remaining != 38 {
		t.Errorf("usage = %+v, want consumed 12, limit 50, remaining 38", u)
	}
}

func TestHandleEntitlementsUnauthenticated(t *testing.T) {
	h := NewPlanHandler(&stubGate{}, discardLogger())

	rec := httptest.NewRecorder()
	h.HandleEntitlements(rec, httptest.NewRequest(http.MethodGet, "/api/entitlements", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
