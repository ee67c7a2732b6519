package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paklog/order-management/internal/domain"
	"github.com/paklog/order-management/internal/storage/memory"
)

func TestHandler_AllHealthy(t *testing.T) {
	t.Parallel()

	h := NewHandler("test")
	h.RegisterChecker("storage", NewSimpleChecker("storage", func() error { return nil }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var response Response
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Status != StatusHealthy {
		t.Fatalf("expected healthy, got %s", response.Status)
	}
	if response.Version != "test" {
		t.Fatalf("expected version test, got %s", response.Version)
	}
}

func TestHandler_UnhealthyCheckFailsOverall(t *testing.T) {
	t.Parallel()

	h := NewHandler("test")
	h.RegisterChecker("storage", NewSimpleChecker("storage", func() error { return nil }))
	h.RegisterChecker("broker", NewSimpleChecker("broker", func() error { return errors.New("down") }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var response Response
	_ = json.NewDecoder(rec.Body).Decode(&response)
	if response.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", response.Status)
	}
	if response.Checks["broker"].Message != "down" {
		t.Fatalf("expected failure message, got %+v", response.Checks["broker"])
	}
}

func TestHandler_ReadinessIgnoresDegraded(t *testing.T) {
	t.Parallel()

	h := NewHandler("test")
	h.RegisterChecker("outbox", checkerFunc(func() Check {
		return Check{Name: "outbox", Status: StatusDegraded}
	}))

	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	// Degraded не блокирует readiness, только unhealthy.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for degraded, got %d", rec.Code)
	}

	h.RegisterChecker("storage", NewSimpleChecker("storage", func() error { return errors.New("down") }))
	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for unhealthy, got %d", rec.Code)
	}
}

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

type checkerFunc func() Check

func (f checkerFunc) Check() Check { return f() }

func TestOutboxBacklogChecker(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	orders := memory.NewOrderRepository(store)
	outbox := memory.NewOutboxRepository(store)

	checker := NewOutboxBacklogChecker(outbox, time.Minute)
	if check := checker.Check(); check.Status != StatusHealthy {
		t.Fatalf("expected healthy on empty outbox, got %+v", check)
	}

	stale := domain.OutboxRecord{
		ID:        "rec-1",
		EventType: domain.EventTypeOrderReceived,
		Subject:   "order-1",
		Payload:   []byte(`{}`),
		CreatedAt: time.Now().UTC().Add(-5 * time.Minute),
	}
	order := domain.Order{
		OrderID:       "order-1",
		SellerOrderID: "seller-1",
		Status:        domain.OrderStatusReceived,
		Items:         []domain.OrderItem{{SellerSKU: "SKU-A", SellerOrderItemID: "item-1", Quantity: 1}},
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := orders.Create(context.Background(), order, []domain.OutboxRecord{stale}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if check := checker.Check(); check.Status != StatusDegraded {
		t.Fatalf("expected degraded for stale backlog, got %+v", check)
	}

	if err := outbox.MarkPublished(context.Background(), "rec-1"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if check := checker.Check(); check.Status != StatusHealthy {
		t.Fatalf("expected healthy after drain, got %+v", check)
	}
}
