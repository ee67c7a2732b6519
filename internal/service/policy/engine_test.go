package policy

import (
	"testing"

	"github.com/paklog/order-management/internal/domain"
)

func policyOrder(policy domain.FulfillmentPolicy) domain.Order {
	return domain.Order{
		OrderID:           "order-1",
		FulfillmentPolicy: policy,
		Items: []domain.OrderItem{
			{SellerSKU: "SKU-A", SellerOrderItemID: "item-1", Quantity: 3},
			{SellerSKU: "SKU-B", SellerOrderItemID: "item-2", Quantity: 2},
		},
	}
}

func TestEngine_Decide_AllAvailable(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)
	snapshot := Snapshot{"SKU-A": 3, "SKU-B": 2}

	for _, policy := range []domain.FulfillmentPolicy{
		domain.PolicyFillOrKill, domain.PolicyFillAll, domain.PolicyFillAllAvailable,
	} {
		decision := engine.Decide(policyOrder(policy), snapshot)
		if !decision.Accept {
			t.Fatalf("%s: expected accept with full availability", policy)
		}
		if decision.Action != domain.ActionComplete {
			t.Fatalf("%s: expected COMPLETE, got %s", policy, decision.Action)
		}
		if len(decision.Unfulfillable) != 0 {
			t.Fatalf("%s: expected no unfulfillable items", policy)
		}
	}
}

func TestEngine_Decide_FillOrKillRejectsOnShortfall(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)
	decision := engine.Decide(policyOrder(domain.PolicyFillOrKill), Snapshot{"SKU-A": 2, "SKU-B": 2})
	if decision.Accept {
		t.Fatal("FILL_OR_KILL must reject any shortfall")
	}
}

func TestEngine_Decide_FillAllAcceptsDespiteShortfall(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)
	decision := engine.Decide(policyOrder(domain.PolicyFillAll), Snapshot{"SKU-A": 1, "SKU-B": 2})
	if !decision.Accept {
		t.Fatal("FILL_ALL must accept despite shortfall")
	}
	if decision.Action != domain.ActionPartial {
		t.Fatalf("expected PARTIAL, got %s", decision.Action)
	}
	if len(decision.Unfulfillable) != 1 {
		t.Fatalf("expected 1 unfulfillable item, got %d", len(decision.Unfulfillable))
	}
	item := decision.Unfulfillable[0]
	if item.SellerSKU != "SKU-A" || item.UnfulfillableQuantity != 2 {
		t.Fatalf("unexpected shortfall item: %+v", item)
	}
	if item.Reason != domain.ReasonInsufficientStock {
		t.Fatalf("expected insufficient-stock, got %s", item.Reason)
	}
}

func TestEngine_Decide_MissingSKUTreatedAsNotFound(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)
	// SKU-B отсутствует в снимке: доступность ноль.
	decision := engine.Decide(policyOrder(domain.PolicyFillAllAvailable), Snapshot{"SKU-A": 3})
	if !decision.Accept {
		t.Fatal("FILL_ALL_AVAILABLE must accept")
	}
	if decision.Action != domain.ActionPartial {
		t.Fatalf("expected PARTIAL, got %s", decision.Action)
	}
	if len(decision.Unfulfillable) != 1 {
		t.Fatalf("expected 1 unfulfillable item, got %d", len(decision.Unfulfillable))
	}
	if decision.Unfulfillable[0].Reason != domain.ReasonSKUNotFound {
		t.Fatalf("expected sku-not-found, got %s", decision.Unfulfillable[0].Reason)
	}
}

func TestEngine_Decide_TotalShortfallIsUnfulfillable(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)
	decision := engine.Decide(policyOrder(domain.PolicyFillAll), Snapshot{})
	if !decision.Accept {
		t.Fatal("FILL_ALL must accept even with nothing available")
	}
	if decision.Action != domain.ActionUnfulfillable {
		t.Fatalf("expected UNFULFILLABLE, got %s", decision.Action)
	}
}

func TestEngine_Decide_UnknownPolicyRejects(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)
	decision := engine.Decide(policyOrder("FILL_SOMETIMES"), Snapshot{"SKU-A": 1})
	if decision.Accept {
		t.Fatal("unknown policy with shortfall must reject")
	}
}

func TestEngine_DecideDegraded(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)

	decision := engine.DecideDegraded(policyOrder(domain.PolicyFillOrKill))
	if decision.Accept {
		t.Fatal("FILL_OR_KILL must reject on degraded inventory")
	}
	if decision.Action != domain.ActionUnfulfillable {
		t.Fatalf("expected UNFULFILLABLE, got %s", decision.Action)
	}

	decision = engine.DecideDegraded(policyOrder(domain.PolicyFillAll))
	if !decision.Accept {
		t.Fatal("FILL_ALL must accept on degraded inventory")
	}
	if len(decision.Unfulfillable) != 2 {
		t.Fatalf("expected every line marked unfulfillable, got %d", len(decision.Unfulfillable))
	}
	for _, item := range decision.Unfulfillable {
		if item.Reason != domain.ReasonServiceError {
			t.Fatalf("expected service-error, got %s", item.Reason)
		}
		if item.AvailableQuantity != 0 {
			t.Fatalf("degraded availability must be zero, got %d", item.AvailableQuantity)
		}
	}
}

func TestSnapshotFromAvailability(t *testing.T) {
	t.Parallel()

	order := policyOrder(domain.PolicyFillAll)
	result := domain.AvailabilityResult{
		AllAvailable: false,
		Shortfalls: []domain.AvailabilityShortfall{
			{SKU: "SKU-A", Requested: 3, Available: 1},
		},
	}

	snapshot := SnapshotFromAvailability(order, result)
	if snapshot["SKU-A"] != 1 {
		t.Fatalf("expected shortfall to override availability, got %d", snapshot["SKU-A"])
	}
	if snapshot["SKU-B"] != 2 {
		t.Fatalf("expected full availability for SKU-B, got %d", snapshot["SKU-B"])
	}
}
