package domain

import (
	"errors"
	"testing"
)

func newTestOrder() Order {
	return Order{
		OrderID:               "order-1",
		SellerOrderID:         "seller-1",
		DisplayableOrderID:    "display-1",
		ShippingSpeedCategory: ShippingStandard,
		FulfillmentPolicy:     PolicyFillOrKill,
		Status:                OrderStatusNew,
		Items: []OrderItem{
			{SellerSKU: "SKU-A", SellerOrderItemID: "item-1", Quantity: 3},
			{SellerSKU: "SKU-B", SellerOrderItemID: "item-2", Quantity: 2},
		},
	}
}

func TestOrder_Receive(t *testing.T) {
	t.Parallel()

	order := newTestOrder()
	if err := order.Receive(); err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if order.Status != OrderStatusReceived {
		t.Fatalf("expected status RECEIVED, got %s", order.Status)
	}
	if order.ReceivedAt.IsZero() {
		t.Fatal("expected receivedAt to be set")
	}

	if err := order.Receive(); !errors.Is(err, ErrOrderStateConflict) {
		t.Fatalf("expected state conflict on second receive, got %v", err)
	}
}

func TestOrder_ValidateTransition(t *testing.T) {
	t.Parallel()

	order := newTestOrder()
	if err := order.Validate(); !errors.Is(err, ErrOrderStateConflict) {
		t.Fatalf("expected state conflict validating NEW order, got %v", err)
	}

	_ = order.Receive()
	if err := order.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if order.Status != OrderStatusValidated {
		t.Fatalf("expected status VALIDATED, got %s", order.Status)
	}
}

func TestOrder_Invalidate(t *testing.T) {
	t.Parallel()

	order := newTestOrder()
	_ = order.Receive()
	if err := order.Invalidate("bad address"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if order.Status != OrderStatusInvalidated {
		t.Fatalf("expected status INVALIDATED, got %s", order.Status)
	}
	if !order.Status.Terminal() {
		t.Fatal("INVALIDATED must be terminal")
	}

	if err := order.Cancel("late cancel"); !errors.Is(err, ErrOrderStateConflict) {
		t.Fatalf("expected state conflict cancelling invalidated order, got %v", err)
	}
}

func TestOrder_CancelFromNonTerminal(t *testing.T) {
	t.Parallel()

	for _, status := range []OrderStatus{OrderStatusNew, OrderStatusReceived, OrderStatusValidated} {
		order := newTestOrder()
		order.Status = status
		if err := order.Cancel("customer request"); err != nil {
			t.Fatalf("cancel from %s failed: %v", status, err)
		}
		if order.Status != OrderStatusCancelled {
			t.Fatalf("expected status CANCELLED, got %s", order.Status)
		}
		if order.CancellationReason != "customer request" {
			t.Fatalf("expected cancellation reason to be stored, got %q", order.CancellationReason)
		}
	}
}

func TestOrder_CancelTwice(t *testing.T) {
	t.Parallel()

	order := newTestOrder()
	_ = order.Receive()
	if err := order.Cancel("first"); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}
	if err := order.Cancel("second"); !errors.Is(err, ErrOrderStateConflict) {
		t.Fatalf("expected state conflict on second cancel, got %v", err)
	}
	if order.CancellationReason != "first" {
		t.Fatalf("second cancel must not overwrite reason, got %q", order.CancellationReason)
	}
}

func TestOrder_Ship(t *testing.T) {
	t.Parallel()

	order := newTestOrder()
	if err := order.Ship(); !errors.Is(err, ErrOrderStateConflict) {
		t.Fatalf("expected state conflict shipping NEW order, got %v", err)
	}

	_ = order.Receive()
	if err := order.Ship(); err != nil {
		t.Fatalf("ship from RECEIVED failed: %v", err)
	}
	if order.Status != OrderStatusShipped {
		t.Fatalf("expected status SHIPPED, got %s", order.Status)
	}

	if err := order.Cancel("too late"); !errors.Is(err, ErrOrderStateConflict) {
		t.Fatalf("expected state conflict cancelling shipped order, got %v", err)
	}
}

func TestOrder_FulfillmentActionDerivation(t *testing.T) {
	t.Parallel()

	order := newTestOrder()

	// Частичный дефицит: доступна часть запрошенного количества.
	order.AddUnfulfillableItem(NewUnfulfillableItem("SKU-A", "item-1", 3, 1, ReasonInsufficientStock))
	if order.FulfillmentAction != ActionPartial {
		t.Fatalf("expected PARTIAL, got %s", order.FulfillmentAction)
	}
	if !order.IsPartiallyFulfillable() {
		t.Fatal("expected order to be partially fulfillable")
	}

	// Полный дефицит по обеим позициям.
	order.UnfulfillableItems = nil
	order.AddUnfulfillableItem(NewUnfulfillableItem("SKU-A", "item-1", 3, 0, ReasonSKUNotFound))
	order.AddUnfulfillableItem(NewUnfulfillableItem("SKU-B", "item-2", 2, 0, ReasonSKUNotFound))
	if order.FulfillmentAction != ActionUnfulfillable {
		t.Fatalf("expected UNFULFILLABLE, got %s", order.FulfillmentAction)
	}
	if order.TotalShortfall() != 5 {
		t.Fatalf("expected total shortfall 5, got %d", order.TotalShortfall())
	}
}

func TestNewUnfulfillableItem_Shortfall(t *testing.T) {
	t.Parallel()

	item := NewUnfulfillableItem("SKU-A", "item-1", 10, 4, ReasonInsufficientStock)
	if item.UnfulfillableQuantity != 6 {
		t.Fatalf("expected shortfall 6, got %d", item.UnfulfillableQuantity)
	}
}

func TestOrder_ValidateInvariants(t *testing.T) {
	t.Parallel()

	order := newTestOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no invariant violations, got %v", errs)
	}

	var empty Order
	errs := empty.ValidateInvariants()
	if len(errs) == 0 {
		t.Fatal("expected invariant violations for empty order")
	}
	found := map[error]bool{}
	for _, err := range errs {
		found[err] = true
	}
	if !found[ErrSellerOrderIDRequired] || !found[ErrItemsRequired] {
		t.Fatalf("expected seller id and items violations, got %v", errs)
	}

	bad := newTestOrder()
	bad.Items[0].Quantity = 0
	bad.Items[0].SellerSKU = ""
	errs = bad.ValidateInvariants()
	if len(errs) != 2 {
		t.Fatalf("expected 2 violations, got %v", errs)
	}

	// Неисполнимая позиция без соответствующей строки заказа.
	dangling := newTestOrder()
	dangling.UnfulfillableItems = []UnfulfillableItem{
		NewUnfulfillableItem("SKU-X", "item-unknown", 1, 0, ReasonSKUNotFound),
	}
	errs = dangling.ValidateInvariants()
	if len(errs) != 1 || !errors.Is(errs[0], ErrUnfulfillableUnknownItem) {
		t.Fatalf("expected unknown item violation, got %v", errs)
	}
}

func TestFulfillmentPolicy_Valid(t *testing.T) {
	t.Parallel()

	for _, policy := range []FulfillmentPolicy{PolicyFillOrKill, PolicyFillAll, PolicyFillAllAvailable} {
		if !policy.Valid() {
			t.Fatalf("expected %s to be valid", policy)
		}
	}
	if FulfillmentPolicy("FILL_SOMETIMES").Valid() {
		t.Fatal("unknown policy must be invalid")
	}
}
