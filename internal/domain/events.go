package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventSource — URI-источник всех событий сервиса в envelope.
const EventSource = "/fulfillment/order-management-service"

// Типы доменных событий заказа.
const (
	EventTypeOrderReceived          = "com.paklog.fulfillment.order.received"
	EventTypeOrderValidated         = "com.paklog.fulfillment.order.validated"
	EventTypeOrderInvalidated       = "com.paklog.fulfillment.order.invalidated"
	EventTypeOrderPartiallyAccepted = "com.paklog.fulfillment.order.partially_accepted"
	EventTypeOrderStockUnavailable  = "com.paklog.fulfillment.order.stock_unavailable"
	EventTypeOrderCancelled         = "com.paklog.fulfillment.order.cancelled"
	EventTypeOrderShipped           = "com.paklog.fulfillment.order.shipped"
)

// Event — envelope публикуемого события (стабильный формат для downstream-систем).
// Каждый тип события несёт собственную форму Data; иерархии типов нет,
// различение идёт по полю Type.
type Event struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	Subject         string    `json:"subject"`
	Time            time.Time `json:"time"`
	DataContentType string    `json:"datacontenttype"`
	Data            any       `json:"data"`
}

// newEvent заполняет общие поля envelope; subject — идентификатор заказа.
func newEvent(eventType, orderID string, data any) Event {
	return Event{
		ID:              uuid.NewString(),
		Type:            eventType,
		Source:          EventSource,
		Subject:         orderID,
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// OrderEventData — полезная нагрузка событий, несущих заказ целиком.
type OrderEventData struct {
	Order Order `json:"order"`
}

// ShortfallEventData — полезная нагрузка событий о нехватке стока.
type ShortfallEventData struct {
	Order                  Order               `json:"order"`
	UnavailableItems       []UnfulfillableItem `json:"unavailable_items"`
	TotalItemsRequested    int                 `json:"total_items_requested"`
	ItemsUnavailable       int                 `json:"items_unavailable"`
	TotalQuantityShortfall int                 `json:"total_quantity_shortfall"`
	Summary                string              `json:"summary"`
}

// CancellationEventData — полезная нагрузка события отмены.
type CancellationEventData struct {
	OrderID            string `json:"order_id"`
	SellerOrderID      string `json:"seller_fulfillment_order_id"`
	CancellationReason string `json:"cancellation_reason"`
}

// NewOrderReceivedEvent — заказ принят сервисом.
func NewOrderReceivedEvent(order Order) Event {
	return newEvent(EventTypeOrderReceived, order.OrderID, OrderEventData{Order: order})
}

// NewOrderValidatedEvent — заказ прошёл бизнес-валидацию.
func NewOrderValidatedEvent(order Order) Event {
	return newEvent(EventTypeOrderValidated, order.OrderID, OrderEventData{Order: order})
}

// NewOrderInvalidatedEvent — заказ отклонён валидацией.
func NewOrderInvalidatedEvent(order Order) Event {
	return newEvent(EventTypeOrderInvalidated, order.OrderID, OrderEventData{Order: order})
}

// NewOrderShippedEvent — заказ отгружен.
func NewOrderShippedEvent(order Order) Event {
	return newEvent(EventTypeOrderShipped, order.OrderID, OrderEventData{Order: order})
}

// NewOrderPartiallyAcceptedEvent — заказ принят частично (FILL_ALL_AVAILABLE).
func NewOrderPartiallyAcceptedEvent(order Order) Event {
	return newEvent(EventTypeOrderPartiallyAccepted, order.OrderID, newShortfallData(order, "accepted for partial fulfillment"))
}

// NewOrderStockUnavailableEvent — заказ принят при нехватке стока.
func NewOrderStockUnavailableEvent(order Order) Event {
	return newEvent(EventTypeOrderStockUnavailable, order.OrderID, newShortfallData(order, "accepted with stock shortage"))
}

// NewOrderCancelledEvent — заказ отменён.
func NewOrderCancelledEvent(order Order) Event {
	return newEvent(EventTypeOrderCancelled, order.OrderID, CancellationEventData{
		OrderID:            order.OrderID,
		SellerOrderID:      order.SellerOrderID,
		CancellationReason: order.CancellationReason,
	})
}

func newShortfallData(order Order, verdict string) ShortfallEventData {
	return ShortfallEventData{
		Order:                  order,
		UnavailableItems:       order.UnfulfillableItems,
		TotalItemsRequested:    len(order.Items),
		ItemsUnavailable:       len(order.UnfulfillableItems),
		TotalQuantityShortfall: order.TotalShortfall(),
		Summary: fmt.Sprintf("Order %s %s: %d of %d items unavailable, total shortfall: %d units",
			order.OrderID, verdict, len(order.UnfulfillableItems), len(order.Items), order.TotalShortfall()),
	}
}
