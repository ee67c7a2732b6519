package domain

import "time"

// OrderStatus описывает жизненный цикл fulfillment-заказа.
type OrderStatus string

const (
	// OrderStatusNew — заказ создан, но ещё не принят сервисом.
	OrderStatusNew OrderStatus = "NEW"
	// OrderStatusReceived — заказ принят, receivedAt зафиксирован.
	OrderStatusReceived OrderStatus = "RECEIVED"
	// OrderStatusValidated — заказ прошёл бизнес-валидацию.
	OrderStatusValidated OrderStatus = "VALIDATED"
	// OrderStatusInvalidated — заказ отклонён валидацией (терминальный статус).
	OrderStatusInvalidated OrderStatus = "INVALIDATED"
	// OrderStatusCancelled — заказ отменён до отгрузки (терминальный статус).
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusShipped — заказ отгружен (терминальный статус).
	OrderStatusShipped OrderStatus = "SHIPPED"
)

// Terminal сообщает, является ли статус конечным: из него нет переходов.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusShipped, OrderStatusInvalidated:
		return true
	default:
		return false
	}
}

// FulfillmentPolicy управляет поведением при нехватке стока.
type FulfillmentPolicy string

const (
	// PolicyFillOrKill — отклонить весь заказ, если хотя бы одна позиция недоступна.
	PolicyFillOrKill FulfillmentPolicy = "FILL_OR_KILL"
	// PolicyFillAll — принять заказ целиком несмотря на нехватку; дефицит помечается событием.
	PolicyFillAll FulfillmentPolicy = "FILL_ALL"
	// PolicyFillAllAvailable — принять заказ и исполнить только доступную часть.
	PolicyFillAllAvailable FulfillmentPolicy = "FILL_ALL_AVAILABLE"
)

// Valid проверяет, что политика относится к поддерживаемым значениям.
func (p FulfillmentPolicy) Valid() bool {
	switch p {
	case PolicyFillOrKill, PolicyFillAll, PolicyFillAllAvailable:
		return true
	default:
		return false
	}
}

// FulfillmentAction — производный результат применения политики к доступности стока.
type FulfillmentAction string

const (
	// ActionComplete — все позиции могут быть исполнены полностью.
	ActionComplete FulfillmentAction = "COMPLETE"
	// ActionPartial — часть запрошенного количества исполнима, часть — нет.
	ActionPartial FulfillmentAction = "PARTIAL"
	// ActionUnfulfillable — ни одна единица товара не может быть исполнена.
	ActionUnfulfillable FulfillmentAction = "UNFULFILLABLE"
)

// ShippingSpeedCategory задаёт SLA доставки заказа.
type ShippingSpeedCategory string

const (
	ShippingStandard  ShippingSpeedCategory = "STANDARD"
	ShippingExpedited ShippingSpeedCategory = "EXPEDITED"
	ShippingPriority  ShippingSpeedCategory = "PRIORITY"
	ShippingSameDay   ShippingSpeedCategory = "SAME_DAY"
	ShippingNextDay   ShippingSpeedCategory = "NEXT_DAY"
	ShippingScheduled ShippingSpeedCategory = "SCHEDULED"
)

// Valid проверяет категорию доставки.
func (c ShippingSpeedCategory) Valid() bool {
	switch c {
	case ShippingStandard, ShippingExpedited, ShippingPriority,
		ShippingSameDay, ShippingNextDay, ShippingScheduled:
		return true
	default:
		return false
	}
}

// UnfulfillableReason — причина, по которой позиция не может быть исполнена.
type UnfulfillableReason string

const (
	// ReasonInsufficientStock — доступного стока меньше запрошенного.
	ReasonInsufficientStock UnfulfillableReason = "insufficient-stock"
	// ReasonSKUNotFound — SKU отсутствует в инвентарной системе.
	ReasonSKUNotFound UnfulfillableReason = "sku-not-found"
	// ReasonServiceError — инвентарный сервис недоступен или вернул ошибку.
	ReasonServiceError UnfulfillableReason = "service-error"
	// ReasonDiscontinued — товар снят с продажи.
	ReasonDiscontinued UnfulfillableReason = "discontinued"
	// ReasonBackordered — товар в бэк-ордере и сейчас недоступен.
	ReasonBackordered UnfulfillableReason = "backordered"
)

// Address — адрес доставки заказа.
type Address struct {
	Name          string `json:"name"`
	AddressLine1  string `json:"address_line1"`
	AddressLine2  string `json:"address_line2,omitempty"`
	City          string `json:"city"`
	StateOrRegion string `json:"state_or_region"`
	PostalCode    string `json:"postal_code"`
	CountryCode   string `json:"country_code"`
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// SellerSKU — внешний идентификатор товара.
	SellerSKU string `json:"seller_sku"`
	// SellerOrderItemID — идентификатор позиции со стороны продавца.
	SellerOrderItemID string `json:"seller_fulfillment_order_item_id"`
	// Quantity — запрошенное количество единиц товара.
	Quantity int `json:"quantity"`
	// GiftMessage — опциональное подарочное сообщение.
	GiftMessage string `json:"gift_message,omitempty"`
	// DisplayableComment — комментарий для отображения покупателю.
	DisplayableComment string `json:"displayable_comment,omitempty"`
}

// UnfulfillableItem фиксирует позицию, которую нельзя исполнить, и размер дефицита.
type UnfulfillableItem struct {
	SellerSKU             string              `json:"seller_sku"`
	SellerOrderItemID     string              `json:"seller_fulfillment_order_item_id"`
	RequestedQuantity     int                 `json:"requested_quantity"`
	AvailableQuantity     int                 `json:"available_quantity"`
	UnfulfillableQuantity int                 `json:"unfulfillable_quantity"`
	Reason                UnfulfillableReason `json:"reason"`
}

// NewUnfulfillableItem считает дефицит как requested-available.
func NewUnfulfillableItem(sku, itemID string, requested, available int, reason UnfulfillableReason) UnfulfillableItem {
	return UnfulfillableItem{
		SellerSKU:             sku,
		SellerOrderItemID:     itemID,
		RequestedQuantity:     requested,
		AvailableQuantity:     available,
		UnfulfillableQuantity: requested - available,
		Reason:                reason,
	}
}

// Order агрегирует состояние fulfillment-заказа и его позиции.
type Order struct {
	OrderID                 string
	SellerOrderID           string
	IdempotencyKey          string
	DisplayableOrderID      string
	DisplayableOrderDate    time.Time
	DisplayableOrderComment string
	ShippingSpeedCategory   ShippingSpeedCategory
	DestinationAddress      Address
	FulfillmentPolicy       FulfillmentPolicy
	FulfillmentAction       FulfillmentAction
	Status                  OrderStatus
	Items                   []OrderItem
	UnfulfillableItems      []UnfulfillableItem
	CancellationReason      string
	ReceivedAt              time.Time
	Version                 int64
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Receive переводит заказ NEW → RECEIVED и фиксирует время приёма.
func (o *Order) Receive() error {
	if o.Status != OrderStatusNew {
		return stateConflict(o.Status, OrderStatusReceived)
	}
	o.Status = OrderStatusReceived
	o.ReceivedAt = time.Now().UTC()
	return nil
}

// Validate переводит заказ RECEIVED → VALIDATED.
func (o *Order) Validate() error {
	if o.Status != OrderStatusReceived {
		return stateConflict(o.Status, OrderStatusValidated)
	}
	o.Status = OrderStatusValidated
	return nil
}

// Invalidate переводит заказ RECEIVED → INVALIDATED с указанием причины.
func (o *Order) Invalidate(reason string) error {
	if o.Status != OrderStatusReceived {
		return stateConflict(o.Status, OrderStatusInvalidated)
	}
	o.Status = OrderStatusInvalidated
	o.CancellationReason = reason
	return nil
}

// Cancel отменяет заказ из любого не-терминального статуса.
// Отмена отгруженного или уже отменённого заказа — конфликт состояния.
func (o *Order) Cancel(reason string) error {
	if o.Status.Terminal() {
		return stateConflict(o.Status, OrderStatusCancelled)
	}
	o.Status = OrderStatusCancelled
	o.CancellationReason = reason
	return nil
}

// Ship переводит заказ RECEIVED/VALIDATED → SHIPPED.
func (o *Order) Ship() error {
	if o.Status != OrderStatusReceived && o.Status != OrderStatusValidated {
		return stateConflict(o.Status, OrderStatusShipped)
	}
	o.Status = OrderStatusShipped
	return nil
}

// AddUnfulfillableItem добавляет позицию с дефицитом и пересчитывает fulfillment action.
func (o *Order) AddUnfulfillableItem(item UnfulfillableItem) {
	o.UnfulfillableItems = append(o.UnfulfillableItems, item)
	o.FulfillmentAction = o.deriveFulfillmentAction()
}

// HasUnfulfillableItems сообщает, есть ли в заказе неисполнимые позиции.
func (o *Order) HasUnfulfillableItems() bool {
	return len(o.UnfulfillableItems) > 0
}

// IsPartiallyFulfillable — дефицит есть, но хотя бы одна единица товара доступна.
func (o *Order) IsPartiallyFulfillable() bool {
	return o.FulfillmentAction == ActionPartial
}

// TotalQuantity возвращает суммарное запрошенное количество по всем позициям.
func (o *Order) TotalQuantity() int {
	var total int
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// TotalShortfall возвращает суммарный дефицит по неисполнимым позициям.
func (o *Order) TotalShortfall() int {
	var total int
	for _, item := range o.UnfulfillableItems {
		total += item.UnfulfillableQuantity
	}
	return total
}

// deriveFulfillmentAction: COMPLETE без дефицита, UNFULFILLABLE при полном дефиците,
// иначе PARTIAL.
func (o *Order) deriveFulfillmentAction() FulfillmentAction {
	shortfall := o.TotalShortfall()
	if shortfall == 0 {
		return ActionComplete
	}
	if shortfall >= o.TotalQuantity() {
		return ActionUnfulfillable
	}
	return ActionPartial
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.SellerOrderID == "" {
		errs = append(errs, ErrSellerOrderIDRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	var total int
	for _, item := range o.Items {
		if item.SellerSKU == "" {
			errs = append(errs, ErrItemSKURequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		total += item.Quantity
	}
	if len(o.Items) > 0 && total <= 0 {
		errs = append(errs, ErrTotalQuantityInvalid)
	}

	// Неисполнимые позиции обязаны ссылаться на реальные строки заказа.
	known := make(map[string]struct{}, len(o.Items))
	for _, item := range o.Items {
		known[item.SellerOrderItemID] = struct{}{}
	}
	for _, item := range o.UnfulfillableItems {
		if _, ok := known[item.SellerOrderItemID]; !ok {
			errs = append(errs, ErrUnfulfillableUnknownItem)
		}
	}

	return errs
}
