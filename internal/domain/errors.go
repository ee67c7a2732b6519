package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего seller order id.
	ErrSellerOrderIDRequired = errors.New("seller_fulfillment_order_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отсутствующего SKU в позиции.
	ErrItemSKURequired = errors.New("item seller_sku is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка нулевого суммарного количества по заказу.
	ErrTotalQuantityInvalid = errors.New("total order quantity must be greater than zero")
	// Ошибка, если неисполнимая позиция не ссылается на строку заказа.
	ErrUnfulfillableUnknownItem = errors.New("unfulfillable item does not reference an order line")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists — заказ с таким sellerOrderId уже существует (жёсткий конфликт).
	ErrOrderAlreadyExists = errors.New("order with this seller order id already exists")
	// ErrDuplicateOrder — кандидат распознан как fuzzy-дубликат существующего заказа.
	ErrDuplicateOrder = errors.New("duplicate order detected")
	// ErrOrderStateConflict — недопустимый переход состояния заказа.
	ErrOrderStateConflict = errors.New("order state conflict")
	// ErrOrderRejected — политика исполнения или валидация отклонили заказ.
	ErrOrderRejected = errors.New("order rejected")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")

	// ErrInventoryUnavailable — инвентарный сервис недоступен; трактуем сток как нулевой.
	ErrInventoryUnavailable = errors.New("inventory service unavailable")
	// ErrCatalogUnavailable — каталог товаров недоступен.
	ErrCatalogUnavailable = errors.New("product catalog unavailable")
	// ErrOutboxRecordNotFound — запись outbox не найдена при смене статуса публикации.
	ErrOutboxRecordNotFound = errors.New("outbox record not found")
)

// stateConflict оборачивает ErrOrderStateConflict с деталями перехода.
func stateConflict(from, to OrderStatus) error {
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrOrderStateConflict, from, to)
}

// IsConflict проверяет, относится ли ошибка к конфликтам создания/состояния.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOrderAlreadyExists) || errors.Is(err, ErrOrderStateConflict)
}

// IsStateConflict проверяет, является ли ошибка конфликтом перехода состояния.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrOrderStateConflict)
}

// IsRejected проверяет, отклонён ли заказ валидацией или политикой исполнения.
func IsRejected(err error) bool {
	return errors.Is(err, ErrOrderRejected) || errors.Is(err, ErrDuplicateOrder)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
