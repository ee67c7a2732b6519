package policy

import (
	log "github.com/sirupsen/logrus"

	"github.com/paklog/order-management/internal/domain"
)

// Snapshot отображает SKU в доступное количество; отсутствующий SKU означает 0.
type Snapshot map[string]int

// SnapshotFromAvailability строит снимок доступности из ответа инвентарного
// сервиса: по умолчанию каждая позиция полностью доступна, дефициты
// переопределяют доступное количество.
func SnapshotFromAvailability(order domain.Order, result domain.AvailabilityResult) Snapshot {
	snapshot := make(Snapshot, len(order.Items))
	for _, item := range order.Items {
		snapshot[item.SellerSKU] = item.Quantity
	}
	for _, shortfall := range result.Shortfalls {
		snapshot[shortfall.SKU] = shortfall.Available
	}
	return snapshot
}

// Decision — решение движка политики исполнения.
type Decision struct {
	Accept        bool
	Action        domain.FulfillmentAction
	Unfulfillable []domain.UnfulfillableItem
}

// Engine применяет политику исполнения заказа к снимку доступности стока.
type Engine struct {
	logger *log.Entry
}

// NewEngine создаёт движок политики.
func NewEngine(logger *log.Entry) *Engine {
	if logger == nil {
		logger = log.WithField("component", "fulfillment-policy")
	}
	return &Engine{logger: logger}
}

// Decide сверяет запрошенные количества со снимком доступности и применяет
// политику заказа:
//
//	FILL_OR_KILL       — принять только при полной доступности, иначе отклонить;
//	FILL_ALL           — принять всегда, дефицит помечается;
//	FILL_ALL_AVAILABLE — принять всегда, исполняется доступная часть.
func (e *Engine) Decide(order domain.Order, snapshot Snapshot) Decision {
	unfulfillable := collectShortfalls(order, snapshot)
	decision := Decision{
		Accept:        true,
		Action:        deriveAction(order, unfulfillable),
		Unfulfillable: unfulfillable,
	}

	if len(unfulfillable) == 0 {
		return decision
	}

	switch order.FulfillmentPolicy {
	case domain.PolicyFillOrKill:
		decision.Accept = false
		e.logger.WithFields(log.Fields{
			"order_id":          order.OrderID,
			"unavailable_items": len(unfulfillable),
		}).Info("FILL_OR_KILL: rejecting order due to unavailable items")
	case domain.PolicyFillAll:
		e.logger.WithFields(log.Fields{
			"order_id":          order.OrderID,
			"unavailable_items": len(unfulfillable),
		}).Info("FILL_ALL: accepting order despite unavailable items")
	case domain.PolicyFillAllAvailable:
		e.logger.WithFields(log.Fields{
			"order_id":          order.OrderID,
			"unavailable_items": len(unfulfillable),
		}).Info("FILL_ALL_AVAILABLE: accepting order for partial fulfillment")
	default:
		// Неизвестная политика трактуется максимально строго.
		decision.Accept = false
		e.logger.WithFields(log.Fields{
			"order_id": order.OrderID,
			"policy":   order.FulfillmentPolicy,
		}).Error("unknown fulfillment policy, rejecting order")
	}

	return decision
}

// DecideDegraded применяется, когда проверка инвентаря сама завершилась ошибкой:
// каждая позиция считается неисполнимой с причиной service-error — трактуем
// в строгую сторону, но никогда в сторону ложной доступности.
func (e *Engine) DecideDegraded(order domain.Order) Decision {
	unfulfillable := make([]domain.UnfulfillableItem, 0, len(order.Items))
	for _, item := range order.Items {
		unfulfillable = append(unfulfillable, domain.NewUnfulfillableItem(
			item.SellerSKU, item.SellerOrderItemID, item.Quantity, 0, domain.ReasonServiceError))
	}

	decision := Decision{
		Accept:        order.FulfillmentPolicy != domain.PolicyFillOrKill && order.FulfillmentPolicy.Valid(),
		Action:        domain.ActionUnfulfillable,
		Unfulfillable: unfulfillable,
	}
	e.logger.WithFields(log.Fields{
		"order_id": order.OrderID,
		"policy":   order.FulfillmentPolicy,
		"accept":   decision.Accept,
	}).Warn("inventory check degraded, treating all items as unavailable")
	return decision
}

// collectShortfalls строит неисполнимые позиции: shortfall = max(0, requested-available),
// причина sku-not-found при нулевой доступности, иначе insufficient-stock.
func collectShortfalls(order domain.Order, snapshot Snapshot) []domain.UnfulfillableItem {
	var unfulfillable []domain.UnfulfillableItem
	for _, item := range order.Items {
		available := snapshot[item.SellerSKU]
		if available >= item.Quantity {
			continue
		}
		if available < 0 {
			available = 0
		}
		reason := domain.ReasonInsufficientStock
		if available == 0 {
			reason = domain.ReasonSKUNotFound
		}
		unfulfillable = append(unfulfillable, domain.NewUnfulfillableItem(
			item.SellerSKU, item.SellerOrderItemID, item.Quantity, available, reason))
	}
	return unfulfillable
}

func deriveAction(order domain.Order, unfulfillable []domain.UnfulfillableItem) domain.FulfillmentAction {
	var shortfall int
	for _, item := range unfulfillable {
		shortfall += item.UnfulfillableQuantity
	}
	switch {
	case shortfall == 0:
		return domain.ActionComplete
	case shortfall >= order.TotalQuantity():
		return domain.ActionUnfulfillable
	default:
		return domain.ActionPartial
	}
}
