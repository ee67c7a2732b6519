package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/paklog/order-management/internal/domain"
	"github.com/paklog/order-management/internal/logctx"
	"github.com/paklog/order-management/internal/metrics"
	"github.com/paklog/order-management/internal/service/duplicate"
	"github.com/paklog/order-management/internal/service/policy"
	"github.com/paklog/order-management/internal/service/validation"
)

// maxSaveRetries ограничивает повторные попытки при конфликте версий.
const maxSaveRetries = 3

// Service — workflow приёма fulfillment-заказов: детектор дубликатов →
// бизнес-валидация → проверка инвентаря → политика исполнения → переход
// receive() → одна атомарная запись {заказ, outbox-события}.
type Service struct {
	orders    domain.OrderRepository
	detector  *duplicate.Detector
	validator *validation.Validator
	policy    *policy.Engine
	inventory domain.InventoryService
	cfg       validation.Config
	logger    *log.Entry
	metrics   *metrics.OrderMetrics
}

// NewService конструирует workflow с зависимостями.
func NewService(
	orders domain.OrderRepository,
	detector *duplicate.Detector,
	validator *validation.Validator,
	engine *policy.Engine,
	inventory domain.InventoryService,
	cfg validation.Config,
	logger *log.Entry,
) *Service {
	svc := NewServiceWithoutMetrics(orders, detector, validator, engine, inventory, cfg, logger)
	svc.metrics = metrics.NewOrderMetrics()
	return svc
}

// NewServiceWithoutMetrics создаёт workflow без метрик (для тестов).
func NewServiceWithoutMetrics(
	orders domain.OrderRepository,
	detector *duplicate.Detector,
	validator *validation.Validator,
	engine *policy.Engine,
	inventory domain.InventoryService,
	cfg validation.Config,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "order-service")
	}
	return &Service{
		orders:    orders,
		detector:  detector,
		validator: validator,
		policy:    engine,
		inventory: inventory,
		cfg:       cfg,
		logger:    logger,
	}
}

// CreateOrder принимает заказ. Повтор с тем же idempotency-key возвращает
// исходный заказ без каких-либо побочных эффектов; конфликт sellerOrderId и
// отклонение политикой/валидацией ничего не персистят.
func (s *Service) CreateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordAcceptDuration(time.Since(start))
		}
	}()

	if order.OrderID == "" {
		order.OrderID = uuid.NewString()
	}
	if logctx.CorrelationID(ctx) == "" {
		ctx = logctx.WithCorrelationID(ctx, order.OrderID)
	}
	now := time.Now().UTC()
	order.Status = domain.OrderStatusNew
	order.FulfillmentAction = ""
	order.UnfulfillableItems = nil
	order.CreatedAt = now
	order.UpdatedAt = now

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		s.recordRejected("invariants")
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrOrderRejected, errs)
	}

	existing, err := s.checkDuplicates(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	if result := s.validator.Validate(ctx, order); !result.Valid {
		s.recordRejected("validation")
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderRejected, result.ErrorMessage())
	}

	decision := s.decideFulfillment(ctx, order)
	if !decision.Accept {
		s.recordRejected("policy")
		return domain.Order{}, fmt.Errorf("%w: fulfillment policy %s rejected order with %d unavailable items",
			domain.ErrOrderRejected, order.FulfillmentPolicy, len(decision.Unfulfillable))
	}

	order.FulfillmentAction = domain.ActionComplete
	for _, item := range decision.Unfulfillable {
		order.AddUnfulfillableItem(item)
	}

	if err := order.Receive(); err != nil {
		return domain.Order{}, err
	}

	records, err := stageRecords(s.acceptanceEvents(order))
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.orders.Create(ctx, order, records); err != nil {
		// Проигравший гонку за уникальность ключа наблюдает конфликт,
		// дубликат записи не создаётся.
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordAccepted(string(order.FulfillmentAction))
		s.metrics.RecordOutboxStaged(len(records))
	}
	logctx.Decorate(ctx, s.logger).WithFields(log.Fields{
		"order_id":           order.OrderID,
		"seller_order_id":    order.SellerOrderID,
		"fulfillment_action": order.FulfillmentAction,
		"staged_events":      len(records),
	}).Info("fulfillment order accepted")

	return order, nil
}

// checkDuplicates возвращает существующий заказ при идемпотентном повторе,
// ошибку при жёстком конфликте и nil/nil, если кандидат не дубликат.
func (s *Service) checkDuplicates(ctx context.Context, order domain.Order) (*domain.Order, error) {
	result, err := s.detector.Check(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if !result.Duplicate {
		return nil, nil
	}

	if s.metrics != nil {
		s.metrics.RecordDuplicate(string(result.Reason))
	}

	switch result.Reason {
	case duplicate.ReasonIdempotencyKey:
		if s.metrics != nil {
			s.metrics.RecordReplayed()
		}
		logctx.Decorate(ctx, s.logger).WithFields(log.Fields{
			"order_id":        result.Existing.OrderID,
			"seller_order_id": order.SellerOrderID,
		}).Info("idempotent replay, returning existing order")
		return result.Existing, nil
	case duplicate.ReasonSellerOrderID:
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderAlreadyExists, result.Message)
	case duplicate.ReasonFuzzyMatch:
		if s.cfg.RejectFuzzyDuplicates {
			s.recordRejected("fuzzy-duplicate")
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateOrder, result.Message)
		}
		// Advisory-режим: предупреждаем и продолжаем приём.
		logctx.Decorate(ctx, s.logger).WithFields(log.Fields{
			"order_id":          order.OrderID,
			"existing_order_id": result.Existing.OrderID,
		}).Warn("fuzzy duplicate detected, accepting order anyway")
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateOrder, result.Message)
	}
}

// decideFulfillment запрашивает инвентарь и применяет политику. Сбой проверки
// инвентаря трактуется в строгую сторону: все позиции service-error.
func (s *Service) decideFulfillment(ctx context.Context, order domain.Order) policy.Decision {
	quantities := make(map[string]int, len(order.Items))
	for _, item := range order.Items {
		quantities[item.SellerSKU] = item.Quantity
	}

	availability, err := s.inventory.CheckAvailability(ctx, quantities)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordInventoryDegraded()
		}
		logctx.Decorate(ctx, s.logger).WithError(err).WithField("order_id", order.OrderID).
			Warn("inventory check failed, applying degraded decision")
		return s.policy.DecideDegraded(order)
	}

	return s.policy.Decide(order, policy.SnapshotFromAvailability(order, availability))
}

// acceptanceEvents собирает события, staged в одной атомарной единице с заказом.
func (s *Service) acceptanceEvents(order domain.Order) []domain.Event {
	events := []domain.Event{
		domain.NewOrderReceivedEvent(order),
		domain.NewOrderValidatedEvent(order),
	}
	if order.FulfillmentPolicy == domain.PolicyFillAllAvailable && order.IsPartiallyFulfillable() {
		events = append(events, domain.NewOrderPartiallyAcceptedEvent(order))
	}
	if order.HasUnfulfillableItems() {
		events = append(events, domain.NewOrderStockUnavailableEvent(order))
	}
	return events
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.orders.Get(ctx, orderID)
}

// CancelOrder отменяет заказ и всегда ставит событие отмены в outbox.
func (s *Service) CancelOrder(ctx context.Context, orderID, reason string) (domain.Order, error) {
	order, err := s.mutateOrder(ctx, orderID, func(o *domain.Order) (domain.Event, error) {
		if err := o.Cancel(reason); err != nil {
			return domain.Event{}, err
		}
		return domain.NewOrderCancelledEvent(*o), nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordCancelled()
	}
	logctx.Decorate(ctx, s.logger).WithFields(log.Fields{
		"order_id": order.OrderID,
		"reason":   reason,
	}).Info("fulfillment order cancelled")
	return order, nil
}

// MarkOrderValidated переводит заказ RECEIVED → VALIDATED.
func (s *Service) MarkOrderValidated(ctx context.Context, orderID string) (domain.Order, error) {
	return s.mutateOrder(ctx, orderID, func(o *domain.Order) (domain.Event, error) {
		if err := o.Validate(); err != nil {
			return domain.Event{}, err
		}
		return domain.NewOrderValidatedEvent(*o), nil
	})
}

// MarkOrderInvalidated переводит заказ RECEIVED → INVALIDATED.
func (s *Service) MarkOrderInvalidated(ctx context.Context, orderID, reason string) (domain.Order, error) {
	return s.mutateOrder(ctx, orderID, func(o *domain.Order) (domain.Event, error) {
		if err := o.Invalidate(reason); err != nil {
			return domain.Event{}, err
		}
		return domain.NewOrderInvalidatedEvent(*o), nil
	})
}

// ShipOrder переводит заказ в SHIPPED и ставит событие отгрузки.
func (s *Service) ShipOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return s.mutateOrder(ctx, orderID, func(o *domain.Order) (domain.Event, error) {
		if err := o.Ship(); err != nil {
			return domain.Event{}, err
		}
		return domain.NewOrderShippedEvent(*o), nil
	})
}

// mutateOrder перечитывает заказ, применяет мутацию и сохраняет результат
// вместе со staged-событием, повторяя попытку при конфликте версий.
func (s *Service) mutateOrder(ctx context.Context, orderID string, mutate func(*domain.Order) (domain.Event, error)) (domain.Order, error) {
	for attempt := 1; ; attempt++ {
		order, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return domain.Order{}, err
		}

		event, err := mutate(&order)
		if err != nil {
			return domain.Order{}, err
		}
		order.UpdatedAt = time.Now().UTC()

		records, err := stageRecords([]domain.Event{event})
		if err != nil {
			return domain.Order{}, err
		}

		err = s.orders.Save(ctx, order, records)
		if err == nil {
			return order, nil
		}
		if !domain.IsVersionConflict(err) || attempt >= maxSaveRetries {
			return domain.Order{}, fmt.Errorf("save order: %w", err)
		}
		logctx.Decorate(ctx, s.logger).WithFields(log.Fields{
			"order_id": orderID,
			"attempt":  attempt,
		}).Warn("version conflict detected, retrying")
	}
}

func (s *Service) recordRejected(cause string) {
	if s.metrics != nil {
		s.metrics.RecordRejected(cause)
	}
}

func stageRecords(events []domain.Event) ([]domain.OutboxRecord, error) {
	records := make([]domain.OutboxRecord, 0, len(events))
	for _, event := range events {
		record, err := domain.NewOutboxRecord(event)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
