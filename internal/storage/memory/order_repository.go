package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/paklog/order-management/internal/domain"
)

// OrderRepository — in-memory реализация репозитория заказов.
type OrderRepository struct {
	store *Store
}

var _ domain.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository создаёт репозиторий поверх общего хранилища.
func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{store: store}
}

// Create сохраняет новый заказ вместе с его outbox-записями атомарно.
// Уникальность orderID, sellerOrderId и idempotency-key проверяется под
// общим mutex'ом, поэтому проигравший гонку получает конфликт, а не дубликат.
func (r *OrderRepository) Create(_ context.Context, order domain.Order, records []domain.OutboxRecord) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.OrderID]; exists {
		return fmt.Errorf("%w: order id %s", domain.ErrOrderAlreadyExists, order.OrderID)
	}
	if order.SellerOrderID != "" {
		if _, exists := s.bySellerID[order.SellerOrderID]; exists {
			return fmt.Errorf("%w: seller order id %s", domain.ErrOrderAlreadyExists, order.SellerOrderID)
		}
	}
	if order.IdempotencyKey != "" {
		if _, exists := s.byIdemKey[order.IdempotencyKey]; exists {
			return fmt.Errorf("%w: idempotency key %s", domain.ErrOrderAlreadyExists, order.IdempotencyKey)
		}
	}

	order.Version = 1
	s.orders[order.OrderID] = cloneOrder(order)
	if order.SellerOrderID != "" {
		s.bySellerID[order.SellerOrderID] = order.OrderID
	}
	if order.IdempotencyKey != "" {
		s.byIdemKey[order.IdempotencyKey] = order.OrderID
	}
	r.appendOutboxLocked(records)
	return nil
}

// Save обновляет существующий заказ с optimistic locking и атомарно добавляет
// outbox-записи мутации.
func (r *OrderRepository) Save(_ context.Context, order domain.Order, records []domain.OutboxRecord) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.orders[order.OrderID]
	if !ok {
		return fmt.Errorf("%w: order id %s", domain.ErrOrderNotFound, order.OrderID)
	}
	if existing.Version != order.Version {
		return fmt.Errorf("%w: order %s has version %d, expected %d",
			domain.ErrOrderVersionConflict, order.OrderID, existing.Version, order.Version)
	}

	order.Version++
	s.orders[order.OrderID] = cloneOrder(order)
	r.appendOutboxLocked(records)
	return nil
}

// Get возвращает заказ по идентификатору.
func (r *OrderRepository) Get(_ context.Context, orderID string) (domain.Order, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: order id %s", domain.ErrOrderNotFound, orderID)
	}
	return cloneOrder(order), nil
}

// FindBySellerOrderID ищет заказ по внешнему идентификатору продавца.
func (r *OrderRepository) FindBySellerOrderID(_ context.Context, sellerOrderID string) (domain.Order, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	orderID, ok := s.bySellerID[sellerOrderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: seller order id %s", domain.ErrOrderNotFound, sellerOrderID)
	}
	return cloneOrder(s.orders[orderID]), nil
}

// FindByIdempotencyKey ищет заказ по ключу идемпотентности.
func (r *OrderRepository) FindByIdempotencyKey(_ context.Context, key string) (domain.Order, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	orderID, ok := s.byIdemKey[key]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: idempotency key %s", domain.ErrOrderNotFound, key)
	}
	return cloneOrder(s.orders[orderID]), nil
}

// FindByDisplayableOrderIDSince возвращает заказы с данным displayableOrderId,
// созданные не раньше since.
func (r *OrderRepository) FindByDisplayableOrderIDSince(_ context.Context, displayableOrderID string, since time.Time) ([]domain.Order, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []domain.Order
	for _, order := range s.orders {
		if order.DisplayableOrderID != displayableOrderID {
			continue
		}
		if order.CreatedAt.Before(since) {
			continue
		}
		matches = append(matches, cloneOrder(order))
	}
	return matches, nil
}

func (r *OrderRepository) appendOutboxLocked(records []domain.OutboxRecord) {
	for _, record := range records {
		r.store.outbox[record.ID] = cloneRecord(record)
		r.store.outboxOrder = append(r.store.outboxOrder, record.ID)
	}
}
