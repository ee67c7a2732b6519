package memory

import (
	"sync"

	"github.com/paklog/order-management/internal/domain"
)

// Store — общее in-memory хранилище заказов и outbox. Один mutex накрывает
// обе структуры, поэтому Create/Save пишут заказ и его outbox-записи как одну
// атомарную единицу — наблюдатель никогда не увидит заказ без его событий.
type Store struct {
	mu sync.RWMutex

	orders      map[string]domain.Order
	bySellerID  map[string]string
	byIdemKey   map[string]string
	outbox      map[string]domain.OutboxRecord
	outboxOrder []string
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		orders:     make(map[string]domain.Order),
		bySellerID: make(map[string]string),
		byIdemKey:  make(map[string]string),
		outbox:     make(map[string]domain.OutboxRecord),
	}
}

// cloneOrder делает глубокую копию, чтобы вызывающий не мог мутировать хранилище.
func cloneOrder(order domain.Order) domain.Order {
	clone := order
	if order.Items != nil {
		clone.Items = make([]domain.OrderItem, len(order.Items))
		copy(clone.Items, order.Items)
	}
	if order.UnfulfillableItems != nil {
		clone.UnfulfillableItems = make([]domain.UnfulfillableItem, len(order.UnfulfillableItems))
		copy(clone.UnfulfillableItems, order.UnfulfillableItems)
	}
	return clone
}

func cloneRecord(record domain.OutboxRecord) domain.OutboxRecord {
	clone := record
	if record.Payload != nil {
		clone.Payload = make([]byte, len(record.Payload))
		copy(clone.Payload, record.Payload)
	}
	return clone
}
