package inventory

import (
	"context"
	"sync"

	"github.com/paklog/order-management/internal/domain"
)

// MockService — настраиваемая in-memory реализация инвентарного сервиса
// для тестов и локального запуска без внешней зависимости.
type MockService struct {
	mu    sync.RWMutex
	stock map[string]int
	err   error
}

var _ domain.InventoryService = (*MockService)(nil)

// NewMockService создаёт mock со стартовыми остатками (может быть nil).
func NewMockService(stock map[string]int) *MockService {
	if stock == nil {
		stock = make(map[string]int)
	}
	return &MockService{stock: stock}
}

// SetStock устанавливает доступное количество для SKU.
func (m *MockService) SetStock(sku string, available int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[sku] = available
}

// SetError заставляет последующие проверки завершаться указанной ошибкой.
func (m *MockService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// CheckAvailability сверяет запрошенные количества с настроенными остатками.
// Неизвестный SKU считается отсутствующим (доступно 0).
func (m *MockService) CheckAvailability(_ context.Context, skuQuantities map[string]int) (domain.AvailabilityResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return domain.AvailabilityResult{}, m.err
	}

	result := domain.AvailabilityResult{AllAvailable: true}
	for sku, requested := range skuQuantities {
		available := m.stock[sku]
		if available < requested {
			result.AllAvailable = false
			result.Shortfalls = append(result.Shortfalls, domain.AvailabilityShortfall{
				SKU:       sku,
				Requested: requested,
				Available: available,
			})
		}
	}
	return result, nil
}
