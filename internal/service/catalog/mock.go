package catalog

import (
	"context"
	"sync"

	"github.com/paklog/order-management/internal/domain"
)

// MockService — in-memory каталог для тестов и локального запуска.
type MockService struct {
	mu       sync.RWMutex
	products map[string]domain.ProductDetails
	err      error
}

var _ domain.ProductCatalogService = (*MockService)(nil)

// NewMockService создаёт mock-каталог со стартовыми товарами (может быть nil).
func NewMockService(products map[string]domain.ProductDetails) *MockService {
	if products == nil {
		products = make(map[string]domain.ProductDetails)
	}
	return &MockService{products: products}
}

// AddProduct регистрирует товар в каталоге.
func (m *MockService) AddProduct(product domain.ProductDetails) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.SKU] = product
}

// SetError заставляет последующие запросы завершаться указанной ошибкой.
func (m *MockService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ValidateSKUs отмечает невалидными отсутствующие и неактивные SKU.
func (m *MockService) ValidateSKUs(_ context.Context, skus []string) (domain.CatalogValidationResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return domain.CatalogValidationResult{}, m.err
	}

	result := domain.CatalogValidationResult{AllValid: true}
	for _, sku := range skus {
		product, ok := m.products[sku]
		if !ok || !product.Active {
			result.AllValid = false
			result.InvalidSKUs = append(result.InvalidSKUs, sku)
		}
	}
	return result, nil
}

// GetProductDetails возвращает карточки известных товаров.
func (m *MockService) GetProductDetails(_ context.Context, skus []string) (map[string]domain.ProductDetails, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}

	details := make(map[string]domain.ProductDetails, len(skus))
	for _, sku := range skus {
		if product, ok := m.products[sku]; ok {
			details[sku] = product
		}
	}
	return details, nil
}
