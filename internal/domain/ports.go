package domain

import "context"

// AvailabilityShortfall описывает нехватку по одному SKU.
type AvailabilityShortfall struct {
	SKU       string `json:"sku"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// AvailabilityResult — ответ инвентарного сервиса на проверку доступности.
type AvailabilityResult struct {
	AllAvailable bool
	Shortfalls   []AvailabilityShortfall
}

// InventoryService описывает взаимодействие с сервисом складских остатков.
// Реализация обязана отвечать за ограниченное время (таймаут/circuit breaker)
// и при ошибке или таймауте возвращать error, а не ложную доступность.
type InventoryService interface {
	// CheckAvailability проверяет доступность запрошенных количеств по SKU.
	CheckAvailability(ctx context.Context, skuQuantities map[string]int) (AvailabilityResult, error)
}

// ProductDetails — сведения каталога об одном товаре.
type ProductDetails struct {
	SKU        string
	Name       string
	PriceMinor int64
	Active     bool
}

// CatalogValidationResult — результат проверки существования SKU в каталоге.
type CatalogValidationResult struct {
	AllValid    bool
	InvalidSKUs []string
}

// ProductCatalogService описывает взаимодействие с каталогом товаров.
type ProductCatalogService interface {
	// ValidateSKUs проверяет, что все SKU существуют в каталоге.
	ValidateSKUs(ctx context.Context, skus []string) (CatalogValidationResult, error)
	// GetProductDetails возвращает сведения каталога по списку SKU.
	GetProductDetails(ctx context.Context, skus []string) (map[string]ProductDetails, error)
}
