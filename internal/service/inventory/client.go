package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/paklog/order-management/internal/domain"
	"github.com/paklog/order-management/internal/logctx"
	"github.com/paklog/order-management/internal/resilience"
)

const defaultTimeout = 5 * time.Second

// stockLevelResponse — ответ инвентарного сервиса на запрос остатков по SKU.
type stockLevelResponse struct {
	SKU                string `json:"sku"`
	QuantityOnHand     int    `json:"quantity_on_hand"`
	QuantityAllocated  int    `json:"quantity_allocated"`
	AvailableToPromise int    `json:"available_to_promise"`
}

// HTTPClient — клиент инвентарного сервиса поверх его REST API
// (GET {base}/stock_levels/{sku}), защищённый circuit breaker'ом и retry.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	logger  *log.Entry
}

var _ domain.InventoryService = (*HTTPClient)(nil)

// NewHTTPClient создаёт клиент инвентарного сервиса.
func NewHTTPClient(baseURL string, logger *log.Entry) *HTTPClient {
	if logger == nil {
		logger = log.WithField("component", "inventory-client")
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		breaker: resilience.NewCircuitBreaker(5, 30*time.Second, logger),
		retry:   resilience.DefaultRetryConfig(),
		logger:  logger,
	}
}

// CheckAvailability запрашивает остатки по каждому SKU заказа и собирает
// дефициты. Любой сбой запроса поднимается как ErrInventoryUnavailable:
// решение о судьбе заказа принимает политика исполнения, а не клиент.
func (c *HTTPClient) CheckAvailability(ctx context.Context, skuQuantities map[string]int) (domain.AvailabilityResult, error) {
	result := domain.AvailabilityResult{AllAvailable: true}

	// Детерминированный порядок обхода упрощает логи и тесты.
	skus := make([]string, 0, len(skuQuantities))
	for sku := range skuQuantities {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	for _, sku := range skus {
		requested := skuQuantities[sku]
		available, err := c.fetchAvailable(ctx, sku)
		if err != nil {
			return domain.AvailabilityResult{}, fmt.Errorf("%w: stock level for %s: %v",
				domain.ErrInventoryUnavailable, sku, err)
		}
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

func (c *HTTPClient) fetchAvailable(ctx context.Context, sku string) (int, error) {
	var available int
	err := c.breaker.Execute("stock-level", func() error {
		return resilience.Retry(ctx, c.retry, logctx.Decorate(ctx, c.logger), "stock-level", func() error {
			level, err := c.getStockLevel(ctx, sku)
			if err != nil {
				return err
			}
			available = level.AvailableToPromise
			return nil
		})
	})
	return available, err
}

func (c *HTTPClient) getStockLevel(ctx context.Context, sku string) (stockLevelResponse, error) {
	url := fmt.Sprintf("%s/stock_levels/%s", c.baseURL, sku)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return stockLevelResponse{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return stockLevelResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stockLevelResponse{}, fmt.Errorf("inventory service returned status %d", resp.StatusCode)
	}

	var level stockLevelResponse
	if err := json.NewDecoder(resp.Body).Decode(&level); err != nil {
		return stockLevelResponse{}, fmt.Errorf("decode stock level response: %w", err)
	}
	return level, nil
}
