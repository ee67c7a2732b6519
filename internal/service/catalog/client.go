package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/paklog/order-management/internal/domain"
	"github.com/paklog/order-management/internal/logctx"
	"github.com/paklog/order-management/internal/resilience"
)

const defaultTimeout = 5 * time.Second

type productResponse struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	PriceMinor int64  `json:"price_minor"`
	Active     bool   `json:"active"`
}

// HTTPClient — клиент каталога товаров (GET {base}/products/{sku}).
// Отсутствующий товар каталог отдаёт как 404, это не ошибка транспорта.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	logger  *log.Entry
}

var _ domain.ProductCatalogService = (*HTTPClient)(nil)

// NewHTTPClient создаёт клиент каталога.
func NewHTTPClient(baseURL string, logger *log.Entry) *HTTPClient {
	if logger == nil {
		logger = log.WithField("component", "catalog-client")
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		breaker: resilience.NewCircuitBreaker(5, 30*time.Second, logger),
		retry:   resilience.DefaultRetryConfig(),
		logger:  logger,
	}
}

// ValidateSKUs проверяет существование и активность каждого SKU в каталоге.
func (c *HTTPClient) ValidateSKUs(ctx context.Context, skus []string) (domain.CatalogValidationResult, error) {
	result := domain.CatalogValidationResult{AllValid: true}
	for _, sku := range skus {
		product, found, err := c.fetchProduct(ctx, sku)
		if err != nil {
			return domain.CatalogValidationResult{}, fmt.Errorf("%w: product %s: %v",
				domain.ErrCatalogUnavailable, sku, err)
		}
		if !found || !product.Active {
			result.AllValid = false
			result.InvalidSKUs = append(result.InvalidSKUs, sku)
		}
	}
	return result, nil
}

// GetProductDetails возвращает карточки товаров для известных SKU;
// отсутствующие SKU просто не попадают в результат.
func (c *HTTPClient) GetProductDetails(ctx context.Context, skus []string) (map[string]domain.ProductDetails, error) {
	details := make(map[string]domain.ProductDetails, len(skus))
	for _, sku := range skus {
		product, found, err := c.fetchProduct(ctx, sku)
		if err != nil {
			return nil, fmt.Errorf("%w: product %s: %v", domain.ErrCatalogUnavailable, sku, err)
		}
		if !found {
			continue
		}
		details[sku] = domain.ProductDetails{
			SKU:        product.SKU,
			Name:       product.Name,
			PriceMinor: product.PriceMinor,
			Active:     product.Active,
		}
	}
	return details, nil
}

func (c *HTTPClient) fetchProduct(ctx context.Context, sku string) (productResponse, bool, error) {
	var (
		product productResponse
		found   bool
	)
	err := c.breaker.Execute("get-product", func() error {
		return resilience.Retry(ctx, c.retry, logctx.Decorate(ctx, c.logger), "get-product", func() error {
			p, ok, err := c.getProduct(ctx, sku)
			if err != nil {
				return err
			}
			product, found = p, ok
			return nil
		})
	})
	return product, found, err
}

func (c *HTTPClient) getProduct(ctx context.Context, sku string) (productResponse, bool, error) {
	url := fmt.Sprintf("%s/products/%s", c.baseURL, sku)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return productResponse{}, false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return productResponse{}, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return productResponse{}, false, nil
	default:
		return productResponse{}, false, fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}

	var product productResponse
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return productResponse{}, false, fmt.Errorf("decode product response: %w", err)
	}
	return product, true, nil
}
