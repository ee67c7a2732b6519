package validation

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/paklog/order-management/internal/domain"
)

// Result — итог проверки бизнес-правил.
type Result struct {
	Valid  bool
	Errors []string
}

// ErrorMessage собирает замечания в одну строку для логов и ответов.
func (r Result) ErrorMessage() string {
	return strings.Join(r.Errors, "; ")
}

// Validator проверяет заказ на соответствие бизнес-правилам приёма.
// Каталожные проверки опциональны и включаются конфигурацией.
type Validator struct {
	cfg     Config
	catalog domain.ProductCatalogService
	logger  *log.Entry
}

// NewValidator создаёт валидатор; catalog может быть nil, если каталожные
// проверки выключены.
func NewValidator(cfg Config, catalog domain.ProductCatalogService, logger *log.Entry) *Validator {
	if logger == nil {
		logger = log.WithField("component", "order-validator")
	}
	return &Validator{cfg: cfg, catalog: catalog, logger: logger}
}

// Validate прогоняет заказ через все включённые правила и возвращает список замечаний.
func (v *Validator) Validate(ctx context.Context, order domain.Order) Result {
	var errs []string

	v.validateItems(order.Items, &errs)
	v.validateShippingCategory(order.ShippingSpeedCategory, &errs)

	if v.cfg.CheckProductCatalog && v.catalog != nil {
		v.validateCatalog(ctx, order, &errs)
	}
	if v.cfg.EnableOrderValueValidation && v.catalog != nil {
		v.validateOrderValue(ctx, order, &errs)
	}

	if len(errs) > 0 {
		v.logger.WithFields(log.Fields{
			"order_id": order.OrderID,
			"errors":   errs,
		}).Warn("order validation failed")
		return Result{Valid: false, Errors: errs}
	}
	return Result{Valid: true}
}

func (v *Validator) validateItems(items []domain.OrderItem, errs *[]string) {
	if len(items) == 0 {
		*errs = append(*errs, "order must contain at least one item")
		return
	}
	if v.cfg.MaxItemsPerOrder > 0 && len(items) > v.cfg.MaxItemsPerOrder {
		*errs = append(*errs, fmt.Sprintf("order has %d items, maximum allowed is %d",
			len(items), v.cfg.MaxItemsPerOrder))
	}

	if v.cfg.RejectDuplicateSKUs {
		seen := make(map[string]struct{}, len(items))
		var duplicates []string
		for _, item := range items {
			if item.SellerSKU == "" {
				continue
			}
			if _, ok := seen[item.SellerSKU]; ok {
				duplicates = append(duplicates, item.SellerSKU)
				continue
			}
			seen[item.SellerSKU] = struct{}{}
		}
		if len(duplicates) > 0 {
			*errs = append(*errs, "duplicate SKUs found in order: "+strings.Join(duplicates, ", ")+
				"; consolidate quantities for duplicate items")
		}
	}

	var total int
	for _, item := range items {
		total += item.Quantity
	}
	if total <= 0 {
		*errs = append(*errs, "total order quantity must be greater than 0")
	}
	if v.cfg.MaxTotalQuantity > 0 && total > v.cfg.MaxTotalQuantity {
		*errs = append(*errs, fmt.Sprintf("total order quantity (%d) exceeds maximum allowed (%d)",
			total, v.cfg.MaxTotalQuantity))
	}
}

func (v *Validator) validateShippingCategory(category domain.ShippingSpeedCategory, errs *[]string) {
	if category == "" {
		*errs = append(*errs, "shipping speed category is required")
		return
	}
	if !category.Valid() {
		*errs = append(*errs, fmt.Sprintf(
			"invalid shipping speed category %q; valid values are: STANDARD, EXPEDITED, PRIORITY, SAME_DAY, NEXT_DAY, SCHEDULED",
			category))
	}
}

// validateCatalog проверяет существование всех SKU в каталоге товаров.
func (v *Validator) validateCatalog(ctx context.Context, order domain.Order, errs *[]string) {
	result, err := v.catalog.ValidateSKUs(ctx, orderSKUs(order))
	if err != nil {
		v.logger.WithError(err).WithField("order_id", order.OrderID).Warn("product catalog check failed")
		*errs = append(*errs, "unable to validate product catalog: "+err.Error())
		return
	}
	if !result.AllValid {
		*errs = append(*errs, "invalid SKUs found: "+strings.Join(result.InvalidSKUs, ", ")+
			"; these products do not exist in the catalog")
	}
}

// validateOrderValue сверяет стоимость заказа с настроенными границами.
func (v *Validator) validateOrderValue(ctx context.Context, order domain.Order, errs *[]string) {
	details, err := v.catalog.GetProductDetails(ctx, orderSKUs(order))
	if err != nil {
		v.logger.WithError(err).WithField("order_id", order.OrderID).Warn("order value check failed")
		*errs = append(*errs, "unable to validate order value: "+err.Error())
		return
	}

	var totalMinor int64
	for _, item := range order.Items {
		if d, ok := details[item.SellerSKU]; ok {
			totalMinor += d.PriceMinor * int64(item.Quantity)
		}
	}

	if totalMinor < v.cfg.MinOrderValueMinor {
		*errs = append(*errs, fmt.Sprintf("order value (%d) is below minimum (%d)",
			totalMinor, v.cfg.MinOrderValueMinor))
	}
	if v.cfg.MaxOrderValueMinor > 0 && totalMinor > v.cfg.MaxOrderValueMinor {
		*errs = append(*errs, fmt.Sprintf("order value (%d) exceeds maximum (%d)",
			totalMinor, v.cfg.MaxOrderValueMinor))
	}
}

func orderSKUs(order domain.Order) []string {
	skus := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		skus = append(skus, item.SellerSKU)
	}
	return skus
}
