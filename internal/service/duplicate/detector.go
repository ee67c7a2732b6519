package duplicate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/paklog/order-management/internal/domain"
)

const defaultWindow = 24 * time.Hour

// Reason — структурированная причина срабатывания детектора.
type Reason string

const (
	// ReasonIdempotencyKey — повтор запроса с тем же idempotency-key:
	// вызывающий обязан получить исходный результат, а не повторный приём.
	ReasonIdempotencyKey Reason = "idempotency-key"
	// ReasonSellerOrderID — точное совпадение sellerOrderId, жёсткий конфликт.
	ReasonSellerOrderID Reason = "seller-order-id"
	// ReasonFuzzyMatch — вероятная случайная повторная отправка (advisory).
	ReasonFuzzyMatch Reason = "fuzzy-match"
)

// CheckResult — итог проверки кандидата на дубликат.
type CheckResult struct {
	Duplicate bool
	Reason    Reason
	Existing  *domain.Order
	Message   string
}

func notDuplicate() CheckResult {
	return CheckResult{}
}

// Detector решает, является ли входящий заказ повтором или вероятным
// дубликатом уже существующего.
type Detector struct {
	orders domain.OrderRepository
	window time.Duration
	logger *log.Entry
}

// NewDetector создаёт детектор с окном fuzzy-поиска; windowHours <= 0 даёт 24 часа.
func NewDetector(orders domain.OrderRepository, windowHours int, logger *log.Entry) *Detector {
	window := defaultWindow
	if windowHours > 0 {
		window = time.Duration(windowHours) * time.Hour
	}
	if logger == nil {
		logger = log.WithField("component", "duplicate-detector")
	}
	return &Detector{orders: orders, window: window, logger: logger}
}

// Check выполняет проверки в строгом порядке приоритета с выходом на первом
// совпадении: idempotency-key → sellerOrderId → fuzzy. Ошибка возвращается
// только из точных проверок; сбой fuzzy-поиска трактуется как «не дубликат»
// (fail open) — приём заказа не должен блокироваться некритичной ошибкой поиска.
func (d *Detector) Check(ctx context.Context, candidate domain.Order) (CheckResult, error) {
	if candidate.IdempotencyKey != "" {
		existing, err := d.orders.FindByIdempotencyKey(ctx, candidate.IdempotencyKey)
		switch {
		case err == nil:
			d.logger.WithFields(log.Fields{
				"idempotency_key":   candidate.IdempotencyKey,
				"existing_order_id": existing.OrderID,
			}).Info("duplicate detected by idempotency key")
			return CheckResult{
				Duplicate: true,
				Reason:    ReasonIdempotencyKey,
				Existing:  &existing,
				Message:   "idempotent replay: order already processed with this key",
			}, nil
		case !errors.Is(err, domain.ErrOrderNotFound):
			return notDuplicate(), fmt.Errorf("lookup by idempotency key: %w", err)
		}
	}

	if candidate.SellerOrderID != "" {
		existing, err := d.orders.FindBySellerOrderID(ctx, candidate.SellerOrderID)
		switch {
		case err == nil:
			d.logger.WithFields(log.Fields{
				"seller_order_id":   candidate.SellerOrderID,
				"existing_order_id": existing.OrderID,
			}).Warn("duplicate detected by seller order id")
			return CheckResult{
				Duplicate: true,
				Reason:    ReasonSellerOrderID,
				Existing:  &existing,
				Message:   "order with same seller order id already exists",
			}, nil
		case !errors.Is(err, domain.ErrOrderNotFound):
			return notDuplicate(), fmt.Errorf("lookup by seller order id: %w", err)
		}
	}

	return d.checkFuzzy(ctx, candidate), nil
}

// checkFuzzy ищет заказы с тем же displayableOrderId внутри окна и сравнивает
// нормализованные имя получателя, первую строку адреса, почтовый индекс и число позиций.
func (d *Detector) checkFuzzy(ctx context.Context, candidate domain.Order) CheckResult {
	if strings.TrimSpace(candidate.DisplayableOrderID) == "" {
		return notDuplicate()
	}

	since := time.Now().UTC().Add(-d.window)
	candidates, err := d.orders.FindByDisplayableOrderIDSince(ctx, candidate.DisplayableOrderID, since)
	if err != nil {
		// Fail open: fuzzy-поиск не должен блокировать приём заказа.
		d.logger.WithError(err).WithField("displayable_order_id", candidate.DisplayableOrderID).
			Warn("fuzzy duplicate lookup failed, treating as not duplicate")
		return notDuplicate()
	}

	for _, existing := range candidates {
		if existing.OrderID == candidate.OrderID {
			continue
		}
		if !similarAddress(candidate.DestinationAddress, existing.DestinationAddress) {
			continue
		}
		if len(existing.Items) != len(candidate.Items) {
			continue
		}

		existing := existing
		d.logger.WithFields(log.Fields{
			"displayable_order_id": candidate.DisplayableOrderID,
			"existing_order_id":    existing.OrderID,
		}).Warn("fuzzy duplicate detected")
		return CheckResult{
			Duplicate: true,
			Reason:    ReasonFuzzyMatch,
			Existing:  &existing,
			Message: fmt.Sprintf(
				"similar order with displayable id %s, matching address and same item count (%d) within %s",
				candidate.DisplayableOrderID, len(candidate.Items), d.window),
		}
	}

	return notDuplicate()
}

// similarAddress сравнивает ключевые поля адресов после нормализации.
func similarAddress(a, b domain.Address) bool {
	return normalize(a.Name) == normalize(b.Name) &&
		normalize(a.AddressLine1) == normalize(b.AddressLine1) &&
		normalize(a.PostalCode) == normalize(b.PostalCode)
}

// normalize: нижний регистр, обрезка краёв, схлопывание внутренних пробелов.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
