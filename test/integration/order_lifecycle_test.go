package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/paklog/order-management/internal/domain"
	"github.com/paklog/order-management/internal/service/catalog"
	"github.com/paklog/order-management/internal/service/duplicate"
	"github.com/paklog/order-management/internal/service/inventory"
	"github.com/paklog/order-management/internal/service/orders"
	"github.com/paklog/order-management/internal/service/outbox"
	"github.com/paklog/order-management/internal/service/policy"
	"github.com/paklog/order-management/internal/service/validation"
	"github.com/paklog/order-management/internal/storage/memory"
)

// capturingPublisher собирает опубликованные записи вместо брокера.
type capturingPublisher struct {
	mu        sync.Mutex
	published []domain.OutboxRecord
	failNext  error
}

func (p *capturingPublisher) Publish(_ context.Context, record domain.OutboxRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		return err
	}
	p.published = append(p.published, record)
	return nil
}

func (p *capturingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.published))
	for _, record := range p.published {
		types = append(types, record.EventType)
	}
	return types
}

// OrderLifecycleTestSuite тестирует полный жизненный цикл заказов:
// приём → staged события → drain outbox → публикация → отмена/отгрузка.
type OrderLifecycleTestSuite struct {
	suite.Suite
	service   *orders.Service
	repo      domain.OrderRepository
	outbox    domain.OutboxRepository
	worker    *outbox.Worker
	inventory *inventory.MockService
	publisher *capturingPublisher
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	store := memory.NewStore()
	suite.repo = memory.NewOrderRepository(store)
	suite.outbox = memory.NewOutboxRepository(store)

	suite.inventory = inventory.NewMockService(map[string]int{
		"laptop-pro":     10,
		"mouse-wireless": 10,
	})
	catalogSvc := catalog.NewMockService(nil)
	catalogSvc.AddProduct(domain.ProductDetails{SKU: "laptop-pro", Name: "Laptop Pro", PriceMinor: 199900, Active: true})
	catalogSvc.AddProduct(domain.ProductDetails{SKU: "mouse-wireless", Name: "Wireless Mouse", PriceMinor: 4999, Active: true})

	cfg := validation.DefaultConfig()
	cfg.CheckProductCatalog = true

	suite.service = orders.NewServiceWithoutMetrics(
		suite.repo,
		duplicate.NewDetector(suite.repo, cfg.DuplicateDetectionWindowHours, logger),
		validation.NewValidator(cfg, catalogSvc, logger),
		policy.NewEngine(logger),
		suite.inventory,
		cfg,
		logger,
	)

	suite.publisher = &capturingPublisher{}
	suite.worker = outbox.NewWorker(suite.outbox, suite.publisher, outbox.WithLogger(logger))
}

func (suite *OrderLifecycleTestSuite) newOrder(sellerOrderID, idemKey string) domain.Order {
	return domain.Order{
		SellerOrderID:         sellerOrderID,
		IdempotencyKey:        idemKey,
		DisplayableOrderID:    "display-" + sellerOrderID,
		ShippingSpeedCategory: domain.ShippingStandard,
		FulfillmentPolicy:     domain.PolicyFillOrKill,
		DestinationAddress: domain.Address{
			Name:         "Jane Doe",
			AddressLine1: "1 Main St",
			City:         "Springfield",
			PostalCode:   "12345",
			CountryCode:  "US",
		},
		Items: []domain.OrderItem{
			{SellerSKU: "laptop-pro", SellerOrderItemID: "item-1", Quantity: 1},
			{SellerSKU: "mouse-wireless", SellerOrderItemID: "item-2", Quantity: 2},
		},
	}
}

func (suite *OrderLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	ctx := context.Background()

	// 1. Принимаем заказ
	created, err := suite.service.CreateOrder(ctx, suite.newOrder("seller-1", "idem-1"))
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusReceived, created.Status)
	require.Equal(suite.T(), domain.ActionComplete, created.FulfillmentAction)

	// 2. Осушаем outbox — события уходят публикатору и помечаются
	result := suite.worker.DrainOnce(ctx)
	require.Equal(suite.T(), 2, result.Published)
	require.Equal(suite.T(), 0, result.Failed)
	require.ElementsMatch(suite.T(), []string{
		domain.EventTypeOrderReceived,
		domain.EventTypeOrderValidated,
	}, suite.publisher.types())

	// 3. Повторный drain ничего не переотправляет
	result = suite.worker.DrainOnce(ctx)
	require.Equal(suite.T(), 0, result.Pulled)

	// 4. Валидация и отгрузка
	_, err = suite.service.MarkOrderValidated(ctx, created.OrderID)
	require.NoError(suite.T(), err)
	shipped, err := suite.service.ShipOrder(ctx, created.OrderID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusShipped, shipped.Status)

	result = suite.worker.DrainOnce(ctx)
	require.Equal(suite.T(), 2, result.Published)
	require.Contains(suite.T(), suite.publisher.types(), domain.EventTypeOrderShipped)
}

func (suite *OrderLifecycleTestSuite) TestCancellationPublishesEvent() {
	ctx := context.Background()

	created, err := suite.service.CreateOrder(ctx, suite.newOrder("seller-2", "idem-2"))
	require.NoError(suite.T(), err)

	cancelled, err := suite.service.CancelOrder(ctx, created.OrderID, "customer changed mind")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.OrderStatusCancelled, cancelled.Status)
	require.Equal(suite.T(), "customer changed mind", cancelled.CancellationReason)

	suite.worker.DrainOnce(ctx)
	require.Contains(suite.T(), suite.publisher.types(), domain.EventTypeOrderCancelled)

	// Отменённый заказ отгрузить нельзя
	_, err = suite.service.ShipOrder(ctx, created.OrderID)
	require.True(suite.T(), domain.IsStateConflict(err))
}

func (suite *OrderLifecycleTestSuite) TestPublishFailureRedelivered() {
	ctx := context.Background()

	_, err := suite.service.CreateOrder(ctx, suite.newOrder("seller-3", "idem-3"))
	require.NoError(suite.T(), err)

	// Первый drain: первая запись падает, остаётся неопубликованной
	suite.publisher.failNext = context.DeadlineExceeded
	result := suite.worker.DrainOnce(ctx)
	require.Equal(suite.T(), 1, result.Failed)
	require.Equal(suite.T(), 1, result.Published)

	// Следующий цикл дотягивает упавшую запись
	result = suite.worker.DrainOnce(ctx)
	require.Equal(suite.T(), 1, result.Published)
	require.Equal(suite.T(), 0, result.Failed)
	require.Len(suite.T(), suite.publisher.published, 2)
}

func (suite *OrderLifecycleTestSuite) TestShortfallLifecycle() {
	ctx := context.Background()
	suite.inventory.SetStock("laptop-pro", 0)

	// FILL_OR_KILL отклоняется и ничего не публикует
	_, err := suite.service.CreateOrder(ctx, suite.newOrder("seller-4", "idem-4"))
	require.True(suite.T(), domain.IsRejected(err))
	result := suite.worker.DrainOnce(ctx)
	require.Equal(suite.T(), 0, result.Pulled)

	// FILL_ALL_AVAILABLE принимается частично с событиями о дефиците
	order := suite.newOrder("seller-5", "idem-5")
	order.FulfillmentPolicy = domain.PolicyFillAllAvailable
	created, err := suite.service.CreateOrder(ctx, order)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.ActionPartial, created.FulfillmentAction)

	suite.worker.DrainOnce(ctx)
	types := suite.publisher.types()
	require.Contains(suite.T(), types, domain.EventTypeOrderPartiallyAccepted)
	require.Contains(suite.T(), types, domain.EventTypeOrderStockUnavailable)
}

func (suite *OrderLifecycleTestSuite) TestIdempotentReplayThroughLifecycle() {
	ctx := context.Background()

	first, err := suite.service.CreateOrder(ctx, suite.newOrder("seller-6", "idem-6"))
	require.NoError(suite.T(), err)
	suite.worker.DrainOnce(ctx)
	publishedBefore := len(suite.publisher.published)

	// Повтор с тем же ключом: тот же заказ, ни одной новой публикации
	replay, err := suite.service.CreateOrder(ctx, suite.newOrder("seller-6", "idem-6"))
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), first.OrderID, replay.OrderID)

	suite.worker.DrainOnce(ctx)
	require.Len(suite.T(), suite.publisher.published, publishedBefore)
}

func (suite *OrderLifecycleTestSuite) TestWorkerRunDrainsInBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := suite.service.CreateOrder(ctx, suite.newOrder("seller-7", "idem-7"))
	require.NoError(suite.T(), err)

	worker := outbox.NewWorker(suite.outbox, suite.publisher, outbox.WithPollInterval(10*time.Millisecond))
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	suite.waitForPublished(2, 2*time.Second)
	cancel()
	<-done
}

func (suite *OrderLifecycleTestSuite) waitForPublished(count int, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		suite.publisher.mu.Lock()
		n := len(suite.publisher.published)
		suite.publisher.mu.Unlock()
		if n >= count {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	suite.T().Fatalf("expected %d published records within %v", count, timeout)
}

func TestOrderLifecycle(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
