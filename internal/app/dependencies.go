package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/paklog/order-management/internal/domain"
	"github.com/paklog/order-management/internal/service/catalog"
	"github.com/paklog/order-management/internal/service/duplicate"
	"github.com/paklog/order-management/internal/service/inventory"
	"github.com/paklog/order-management/internal/service/orders"
	"github.com/paklog/order-management/internal/service/policy"
	"github.com/paklog/order-management/internal/service/validation"
	"github.com/paklog/order-management/internal/storage/memory"
	"github.com/paklog/order-management/internal/storage/postgres"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	OrderRepo    domain.OrderRepository
	OutboxRepo   domain.OutboxRepository
	InventorySvc domain.InventoryService
	CatalogSvc   domain.ProductCatalogService
	OrderService *orders.Service
	Logger       *log.Entry

	pg *postgres.Store
}

// NewDependencies создаёт и инициализирует все зависимости приложения.
// Без POSTGRES_DSN используется in-memory хранилище, без INVENTORY_URL и
// CATALOG_URL — mock-сервисы.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		deps.pg = store
		deps.OrderRepo = postgres.NewOrderRepository(store)
		deps.OutboxRepo = postgres.NewOutboxRepository(store)
		logger.Info("using postgres storage")
	} else {
		store := memory.NewStore()
		deps.OrderRepo = memory.NewOrderRepository(store)
		deps.OutboxRepo = memory.NewOutboxRepository(store)
		logger.Info("using in-memory storage")
	}

	if cfg.InventoryURL != "" {
		deps.InventorySvc = inventory.NewHTTPClient(cfg.InventoryURL, logger.WithField("component", "inventory-client"))
	} else {
		deps.InventorySvc = inventory.NewMockService(nil)
		logger.Info("inventory service url not configured, using mock")
	}

	if cfg.CatalogURL != "" {
		deps.CatalogSvc = catalog.NewHTTPClient(cfg.CatalogURL, logger.WithField("component", "catalog-client"))
	} else {
		deps.CatalogSvc = catalog.NewMockService(nil)
		logger.Info("product catalog url not configured, using mock")
	}

	detector := duplicate.NewDetector(deps.OrderRepo,
		cfg.Validation.DuplicateDetectionWindowHours,
		logger.WithField("component", "duplicate-detector"))
	validator := validation.NewValidator(cfg.Validation, deps.CatalogSvc,
		logger.WithField("component", "order-validator"))
	engine := policy.NewEngine(logger.WithField("component", "fulfillment-policy"))

	deps.OrderService = orders.NewService(
		deps.OrderRepo, detector, validator, engine,
		deps.InventorySvc, cfg.Validation,
		logger.WithField("component", "order-service"))

	return deps, nil
}

// Close освобождает ресурсы зависимостей.
func (d *Dependencies) Close() {
	if d.pg != nil {
		if err := d.pg.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}

// PingStorage проверяет доступность хранилища для health check.
func (d *Dependencies) PingStorage(ctx context.Context) error {
	if d.pg != nil {
		return d.pg.Ping(ctx)
	}
	return nil
}
