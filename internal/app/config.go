package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paklog/order-management/internal/messaging/kafka"
	"github.com/paklog/order-management/internal/service/validation"
)

// Config описывает настройки запуска приложения.
type Config struct {
	MetricsAddr string

	// PostgresDSN пустой — используется in-memory хранилище.
	PostgresDSN string

	// KafkaBrokers пустой — публикатор outbox выключен, записи копятся
	// в outbox до появления брокера.
	KafkaBrokers []string
	KafkaTopic   string

	// InventoryURL/CatalogURL пустые — используются mock-сервисы.
	InventoryURL string
	CatalogURL   string

	OutboxPollInterval   time.Duration
	OutboxBatchSize      int
	OutboxPublishTimeout time.Duration

	Validation validation.Config
}

// DefaultConfig возвращает базовые настройки.
func DefaultConfig() Config {
	return Config{
		MetricsAddr:          ":9090",
		KafkaTopic:           kafka.TopicFulfillmentOrderEvents,
		OutboxPollInterval:   5 * time.Second,
		OutboxBatchSize:      100,
		OutboxPublishTimeout: 10 * time.Second,
		Validation:           validation.DefaultConfig(),
	}
}

// LoadConfig строит конфигурацию из окружения поверх значений по умолчанию.
func LoadConfig() Config {
	cfg := DefaultConfig()

	cfg.MetricsAddr = envString("METRICS_ADDR", cfg.MetricsAddr)
	cfg.PostgresDSN = envString("POSTGRES_DSN", cfg.PostgresDSN)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	cfg.KafkaTopic = envString("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.InventoryURL = envString("INVENTORY_URL", cfg.InventoryURL)
	cfg.CatalogURL = envString("CATALOG_URL", cfg.CatalogURL)

	cfg.OutboxPollInterval = envDuration("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxPublishTimeout = envDuration("OUTBOX_PUBLISH_TIMEOUT", cfg.OutboxPublishTimeout)

	cfg.Validation.MaxTotalQuantity = envInt("MAX_TOTAL_QUANTITY", cfg.Validation.MaxTotalQuantity)
	cfg.Validation.MaxItemsPerOrder = envInt("MAX_ITEMS_PER_ORDER", cfg.Validation.MaxItemsPerOrder)
	cfg.Validation.MinOrderValueMinor = envInt64("MIN_ORDER_VALUE_MINOR", cfg.Validation.MinOrderValueMinor)
	cfg.Validation.MaxOrderValueMinor = envInt64("MAX_ORDER_VALUE_MINOR", cfg.Validation.MaxOrderValueMinor)
	cfg.Validation.CheckProductCatalog = envBool("CHECK_PRODUCT_CATALOG", cfg.Validation.CheckProductCatalog)
	cfg.Validation.EnableOrderValueValidation = envBool("ENABLE_ORDER_VALUE_VALIDATION", cfg.Validation.EnableOrderValueValidation)
	cfg.Validation.RejectDuplicateSKUs = envBool("REJECT_DUPLICATE_SKUS", cfg.Validation.RejectDuplicateSKUs)
	cfg.Validation.DuplicateDetectionWindowHours = envInt("DUPLICATE_DETECTION_WINDOW_HOURS", cfg.Validation.DuplicateDetectionWindowHours)
	cfg.Validation.RejectFuzzyDuplicates = envBool("REJECT_FUZZY_DUPLICATES", cfg.Validation.RejectFuzzyDuplicates)

	return cfg
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
