package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	healthcheck "github.com/paklog/order-management/internal/health"
	"github.com/paklog/order-management/internal/messaging/kafka"
	"github.com/paklog/order-management/internal/service/outbox"
	"github.com/paklog/order-management/internal/version"
)

// Run собирает зависимости и держит процесс: HTTP-сервер метрик и health
// checks плюс outbox worker, публикующий staged-события в Kafka. Завершается
// по отмене ctx с аккуратной остановкой всех компонентов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Kafka producer опционален: без брокеров события копятся в outbox
	// и будут опубликованы после появления брокера.
	var kafkaProducer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, outbox publishing disabled")
		} else {
			kafkaProducer = producer
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
		}
	} else {
		logger.Warn("kafka brokers not configured, outbox publishing disabled")
	}
	defer func() {
		if kafkaProducer != nil {
			if err := kafkaProducer.Close(); err != nil {
				logger.WithError(err).Warn("failed to close kafka producer")
			}
		}
	}()

	healthHandler := healthcheck.NewHandler(version.String())
	healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func() error {
		checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return deps.PingStorage(checkCtx)
	}))
	healthHandler.RegisterChecker("outbox",
		healthcheck.NewOutboxBacklogChecker(deps.OutboxRepo, 3*cfg.OutboxPollInterval))

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return runMetricsServer(groupCtx, cfg.MetricsAddr, logger, healthHandler)
	})

	if kafkaProducer != nil {
		publisher := kafka.NewOutboxPublisher(kafkaProducer, cfg.KafkaTopic)
		worker := outbox.NewWorker(deps.OutboxRepo, publisher,
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithPublishTimeout(cfg.OutboxPublishTimeout),
		)
		group.Go(func() error {
			worker.Run(groupCtx)
			return nil
		})
	}

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runMetricsServer обслуживает /metrics, /healthz, /readyz и /livez до отмены ctx.
func runMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics shutdown with error")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
