package outbox

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/paklog/order-management/internal/domain"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultBatchSize      = 100
	defaultPublishTimeout = 10 * time.Second
)

var (
	outboxPublishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paklog_outbox_publish_attempts_total",
		Help: "Total number of outbox publish attempts grouped by result.",
	}, []string{"result"})
	outboxPendingRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paklog_outbox_pending_records",
		Help: "Current number of unpublished records in the transactional outbox.",
	})
	outboxOldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paklog_outbox_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest unpublished outbox record.",
	})
)

// WorkerOptions задаёт параметры outbox worker.
type WorkerOptions struct {
	Logger         *log.Entry
	PollInterval   time.Duration
	BatchSize      int
	PublishTimeout time.Duration
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) {
		opts.Logger = logger
	}
}

// WithPollInterval задаёт частоту опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.PollInterval = interval
	}
}

// WithBatchSize задаёт размер батча из outbox.
func WithBatchSize(batchSize int) Option {
	return func(opts *WorkerOptions) {
		opts.BatchSize = batchSize
	}
}

// WithPublishTimeout ограничивает время публикации одной записи.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(opts *WorkerOptions) {
		opts.PublishTimeout = timeout
	}
}

// CycleResult — итог одного цикла дренажа.
type CycleResult struct {
	Pulled    int
	Published int
	Failed    int
}

// Worker публикует неопубликованные записи outbox в брокер с семантикой
// at-least-once: флаг published поднимается только после подтверждения
// брокера, неудачные записи остаются в outbox и будут подхвачены следующим
// циклом — записи никогда не отбрасываются и не уходят в dead-letter.
type Worker struct {
	repo           domain.OutboxRepository
	publisher      domain.EventPublisher
	logger         *log.Entry
	pollInterval   time.Duration
	batchSize      int
	publishTimeout time.Duration
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, publisher domain.EventPublisher, options ...Option) *Worker {
	opts := WorkerOptions{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		PublishTimeout: defaultPublishTimeout,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "outbox-worker")
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}

	return &Worker{
		repo:           repo,
		publisher:      publisher,
		logger:         logger,
		pollInterval:   opts.PollInterval,
		batchSize:      opts.BatchSize,
		publishTimeout: opts.PublishTimeout,
	}
}

// Run запускает периодический дренаж outbox до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.DrainOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.DrainOnce(ctx)
		}
	}
}

// DrainOnce выполняет один цикл дренажа: вытягивает неопубликованные записи и
// публикует их по одной. Сбой публикации одной записи изолирован — запись
// остаётся неопубликованной, обработка продолжается со следующей.
func (w *Worker) DrainOnce(ctx context.Context) CycleResult {
	var result CycleResult
	if ctx.Err() != nil {
		return result
	}

	w.refreshBacklogMetrics(ctx)

	records, err := w.repo.PullUnpublished(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Error("failed to pull unpublished outbox records")
		return result
	}
	result.Pulled = len(records)
	if len(records) == 0 {
		return result
	}

	for _, record := range records {
		if ctx.Err() != nil {
			return result
		}

		if err := w.publishOne(ctx, record); err != nil {
			result.Failed++
			outboxPublishAttempts.WithLabelValues("failed").Inc()
			w.logger.WithError(err).WithFields(log.Fields{
				"outbox_id":  record.ID,
				"event_type": record.EventType,
			}).Warn("outbox publish failed, record stays unpublished for next cycle")
			continue
		}

		if err := w.repo.MarkPublished(ctx, record.ID); err != nil {
			// Запись уже ушла в брокер; потребители обязаны быть готовы
			// к повторной доставке.
			result.Failed++
			w.logger.WithError(err).WithField("outbox_id", record.ID).
				Warn("failed to mark outbox record as published, it will be redelivered")
			continue
		}

		result.Published++
		outboxPublishAttempts.WithLabelValues("published").Inc()
	}

	w.refreshBacklogMetrics(ctx)
	return result
}

func (w *Worker) publishOne(ctx context.Context, record domain.OutboxRecord) error {
	publishCtx, cancel := context.WithTimeout(ctx, w.publishTimeout)
	defer cancel()
	return w.publisher.Publish(publishCtx, record)
}

func (w *Worker) refreshBacklogMetrics(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	outboxPendingRecords.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		outboxOldestPendingAge.Set(0)
		return
	}

	age := time.Since(stats.OldestPendingAt).Seconds()
	if age < 0 {
		age = 0
	}
	outboxOldestPendingAge.Set(age)
}
