package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики приёма fulfillment-заказов.
type OrderMetrics struct {
	// Счётчики исходов приёма
	ordersAccepted   *prometheus.CounterVec
	ordersRejected   *prometheus.CounterVec
	ordersReplayed   prometheus.Counter
	ordersCancelled  prometheus.Counter
	duplicatesFound  *prometheus.CounterVec
	outboxStaged     prometheus.Counter
	inventoryDegrade prometheus.Counter

	// Гистограмма времени приёма
	acceptDuration prometheus.Histogram
}

// NewOrderMetrics создаёт новый экземпляр метрик приёма заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersAccepted: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "paklog_orders_accepted_total",
			Help: "Total number of fulfillment orders accepted, grouped by fulfillment action",
		}, []string{"action"}),
		ordersRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "paklog_orders_rejected_total",
			Help: "Total number of fulfillment orders rejected, grouped by cause",
		}, []string{"cause"}),
		ordersReplayed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "paklog_orders_replayed_total",
			Help: "Total number of idempotent replays answered with the original order",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "paklog_orders_cancelled_total",
			Help: "Total number of fulfillment orders cancelled",
		}),
		duplicatesFound: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "paklog_duplicate_orders_total",
			Help: "Total number of duplicate candidates detected, grouped by reason",
		}, []string{"reason"}),
		outboxStaged: registerCounter(registerer, prometheus.CounterOpts{
			Name: "paklog_outbox_staged_total",
			Help: "Total number of outbox records staged alongside order mutations",
		}),
		inventoryDegrade: registerCounter(registerer, prometheus.CounterOpts{
			Name: "paklog_inventory_degraded_total",
			Help: "Total number of acceptance flows that ran with a degraded inventory check",
		}),
		acceptDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "paklog_order_accept_duration_seconds",
			Help:    "Duration of the order acceptance workflow in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordAccepted увеличивает счётчик принятых заказов по результату политики.
func (m *OrderMetrics) RecordAccepted(action string) {
	m.ordersAccepted.WithLabelValues(action).Inc()
}

// RecordRejected увеличивает счётчик отклонённых заказов по причине.
func (m *OrderMetrics) RecordRejected(cause string) {
	m.ordersRejected.WithLabelValues(cause).Inc()
}

// RecordReplayed увеличивает счётчик идемпотентных повторов.
func (m *OrderMetrics) RecordReplayed() {
	m.ordersReplayed.Inc()
}

// RecordCancelled увеличивает счётчик отменённых заказов.
func (m *OrderMetrics) RecordCancelled() {
	m.ordersCancelled.Inc()
}

// RecordDuplicate увеличивает счётчик найденных дубликатов по причине.
func (m *OrderMetrics) RecordDuplicate(reason string) {
	m.duplicatesFound.WithLabelValues(reason).Inc()
}

// RecordOutboxStaged учитывает записи, поставленные в outbox.
func (m *OrderMetrics) RecordOutboxStaged(count int) {
	m.outboxStaged.Add(float64(count))
}

// RecordInventoryDegraded фиксирует приём при недоступном инвентарном сервисе.
func (m *OrderMetrics) RecordInventoryDegraded() {
	m.inventoryDegrade.Inc()
}

// RecordAcceptDuration записывает длительность workflow приёма.
func (m *OrderMetrics) RecordAcceptDuration(duration time.Duration) {
	m.acceptDuration.Observe(duration.Seconds())
}
