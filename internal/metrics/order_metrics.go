package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// OrderMetrics содержит метрики операций сервиса заказов и каталога.
type OrderMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec

	ordersCreated prometheus.Counter
	ordersDeleted prometheus.Counter
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		operations: register(registerer, "shop_operations_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_operations_total",
			Help: "Total number of service operations grouped by operation and result",
		}, []string{"operation", "result"})),
		duration: register(registerer, "shop_operation_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shop_operation_duration_seconds",
			Help:    "Duration of service operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"operation"})),
		ordersCreated: register(registerer, "shop_orders_created_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_orders_created_total",
			Help: "Total number of orders created",
		})),
		ordersDeleted: register(registerer, "shop_orders_deleted_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_orders_deleted_total",
			Help: "Total number of orders deleted",
		})),
	}
}

// ObserveOperation записывает результат и длительность операции.
// Nil-получатель допустим: метрики просто не пишутся.
func (m *OrderMetrics) ObserveOperation(operation string, started time.Time, err error) {
	if m == nil {
		return
	}

	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordOrderDeleted увеличивает счётчик удалённых заказов.
func (m *OrderMetrics) RecordOrderDeleted() {
	if m == nil {
		return
	}
	m.ordersDeleted.Inc()
}
