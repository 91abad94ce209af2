package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты попыток публикации из outbox.
const (
	PublishSent       = "sent"
	PublishRetryError = "retry_error"
	PublishFailed     = "failed"
	PublishDLQ        = "dlq"
	PublishDLQFailed  = "dlq_failed"
)

// OutboxMetrics содержит метрики transactional outbox.
type OutboxMetrics struct {
	publishAttempts  *prometheus.CounterVec
	pendingRecords   prometheus.Gauge
	oldestPendingAge prometheus.Gauge
}

// NewOutboxMetrics регистрирует метрики outbox в prometheus.DefaultRegisterer.
func NewOutboxMetrics() *OutboxMetrics {
	return NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOutboxMetricsWithRegisterer регистрирует метрики outbox в переданном registerer.
func NewOutboxMetricsWithRegisterer(registerer prometheus.Registerer) *OutboxMetrics {
	return &OutboxMetrics{
		publishAttempts: register(registerer, "shop_outbox_publish_attempts_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"})),
		pendingRecords: register(registerer, "shop_outbox_pending_records", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shop_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox.",
		})),
		oldestPendingAge: register(registerer, "shop_outbox_oldest_pending_age_seconds", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shop_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record.",
		})),
	}
}

// RecordPublish увеличивает счётчик попыток с указанным результатом.
func (m *OutboxMetrics) RecordPublish(result string) {
	m.publishAttempts.WithLabelValues(result).Inc()
}

// SetBacklog обновляет gauges backlog по числу pending-записей и времени самой старой.
func (m *OutboxMetrics) SetBacklog(pending int, oldest time.Time) {
	m.pendingRecords.Set(float64(pending))
	if pending == 0 || oldest.IsZero() {
		m.oldestPendingAge.Set(0)
		return
	}

	age := time.Since(oldest).Seconds()
	if age < 0 {
		age = 0
	}
	m.oldestPendingAge.Set(age)
}
