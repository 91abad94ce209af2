package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics содержит метрики REST API.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetricsWithRegisterer регистрирует метрики REST API в переданном registerer.
func NewHTTPMetricsWithRegisterer(registerer prometheus.Registerer) *HTTPMetrics {
	return &HTTPMetrics{
		requests: register(registerer, "shop_http_requests_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shop_http_requests_total",
			Help: "Total number of HTTP requests grouped by method, route and status code",
		}, []string{"method", "route", "code"})),
		duration: register(registerer, "shop_http_request_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shop_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})),
	}
}

// ObserveRequest записывает завершённый HTTP-запрос. route — шаблон пути
// (например, /api/v1/orders/:id), чтобы не плодить кардинальность.
func (m *HTTPMetrics) ObserveRequest(method, route string, status int, started time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(time.Since(started).Seconds())
}
