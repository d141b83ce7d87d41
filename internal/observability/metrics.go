package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
	usecaseRequests      *prometheus.CounterVec
	usecaseDuration      *prometheus.HistogramVec
	notificationFailures *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		usecaseRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "usecase_requests_total",
			Help: "Total number of use case invocations.",
		}, []string{"use_case", "outcome"}),
		usecaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "usecase_duration_seconds",
			Help:    "Duration of use case execution in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"use_case"}),
		notificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_failed_total",
			Help: "Count of notifications that could not be delivered.",
		}, []string{"template"}),
	}
	if reg != nil {
		reg.MustRegister(m.httpRequests, m.httpDuration, m.usecaseRequests, m.usecaseDuration, m.notificationFailures)
	}
	return m
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveUseCase(useCase, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.usecaseRequests.WithLabelValues(useCase, outcome).Inc()
	m.usecaseDuration.WithLabelValues(useCase).Observe(elapsed.Seconds())
}

func (m *Metrics) NotificationFailed(template string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(template).Inc()
}
