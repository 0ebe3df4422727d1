package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and its workers.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	allocations     *prometheus.CounterVec
	defenses        *prometheus.CounterVec
	juryAssignments prometheus.Counter
	notifications   *prometheus.CounterVec
	retryDepth      prometheus.Gauge
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "defense_allocation_batches_total",
		Help: "Allocation batches by outcome code",
	}, []string{"outcome"})

	defenses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "defenses_created_total",
		Help: "Defenses created by initial status",
	}, []string{"status"})

	juryAssignments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jury_assignments_created_total",
		Help: "Jury assignment rows created",
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notification deliveries by channel and outcome",
	}, []string{"channel", "outcome"})

	retryDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notification_retry_queue_depth",
		Help: "Messages waiting in the retry queue",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, allocations, defenses, juryAssignments, notifications, retryDepth, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		allocations:     allocations,
		defenses:        defenses,
		juryAssignments: juryAssignments,
		notifications:   notifications,
		retryDepth:      retryDepth,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordAllocation counts a finished batch; outcome is "ok" or an error code.
func (m *MetricsService) RecordAllocation(outcome string, created map[string]int) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(outcome).Inc()
	for status, n := range created {
		m.defenses.WithLabelValues(status).Add(float64(n))
	}
}

// RecordJuryAssignments counts created jury rows.
func (m *MetricsService) RecordJuryAssignments(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.juryAssignments.Add(float64(n))
}

// RecordNotification counts one channel delivery attempt.
func (m *MetricsService) RecordNotification(channel, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, outcome).Inc()
}

// SetRetryQueueDepth publishes the retry queue length.
func (m *MetricsService) SetRetryQueueDepth(depth int64) {
	if m == nil {
		return
	}
	m.retryDepth.Set(float64(depth))
}
