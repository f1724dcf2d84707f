package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "checkout"

// Metrics groups every collector of the service. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPLatencyMS *prometheus.HistogramVec
	Checkouts     *prometheus.CounterVec
	Downstream    *prometheus.CounterVec
	Retries       *prometheus.CounterVec
	Events        *prometheus.CounterVec
}

// New registers collectors on a fresh registry so tests can build as many as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		HTTPLatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_outcomes_total",
			Help:      "Checkout saga outcomes by flow and result.",
		}, []string{"flow", "result"}),
		Downstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downstream_calls_total",
			Help:      "Calls made through the resilience executor.",
		}, []string{"operation", "result"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Failed attempts that were followed by a retry.",
		}, []string{"operation"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain event publications by type and result.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(
		m.HTTPRequests, m.HTTPLatencyMS, m.Checkouts, m.Downstream, m.Retries, m.Events,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPLatencyMS.WithLabelValues(route).Observe(float64(took.Milliseconds()))
}

func (m *Metrics) CheckoutOutcome(flow, result string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(flow, result).Inc()
}

func (m *Metrics) DownstreamCall(operation, result string) {
	if m == nil {
		return
	}
	m.Downstream.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) RetryAttempt(operation string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(operation).Inc()
}

func (m *Metrics) EventPublished(eventType, result string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(eventType, result).Inc()
}
