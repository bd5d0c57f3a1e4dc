// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors used across the HTTP and service layers.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	generations   *prometheus.CounterVec
	creditEvents  *prometheus.CounterVec
	mints         prometheus.Counter
	purchases     prometheus.Counter
	upstreamCalls *prometheus.CounterVec
}

// New creates a metrics set registered on a private registry.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := prometheus.WrapRegistererWith(nil, registry)

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path and status",
		}, []string{"service", "method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60},
		}, []string{"service", "method", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Currently served HTTP requests",
		}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Image generations by outcome",
		}, []string{"outcome"}),
		creditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_events_total",
			Help:      "Credit ledger events by type",
		}, []string{"type"}),
		mints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mints_total",
			Help:      "Confirmed NFT mints",
		}),
		purchases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_total",
			Help:      "Completed marketplace purchases",
		}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Calls to external collaborators by target and outcome",
		}, []string{"target", "outcome"}),
	}

	factory.MustRegister(m.httpRequests, m.httpDuration, m.inFlight,
		m.generations, m.creditEvents, m.mints, m.purchases, m.upstreamCalls)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(service, method, path, status).Inc()
	m.httpDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// IncrementInFlight marks a request as started.
func (m *Metrics) IncrementInFlight() { m.inFlight.Inc() }

// DecrementInFlight marks a request as finished.
func (m *Metrics) DecrementInFlight() { m.inFlight.Dec() }

// RecordGeneration records a generation attempt outcome ("ok" or "error").
func (m *Metrics) RecordGeneration(outcome string) {
	m.generations.WithLabelValues(outcome).Inc()
}

// RecordCreditEvent records a ledger event ("deposit", "debit", "duplicate").
func (m *Metrics) RecordCreditEvent(eventType string) {
	m.creditEvents.WithLabelValues(eventType).Inc()
}

// RecordMint records a confirmed mint.
func (m *Metrics) RecordMint() { m.mints.Inc() }

// RecordPurchase records a completed purchase.
func (m *Metrics) RecordPurchase() { m.purchases.Inc() }

// RecordUpstreamCall records a call to an external collaborator.
func (m *Metrics) RecordUpstreamCall(target, outcome string) {
	m.upstreamCalls.WithLabelValues(target, outcome).Inc()
}
