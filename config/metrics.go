package config

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "distribution"

// Metrics holds the service's prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	MovementsRecorded  *prometheus.CounterVec
	MovementQuantity   *prometheus.CounterVec
	AllocationsTotal   *prometheus.CounterVec
	FulfillmentsTotal  *prometheus.CounterVec
	OrderTransitions   *prometheus.CounterVec
	SettlementActions  *prometheus.CounterVec
	AuditEventsTotal   *prometheus.CounterVec
	SequenceIssued     *prometheus.CounterVec
	CircuitBreakerOpen *prometheus.GaugeVec
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// GetMetrics returns the process-wide metrics, registering collectors on first use.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics()
	})
	return metrics
}

func newMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})

	m.MovementsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "stock_movements_total",
		Help:      "Stock movements appended to the journal",
	}, []string{"kind"})

	m.MovementQuantity = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "stock_movement_quantity_total",
		Help:      "Sum of moved quantity per movement kind",
	}, []string{"kind"})

	m.AllocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "allocations_total",
		Help:      "Allocation attempts by outcome",
	}, []string{"pooled", "result"})

	m.FulfillmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "fulfillments_total",
		Help:      "Order fulfillment attempts by trigger and outcome",
	}, []string{"trigger", "result"})

	m.OrderTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "order_transitions_total",
		Help:      "Order state changes",
	}, []string{"action", "result"})

	m.SettlementActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "settlement_actions_total",
		Help:      "Settlement submissions, approvals and rejections",
	}, []string{"action", "result"})

	m.AuditEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "audit_events_total",
		Help:      "Audit events delivered per sink",
	}, []string{"sink", "result"})

	m.SequenceIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sequence_values_issued_total",
		Help:      "Sequence values handed out per counter family",
	}, []string{"family"})

	m.CircuitBreakerOpen = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "circuit_breaker_open",
		Help:      "1 when the named circuit breaker is open",
	}, []string{"name"})

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.MovementsRecorded,
		m.MovementQuantity,
		m.AllocationsTotal,
		m.FulfillmentsTotal,
		m.OrderTransitions,
		m.SettlementActions,
		m.AuditEventsTotal,
		m.SequenceIssued,
		m.CircuitBreakerOpen,
	)
	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests that gather collectors directly.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
