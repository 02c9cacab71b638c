// Package metrics exposes Prometheus collectors for HTTP traffic and plan
// computation outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eugenenazirov/boxplan/internal/calculator"
)

const namespace = "boxplan"

// Plan outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

const resultAccepted = "accepted"

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	PlansComputed   *prometheus.CounterVec
	SKUAllocations  *prometheus.CounterVec
	ComputeDuration prometheus.Histogram
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	m.PlansComputed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_computed_total",
			Help:      "Total number of carton plans computed",
		},
		[]string{"channel", "outcome"},
	)

	m.SKUAllocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sku_allocations_total",
			Help:      "SKU allocation results by channel and rejection reason",
		},
		[]string{"channel", "result"},
	)

	m.ComputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plan_compute_duration_seconds",
			Help:      "Time spent computing a carton plan",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PlansComputed,
		m.SKUAllocations,
		m.ComputeDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObservePlan records a successful computation and its per-SKU results.
func (m *Metrics) ObservePlan(plan calculator.Plan, elapsed time.Duration) {
	if m == nil {
		return
	}
	ch := plan.Channel.Name
	m.PlansComputed.WithLabelValues(ch, OutcomeSuccess).Inc()
	m.ComputeDuration.Observe(elapsed.Seconds())
	for _, rec := range plan.Records {
		result := resultAccepted
		if !rec.Accepted() {
			result = string(rec.Rejection)
		}
		m.SKUAllocations.WithLabelValues(ch, result).Inc()
	}
}

// ObserveFailure records a computation that returned an error.
func (m *Metrics) ObserveFailure(channel, outcome string) {
	if m == nil {
		return
	}
	m.PlansComputed.WithLabelValues(channel, outcome).Inc()
}
