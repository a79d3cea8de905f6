// Package metrics exposes Prometheus collectors for reservations, sweeps,
// outbox delivery and HTTP traffic. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/room-reservations/internal/application"
)

const outcomeOK = "ok"

// Metrics holds every collector registered by the service.
type Metrics struct {
	registry *prometheus.Registry

	bookings      *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	sweepRuns     *prometheus.CounterVec
	sweepExpired  prometheus.Counter
	outboxResults *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers the collectors under namespace on a private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "reservations"
	}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_attempts_total",
			Help:      "Reservation create attempts by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Reservation status changes by target status and outcome.",
		}, []string{"to", "outcome"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiry_sweeps_total",
			Help:      "Expiry sweep runs by outcome.",
		}, []string{"outcome"}),
		sweepExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_reservations_total",
			Help:      "Pending reservations moved to expired by the sweep.",
		}),
		outboxResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_deliveries_total",
			Help:      "Outbox delivery attempts by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.bookings,
		m.transitions,
		m.sweepRuns,
		m.sweepExpired,
		m.outboxResults,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the exposition format for the private registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBooking counts one create attempt.
func (m *Metrics) ObserveBooking(err error) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome(err)).Inc()
}

// ObserveTransition counts one status change request.
func (m *Metrics) ObserveTransition(to string, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(to, outcome(err)).Inc()
}

// ObserveSweep counts one expiry sweep and the reservations it expired.
func (m *Metrics) ObserveSweep(expired int, err error) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(outcome(err)).Inc()
	if expired > 0 {
		m.sweepExpired.Add(float64(expired))
	}
}

// ObserveDelivery counts one outbox delivery attempt.
func (m *Metrics) ObserveDelivery(err error) {
	if m == nil {
		return
	}
	result := "delivered"
	if err != nil {
		result = "failed"
	}
	m.outboxResults.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	return application.ErrorKind(err)
}
