// Package metrics exposes the Prometheus collectors for coursehub.
//
// Every method is nil-safe so services can be built without metrics in
// tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps a private registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	Payments             *prometheus.CounterVec
	PaymentDuration      *prometheus.HistogramVec
	GroupsCreated        *prometheus.CounterVec
	Compensations        *prometheus.CounterVec
	SubscriptionsExpired prometheus.Counter
}

// New builds the collectors under namespace (e.g. "coursehub").
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrollment",
			Name:      "payments_total",
			Help:      "Pay requests by outcome.",
		}, []string{"outcome"}),
		PaymentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "enrollment",
			Name:      "payment_duration_seconds",
			Help:      "Time spent in the pay workflow.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		GroupsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "placement",
			Name:      "groups_created_total",
			Help:      "Groups created by placement, by reason (topup or overflow).",
		}, []string{"reason"}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "enrollment",
			Name:      "compensations_total",
			Help:      "Compensating actions run after a failed step.",
		}, []string{"action"}),
		SubscriptionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriptions",
			Name:      "expired_total",
			Help:      "Subscriptions deactivated by the expiry sweep.",
		}),
	}

	reg.MustRegister(
		m.Payments,
		m.PaymentDuration,
		m.GroupsCreated,
		m.Compensations,
		m.SubscriptionsExpired,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry (for tests and custom handlers).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format. Without
// metrics it answers 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObservePayment(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Payments.WithLabelValues(outcome).Inc()
	m.PaymentDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) GroupCreated(reason string) {
	if m == nil {
		return
	}
	m.GroupsCreated.WithLabelValues(reason).Inc()
}

func (m *Metrics) Compensated(action string) {
	if m == nil {
		return
	}
	m.Compensations.WithLabelValues(action).Inc()
}

func (m *Metrics) Expired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SubscriptionsExpired.Add(float64(n))
}
