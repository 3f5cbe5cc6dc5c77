// Package metrics exposes trash ledger counters on a private prometheus
// registry.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry      *prometheus.Registry
	operations    *prometheus.CounterVec
	activeEntries prometheus.Gauge
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "office_trash",
			Name:      "operations_total",
			Help:      "Trash operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
		activeEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "office_trash",
			Name:      "active_entries",
			Help:      "Active trash entries at the last stats or expiry pass.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "office_trash",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "office_trash",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	registry.MustRegister(
		m.operations,
		m.activeEntries,
		m.requests,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Outcome labels an operation result. Sentinel errors are reported by the
// caller-supplied classifier so this package stays free of model imports.
func (m *Metrics) ObserveOperation(operation string, err error, classify func(error) string) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if classify != nil {
			outcome = classify(err)
		}
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) SetActiveEntries(n int) {
	if m == nil {
		return
	}
	m.activeEntries.Set(float64(n))
}

func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gather is used by tests to read current values.
func (m *Metrics) Gather() (map[string]float64, error) {
	if m == nil {
		return nil, errors.New("metrics disabled")
	}
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	out := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			key := family.GetName()
			for _, label := range metric.GetLabel() {
				key += "|" + label.GetName() + "=" + label.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				out[key] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				out[key] = metric.GetGauge().GetValue()
			}
		}
	}
	return out, nil
}
