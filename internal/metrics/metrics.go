// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	assessments       *prometheus.CounterVec
	assessmentLatency prometheus.Histogram
	score             prometheus.Histogram
	missingSignals    *prometheus.CounterVec
	rulesLoaded       prometheus.Gauge
	busMessages       *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry under namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "truerev"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		assessments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Completed assessments by final action.",
		}, []string{"action"}),
		assessmentLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_duration_seconds",
			Help:      "End-to-end pipeline duration.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		score: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_score",
			Help:      "Distribution of final risk scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		missingSignals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_missing_total",
			Help:      "Assessments run without a collaborator signal.",
		}, []string{"kind"}),
		rulesLoaded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rules_loaded",
			Help:      "Active custom rules in the engine snapshot.",
		}),
		busMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_messages_total",
			Help:      "Bus messages handled by the worker.",
		}, []string{"topic", "outcome"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveAssessment records a completed assessment.
func (m *Metrics) ObserveAssessment(action string, score int, d time.Duration) {
	if m == nil {
		return
	}
	m.assessments.WithLabelValues(action).Inc()
	m.assessmentLatency.Observe(d.Seconds())
	m.score.Observe(float64(score))
}

// SignalMissing records an assessment that ran without a signal kind.
func (m *Metrics) SignalMissing(kind string) {
	if m == nil {
		return
	}
	m.missingSignals.WithLabelValues(kind).Inc()
}

// SetRulesLoaded sets the active rule gauge.
func (m *Metrics) SetRulesLoaded(n int) {
	if m == nil {
		return
	}
	m.rulesLoaded.Set(float64(n))
}

// BusMessage records a handled bus message. outcome is "ok" or "error".
func (m *Metrics) BusMessage(topic, outcome string) {
	if m == nil {
		return
	}
	m.busMessages.WithLabelValues(topic, outcome).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}
