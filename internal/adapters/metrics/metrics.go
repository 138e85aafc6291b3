// Package metrics exports engine and classifier counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mikey/phish-guard/internal/events"
)

// Metrics owns a private registry so several instances can coexist in tests
type Metrics struct {
	registry *prometheus.Registry

	phishingCount    prometheus.Gauge
	detections       prometheus.Counter
	eventsTotal      *prometheus.CounterVec
	assessments      *prometheus.CounterVec
	assessmentErrors prometheus.Counter
	cacheHits        *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		phishingCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "phishguard_phishing_count",
			Help: "Messages currently carrying a phishing warning",
		}),
		detections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishguard_detections_total",
			Help: "Total number of messages flagged by the heuristic scan",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishguard_events_total",
			Help: "Total number of events seen on the bus",
		}, []string{"type"}),
		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishguard_assessments_total",
			Help: "Total number of classifier assessments by risk level",
		}, []string{"risk_level"}),
		assessmentErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "phishguard_assessment_errors_total",
			Help: "Total number of classifier requests that failed",
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phishguard_cache_lookups_total",
			Help: "Assessment cache lookups by result",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.phishingCount,
		m.detections,
		m.eventsTotal,
		m.assessments,
		m.assessmentErrors,
		m.cacheHits,
	)
	return m
}

// HandleEvent is an events.Handler
func (m *Metrics) HandleEvent(ev events.Event) {
	m.eventsTotal.WithLabelValues(string(ev.Type)).Inc()
	switch ev.Type {
	case events.TypeCountUpdate:
		m.phishingCount.Set(float64(ev.Count))
	case events.TypeDetected:
		m.detections.Inc()
	}
}

// ObserveAssessment counts one successful classifier response
func (m *Metrics) ObserveAssessment(riskLevel string) {
	m.assessments.WithLabelValues(riskLevel).Inc()
}

// ObserveAssessmentError counts one failed classifier request
func (m *Metrics) ObserveAssessmentError() {
	m.assessmentErrors.Inc()
}

// ObserveCacheLookup counts a cache hit or miss
func (m *Metrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheHits.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
