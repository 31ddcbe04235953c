// Package metrics exposes engine counters to Prometheus. Labels are kept
// low-cardinality: no patient or alert ids.
package metrics

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. A nil *Metrics records nothing, which keeps
// call sites free of enabled checks.
type Metrics struct {
	registry *prometheus.Registry

	vitalsIngested   prometheus.Counter
	alertsCreated    *prometheus.CounterVec
	alertTransitions *prometheus.CounterVec
	recomputeSeconds prometheus.Histogram
	riskSnapshots    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		vitalsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healthmonitor_vitals_ingested_total",
			Help: "Vitals readings persisted by the ingestion path",
		}),
		alertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthmonitor_alerts_created_total",
			Help: "Alerts created by threshold evaluation",
		}, []string{"metric", "severity"}),
		alertTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthmonitor_alert_transitions_total",
			Help: "Successful alert status transitions by target status",
		}, []string{"status"}),
		recomputeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthmonitor_risk_recompute_seconds",
			Help:    "Duration of patient risk recomputation",
			Buckets: prometheus.DefBuckets,
		}),
		riskSnapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthmonitor_risk_snapshots_total",
			Help: "Risk snapshots written by resulting level",
		}, []string{"level"}),
	}

	m.registry.MustRegister(
		m.vitalsIngested, m.alertsCreated, m.alertTransitions,
		m.recomputeSeconds, m.riskSnapshots,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func (m *Metrics) VitalsIngested() {
	if m == nil {
		return
	}
	m.vitalsIngested.Inc()
}

func (m *Metrics) AlertCreated(metric, severity string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(metric, severity).Inc()
}

func (m *Metrics) AlertTransitioned(status string) {
	if m == nil {
		return
	}
	m.alertTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) RiskRecomputed(level string, took time.Duration) {
	if m == nil {
		return
	}
	m.recomputeSeconds.Observe(took.Seconds())
	m.riskSnapshots.WithLabelValues(level).Inc()
}
