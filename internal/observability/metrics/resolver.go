// Package metrics provides Prometheus metrics for the image resolution pipeline.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ResolverMetrics contains all Prometheus metrics for a resolution run.
type ResolverMetrics struct {
	registry *prometheus.Registry

	outcomesTotal      *prometheus.CounterVec
	probeDuration      *prometheus.HistogramVec
	httpResponsesTotal *prometheus.CounterVec
	cacheLookupsTotal  *prometheus.CounterVec
	unitFailuresTotal  *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	resolutions        *prometheus.GaugeVec
	lastRunDuration    prometheus.Gauge
	lastRunTimestamp   prometheus.Gauge
}

// NewResolverMetrics creates the resolver metrics and registers them on registry.
func NewResolverMetrics(registry *prometheus.Registry) (*ResolverMetrics, error) {
	m := &ResolverMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register resolver metrics: %w", err)
	}
	return m, nil
}

func (m *ResolverMetrics) initMetrics() {
	m.outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_outcomes_total",
			Help:      "Probe outcomes by probe kind and result.",
		},
		[]string{"kind", "result"}, // kind: primary_site, fallback_scientific, fallback_common; result: confirmed, absent, error
	)

	m.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Time taken by a single probe including the HTTP round trip.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"kind"},
	)

	m.httpResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_responses_total",
			Help:      "HTTP responses by host and status class; transport failures use class \"error\".",
		},
		[]string{"host", "status_class"},
	)

	m.cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Outcome cache lookups by result.",
		},
		[]string{"result"}, // hit, miss, shared
	)

	m.unitFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_unit_failures_total",
			Help:      "Dispatcher units that failed and produced no outcome.",
		},
		[]string{"pool", "reason"}, // reason: error, panic
	)

	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors built through the errors package by component and category.",
		},
		[]string{"component", "category"},
	)

	m.resolutions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_resolutions",
			Help:      "Identifiers of the last run by winning source; none counts identifiers without an image.",
		},
		[]string{"source"},
	)

	m.lastRunDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_duration_seconds",
		Help:      "Wall time of the last resolution run.",
	})

	m.lastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last resolution run finished.",
	})
}

// RecordOutcome counts one probe outcome.
func (m *ResolverMetrics) RecordOutcome(kind, result string) {
	m.outcomesTotal.WithLabelValues(kind, result).Inc()
}

// RecordProbeDuration observes the duration of one probe in seconds.
func (m *ResolverMetrics) RecordProbeDuration(kind string, seconds float64) {
	m.probeDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordCacheLookup counts an outcome cache lookup.
func (m *ResolverMetrics) RecordCacheLookup(result string) {
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordUnitFailure counts a dispatcher unit that produced no outcome.
func (m *ResolverMetrics) RecordUnitFailure(pool, reason string) {
	m.unitFailuresTotal.WithLabelValues(pool, reason).Inc()
}

// RecordHTTPResponse counts an HTTP exchange. A zero status means the
// request failed before a response arrived.
func (m *ResolverMetrics) RecordHTTPResponse(host string, status int) {
	m.httpResponsesTotal.WithLabelValues(host, StatusClass(status)).Inc()
}

// RecordError counts an error by component and category.
func (m *ResolverMetrics) RecordError(component, category string) {
	m.errorsTotal.WithLabelValues(component, category).Inc()
}

// SetRunSummary publishes the per-source totals of a finished run.
func (m *ResolverMetrics) SetRunSummary(bySource map[string]int, durationSeconds float64, finishedUnix int64) {
	m.resolutions.Reset()
	for source, count := range bySource {
		m.resolutions.WithLabelValues(source).Set(float64(count))
	}
	m.lastRunDuration.Set(durationSeconds)
	m.lastRunTimestamp.Set(float64(finishedUnix))
}

// Collect implements the prometheus.Collector interface.
func (m *ResolverMetrics) Collect(ch chan<- prometheus.Metric) {
	m.outcomesTotal.Collect(ch)
	m.probeDuration.Collect(ch)
	m.httpResponsesTotal.Collect(ch)
	m.cacheLookupsTotal.Collect(ch)
	m.unitFailuresTotal.Collect(ch)
	m.errorsTotal.Collect(ch)
	m.resolutions.Collect(ch)
	ch <- m.lastRunDuration
	ch <- m.lastRunTimestamp
}

// Describe implements the prometheus.Collector interface.
func (m *ResolverMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.outcomesTotal.Describe(ch)
	m.probeDuration.Describe(ch)
	m.httpResponsesTotal.Describe(ch)
	m.cacheLookupsTotal.Describe(ch)
	m.unitFailuresTotal.Describe(ch)
	m.errorsTotal.Describe(ch)
	m.resolutions.Describe(ch)
	ch <- m.lastRunDuration.Desc()
	ch <- m.lastRunTimestamp.Desc()
}

// StatusClass maps an HTTP status code to "2xx" style classes
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return StatusClassError
	}
	return strconv.Itoa(status/100) + "xx"
}

var _ Recorder = (*ResolverMetrics)(nil)
