// Package metrics exposes Prometheus metrics for venue fetches and searches.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Search outcomes.
const (
	OutcomeMatched = "matched"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	fetchDuration  *prometheus.HistogramVec
	fetchRecords   *prometheus.GaugeVec
	fetchTruncated *prometheus.CounterVec

	stageSurvivors *prometheus.GaugeVec

	searches       *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
}

// New creates a Manager with its own registry unless WithRegistry is given.
func New(opts ...Option) *Manager {
	m := &Manager{
		namespace: "market_scanner",
		buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	auto := promauto.With(m.registry)

	m.fetchDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "fetch",
		Name:      "duration_seconds",
		Help:      "Time spent fetching every listing of a venue.",
		Buckets:   m.buckets,
	}, []string{"venue", "truncated"})

	m.fetchRecords = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "fetch",
		Name:      "records",
		Help:      "Raw records returned by the last fetch of a venue.",
	}, []string{"venue"})

	m.fetchTruncated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "fetch",
		Name:      "truncated_total",
		Help:      "Fetches that stopped early on an error.",
	}, []string{"venue"})

	m.stageSurvivors = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "funnel",
		Name:      "stage_survivors",
		Help:      "Markets left after each stage of the last search of a venue.",
	}, []string{"venue", "stage"})

	m.searches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "search",
		Name:      "runs_total",
		Help:      "Searches by outcome.",
	}, []string{"venue", "outcome"})

	m.searchDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "search",
		Name:      "duration_seconds",
		Help:      "End to end search time.",
		Buckets:   m.buckets,
	}, []string{"venue"})

	return m
}

func (m *Manager) ObserveFetch(venue string, records int, truncated bool, d time.Duration) {
	m.fetchDuration.WithLabelValues(venue, strconv.FormatBool(truncated)).Observe(d.Seconds())
	m.fetchRecords.WithLabelValues(venue).Set(float64(records))
	if truncated {
		m.fetchTruncated.WithLabelValues(venue).Inc()
	}
}

func (m *Manager) ObserveStage(venue, stage string, count int) {
	m.stageSurvivors.WithLabelValues(venue, stage).Set(float64(count))
}

func (m *Manager) ObserveSearch(venue, outcome string, d time.Duration) {
	m.searches.WithLabelValues(venue, outcome).Inc()
	m.searchDuration.WithLabelValues(venue).Observe(d.Seconds())
}

// Registry returns the registry the metrics live on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
