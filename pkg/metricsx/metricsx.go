// Package metricsx exposes Prometheus collectors for the handle cache, the
// history logs and chat requests.
package metricsx

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm/memoryx"
	"github.com/Abraxas-365/chatkeep/pkg/cachex"
	"github.com/Abraxas-365/chatkeep/pkg/jobx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatkeep"

// Request outcomes.
const (
	OutcomeOK                 = "ok"
	OutcomeInvalid            = "invalid"
	OutcomeConstructionFailed = "construction_failed"
	OutcomeInvocationFailed   = "invocation_failed"
)

// Metrics owns a private registry so tests and multiple instances never
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	cacheEvictions    *prometheus.CounterVec
	constructFailures *prometheus.CounterVec
	historyTrims      *prometheus.CounterVec
	requests          *prometheus.CounterVec
	invocationLatency *prometheus.HistogramVec
	jobs              *prometheus.CounterVec
	jobLatency        *prometheus.HistogramVec
}

// New creates the collectors and registers them together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handle_cache",
			Name:      "hits_total",
			Help:      "Handle cache lookups served from the cache.",
		}, []string{"kind"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handle_cache",
			Name:      "misses_total",
			Help:      "Handle cache lookups that required construction.",
		}, []string{"kind"}),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handle_cache",
			Name:      "evictions_total",
			Help:      "Entries removed from the handle cache.",
		}, []string{"reason"}),
		constructFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handle_cache",
			Name:      "construct_failures_total",
			Help:      "Handle constructions that returned an error.",
		}, []string{"kind"}),
		historyTrims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "trimmed_messages_total",
			Help:      "Messages dropped from conversation histories.",
		}, []string{"reason"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		invocationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "invocation_duration_seconds",
			Help:      "Model invocation latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"kind", "variant"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "attempts_total",
			Help:      "Background job attempts by type and outcome.",
		}, []string{"type", "outcome"}),
		jobLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "attempt_duration_seconds",
			Help:      "Time spent in a single job attempt.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheHits,
		m.cacheMisses,
		m.cacheEvictions,
		m.constructFailures,
		m.historyTrims,
		m.requests,
		m.invocationLatency,
		m.jobs,
		m.jobLatency,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// cachex.Observer

func (m *Metrics) Hit(kind cachex.Kind)  { m.cacheHits.WithLabelValues(kind.String()).Inc() }
func (m *Metrics) Miss(kind cachex.Kind) { m.cacheMisses.WithLabelValues(kind.String()).Inc() }

func (m *Metrics) Evicted(reason cachex.EvictReason, n int) {
	m.cacheEvictions.WithLabelValues(string(reason)).Add(float64(n))
}

func (m *Metrics) ConstructFailed(kind cachex.Kind) {
	m.constructFailures.WithLabelValues(kind.String()).Inc()
}

// memoryx.TrimObserver

func (m *Metrics) HistoryTrimmed(reason memoryx.TrimReason, removed int) {
	m.historyTrims.WithLabelValues(string(reason)).Add(float64(removed))
}

// ObserveRequest counts one finished chat request.
func (m *Metrics) ObserveRequest(kind, outcome string) {
	m.requests.WithLabelValues(kind, outcome).Inc()
}

// ObserveInvocation records how long a model call took.
func (m *Metrics) ObserveInvocation(kind, variant string, d time.Duration) {
	m.invocationLatency.WithLabelValues(kind, variant).Observe(d.Seconds())
}

// jobx.Observer

func (m *Metrics) JobFinished(jobType string, outcome jobx.Outcome, took time.Duration) {
	m.jobs.WithLabelValues(jobType, string(outcome)).Inc()
	m.jobLatency.WithLabelValues(jobType).Observe(took.Seconds())
}

var (
	_ cachex.Observer      = (*Metrics)(nil)
	_ memoryx.TrimObserver = (*Metrics)(nil)
	_ jobx.Observer        = (*Metrics)(nil)
)
