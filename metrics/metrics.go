// Package metrics is the process metrics surface (§4.L): queue depths,
// worker durations, provider health, and cache hit ratio, registered with
// promauto the same way evalgo-org-eve/tracing/metrics.go registers its
// Prometheus vectors — one struct of pre-declared metrics plus small
// Record* methods, rather than ad-hoc prometheus.Must* calls scattered
// through the worker/scheduler code.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	QueueDepth        *prometheus.GaugeVec
	WorkerDuration    *prometheus.HistogramVec
	WorkerRuns        *prometheus.CounterVec
	ProviderHealth    *prometheus.GaugeVec
	CacheHits         *prometheus.CounterVec
	CacheMisses       *prometheus.CounterVec
}

// New registers every metric under the given namespace (default
// "researchcore" when empty). Call once per process; promauto panics on a
// duplicate registration, so a second New() in the same process (e.g. a
// test importing this package twice) is a programmer error, not something
// to guard defensively against.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "researchcore"
	}
	return &Metrics{
		QueueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Number of messages waiting, active, delayed, or failed per queue.",
			},
			[]string{"queue", "state"},
		),
		WorkerDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "worker_job_duration_seconds",
				Help:      "Duration of a single worker job.",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"worker", "outcome"},
		),
		WorkerRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_jobs_total",
				Help:      "Total worker jobs processed.",
			},
			[]string{"worker", "outcome"},
		),
		ProviderHealth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "provider_health",
				Help:      "1 if the named external provider's breaker is closed, 0 otherwise.",
			},
			[]string{"provider"},
		),
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total search-cache hits.",
			},
			[]string{"cache"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total search-cache misses.",
			},
			[]string{"cache"},
		),
	}
}

func (m *Metrics) RecordWorkerJob(worker, outcome string, durationSeconds float64) {
	m.WorkerDuration.WithLabelValues(worker, outcome).Observe(durationSeconds)
	m.WorkerRuns.WithLabelValues(worker, outcome).Inc()
}

func (m *Metrics) SetProviderHealth(provider string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.ProviderHealth.WithLabelValues(provider).Set(v)
}

func (m *Metrics) SetQueueDepth(queue, state string, depth int) {
	m.QueueDepth.WithLabelValues(queue, state).Set(float64(depth))
}

func (m *Metrics) RecordCacheHit(cache string) {
	m.CacheHits.WithLabelValues(cache).Inc()
}

func (m *Metrics) RecordCacheMiss(cache string) {
	m.CacheMisses.WithLabelValues(cache).Inc()
}

// CacheHitRatio computes a point-in-time ratio from caller-tracked totals.
func CacheHitRatio(hits, misses float64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return hits / (hits + misses)
}
