package trie

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSet holds the trie's Prometheus collectors. Collectors are built
// with the plain constructors rather than promauto, which registers against
// the global default registerer on construction — a Map is meant to be
// created many times over in tests and by embedding hosts, and repeated
// registration against one shared registry would panic. Callers that want
// these collectors exposed register them explicitly via (*Map).Collectors.
type metricsSet struct {
	gets          *prometheus.CounterVec
	mutations     *prometheus.CounterVec
	opLatency     *prometheus.HistogramVec
	proofsBuilt   *prometheus.CounterVec
	verifications *prometheus.CounterVec
}

func newMetrics() *metricsSet {
	return &metricsSet{
		gets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authmap_trie_gets_total",
			Help: "Number of Get lookups, by outcome (hit, miss).",
		}, []string{"outcome"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authmap_trie_mutations_total",
			Help: "Number of mutations, by outcome (insert, overwrite, split, collapse, noop).",
		}, []string{"outcome"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authmap_trie_operation_duration_seconds",
			Help:    "Latency of trie operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		proofsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authmap_trie_proofs_built_total",
			Help: "Number of proofs constructed, by mode (single, batch).",
		}, []string{"mode"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authmap_trie_verifications_total",
			Help: "Number of proof verifications, by outcome (accepted, root_mismatch, malformed, key_uncovered).",
		}, []string{"outcome"}),
	}
}

// Collectors returns the Map's Prometheus collectors for registration with a
// caller-supplied registry.
func (m *Map) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.metrics.gets,
		m.metrics.mutations,
		m.metrics.opLatency,
		m.metrics.proofsBuilt,
		m.metrics.verifications,
	}
}

func observeLatency(h *prometheus.HistogramVec, op string, start time.Time) {
	h.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
