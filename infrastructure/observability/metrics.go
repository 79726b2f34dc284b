// Package observability exposes engine metrics via Prometheus collectors.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for the engine. Each engine
// instance owns its own registry so tests never collide on registration.
type Collector struct {
	registry *prometheus.Registry

	// Store metrics
	ThoughtsAdded    prometheus.Counter
	BranchesCreated  prometheus.Counter
	CrossRefsAdded   prometheus.Counter
	EventsAppended   prometheus.Counter
	ValidationErrors prometheus.Counter

	// Analysis metrics
	ContradictionCandidates prometheus.Counter
	CircularPatternsFound   *prometheus.CounterVec
	BloomFillRatio          *prometheus.GaugeVec

	// Evaluator metrics
	Evaluations        *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	StaleResults       prometheus.Counter
}

// NewCollector creates a metrics collector registered on a fresh registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		ThoughtsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thoughts_added_total",
			Help:      "Total number of thoughts stored",
		}),
		BranchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "branches_created_total",
			Help:      "Total number of branches created",
		}),
		CrossRefsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cross_refs_added_total",
			Help:      "Total number of cross-references recorded",
		}),
		EventsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_appended_total",
			Help:      "Total number of events appended to the log",
		}),
		ValidationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_errors_total",
			Help:      "Total number of rejected mutations",
		}),
		ContradictionCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contradiction_candidates_total",
			Help:      "Total number of potential contradictions flagged by the pre-filter",
		}),
		CircularPatternsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circular_patterns_found_total",
			Help:      "Total number of circular reasoning patterns detected",
		}, []string{"pattern"}),
		BloomFillRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bloom_fill_ratio",
			Help:      "Fraction of bits set in each bloom filter",
		}, []string{"filter"}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Total number of branch evaluations",
		}, []string{"status"}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Branch evaluation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		StaleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Total number of evaluations that returned a stale cached result",
		}),
	}

	registry.MustRegister(
		c.ThoughtsAdded,
		c.BranchesCreated,
		c.CrossRefsAdded,
		c.EventsAppended,
		c.ValidationErrors,
		c.ContradictionCandidates,
		c.CircularPatternsFound,
		c.BloomFillRatio,
		c.Evaluations,
		c.EvaluationDuration,
		c.StaleResults,
	)

	return c
}

// Registry returns the collector's registry for scrape handlers.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
