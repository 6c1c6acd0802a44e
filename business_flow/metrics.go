package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Generation attempts partitioned by category and outcome (succeeded, failed)
	generationAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_generation_attempts_total",
			Help: "Total number of image generation attempts",
		},
		[]string{"category", "outcome"},
	)

	// Generation latency in seconds, external call only
	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asset_generation_duration_seconds",
			Help:    "Latency of calls to the image generation service",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"category"},
	)

	// Review decisions partitioned by decision (approved, rejected)
	reviewDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_review_decisions_total",
			Help: "Total number of review decisions",
		},
		[]string{"category", "decision"},
	)

	// Publish runs partitioned by category and outcome
	publishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_publish_total",
			Help: "Total number of publish runs",
		},
		[]string{"category", "outcome"},
	)

	// Composite cache lookups partitioned by kind (avatar, scene) and result (hit, miss)
	compositeCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "composite_cache_lookups_total",
			Help: "Composite cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)

	// Scene rows removed partitioned by reason (avatar_changed, template_changed, evicted)
	sceneInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scene_cache_invalidations_total",
			Help: "Scene composite cache rows removed",
		},
		[]string{"reason"},
	)
)

func outcomeLabel(err error) string {
	if err != nil {
		return "failed"
	}
	return "succeeded"
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
