// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Conversation turns handled, by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_model_call_duration_seconds",
			Help:    "Duration of structured completion calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"operation", "status"},
	)

	ApplyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_apply_total",
			Help: "Confirmed mutations applied, by action and status",
		},
		[]string{"action", "status"},
	)

	EntitiesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_entities_created_total",
			Help: "Entities auto-created during resolution",
		},
		[]string{"kind"},
	)

	ResolutionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_resolution_conflicts_total",
			Help: "Unique-key races on auto-create resolved by refetch",
		},
		[]string{"kind"},
	)

	ClarifyRounds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_clarify_rounds",
			Help:    "Clarification rounds observed per answered turn",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
		[]string{"action"},
	)

	ClassifierCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_classifier_cache_total",
			Help: "Intent classifier cache lookups, by result",
		},
		[]string{"result"},
	)
)
