// Package metrics exposes Prometheus instruments for the curation workflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transitions counts review cycles entering each workflow state
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curation_workflow_transitions_total",
		Help: "Review cycle state transitions by target state",
	}, []string{"to"})

	// Rejections counts operations refused by curation policy
	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curation_rejections_total",
		Help: "Curation operations rejected by operation and error kind",
	}, []string{"op", "kind"})

	AttemptsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curation_attempts_appended_total",
		Help: "Attempt results appended to session logs",
	})

	Saves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curation_saves_total",
		Help: "Persist attempts by result",
	}, []string{"result"})

	JudgeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "curation_reference_judge_duration_seconds",
		Help:    "Reference judge latency",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"mode"})
)
