// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_turns_completed_total",
			Help: "Total number of conversation turns completed, by route",
		},
		[]string{"route"},
	)

	TurnErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_turn_errors_total",
			Help: "Total number of turn errors, by code and category",
		},
		[]string{"error_code", "category"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_turn_duration_seconds",
			Help:    "Duration of a conversation turn in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"route"},
	)

	TurnsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "research_turns_active",
			Help: "Number of turns currently streaming",
		},
	)

	ResearchRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_loop_rounds",
			Help:    "Rounds executed per research loop",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		},
	)

	QualityAssessments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_quality_assessments_total",
			Help: "Quality gate outcomes",
		},
		[]string{"status"},
	)

	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_search_requests_total",
			Help: "Search gateway calls, by status (success, error, cached)",
		},
		[]string{"status"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "research_search_duration_seconds",
			Help: "Duration of search provider calls in seconds",
		},
	)

	RemoteDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_agent_dispatches_total",
			Help: "Remote agent dispatches, by agent and outcome",
		},
		[]string{"agent", "outcome"},
	)

	RemoteAgentsRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "remote_agents_registered",
			Help: "Number of remote agents whose card resolved at startup",
		},
	)

	Syntheses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_syntheses_total",
			Help: "Answer synthesis calls, by status",
		},
		[]string{"status"},
	)

	CoordinatorDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_decisions_total",
			Help: "Coordinator decisions, by kind (direct, research, delegate)",
		},
		[]string{"kind"},
	)
)
