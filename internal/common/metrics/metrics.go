// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// outcome: resolved | needs_clarification, phase: initial | awaiting_clarification
	DisambiguationTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disambiguation_turns_total",
			Help: "Total disambiguation turns by phase and outcome",
		},
		[]string{"phase", "outcome"},
	)

	AmbiguousUtterances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disambiguation_ambiguous_total",
			Help: "Utterances judged ambiguous, by reason",
		},
		[]string{"reason"},
	)

	ResolvedIntents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disambiguation_resolved_total",
			Help: "Conversations resolved to an intent",
		},
		[]string{"intent_id"},
	)

	TopCandidateScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "disambiguation_top_score",
			Help:    "Final score of the top-ranked candidate per turn",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	CatalogIntents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intent_catalog_size",
			Help: "Number of intents in the loaded catalog",
		},
	)

	RoutingDecisionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_decisions_recorded_total",
			Help: "Routing decisions written to the audit sinks",
		},
		[]string{"status"},
	)

	EscalationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalations_sent_total",
			Help: "Escalation notifications sent, by channel",
		},
		[]string{"channel"},
	)
)
