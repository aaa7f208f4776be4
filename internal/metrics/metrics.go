// Package metrics provides Prometheus metrics for the remediation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignalsTotal counts ingested signals.
	// Labels: type (alert type or workflow family)
	SignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "remedyd",
			Subsystem: "signals",
			Name:      "ingested_total",
			Help:      "Total number of signals ingested",
		},
		[]string{"type"},
	)

	// SuppressedTotal counts signals dropped by deduplication.
	// Labels: reason (exact_key, type_window)
	SuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "remedyd",
			Subsystem: "dedup",
			Name:      "suppressed_total",
			Help:      "Total number of signals suppressed by deduplication",
		},
		[]string{"reason"},
	)

	// DedupStoreFailures counts fail-open dedup lookups.
	DedupStoreFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "remedyd",
			Subsystem: "dedup",
			Name:      "store_failures_total",
			Help:      "Total number of dedup store lookups that failed open",
		},
	)

	// DiagnosesTotal counts diagnoses by category.
	// Labels: category (git, infra, code, unknown)
	DiagnosesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "remedyd",
			Subsystem: "diagnose",
			Name:      "diagnoses_total",
			Help:      "Total number of diagnoses by root-cause category",
		},
		[]string{"category"},
	)

	// AttemptsTotal counts remediation attempts by outcome.
	// Labels: outcome (succeeded, failed)
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "remedyd",
			Subsystem: "remediation",
			Name:      "attempts_total",
			Help:      "Total number of remediation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// EscalationsTotal counts units handed to humans.
	EscalationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "remedyd",
			Subsystem: "escalate",
			Name:      "escalations_total",
			Help:      "Total number of escalations to human operators",
		},
	)

	// ChannelSendsTotal counts notification deliveries by channel and result.
	// Labels: channel, result (success, error)
	ChannelSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "remedyd",
			Subsystem: "escalate",
			Name:      "channel_sends_total",
			Help:      "Total number of notification channel sends",
		},
		[]string{"channel", "result"},
	)

	// GatherSourceFailures counts context sources that degraded to empty.
	// Labels: source (job_logs, workflow_logs, pr_state)
	GatherSourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "remedyd",
			Subsystem: "remediation",
			Name:      "gather_source_failures_total",
			Help:      "Total number of context-gathering sources that failed",
		},
		[]string{"source"},
	)

	// PollCycleDuration tracks reconcile cycle latency.
	PollCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "remedyd",
			Subsystem: "poll",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of reconcile cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// RecordChannelSend records the outcome of one notification send.
func RecordChannelSend(channel string, success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	ChannelSendsTotal.WithLabelValues(channel, result).Inc()
}

// RecordAttempt records the outcome of one remediation attempt.
func RecordAttempt(success bool) {
	outcome := "succeeded"
	if !success {
		outcome = "failed"
	}
	AttemptsTotal.WithLabelValues(outcome).Inc()
}
