// Package metrics provides Prometheus metrics for shelfrank.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts finished update cycles by result.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shelfrank",
			Name:      "cycles_total",
			Help:      "Total number of update cycles by result",
		},
		[]string{"result"},
	)

	// StageDuration measures per-stage wall time.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shelfrank",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		},
		[]string{"stage"},
	)

	// AcquisitionOutcomes counts per-submission acquisition outcomes.
	AcquisitionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shelfrank",
			Name:      "acquisition_outcomes_total",
			Help:      "Acquisition outcomes per submission",
		},
		[]string{"outcome"},
	)

	// FetchRetries counts scheduled fetch retries by reason.
	FetchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shelfrank",
			Name:      "fetch_retries_total",
			Help:      "Fetch retries by classifier reason",
		},
		[]string{"reason"},
	)

	// BooksPurged counts books removed by the filter stage.
	BooksPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shelfrank",
			Name:      "books_purged_total",
			Help:      "Books removed by blacklist filtering",
		},
		[]string{"reason"},
	)

	// BooksTracked reports the current book database size.
	BooksTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shelfrank",
			Name:      "books_tracked",
			Help:      "Books currently tracked in the database",
		},
	)

	// SubmissionsPending reports the current submission queue depth.
	SubmissionsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shelfrank",
			Name:      "submissions_pending",
			Help:      "Pending submissions in the queue",
		},
	)

	// LeaderboardSize reports the entry count of the last published artifact.
	LeaderboardSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shelfrank",
			Name:      "leaderboard_size",
			Help:      "Entries in the last published leaderboard",
		},
	)
)

// RecordCycle records one finished cycle.
func RecordCycle(result string) {
	CyclesTotal.WithLabelValues(result).Inc()
}

// RecordStage records one stage execution.
func RecordStage(stage string, seconds float64) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordOutcome records one acquisition outcome.
func RecordOutcome(outcome string) {
	AcquisitionOutcomes.WithLabelValues(outcome).Inc()
}

// RecordFetchRetry records one scheduled fetch retry.
func RecordFetchRetry(reason string) {
	FetchRetries.WithLabelValues(reason).Inc()
}

// RecordPurge records one purged book.
func RecordPurge(reason string) {
	BooksPurged.WithLabelValues(reason).Inc()
}
