package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GitHub API Metrics
var (
	// GitHubRequestsTotal tracks GitHub API responses by status code
	GitHubRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_requests_total",
			Help: "Total GitHub API responses by HTTP status",
		},
		[]string{"status"},
	)

	// GitHubRetriesTotal tracks retried GitHub API calls by reason
	GitHubRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "github_retries_total",
			Help: "Total GitHub API retries by reason (rate_limit, secondary_rate_limit)",
		},
		[]string{"reason"},
	)

	// GitHubRateLimitRemaining is the last observed remaining quota per resource
	GitHubRateLimitRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "github_rate_limit_remaining",
			Help: "Remaining GitHub API quota as last reported by the API",
		},
		[]string{"resource"},
	)

	// GitHubThrottleSeconds tracks time spent waiting before or between GitHub calls
	GitHubThrottleSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "github_throttle_seconds",
			Help:    "Time spent sleeping for rate limits and backoff",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 300, 900},
		},
	)
)

// Sync Metrics
var (
	// ReconciledRepositoriesTotal tracks starred repositories upserted or removed
	ReconciledRepositoriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_reconciled_repositories_total",
			Help: "Starred repositories touched by reconciliation, by action",
		},
		[]string{"action"},
	)

	// RepositorySyncsTotal tracks per-repository commit syncs by result
	RepositorySyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_repository_syncs_total",
			Help: "Per-repository commit history syncs by result",
		},
		[]string{"result"},
	)

	// CommitsTrackedTotal tracks commits written to the day-bucketed series
	CommitsTrackedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_commits_tracked_total",
			Help: "Commits written or updated in the daily commit series",
		},
	)

	// SchedulerTickDuration tracks scheduled sync tick latency in seconds
	SchedulerTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_tick_duration_seconds",
			Help:    "Duration of scheduled sync ticks",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// SchedulerTicksSkippedTotal counts ticks skipped because another was still running
	SchedulerTicksSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_ticks_skipped_total",
			Help: "Scheduled ticks skipped because a previous tick was still running",
		},
	)

	// UserSyncsTotal tracks per-user syncs by trigger and result
	UserSyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_user_syncs_total",
			Help: "Per-user syncs by trigger (scheduled, background) and result",
		},
		[]string{"trigger", "result"},
	)
)
