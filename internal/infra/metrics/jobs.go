package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		jobsClaimedTotal,
		jobsOutcomeTotal,
		jobsDurationSeconds,
		jobsReclaimedTotal,
		jobsEnqueuedTotal,
		jobsQueueDepth,
	)
}

var (
	jobsClaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_claimed_total",
			Help: "Jobs leased by a worker, labeled by job type.",
		},
		[]string{"job_type"},
	)

	jobsOutcomeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_outcome_total",
			Help: "Applied job outcomes, labeled by job type and outcome.",
		},
		[]string{"job_type", "outcome"}, // 'completed', 'retry', 'dead', 'abandoned', 'lease_lost'
	)

	jobsDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_job_duration_seconds",
			Help:    "Stage handler execution time.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"job_type"},
	)

	jobsReclaimedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_reclaimed_total",
			Help: "Running jobs found stale by the reclaim sweep.",
		},
	)

	jobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_jobs_enqueued_total",
			Help: "Jobs enqueued, labeled by job type and source.",
		},
		[]string{"job_type", "source"}, // 'manual', 'chain', 'sync', 'schedule', 'interview'
	)

	jobsQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_queue_depth",
			Help: "Number of jobs per status at the last stats read.",
		},
		[]string{"status"},
	)
)

func IncJobClaimed(jobType string) {
	jobsClaimedTotal.WithLabelValues(norm(jobType)).Inc()
}

func IncJobOutcome(jobType, outcome string) {
	jobsOutcomeTotal.WithLabelValues(norm(jobType), norm(outcome)).Inc()
}

func ObserveJobDuration(jobType string, d time.Duration) {
	jobsDurationSeconds.WithLabelValues(norm(jobType)).Observe(d.Seconds())
}

func AddJobsReclaimed(n int) {
	jobsReclaimedTotal.Add(float64(n))
}

func IncJobEnqueued(jobType, source string) {
	jobsEnqueuedTotal.WithLabelValues(norm(jobType), norm(source)).Inc()
}

func SetQueueDepth(status string, n int) {
	jobsQueueDepth.WithLabelValues(norm(status)).Set(float64(n))
}
