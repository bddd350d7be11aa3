package model

import (
	"fmt"
	"time"

	"candidate-screening/internal/domain"

	"github.com/oklog/ulid/v2"
)

// JobType identifies one pipeline stage.
type JobType string

const (
	JobTypeSync           JobType = "sync"
	JobTypeAnalyze        JobType = "analyze"
	JobTypeSendInterview  JobType = "send_interview"
	JobTypeEvaluate       JobType = "evaluate"
	JobTypeGenerateReport JobType = "generate_report"
	JobTypeUploadReport   JobType = "upload_report"
)

// AllJobTypes lists every stage in canonical pipeline order.
var AllJobTypes = []JobType{
	JobTypeSync,
	JobTypeAnalyze,
	JobTypeSendInterview,
	JobTypeEvaluate,
	JobTypeGenerateReport,
	JobTypeUploadReport,
}

func ParseJobType(s string) (JobType, error) {
	for _, t := range AllJobTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownJobType, s)
}

// RequisitionLevel reports whether jobs of this type are owned by a requisition rather than an application.
func (t JobType) RequisitionLevel() bool { return t == JobTypeSync }

// NextStages is the canonical chaining table. A successful stage may only enqueue one of these.
var NextStages = map[JobType][]JobType{
	JobTypeSync:           {JobTypeAnalyze},
	JobTypeAnalyze:        {JobTypeSendInterview},
	JobTypeSendInterview:  nil,
	JobTypeEvaluate:       {JobTypeGenerateReport},
	JobTypeGenerateReport: {JobTypeUploadReport},
	JobTypeUploadReport:   nil,
}

// CanChain reports whether `next` may follow `from` in the pipeline.
func CanChain(from, next JobType) bool {
	for _, t := range NextStages[from] {
		if t == next {
			return true
		}
	}
	return false
}

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusDead      JobStatus = "dead"
)

var AllJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusRunning,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusDead,
}

func ParseJobStatus(s string) (JobStatus, error) {
	for _, st := range AllJobStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: job status %q", domain.ErrInvalidArgument, s)
}

// IsActive reports whether the job still holds its application's pipeline slot.
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Retryable reports whether an operator may re-enqueue a job in this status.
func (s JobStatus) Retryable() bool {
	return s == JobStatusDead || s == JobStatusFailed
}

const DefaultMaxAttempts = 5

// Job is one queued unit of pipeline work. The row layout is shared with external tooling.
type Job struct {
	ID            string
	ApplicationID *string
	RequisitionID *string
	JobType       JobType
	Status        JobStatus
	Priority      int
	Attempts      int
	MaxAttempts   int
	LastError     string
	ClaimedBy     string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	ScheduledFor  time.Time
}

// NewJob builds a pending job. Application-level stages need an application id,
// requisition-level stages need a requisition id.
func NewJob(jobType JobType, applicationID, requisitionID string, priority int, scheduledFor time.Time, maxAttempts int) (*Job, error) {
	if _, err := ParseJobType(string(jobType)); err != nil {
		return nil, err
	}
	if jobType.RequisitionLevel() {
		if requisitionID == "" {
			return nil, fmt.Errorf("%w: %s job needs a requisition id", domain.ErrInvalidArgument, jobType)
		}
	} else if applicationID == "" {
		return nil, fmt.Errorf("%w: %s job needs an application id", domain.ErrInvalidArgument, jobType)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	now := time.Now().UTC()
	if scheduledFor.IsZero() {
		scheduledFor = now
	}

	j := &Job{
		ID:           ulid.Make().String(),
		JobType:      jobType,
		Status:       JobStatusPending,
		Priority:     priority,
		MaxAttempts:  maxAttempts,
		CreatedAt:    now,
		ScheduledFor: scheduledFor.UTC(),
	}
	if applicationID != "" {
		j.ApplicationID = &applicationID
	}
	if requisitionID != "" {
		j.RequisitionID = &requisitionID
	}
	return j, nil
}

// AppID returns the owning application id or "" for requisition-level jobs.
func (j *Job) AppID() string {
	if j.ApplicationID == nil {
		return ""
	}
	return *j.ApplicationID
}

// ReqID returns the owning requisition id or "".
func (j *Job) ReqID() string {
	if j.RequisitionID == nil {
		return ""
	}
	return *j.RequisitionID
}

// Start marks the job as claimed by workerID.
func (j *Job) Start(workerID string, now time.Time) {
	j.Status = JobStatusRunning
	j.ClaimedBy = workerID
	j.StartedAt = &now
}

// Complete marks the job as successfully finished and clears the last error.
func (j *Job) Complete(now time.Time) {
	j.Status = JobStatusCompleted
	j.LastError = ""
	j.CompletedAt = &now
}

// RetryAt puts the job back in the queue for another attempt.
func (j *Job) RetryAt(at time.Time, reason string) {
	j.Status = JobStatusPending
	j.LastError = reason
	j.ScheduledFor = at
	j.StartedAt = nil
	j.ClaimedBy = ""
}

// DeadLetter parks the job for manual intervention.
func (j *Job) DeadLetter(now time.Time, reason string) {
	j.Status = JobStatusDead
	j.LastError = reason
	j.CompletedAt = &now
}

// Abandon finishes the job without a retry or a review flag, used when its preconditions no longer hold.
func (j *Job) Abandon(now time.Time, reason string) {
	j.Status = JobStatusFailed
	j.LastError = reason
	j.CompletedAt = &now
}

// Reset prepares a dead or failed job for an operator retry.
func (j *Job) Reset(now time.Time) {
	j.Status = JobStatusPending
	j.Attempts = 0
	j.ScheduledFor = now
	j.StartedAt = nil
	j.CompletedAt = nil
	j.ClaimedBy = ""
}
