// File: internal/usecase/retry_policy.go
package usecase

import (
	"math"
	"time"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
)

// RetryPolicy decides what happens to a job after a failed attempt. It performs no I/O.
type RetryPolicy struct {
	base   time.Duration
	byType map[model.JobType]time.Duration
}

func NewRetryPolicy(base time.Duration, byType map[model.JobType]time.Duration) *RetryPolicy {
	if base <= 0 {
		base = 30 * time.Second
	}
	cp := make(map[model.JobType]time.Duration, len(byType))
	for t, d := range byType {
		if d > 0 {
			cp[t] = d
		}
	}
	return &RetryPolicy{base: base, byType: cp}
}

// Base returns the first retry delay for jobType.
func (p *RetryPolicy) Base(jobType model.JobType) time.Duration {
	if d, ok := p.byType[jobType]; ok {
		return d
	}
	return p.base
}

// Backoff returns the delay before the given attempt number (1-based) is retried:
// base * 2^(attempt-1). Saturates instead of overflowing.
func (p *RetryPolicy) Backoff(jobType model.JobType, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.Base(jobType)
	shift := attempt - 1
	if shift >= 62 || base > time.Duration(math.MaxInt64>>uint(shift)) {
		return time.Duration(math.MaxInt64)
	}
	return base << uint(shift)
}

// Decide consumes one attempt and returns the disposition. Only transient failures with attempts
// left are retried; permanent and fatal failures are dead-lettered on the spot.
func (p *RetryPolicy) Decide(job *model.Job, kind domain.FailureKind, reason string, now time.Time) model.Disposition {
	attempts := job.Attempts + 1
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = model.DefaultMaxAttempts
	}

	if kind.Retryable() && attempts < maxAttempts {
		return model.Disposition{
			Kind:         model.DispositionRetry,
			ScheduledFor: now.Add(p.Backoff(job.JobType, attempts)),
			Attempts:     attempts,
			Reason:       reason,
		}
	}
	return model.Disposition{
		Kind:     model.DispositionDeadLetter,
		Attempts: attempts,
		Reason:   reason,
	}
}
