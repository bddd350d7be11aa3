package model

import (
	"time"

	"candidate-screening/internal/domain"
)

// StageOutcome tags the variant held by a StageResult.
type StageOutcome int

const (
	OutcomeSuccess StageOutcome = iota
	OutcomeTransientFailure
	OutcomePermanentFailure
)

func (o StageOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomePermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// StageResult is what a stage handler hands back to the dispatcher.
// Construct it with Success, TransientFailure, PermanentFailure or FromError.
type StageResult struct {
	Outcome StageOutcome

	// Success fields
	Next       *JobType
	Status     ApplicationStatus
	Discovered []*Application

	// Failure fields
	Reason string
	Fatal  bool
}

func Success(status ApplicationStatus, next *JobType) StageResult {
	return StageResult{Outcome: OutcomeSuccess, Status: status, Next: next}
}

// SyncSuccess reports newly discovered applications; each gets an analyze job.
func SyncSuccess(discovered []*Application) StageResult {
	return StageResult{Outcome: OutcomeSuccess, Status: AppStatusNew, Discovered: discovered}
}

func TransientFailure(reason string) StageResult {
	return StageResult{Outcome: OutcomeTransientFailure, Reason: reason}
}

func PermanentFailure(reason string) StageResult {
	return StageResult{Outcome: OutcomePermanentFailure, Reason: reason}
}

// FatalFailure is a permanent failure caused by configuration; the application is flagged.
func FatalFailure(reason string) StageResult {
	return StageResult{Outcome: OutcomePermanentFailure, Reason: reason, Fatal: true}
}

// FromError classifies err into a failure result.
func FromError(err error) StageResult {
	switch domain.ClassifyError(err) {
	case domain.FailureFatal:
		return FatalFailure(err.Error())
	case domain.FailurePermanent:
		return PermanentFailure(err.Error())
	default:
		return TransientFailure(err.Error())
	}
}

// Kind maps a failure result back to the failure taxonomy.
func (r StageResult) Kind() domain.FailureKind {
	switch {
	case r.Outcome == OutcomeTransientFailure:
		return domain.FailureTransient
	case r.Fatal:
		return domain.FailureFatal
	default:
		return domain.FailurePermanent
	}
}

// NextType is a helper for building Success results with a chained stage.
func NextType(t JobType) *JobType { return &t }

// DispositionKind is the retry policy's verdict.
type DispositionKind int

const (
	DispositionRetry DispositionKind = iota
	DispositionDeadLetter
)

// Disposition decides what happens to a failed job.
type Disposition struct {
	Kind         DispositionKind
	ScheduledFor time.Time
	Attempts     int
	Reason       string
}

func (d Disposition) IsRetry() bool { return d.Kind == DispositionRetry }
