package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// FailureKind classifies why a stage failed. The kind alone decides whether a job is retried.
type FailureKind int

const (
	// FailureTransient covers timeouts, rate limits and 5xx answers. Retried with backoff.
	FailureTransient FailureKind = iota
	// FailurePermanent covers malformed input, schema violations and 4xx rejections. Never retried.
	FailurePermanent
	// FailureFatal covers configuration problems (missing credentials, disabled requisition).
	FailureFatal
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailurePermanent:
		return "permanent"
	case FailureFatal:
		return "fatal_configuration"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt could change the outcome.
func (k FailureKind) Retryable() bool { return k == FailureTransient }

// Failure is a classified error returned by stage handlers and collaborators.
type Failure struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (f *Failure) Error() string {
	if f.Op == "" {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("%s: %s: %v", f.Kind, f.Op, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func Transient(op string, err error) error {
	return &Failure{Kind: FailureTransient, Op: op, Err: err}
}

func Permanent(op string, err error) error {
	return &Failure{Kind: FailurePermanent, Op: op, Err: err}
}

func Fatal(op string, err error) error {
	return &Failure{Kind: FailureFatal, Op: op, Err: err}
}

// HTTPError is returned by HTTP collaborators for non-2xx answers.
type HTTPError struct {
	Service    string
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s http %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s http %d: %s", e.Service, e.StatusCode, e.Body)
}

// ClassifyError maps any error to a FailureKind.
// Unknown errors are treated as transient so that they consume an attempt instead of vanishing.
func ClassifyError(err error) FailureKind {
	if err == nil {
		return FailureTransient
	}

	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}

	switch {
	case errors.Is(err, ErrRequisitionInactive), errors.Is(err, ErrMissingCredentials):
		return FailureFatal
	case errors.Is(err, ErrSchemaViolation),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrArtifactMissing),
		errors.Is(err, ErrApplicationClosed):
		return FailurePermanent
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return FailureTransient
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests,
			httpErr.StatusCode == http.StatusRequestTimeout,
			httpErr.StatusCode >= 500:
			return FailureTransient
		case httpErr.StatusCode >= 400:
			return FailurePermanent
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureTransient
	}

	return FailureTransient
}
