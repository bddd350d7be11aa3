package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrLockNotAcquired    = errors.New("lock is held by another process")

	// Job queue errors
	ErrActiveJobExists = errors.New("application already has an active job")
	ErrLeaseLost       = errors.New("job is no longer leased by this worker")
	ErrJobNotRetryable = errors.New("job is not in a retryable state")
	ErrUnknownJobType  = errors.New("unknown job type")
	ErrNoHandler       = errors.New("no stage handler registered")
	ErrIllegalChain    = errors.New("stage may not chain to this job type")

	// Application state errors
	ErrIllegalTransition = errors.New("illegal application status transition")
	ErrApplicationClosed = errors.New("application is in a terminal status")

	// Stage preconditions and collaborator errors
	ErrRequisitionInactive = errors.New("requisition is not active")
	ErrArtifactMissing     = errors.New("required artifact is missing")
	ErrSchemaViolation     = errors.New("structured result does not match schema")
	ErrMissingCredentials  = errors.New("collaborator credentials are not configured")
)
