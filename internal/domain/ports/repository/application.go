package repository

import (
	"context"
	"time"

	"candidate-screening/internal/domain/model"
)

// -----------------------------
// Applications & requisitions
// -----------------------------

type ApplicationRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Application, error)

	// InsertDiscovered inserts an application found by a sync. Returns false when the
	// (requisition, external id) pair is already known.
	InsertDiscovered(ctx context.Context, tx Tx, app *model.Application) (bool, error)

	// UpdateStatus moves the application from `from` to `to`. It fails with
	// domain.ErrIllegalTransition when the stored status is no longer `from`.
	UpdateStatus(ctx context.Context, tx Tx, id string, from, to model.ApplicationStatus) error

	// MarkFailed records a side exit to failed and remembers the status it left.
	MarkFailed(ctx context.Context, tx Tx, id string, from model.ApplicationStatus, reason string) error

	// Reopen restores a failed application to the status it failed from and clears the review flag.
	Reopen(ctx context.Context, tx Tx, id string) error

	Flag(ctx context.Context, tx Tx, id, reason string) error

	SetResumeKey(ctx context.Context, tx Tx, id, key string) error
	SetInterviewInvite(ctx context.Context, tx Tx, id, token string, sentAt time.Time) error
	SetReportDocument(ctx context.Context, tx Tx, id, documentID string) error

	ListFlagged(ctx context.Context, tx Tx, offset, limit int) ([]*model.Application, error)
}

type RequisitionRepository interface {
	Save(ctx context.Context, tx Tx, r *model.Requisition) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Requisition, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.Requisition, error)
	MarkSynced(ctx context.Context, tx Tx, id string, at time.Time) error
}

// -----------------------------
// Artifacts
// -----------------------------

// ArtifactStore is a path-addressed blob store for resumes, analysis JSON and reports.
type ArtifactStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}
