package adapter

import (
	"context"
	"time"
)

// ApplicationRecord is an application as reported by the talent management system.
type ApplicationRecord struct {
	ExternalID     string
	CandidateName  string
	CandidateEmail string
	SubmittedAt    time.Time
}

// TMSClient is the port used by the sync, analyze and upload_report stages.
// Non-2xx answers surface as *domain.HTTPError.
type TMSClient interface {
	FetchNewApplications(ctx context.Context, requisitionExternalID string, lookback time.Duration) ([]ApplicationRecord, error)
	FetchResume(ctx context.Context, applicationExternalID string) ([]byte, error)
	// FindDocument reports an already uploaded document with the given filename.
	FindDocument(ctx context.Context, applicationExternalID, filename string) (documentID string, found bool, err error)
	UploadDocument(ctx context.Context, applicationExternalID string, content []byte, filename string) (documentID string, err error)
}
