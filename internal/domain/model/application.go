package model

import (
	"fmt"
	"strings"
	"time"

	"candidate-screening/internal/domain"

	"github.com/google/uuid"
)

// ApplicationStatus is the externally visible progress of a candidate application.
type ApplicationStatus string

const (
	AppStatusNew                 ApplicationStatus = "new"
	AppStatusAnalyzing           ApplicationStatus = "analyzing"
	AppStatusAnalyzed            ApplicationStatus = "analyzed"
	AppStatusInterviewPending    ApplicationStatus = "interview_pending"
	AppStatusInterviewInProgress ApplicationStatus = "interview_in_progress"
	AppStatusInterviewComplete   ApplicationStatus = "interview_complete"
	AppStatusReportPending       ApplicationStatus = "report_pending"
	AppStatusComplete            ApplicationStatus = "complete"
	AppStatusFailed              ApplicationStatus = "failed"
	AppStatusSkipped             ApplicationStatus = "skipped"
)

// canonical path order; side exits have no rank.
var statusRank = map[ApplicationStatus]int{
	AppStatusNew:                 0,
	AppStatusAnalyzing:           1,
	AppStatusAnalyzed:            2,
	AppStatusInterviewPending:    3,
	AppStatusInterviewInProgress: 4,
	AppStatusInterviewComplete:   5,
	AppStatusReportPending:       6,
	AppStatusComplete:            7,
}

func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	st := ApplicationStatus(strings.TrimSpace(s))
	if _, ok := statusRank[st]; ok || st.IsSideExit() {
		return st, nil
	}
	return "", fmt.Errorf("%w: application status %q", domain.ErrInvalidArgument, s)
}

// Rank returns the position on the canonical path, or -1 for side exits.
func (s ApplicationStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

func (s ApplicationStatus) IsSideExit() bool {
	return s == AppStatusFailed || s == AppStatusSkipped
}

func (s ApplicationStatus) IsTerminal() bool {
	return s == AppStatusComplete || s == AppStatusFailed || s == AppStatusSkipped
}

// Application is a candidate's submission for a requisition.
// Status is written only by the pipeline; the remaining fields belong to the surrounding system.
type Application struct {
	ID               string
	RequisitionID    string
	ExternalID       string
	CandidateName    string
	CandidateEmail   string
	Status           ApplicationStatus
	FailedFrom       ApplicationStatus
	NeedsReview      bool
	ReviewReason     string
	ResumeKey        string
	InterviewToken   string
	InterviewSentAt  *time.Time
	ReportDocumentID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewDiscoveredApplication creates an application found by a TMS sync.
func NewDiscoveredApplication(requisitionID, externalID, name, email string) (*Application, error) {
	if requisitionID == "" || strings.TrimSpace(externalID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Application{
		ID:             uuid.NewString(),
		RequisitionID:  requisitionID,
		ExternalID:     strings.TrimSpace(externalID),
		CandidateName:  strings.TrimSpace(name),
		CandidateEmail: strings.TrimSpace(email),
		Status:         AppStatusNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// InterviewSent reports whether an invitation was already delivered.
func (a *Application) InterviewSent() bool {
	return a.InterviewToken != "" && a.InterviewSentAt != nil
}

// ArtifactKey builds the path-addressed key of a per-application artifact.
func (a *Application) ArtifactKey(name string) string {
	return ApplicationArtifactKey(a.ID, name)
}

func ApplicationArtifactKey(applicationID, name string) string {
	return fmt.Sprintf("applications/%s/%s", applicationID, name)
}

// Well-known artifact names.
const (
	ArtifactResume     = "resume.txt"
	ArtifactAnalysis   = "analysis.json"
	ArtifactTranscript = "transcript.json"
	ArtifactEvaluation = "evaluation.json"
	ArtifactReport     = "report.html"
)

// Requisition is an open position synced from the TMS.
type Requisition struct {
	ID                string
	ExternalID        string
	Title             string
	Active            bool
	AutoSendInterview bool
	AutoSendMinScore  int
	LastSyncedAt      *time.Time
	CreatedAt         time.Time
}

// AutoSendSatisfied reports whether an analysis score qualifies for an automatic interview invitation.
func (r *Requisition) AutoSendSatisfied(score int) bool {
	return r.AutoSendInterview && score >= r.AutoSendMinScore
}
