// File: internal/usecase/stage_send_interview.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/domain/ports/adapter"
	"candidate-screening/internal/domain/ports/repository"
)

var _ StageHandler = (*sendInterviewStage)(nil)

// InterviewSettings configures invitation mails.
type InterviewSettings struct {
	BaseURL string
	Subject string
}

// sendInterviewStage emails the candidate a personal interview link.
// An invitation already recorded as sent is not sent again.
type sendInterviewStage struct {
	email     adapter.EmailClient
	apps      repository.ApplicationRepository
	artifacts artifactIO
	settings  InterviewSettings
	timeouts  Timeouts
}

func NewSendInterviewStage(
	email adapter.EmailClient,
	apps repository.ApplicationRepository,
	store repository.ArtifactStore,
	settings InterviewSettings,
	timeouts Timeouts,
) *sendInterviewStage {
	t := timeouts.withDefaults()
	if settings.Subject == "" {
		settings.Subject = "Your interview invitation"
	}
	return &sendInterviewStage{
		email:     email,
		apps:      apps,
		artifacts: artifactIO{store: store, timeout: t.Artifacts},
		settings:  settings,
		timeouts:  t,
	}
}

func (s *sendInterviewStage) Type() model.JobType   { return model.JobTypeSendInterview }
func (s *sendInterviewStage) Next() []model.JobType { return nil }

func (s *sendInterviewStage) Execute(ctx context.Context, job *model.Job, sc *StageContext) model.StageResult {
	app, err := requireApplication(sc)
	if err != nil {
		return model.FromError(err)
	}
	if app.InterviewSent() {
		return model.Success(model.AppStatusInterviewPending, nil)
	}
	if _, err := s.artifacts.require(ctx, app.ArtifactKey(model.ArtifactAnalysis)); err != nil {
		return model.FromError(err)
	}
	if !strings.Contains(app.CandidateEmail, "@") {
		return model.FromError(domain.Permanent("send interview", fmt.Errorf("%w: candidate email %q", domain.ErrInvalidArgument, app.CandidateEmail)))
	}

	token := app.InterviewToken
	if token == "" {
		token = uuid.NewString()
	}
	title := ""
	if sc.Requisition != nil {
		title = sc.Requisition.Title
	}
	body, err := renderPage("invitation.html", invitationView{
		CandidateName: app.CandidateName,
		Title:         title,
		Link:          strings.TrimRight(s.settings.BaseURL, "/") + "/" + url.PathEscape(token),
	})
	if err != nil {
		return model.FromError(err)
	}

	_, err = call(ctx, s.timeouts.Email, func(ctx context.Context) (adapter.DeliveryResult, error) {
		return s.email.Send(ctx, app.CandidateEmail, s.settings.Subject, string(body))
	})
	if err != nil {
		if errors.Is(err, domain.ErrMissingCredentials) {
			return model.FromError(domain.Fatal("send interview", err))
		}
		return model.FromError(transientUnlessClassified("send interview", err))
	}

	if err := s.apps.SetInterviewInvite(ctx, repository.NoTX, app.ID, token, time.Now().UTC()); err != nil {
		// the mail went out; a retry may send it again
		return model.FromError(domain.Transient("record invitation", err))
	}
	return model.Success(model.AppStatusInterviewPending, nil)
}
