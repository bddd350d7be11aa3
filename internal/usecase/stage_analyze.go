// File: internal/usecase/stage_analyze.go
package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/domain/ports/adapter"
	"candidate-screening/internal/domain/ports/repository"
)

var _ StageHandler = (*analyzeStage)(nil)

// analyzeStage scores a resume with the AI client and stores analysis.json.
type analyzeStage struct {
	tms       adapter.TMSClient
	ai        adapter.AIClient
	apps      repository.ApplicationRepository
	artifacts artifactIO
	timeouts  Timeouts
}

func NewAnalyzeStage(
	tms adapter.TMSClient,
	ai adapter.AIClient,
	apps repository.ApplicationRepository,
	store repository.ArtifactStore,
	timeouts Timeouts,
) *analyzeStage {
	t := timeouts.withDefaults()
	return &analyzeStage{tms: tms, ai: ai, apps: apps, artifacts: artifactIO{store: store, timeout: t.Artifacts}, timeouts: t}
}

func (s *analyzeStage) Type() model.JobType   { return model.JobTypeAnalyze }
func (s *analyzeStage) Next() []model.JobType { return []model.JobType{model.JobTypeSendInterview} }

func (s *analyzeStage) Execute(ctx context.Context, job *model.Job, sc *StageContext) model.StageResult {
	app, err := requireApplication(sc)
	if err != nil {
		return model.FromError(err)
	}

	resume, err := s.loadResume(ctx, app)
	if err != nil {
		return model.FromError(err)
	}
	if !utf8.Valid(resume) || strings.TrimSpace(string(resume)) == "" {
		return model.FromError(domain.Permanent("analyze", domain.ErrArtifactMissing))
	}

	res, err := call(ctx, s.timeouts.AI, func(ctx context.Context) (*adapter.StructuredResult, error) {
		return s.ai.RunStructuredPrompt(ctx, adapter.PromptRequest{
			Template: PromptResumeAnalysis,
			Input:    string(resume),
			Schema:   AnalysisSchema,
		})
	})
	if err != nil {
		return model.FromError(err)
	}
	var analysis Analysis
	if err := decodeStructured(res.Raw, &analysis); err != nil {
		return model.FromError(err)
	}
	if err := s.artifacts.put(ctx, app.ArtifactKey(model.ArtifactAnalysis), res.Raw, "application/json"); err != nil {
		return model.FromError(err)
	}

	var next *model.JobType
	if sc.Requisition != nil && sc.Requisition.AutoSendSatisfied(analysis.Score) {
		next = model.NextType(model.JobTypeSendInterview)
	}
	return model.Success(model.AppStatusAnalyzed, next)
}

// loadResume reads the stored resume, fetching it from the TMS on first use.
func (s *analyzeStage) loadResume(ctx context.Context, app *model.Application) ([]byte, error) {
	key := app.ResumeKey
	if key == "" {
		key = app.ArtifactKey(model.ArtifactResume)
	}
	ok, err := s.artifacts.exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return s.artifacts.require(ctx, key)
	}

	// a TMS 404 means there is no resume at all, which ClassifyError treats as permanent
	resume, err := call(ctx, s.timeouts.TMS, func(ctx context.Context) ([]byte, error) {
		return s.tms.FetchResume(ctx, app.ExternalID)
	})
	if err != nil {
		return nil, err
	}
	key = app.ArtifactKey(model.ArtifactResume)
	if err := s.artifacts.put(ctx, key, resume, "text/plain"); err != nil {
		return nil, err
	}
	if err := s.apps.SetResumeKey(ctx, repository.NoTX, app.ID, key); err != nil {
		return nil, domain.Transient("record resume key", err)
	}
	return resume, nil
}
