// File: internal/usecase/stage_evaluate.go
package usecase

import (
	"context"
	"fmt"

	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/domain/ports/adapter"
	"candidate-screening/internal/domain/ports/repository"
)

var _ StageHandler = (*evaluateStage)(nil)

// evaluateStage scores the interview transcript and stores evaluation.json.
type evaluateStage struct {
	ai        adapter.AIClient
	artifacts artifactIO
	timeouts  Timeouts
}

func NewEvaluateStage(ai adapter.AIClient, store repository.ArtifactStore, timeouts Timeouts) *evaluateStage {
	t := timeouts.withDefaults()
	return &evaluateStage{ai: ai, artifacts: artifactIO{store: store, timeout: t.Artifacts}, timeouts: t}
}

func (s *evaluateStage) Type() model.JobType   { return model.JobTypeEvaluate }
func (s *evaluateStage) Next() []model.JobType { return []model.JobType{model.JobTypeGenerateReport} }

func (s *evaluateStage) Execute(ctx context.Context, job *model.Job, sc *StageContext) model.StageResult {
	app, err := requireApplication(sc)
	if err != nil {
		return model.FromError(err)
	}
	transcript, err := s.artifacts.require(ctx, app.ArtifactKey(model.ArtifactTranscript))
	if err != nil {
		return model.FromError(err)
	}

	input := string(transcript)
	// the analysis is optional context for the evaluator
	if ok, err := s.artifacts.exists(ctx, app.ArtifactKey(model.ArtifactAnalysis)); err == nil && ok {
		if analysis, err := s.artifacts.require(ctx, app.ArtifactKey(model.ArtifactAnalysis)); err == nil {
			input = fmt.Sprintf("RESUME ANALYSIS:\n%s\n\nINTERVIEW TRANSCRIPT:\n%s", analysis, transcript)
		}
	}

	res, err := call(ctx, s.timeouts.AI, func(ctx context.Context) (*adapter.StructuredResult, error) {
		return s.ai.RunStructuredPrompt(ctx, adapter.PromptRequest{
			Template: PromptInterviewEvaluation,
			Input:    input,
			Schema:   EvaluationSchema,
		})
	})
	if err != nil {
		return model.FromError(err)
	}
	var ev Evaluation
	if err := decodeStructured(res.Raw, &ev); err != nil {
		return model.FromError(err)
	}
	if err := s.artifacts.put(ctx, app.ArtifactKey(model.ArtifactEvaluation), res.Raw, "application/json"); err != nil {
		return model.FromError(err)
	}
	return model.Success(model.AppStatusInterviewComplete, model.NextType(model.JobTypeGenerateReport))
}
