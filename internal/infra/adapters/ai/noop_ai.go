package ai

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/ports/adapter"
)

var _ adapter.AIClient = (*NoopAIAdapter)(nil)

// NoopAIAdapter answers every prompt with a fixed, schema-conforming result.
// Used in development when no provider key is configured.
type NoopAIAdapter struct {
	log *zerolog.Logger
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	return &NoopAIAdapter{log: logger}
}

var noopAnswers = map[string]json.RawMessage{
	"resume_analysis": json.RawMessage(`{"score":50,"summary":"noop analysis","strengths":[],"concerns":[],"recommendation":"hold"}`),
	"interview_evaluation": json.RawMessage(`{"score":50,"summary":"noop evaluation","recommendation":"maybe","competencies":[]}`),
}

func (a *NoopAIAdapter) RunStructuredPrompt(ctx context.Context, req adapter.PromptRequest) (*adapter.StructuredResult, error) {
	// Simulate slight processing time and respect ctx
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	raw, ok := noopAnswers[req.Template]
	if !ok {
		return nil, domain.Permanent("noop ai", domain.ErrSchemaViolation)
	}
	a.log.Debug().Str("template", req.Template).Int("input_len", len(req.Input)).Msg("noop ai prompt")
	return &adapter.StructuredResult{Raw: raw, Model: "noop", Provider: "noop"}, nil
}
