package ai_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/ports/adapter"
	ai "candidate-screening/internal/infra/adapters/ai"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type stubAI struct {
	name      string
	calls     int
	lastModel string
	lastInput string
	raw       json.RawMessage
	err       error
}

func (s *stubAI) RunStructuredPrompt(ctx context.Context, req adapter.PromptRequest) (*adapter.StructuredResult, error) {
	s.calls++
	s.lastModel = req.Model
	s.lastInput = req.Input
	if s.err != nil {
		return nil, s.err
	}
	raw := s.raw
	if raw == nil {
		raw = json.RawMessage(`{}`)
	}
	return &adapter.StructuredResult{Raw: raw, Model: req.Model, Provider: s.name}, nil
}

func TestRouting_ExplicitMap_Heuristics_And_Fallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	open := &stubAI{name: "openai"}
	gem := &stubAI{name: "gemini"}

	m := ai.NewMultiAIAdapter(
		"gpt-4o-mini",
		map[string]adapter.AIClient{"openai": open, "gemini": gem},
		map[string]string{"custom-x": "gemini"},
	)

	// explicit map wins
	_, _ = m.RunStructuredPrompt(ctx, adapter.PromptRequest{Model: "custom-x"})
	if gem.calls != 1 || open.calls != 0 {
		t.Fatalf("explicit map should route to gemini, got open:%d gem:%d", open.calls, gem.calls)
	}
	open.calls, gem.calls = 0, 0

	// gemini-* -> gemini
	_, _ = m.RunStructuredPrompt(ctx, adapter.PromptRequest{Model: "gemini-1.5-flash"})
	if gem.calls != 1 || open.calls != 0 {
		t.Fatalf("heuristic gemini-* should go gemini")
	}
	open.calls, gem.calls = 0, 0

	// empty model -> default model on its provider
	_, _ = m.RunStructuredPrompt(ctx, adapter.PromptRequest{})
	if open.calls != 1 || open.lastModel != "gpt-4o-mini" {
		t.Fatalf("empty model should use the default, got calls=%d model=%q", open.calls, open.lastModel)
	}
	open.calls = 0

	// unknown -> default provider
	_, _ = m.RunStructuredPrompt(ctx, adapter.PromptRequest{Model: "unknown"})
	if open.calls != 1 || gem.calls != 0 {
		t.Fatalf("unknown model should go to default provider (openai)")
	}
}

func TestRouting_MissingProviderIsFatal(t *testing.T) {
	m := ai.NewMultiAIAdapter("gpt-4o-mini", map[string]adapter.AIClient{}, nil)
	_, err := m.RunStructuredPrompt(context.Background(), adapter.PromptRequest{Model: "gemini-2.0-flash"})
	if domain.ClassifyError(err) != domain.FailureFatal {
		t.Fatalf("expected fatal failure, got %v", err)
	}
}

const testSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["score", "verdict"],
  "properties": {
    "score": {"type": "integer", "minimum": 0, "maximum": 100},
    "verdict": {"type": "string", "enum": ["yes", "no"]}
  }
}`

func TestValidatingAI(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"score": 70, "verdict": "yes"}`, false},
		{"missing field", `{"score": 70}`, true},
		{"out of range", `{"score": 170, "verdict": "yes"}`, true},
		{"bad enum", `{"score": 70, "verdict": "maybe"}`, true},
		{"extra field", `{"score": 70, "verdict": "no", "x": 1}`, true},
		{"not json", `score: 70`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inner := &stubAI{raw: json.RawMessage(tc.raw)}
			v := ai.NewValidatingAI(inner)
			_, err := v.RunStructuredPrompt(context.Background(), adapter.PromptRequest{Template: "t", Schema: json.RawMessage(testSchema)})
			if tc.wantErr {
				if !errors.Is(err, domain.ErrSchemaViolation) || domain.ClassifyError(err) != domain.FailurePermanent {
					t.Fatalf("expected permanent schema violation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestValidatingAI_BrokenSchemaIsFatal(t *testing.T) {
	inner := &stubAI{}
	v := ai.NewValidatingAI(inner)
	_, err := v.RunStructuredPrompt(context.Background(), adapter.PromptRequest{Schema: json.RawMessage(`{"type":`)})
	if domain.ClassifyError(err) != domain.FailureFatal {
		t.Fatalf("expected fatal failure, got %v", err)
	}
	if inner.calls != 0 {
		t.Fatal("provider should not be called with a broken schema")
	}
}

func TestTokenBudgetAI_TruncatesLongInput(t *testing.T) {
	inner := &stubAI{}
	b := ai.NewTokenBudgetAI(inner, 100, newTestLogger())
	long := strings.Repeat("word ", 5000)
	if _, err := b.RunStructuredPrompt(context.Background(), adapter.PromptRequest{Model: "gpt-4o-mini", Input: long}); err != nil {
		t.Fatal(err)
	}
	if len(inner.lastInput) >= len(long) || !strings.HasPrefix(long, inner.lastInput) {
		t.Fatalf("expected a truncated prefix, got %d bytes", len(inner.lastInput))
	}

	short := "a short resume"
	_, _ = b.RunStructuredPrompt(context.Background(), adapter.PromptRequest{Model: "gpt-4o-mini", Input: short})
	if inner.lastInput != short {
		t.Fatalf("short input should pass unchanged, got %q", inner.lastInput)
	}
}

func TestSystemPrompt(t *testing.T) {
	s, err := ai.SystemPrompt("resume_analysis", json.RawMessage(testSchema))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s, `"verdict"`) {
		t.Error("prompt should embed the schema")
	}
	if _, err := ai.SystemPrompt("nope", nil); domain.ClassifyError(err) != domain.FailureFatal {
		t.Fatalf("unknown template should be fatal, got %v", err)
	}
}
