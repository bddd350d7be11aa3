// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"strings"
	"time"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/ports/adapter"
	"candidate-screening/internal/infra/metrics"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

var _ adapter.AIClient = (*MultiAIAdapter)(nil)

// MultiAIAdapter routes each prompt to a provider by model name and records call metrics.
type MultiAIAdapter struct {
	defaultModel    string
	defaultProvider string
	byProvider      map[string]adapter.AIClient
	modelToProvider map[string]string // model -> provider ("openai" | "gemini")
}

func NewMultiAIAdapter(
	defaultModel string,
	byProvider map[string]adapter.AIClient,
	modelToProvider map[string]string,
) *MultiAIAdapter {
	m := &MultiAIAdapter{
		defaultModel:    defaultModel,
		byProvider:      byProvider,
		modelToProvider: modelToProvider,
	}
	m.defaultProvider = m.resolveProvider(defaultModel)
	if m.defaultProvider == "" {
		m.defaultProvider = ProviderOpenAI
	}
	return m
}

func (m *MultiAIAdapter) resolveProvider(model string) string {
	if p := m.modelToProvider[model]; p != "" {
		return strings.ToLower(p)
	}
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return ProviderGemini
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"), strings.HasPrefix(l, "o4"):
		return ProviderOpenAI
	default:
		return m.defaultProvider
	}
}

func (m *MultiAIAdapter) pick(model string) (string, adapter.AIClient) {
	prov := m.resolveProvider(model)
	if a := m.byProvider[prov]; a != nil {
		return prov, a
	}
	return prov, nil
}

func (m *MultiAIAdapter) RunStructuredPrompt(ctx context.Context, req adapter.PromptRequest) (*adapter.StructuredResult, error) {
	if req.Model == "" {
		req.Model = m.defaultModel
	}
	prov, a := m.pick(req.Model)
	if a == nil {
		return nil, domain.Fatal("ai", domain.ErrMissingCredentials)
	}

	start := time.Now()
	res, err := a.RunStructuredPrompt(ctx, req)
	latency := int(time.Since(start) / time.Millisecond)
	if err != nil {
		metrics.ObserveAICall(prov, req.Model, 0, 0, latency, false)
		return nil, err
	}
	metrics.ObserveAICall(prov, req.Model, res.Usage.PromptTokens, res.Usage.CompletionTokens, latency, true)
	return res, nil
}
