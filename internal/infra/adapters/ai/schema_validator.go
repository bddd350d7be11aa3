package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/ports/adapter"
	"candidate-screening/internal/infra/metrics"
)

var _ adapter.AIClient = (*validatingAI)(nil)

// validatingAI rejects answers that do not match the request's JSON schema.
type validatingAI struct {
	inner adapter.AIClient

	mu      sync.Mutex
	schemas map[string]*openapi3.Schema
}

func NewValidatingAI(inner adapter.AIClient) adapter.AIClient {
	return &validatingAI{inner: inner, schemas: map[string]*openapi3.Schema{}}
}

func (v *validatingAI) RunStructuredPrompt(ctx context.Context, req adapter.PromptRequest) (*adapter.StructuredResult, error) {
	schema, err := v.compile(req.Schema)
	if err != nil {
		return nil, err
	}
	res, err := v.inner.RunStructuredPrompt(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := ValidateJSON(schema, res.Raw); err != nil {
		metrics.IncAISchemaViolation(req.Template)
		return nil, err
	}
	return res, nil
}

func (v *validatingAI) compile(raw json.RawMessage) (*openapi3.Schema, error) {
	key := string(raw)
	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.schemas[key]; ok {
		return s, nil
	}
	s, err := ParseSchema(raw)
	if err != nil {
		return nil, err
	}
	v.schemas[key] = s
	return s, nil
}

// ParseSchema loads a JSON Schema document. A broken schema is a configuration problem.
func ParseSchema(raw json.RawMessage) (*openapi3.Schema, error) {
	s := openapi3.NewSchema()
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, domain.Fatal("ai schema", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err))
	}
	return s, nil
}

// ValidateJSON checks raw against schema and reports violations as permanent failures.
func ValidateJSON(schema *openapi3.Schema, raw json.RawMessage) error {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return domain.Permanent("ai result", fmt.Errorf("%w: not json: %v", domain.ErrSchemaViolation, err))
	}
	if err := schema.VisitJSON(value, openapi3.MultiErrors()); err != nil {
		return domain.Permanent("ai result", fmt.Errorf("%w: %v", domain.ErrSchemaViolation, err))
	}
	return nil
}
