package adapter

import (
	"context"
	"encoding/json"
)

// PromptRequest asks the model to fill a JSON schema from the given input.
type PromptRequest struct {
	// Template names the prompt (e.g. "resume_analysis"); its wording lives with the adapter.
	Template string
	Input    string
	// Schema is a JSON Schema document the answer must conform to.
	Schema json.RawMessage
	Model  string
}

// Usage for a single structured call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StructuredResult is a schema-validated model answer.
type StructuredResult struct {
	Raw      json.RawMessage
	Model    string
	Provider string
	Usage    Usage
}

// AIClient is the port used by the analyze and evaluate stages.
// Answers that fail schema validation are reported as domain.ErrSchemaViolation.
type AIClient interface {
	RunStructuredPrompt(ctx context.Context, req PromptRequest) (*StructuredResult, error)
}
