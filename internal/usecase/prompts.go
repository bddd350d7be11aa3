// File: internal/usecase/prompts.go
package usecase

import (
	"encoding/json"
	"fmt"

	"candidate-screening/internal/domain"
)

// Prompt template names understood by the AI adapters.
const (
	PromptResumeAnalysis      = "resume_analysis"
	PromptInterviewEvaluation = "interview_evaluation"
)

// Analysis is the structured output of the analyze stage.
type Analysis struct {
	Score          int      `json:"score"`
	Summary        string   `json:"summary"`
	Strengths      []string `json:"strengths"`
	Concerns       []string `json:"concerns"`
	Recommendation string   `json:"recommendation"`
}

// Evaluation is the structured output of the evaluate stage.
type Evaluation struct {
	Score          int          `json:"score"`
	Summary        string       `json:"summary"`
	Recommendation string       `json:"recommendation"`
	Competencies   []Competency `json:"competencies"`
}

type Competency struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
	Notes  string `json:"notes"`
}

var AnalysisSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["score", "summary", "strengths", "concerns", "recommendation"],
  "properties": {
    "score": {"type": "integer", "minimum": 0, "maximum": 100},
    "summary": {"type": "string", "minLength": 1},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "concerns": {"type": "array", "items": {"type": "string"}},
    "recommendation": {"type": "string", "enum": ["advance", "hold", "reject"]}
  }
}`)

var EvaluationSchema = json.RawMessage(`{
  "type": "object",
  "additionalProperties": false,
  "required": ["score", "summary", "recommendation", "competencies"],
  "properties": {
    "score": {"type": "integer", "minimum": 0, "maximum": 100},
    "summary": {"type": "string", "minLength": 1},
    "recommendation": {"type": "string", "enum": ["hire", "maybe", "no_hire"]},
    "competencies": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "rating", "notes"],
        "properties": {
          "name": {"type": "string"},
          "rating": {"type": "integer", "minimum": 1, "maximum": 5},
          "notes": {"type": "string"}
        }
      }
    }
  }
}`)

// decodeStructured decodes an AI result that already passed schema validation.
func decodeStructured(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.Permanent("decode structured result", fmt.Errorf("%w: %v", domain.ErrSchemaViolation, err))
	}
	return nil
}
