package ai

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"text/template"

	"candidate-screening/internal/domain"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// SystemPrompt renders the instructions for a named prompt template.
func SystemPrompt(name string, schema json.RawMessage) (string, error) {
	t := prompts.Lookup(name + ".tmpl")
	if t == nil {
		return "", domain.Fatal("ai prompt", fmt.Errorf("%w: unknown prompt template %q", domain.ErrInvalidArgument, name))
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, struct{ Schema string }{Schema: string(schema)}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
