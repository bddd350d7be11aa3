// File: internal/usecase/render.go
package usecase

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"candidate-screening/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type invitationView struct {
	CandidateName string
	Title         string
	Link          string
}

type reportView struct {
	CandidateName string
	Title         string
	GeneratedAt   time.Time
	Analysis      Analysis
	Evaluation    Evaluation
}

func renderPage(name string, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		// a broken template will not fix itself on retry
		return nil, domain.Permanent("render "+name, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err))
	}
	return buf.Bytes(), nil
}
