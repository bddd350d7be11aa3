// File: internal/usecase/stage_report.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/domain/ports/adapter"
	"candidate-screening/internal/domain/ports/repository"
)

var (
	_ StageHandler = (*generateReportStage)(nil)
	_ StageHandler = (*uploadReportStage)(nil)
)

// generateReportStage renders report.html from the analysis and the evaluation.
type generateReportStage struct {
	artifacts artifactIO
}

func NewGenerateReportStage(store repository.ArtifactStore, timeouts Timeouts) *generateReportStage {
	t := timeouts.withDefaults()
	return &generateReportStage{artifacts: artifactIO{store: store, timeout: t.Artifacts}}
}

func (s *generateReportStage) Type() model.JobType   { return model.JobTypeGenerateReport }
func (s *generateReportStage) Next() []model.JobType { return []model.JobType{model.JobTypeUploadReport} }

func (s *generateReportStage) Execute(ctx context.Context, job *model.Job, sc *StageContext) model.StageResult {
	app, err := requireApplication(sc)
	if err != nil {
		return model.FromError(err)
	}
	view := reportView{CandidateName: app.CandidateName, GeneratedAt: sc.Now}
	if sc.Requisition != nil {
		view.Title = sc.Requisition.Title
	}
	if err := s.artifacts.requireJSON(ctx, app.ArtifactKey(model.ArtifactAnalysis), &view.Analysis); err != nil {
		return model.FromError(err)
	}
	if err := s.artifacts.requireJSON(ctx, app.ArtifactKey(model.ArtifactEvaluation), &view.Evaluation); err != nil {
		return model.FromError(err)
	}

	html, err := renderPage("report.html", view)
	if err != nil {
		return model.FromError(err)
	}
	if err := s.artifacts.put(ctx, app.ArtifactKey(model.ArtifactReport), html, "text/html; charset=utf-8"); err != nil {
		return model.FromError(err)
	}
	return model.Success(model.AppStatusReportPending, model.NextType(model.JobTypeUploadReport))
}

// uploadReportStage attaches the report to the application in the TMS.
// It looks for an earlier upload first, so a retry after a partial failure never duplicates the document.
type uploadReportStage struct {
	tms       adapter.TMSClient
	apps      repository.ApplicationRepository
	artifacts artifactIO
	timeouts  Timeouts
}

func NewUploadReportStage(
	tms adapter.TMSClient,
	apps repository.ApplicationRepository,
	store repository.ArtifactStore,
	timeouts Timeouts,
) *uploadReportStage {
	t := timeouts.withDefaults()
	return &uploadReportStage{tms: tms, apps: apps, artifacts: artifactIO{store: store, timeout: t.Artifacts}, timeouts: t}
}

func (s *uploadReportStage) Type() model.JobType   { return model.JobTypeUploadReport }
func (s *uploadReportStage) Next() []model.JobType { return nil }

// ReportFilename is the document name used in the TMS.
func ReportFilename(app *model.Application) string {
	return fmt.Sprintf("screening-report-%s.html", app.ExternalID)
}

func (s *uploadReportStage) Execute(ctx context.Context, job *model.Job, sc *StageContext) model.StageResult {
	app, err := requireApplication(sc)
	if err != nil {
		return model.FromError(err)
	}
	if app.ReportDocumentID != "" {
		return model.Success(model.AppStatusComplete, nil)
	}
	report, err := s.artifacts.require(ctx, app.ArtifactKey(model.ArtifactReport))
	if err != nil {
		return model.FromError(err)
	}

	filename := ReportFilename(app)
	type lookup struct {
		id    string
		found bool
	}
	existing, err := call(ctx, s.timeouts.TMS, func(ctx context.Context) (lookup, error) {
		id, found, err := s.tms.FindDocument(ctx, app.ExternalID, filename)
		return lookup{id: id, found: found}, err
	})
	if err != nil {
		return model.FromError(err)
	}

	docID := existing.id
	if !existing.found {
		docID, err = call(ctx, s.timeouts.TMS, func(ctx context.Context) (string, error) {
			return s.tms.UploadDocument(ctx, app.ExternalID, report, filename)
		})
		if err != nil {
			return model.FromError(err)
		}
	}

	if err := s.apps.SetReportDocument(ctx, repository.NoTX, app.ID, docID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return model.FromError(domain.Permanent("record report document", err))
		}
		return model.FromError(domain.Transient("record report document", err))
	}
	return model.Success(model.AppStatusComplete, nil)
}
