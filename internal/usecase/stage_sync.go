// File: internal/usecase/stage_sync.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/model"
	"candidate-screening/internal/domain/ports/adapter"
)

var _ StageHandler = (*syncStage)(nil)

// syncStage pulls new applications for one requisition from the TMS.
type syncStage struct {
	tms      adapter.TMSClient
	lookback time.Duration
	timeouts Timeouts
	log      *zerolog.Logger
}

func NewSyncStage(tms adapter.TMSClient, lookback time.Duration, timeouts Timeouts, logger *zerolog.Logger) *syncStage {
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	return &syncStage{tms: tms, lookback: lookback, timeouts: timeouts.withDefaults(), log: logger}
}

func (s *syncStage) Type() model.JobType   { return model.JobTypeSync }
func (s *syncStage) Next() []model.JobType { return []model.JobType{model.JobTypeAnalyze} }

func (s *syncStage) Execute(ctx context.Context, job *model.Job, sc *StageContext) model.StageResult {
	req := sc.Requisition
	if req == nil {
		return model.PermanentFailure("sync job without requisition")
	}
	if !req.Active {
		return model.FromError(domain.Fatal("sync", domain.ErrRequisitionInactive))
	}

	window := s.lookback
	if req.LastSyncedAt != nil {
		if since := sc.Now.Sub(*req.LastSyncedAt); since > 0 && since < window {
			window = since
		}
	}

	records, err := call(ctx, s.timeouts.TMS, func(ctx context.Context) ([]adapter.ApplicationRecord, error) {
		return s.tms.FetchNewApplications(ctx, req.ExternalID, window)
	})
	if err != nil {
		return model.FromError(err)
	}

	discovered := make([]*model.Application, 0, len(records))
	for _, rec := range records {
		app, err := model.NewDiscoveredApplication(req.ID, rec.ExternalID, rec.CandidateName, rec.CandidateEmail)
		if err != nil {
			s.log.Warn().Str("requisition_id", req.ID).Str("external_id", rec.ExternalID).Msg("skipping malformed TMS record")
			continue
		}
		discovered = append(discovered, app)
	}
	s.log.Debug().Str("requisition_id", req.ID).Int("records", len(records)).Dur("window", window).Msg("sync fetched")
	return model.SyncSuccess(discovered)
}
