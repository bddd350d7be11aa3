package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"candidate-screening/internal/domain/ports/adapter"
	"candidate-screening/internal/infra/metrics"
)

var _ adapter.OperatorAlerter = (*NoopAlerter)(nil)

// NoopAlerter logs alerts instead of sending them.
type NoopAlerter struct {
	log *zerolog.Logger
}

func NewNoopAlerter(logger *zerolog.Logger) *NoopAlerter {
	return &NoopAlerter{log: logger}
}

func (n *NoopAlerter) Alert(ctx context.Context, text string) error {
	n.log.Warn().Str("alert", text).Msg("operator alert (noop)")
	metrics.IncAlert("logged")
	return nil
}
