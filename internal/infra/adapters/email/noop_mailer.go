package email

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"candidate-screening/internal/domain/ports/adapter"
)

var _ adapter.EmailClient = (*NoopMailer)(nil)

// NoopMailer logs mail instead of sending it.
type NoopMailer struct {
	log *zerolog.Logger
}

func NewNoopMailer(logger *zerolog.Logger) *NoopMailer {
	return &NoopMailer{log: logger}
}

func (n *NoopMailer) Send(ctx context.Context, to, subject, htmlBody string) (adapter.DeliveryResult, error) {
	id := uuid.NewString()
	n.log.Info().Str("to", to).Str("subject", subject).Int("body_len", len(htmlBody)).Str("message_id", id).Msg("noop mail")
	return adapter.DeliveryResult{MessageID: id}, nil
}
