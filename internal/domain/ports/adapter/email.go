package adapter

import "context"

type DeliveryResult struct {
	MessageID string
}

// EmailClient sends transactional mail. Delivery failures are transient.
type EmailClient interface {
	Send(ctx context.Context, to, subject, htmlBody string) (DeliveryResult, error)
}
