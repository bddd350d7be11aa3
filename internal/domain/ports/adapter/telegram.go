package adapter

import "context"

// OperatorAlerter notifies operators about items that need manual review.
type OperatorAlerter interface {
	Alert(ctx context.Context, text string) error
}
