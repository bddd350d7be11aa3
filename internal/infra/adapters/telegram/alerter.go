package telegram

import (
	"context"
	"fmt"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"candidate-screening/internal/domain"
	"candidate-screening/internal/domain/ports/adapter"
	"candidate-screening/internal/infra/metrics"
)

var _ adapter.OperatorAlerter = (*Alerter)(nil)

// telegram rejects longer messages
const maxMessageLen = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Alerter posts operator alerts into one Telegram chat.
type Alerter struct {
	bot    sender
	chatID int64
	log    *zerolog.Logger
}

func NewAlerter(token string, chatID int64, logger *zerolog.Logger) (*Alerter, error) {
	if token == "" || chatID == 0 {
		return nil, domain.ErrMissingCredentials
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newAlerter(bot, chatID, logger), nil
}

func newAlerter(bot sender, chatID int64, logger *zerolog.Logger) *Alerter {
	l := logger.With().Str("component", "TelegramAlerter").Logger()
	return &Alerter{bot: bot, chatID: chatID, log: &l}
}

func (a *Alerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(a.chatID, clip(text, maxMessageLen))
	msg.DisableWebPagePreview = true
	if _, err := a.bot.Send(msg); err != nil {
		metrics.IncAlert("error")
		return fmt.Errorf("telegram alert: %w", err)
	}
	metrics.IncAlert("sent")
	return nil
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
