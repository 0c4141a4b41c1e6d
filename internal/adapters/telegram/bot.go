package telegram

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"vega/internal/adapters/config"
	"vega/pkg/errors"
	"vega/pkg/logger"
)

// Bot delivers one pre-formatted message to the configured chat.
// Delivery failures are reported, never retried.
type Bot interface {
	Send(text string) error
}

// APIBot is the live Telegram implementation, rate limited client-side to
// stay under the Bot API per-chat ceiling.
type APIBot struct {
	api     *tgbotapi.BotAPI
	chatID  int64
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewAPIBot(cfg config.TelegramConfig, log *logger.Logger) (*APIBot, error) {
	if cfg.BotToken == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "telegram bot token is required")
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}

	log.Infof("Authorized on account %s", api.Self.UserName)

	return &APIBot{
		api:     api,
		chatID:  cfg.ChatID,
		limiter: rate.NewLimiter(rate.Limit(1), 3),
		log:     log.With("component", "telegram_bot"),
	}, nil
}

// Send delivers one HTML-formatted message, blocking on the rate limiter
func (b *APIBot) Send(text string) error {
	if err := b.limiter.Wait(context.Background()); err != nil {
		return errors.Wrap(err, "rate limiter error")
	}

	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		b.log.Errorw("Failed to send message", "chat_id", b.chatID, "error", err)
		return errors.Wrap(err, "failed to send telegram message")
	}
	return nil
}

// NoopBot swallows messages when Telegram is disabled
type NoopBot struct{}

func (NoopBot) Send(string) error { return nil }
