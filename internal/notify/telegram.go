package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-telegram/bot"
)

// Telegram sends messages to one chat through a Telegram bot.
type Telegram struct {
	bot    *bot.Bot
	chatID int64
}

// NewTelegram creates a Telegram channel. The bot is only used for sending,
// so the startup getMe call is skipped.
func NewTelegram(token string, chatID int64, client *http.Client, logger *slog.Logger, opts ...bot.Option) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	if client != nil {
		opts = append(opts, bot.WithHTTPClient(client.Timeout, client))
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

// Name implements Notifier.
func (t *Telegram) Name() string { return "telegram" }

// Send implements Notifier.
func (t *Telegram) Send(ctx context.Context, title, body string) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   title + "\n\n" + body,
	})
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	return nil
}
