package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/jfmyers9/encore/internal/store"
)

// telegramLimit is the longest message text Telegram accepts.
const telegramLimit = 4096

// MessageSender is the part of the Telegram bot used for notifications.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram sends notifications to a user's chat.
type Telegram struct {
	sender MessageSender
}

// NewTelegram creates a Telegram notifier for the bot with token. Extra
// options are passed to bot.New.
func NewTelegram(token string, opts ...bot.Option) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{sender: b}, nil
}

// NewTelegramWithSender wraps an existing sender.
func NewTelegramWithSender(sender MessageSender) *Telegram {
	return &Telegram{sender: sender}
}

// Notify implements Notifier.
func (t *Telegram) Notify(ctx context.Context, user store.User, concerts []store.Concert) error {
	if len(concerts) == 0 {
		return nil
	}
	if user.ChatID == 0 {
		return fmt.Errorf("telegram: user %d has no chat id", user.ID)
	}

	text := bot.EscapeMarkdown(FormatConcerts(concerts))
	for _, chunk := range splitMessage(text, telegramLimit) {
		params := &bot.SendMessageParams{
			ChatID:    user.ChatID,
			Text:      chunk,
			ParseMode: models.ParseModeMarkdown,
		}
		if _, err := t.sender.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("telegram: failed to send message to chat %d: %w", user.ChatID, err)
		}
	}
	return nil
}
