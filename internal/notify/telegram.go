package notify

import (
	"context"
	"fmt"
	"log"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier sends alerts to a Telegram chat via the Bot API.
type TelegramNotifier struct {
	bot    *tgbot.BotAPI
	chatID int64
}

// NewTelegramNotifier creates a Telegram notifier.
// token: Bot API token from @BotFather.
// chatID: target chat/group/channel ID.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) Name() string { return "telegram" }

// Send delivers the alert as plain text. The Bot API client carries no
// context; ctx is accepted to satisfy Notifier.
func (t *TelegramNotifier) Send(ctx context.Context, a Alert) error {
	msg := tgbot.NewMessage(t.chatID, a.Message())
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	log.Printf("[telegram] sent %s alert", a.Side)
	return nil
}
