package push

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotSender is the part of tgbotapi.BotAPI used for delivery.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers reminders as bot messages. The user's push token is
// the numeric chat id.
type Telegram struct {
	bot BotSender
}

// NewTelegram wraps an authorized bot.
func NewTelegram(bot BotSender) *Telegram {
	return &Telegram{bot: bot}
}

func (t *Telegram) Send(_ context.Context, token string, msg Message) error {
	if token == "" {
		return ErrEmptyToken
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", token, err)
	}
	m := tgbotapi.NewMessage(chatID, telegramText(msg))
	m.DisableWebPagePreview = true
	if _, err := t.bot.Send(m); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func telegramText(msg Message) string {
	if msg.Title == "" {
		return msg.Body
	}
	return msg.Title + "\n\n" + msg.Body
}
