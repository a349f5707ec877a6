package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gmsas95/dosetrack/internal/config"
	apperrors "github.com/gmsas95/dosetrack/internal/errors"
)

// TelegramNotifier pushes reminders to a single chat
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	if !cfg.Enabled || cfg.BotToken == "" {
		return nil, apperrors.ErrChannelNotConfigured
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	api.Debug = false

	return &TelegramNotifier{api: api, chatID: cfg.ChatID}, nil
}

func (n *TelegramNotifier) Name() string { return "telegram" }

func (n *TelegramNotifier) Send(_ context.Context, r Reminder) error {
	msg := tgbotapi.NewMessage(n.chatID, r.Text())
	if _, err := n.api.Send(msg); err != nil {
		return apperrors.Wrap(err, "NOTIF_002", "telegram send failed")
	}
	return nil
}
