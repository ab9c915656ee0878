// Package push delivers best-effort notifications to users who are not
// currently connected, through their linked Telegram chat.
package push

import (
	"fmt"
	"log"

	"teamgrid/backend/internal/models"
	"teamgrid/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramPusher implements the realtime.Pusher collaborator.
type TelegramPusher struct {
	bot     *tgbotapi.BotAPI
	storage storage.Storage
}

func NewTelegramPusher(token string, st storage.Storage) (*TelegramPusher, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	log.Printf("push: telegram bot authorized as %s", bot.Self.UserName)
	return &TelegramPusher{bot: bot, storage: st}, nil
}

// Push sends one notification. Users without a linked chat are skipped
// silently; that is the normal case, not an error.
func (p *TelegramPusher) Push(userID string, ev models.Event) error {
	user, err := p.storage.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("push target lookup: %w", err)
	}
	if user.TelegramChatID == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(user.TelegramChatID, formatEvent(ev))
	if _, err := p.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func formatEvent(ev models.Event) string {
	switch ev.Type {
	case models.EventMessage:
		return fmt.Sprintf("New message from %s: %s", ev.SenderID, ev.Content)
	case models.EventCallInvitation:
		return fmt.Sprintf("Incoming %s call from %s", ev.Content, ev.SenderID)
	default:
		return fmt.Sprintf("New activity: %s", ev.Type)
	}
}

// LogPusher is the fallback collaborator used when no Telegram token is
// configured; it only records that a notification would have gone out.
type LogPusher struct{}

func (LogPusher) Push(userID string, ev models.Event) error {
	log.Printf("push: (noop) %s notification for user %s", ev.Type, userID)
	return nil
}
