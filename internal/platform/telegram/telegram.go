package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hrsched/internal/platform/config"
)

// Sender posts plain-text messages to the configured HR chat.
type Sender interface {
	Send(ctx context.Context, text string) error
}

type noopSender struct{}

func (noopSender) Send(ctx context.Context, text string) error {
	return nil
}

type botSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func New(cfg config.Config) (Sender, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" || cfg.TelegramChatID == 0 {
		return noopSender{}, nil
	}
	return newBotSender(cfg.TelegramToken, tgbotapi.APIEndpoint, cfg.TelegramChatID, &http.Client{Timeout: 10 * time.Second})
}

func newBotSender(token, endpoint string, chatID int64, client *http.Client) (*botSender, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &botSender{bot: bot, chatID: chatID}, nil
}

func (s *botSender) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.DisableWebPagePreview = true
	_, err := s.bot.Send(msg)
	return err
}
