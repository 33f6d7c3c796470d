package notify

import (
	"context"
	"sync"

	"github.com/harunnryd/opsgate/internal/errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramSender struct {
	token    string
	chatID   int64
	endpoint string

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

func NewTelegramSender(botToken string, chatID int64) *TelegramSender {
	return &TelegramSender{
		token:    botToken,
		chatID:   chatID,
		endpoint: tgbotapi.APIEndpoint,
	}
}

// WithEndpoint overrides the Bot API endpoint format, e.g. for a local proxy.
func (t *TelegramSender) WithEndpoint(endpoint string) *TelegramSender {
	t.endpoint = endpoint
	return t
}

func (t *TelegramSender) Name() string {
	return "telegram"
}

// client connects on first use and retries on the next call after a failure.
func (t *TelegramSender) client() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(t.token, t.endpoint)
	if err != nil {
		return nil, errors.Transient("Telegram connection failed: " + err.Error())
	}
	t.bot = bot
	return bot, nil
}

func (t *TelegramSender) Send(ctx context.Context, content string) error {
	bot, err := t.client()
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, content)
	if _, err := bot.Send(msg); err != nil {
		return errors.Wrap(err, "failed to send telegram message")
	}
	return nil
}

func (t *TelegramSender) Health(ctx context.Context) error {
	bot, err := t.client()
	if err != nil {
		return err
	}
	if _, err := bot.GetMe(); err != nil {
		return errors.Transient("Telegram connection failed: " + err.Error())
	}
	return nil
}
