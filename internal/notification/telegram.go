package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrInvalidRecipient marks recipients a channel can never deliver to. Such
// failures are not queued for retry.
var ErrInvalidRecipient = errors.New("invalid recipient")

// MessageSender delivers a direct message to a recipient handle.
type MessageSender interface {
	SendMessage(ctx context.Context, recipient, text string) error
}

type botClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender sends direct messages through the Telegram bot API. The
// recipient is the numeric chat id stored as the student's phone handle.
type TelegramSender struct {
	bot botClient
}

// NewTelegramSender authenticates the bot token against the Telegram API.
func NewTelegramSender(token string) (*TelegramSender, error) {
	// The HTTP timeout also ends a Send that SendMessage stopped waiting for.
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: DefaultSendTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false
	return &TelegramSender{bot: bot}, nil
}

func newTelegramSenderWithClient(bot botClient) *TelegramSender {
	return &TelegramSender{bot: bot}
}

// SendMessage sends text to the chat identified by recipient.
func (s *TelegramSender) SendMessage(ctx context.Context, recipient, text string) error {
	chatID, err := parseChatID(recipient)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	done := make(chan error, 1)
	go func() {
		_, sendErr := s.bot.Send(msg)
		done <- sendErr
	}()

	select {
	case <-ctx.Done():
		// The request keeps running and may still reach the chat after the
		// payload was queued for retry, so delivery is at least once.
		return fmt.Errorf("telegram send aborted: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send telegram message: %w", err)
		}
		return nil
	}
}

func parseChatID(recipient string) (int64, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "+", "").Replace(strings.TrimSpace(recipient))
	chatID, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || chatID == 0 {
		return 0, fmt.Errorf("%w: %q is not a chat id", ErrInvalidRecipient, recipient)
	}
	return chatID, nil
}
