package telegramadapter

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dkalashnik/kiosk-survey/pkg/bot"
	"github.com/dkalashnik/kiosk-survey/pkg/log"
	"github.com/dkalashnik/kiosk-survey/pkg/ports/alertport"
)

// Package telegramadapter implements alertport.Notifier on top of the
// Telegram client.

type telegramClient interface {
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
}

// Adapter sends alerts to one Telegram chat.
type Adapter struct {
	client telegramClient
	chatID int64
	now    func() time.Time
	logger log.Printer
}

var _ telegramClient = (*bot.Client)(nil)
var _ alertport.Notifier = (*Adapter)(nil)

// New constructs a Telegram adapter that posts into chatID.
func New(client telegramClient, chatID int64, logger log.Printer) (*Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("telegramadapter: client is nil")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegramadapter: chat id is zero")
	}
	return &Adapter{
		client: client,
		chatID: chatID,
		now:    time.Now,
		logger: log.OrDefault(logger),
	}, nil
}

// Notify sends text and returns the delivered alert.
func (a *Adapter) Notify(ctx context.Context, text string) (alertport.Alert, error) {
	if err := ctx.Err(); err != nil {
		return alertport.Alert{}, wrapContextError("notify", err)
	}
	if strings.TrimSpace(text) == "" {
		return alertport.Alert{}, alertport.NewAlertError("notify", "bad_payload", errors.New("empty alert text"))
	}
	msg, err := a.client.SendMessage(a.chatID, text)
	if err != nil {
		return alertport.Alert{}, a.wrapAndLogError("notify", err)
	}
	alert := alertport.Alert{
		ChatID:    chatIDFromMessage(msg, a.chatID),
		MessageID: msg.MessageID,
		Transport: "telegram",
		Text:      text,
		SentAt:    a.now(),
	}
	a.log("notify", map[string]any{"chat_id": alert.ChatID, "message_id": alert.MessageID})
	return alert, nil
}

func (a *Adapter) wrapAndLogError(op string, err error) error {
	wrapped := wrapTelegramError(op, err)
	a.log(op, map[string]any{
		"chat_id": a.chatID,
		"code":    getAlertErrorCode(wrapped),
		"error":   err.Error(),
	})
	return wrapped
}

func (a *Adapter) log(op string, attrs map[string]any) {
	if a.logger == nil {
		return
	}
	a.logger.Printf("alertport op=%s attrs=%v", op, attrs)
}

func chatIDFromMessage(msg tgbotapi.Message, fallback int64) int64 {
	if msg.Chat != nil {
		return msg.Chat.ID
	}
	return fallback
}

func wrapContextError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return &alertport.AlertError{Op: op, Code: "context_canceled", Wrapped: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &alertport.AlertError{Op: op, Code: "context_deadline", Wrapped: err}
	}
	return &alertport.AlertError{Op: op, Code: "context_error", Wrapped: err}
}

func wrapTelegramError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return wrapContextError(op, err)
	}
	code, retry := classifyTelegramError(err)
	return &alertport.AlertError{
		Op:         op,
		Code:       code,
		RetryAfter: retry,
		Wrapped:    err,
	}
}

var retryAfterRegex = regexp.MustCompile(`(?i)retry after (\d+)`)

func classifyTelegramError(err error) (string, time.Duration) {
	if err == nil {
		return "unknown", 0
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "too many requests"):
		return "rate_limited", extractRetryAfter(msg)
	case strings.Contains(msg, "chat not found"):
		return "chat_not_found", 0
	case strings.Contains(msg, "bad request"):
		return "bad_request", 0
	case strings.Contains(msg, "forbidden"):
		return "forbidden", 0
	case strings.Contains(msg, "unauthorized"):
		return "unauthorized", 0
	default:
		return "unknown", 0
	}
}

func extractRetryAfter(msg string) time.Duration {
	matches := retryAfterRegex.FindStringSubmatch(msg)
	if len(matches) != 2 {
		return 0
	}
	seconds, err := time.ParseDuration(matches[1] + "s")
	if err != nil {
		return 0
	}
	return seconds
}

func getAlertErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var ae *alertport.AlertError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
