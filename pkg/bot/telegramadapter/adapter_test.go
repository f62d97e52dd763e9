package telegramadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dkalashnik/kiosk-survey/pkg/ports/alertport"
)

func TestAdapterNotifySuccess(t *testing.T) {
	fc := &fakeClient{
		sendFn: func(chatID int64, text string) (tgbotapi.Message, error) {
			return tgbotapi.Message{
				MessageID: 42,
				Text:      text,
				Chat:      &tgbotapi.Chat{ID: chatID},
			}, nil
		},
	}
	adapter, err := New(fc, -100, testLogger{t})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	alert, err := adapter.Notify(context.Background(), "cola alta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alert.ChatID != -100 || alert.MessageID != 42 {
		t.Fatalf("unexpected alert: %+v", alert)
	}
	if alert.Transport != "telegram" {
		t.Fatalf("expected transport 'telegram', got %s", alert.Transport)
	}
	if fc.lastText != "cola alta" {
		t.Fatalf("expected text forwarded, got %q", fc.lastText)
	}
}

func TestAdapterNotifyWrapsRateLimitError(t *testing.T) {
	fc := &fakeClient{
		sendFn: func(int64, string) (tgbotapi.Message, error) {
			return tgbotapi.Message{}, errors.New("Too Many Requests: retry after 3")
		},
	}
	adapter, err := New(fc, 1, testLogger{t})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = adapter.Notify(context.Background(), "hi")
	if err == nil {
		t.Fatalf("expected error")
	}
	var ae *alertport.AlertError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AlertError, got %T", err)
	}
	if ae.Code != "rate_limited" {
		t.Fatalf("expected rate_limited code, got %s", ae.Code)
	}
	if ae.RetryAfter != 3*time.Second {
		t.Fatalf("expected RetryAfter=3s, got %v", ae.RetryAfter)
	}
}

func TestAdapterNotifyClassifiesErrors(t *testing.T) {
	cases := map[string]string{
		"Bad Request: chat not found":        "chat_not_found",
		"Forbidden: bot was kicked":          "forbidden",
		"Unauthorized":                       "unauthorized",
		"Bad Request: message text is empty": "bad_request",
		"connection reset":                   "unknown",
	}
	for msg, code := range cases {
		fc := &fakeClient{sendFn: func(int64, string) (tgbotapi.Message, error) {
			return tgbotapi.Message{}, errors.New(msg)
		}}
		adapter, _ := New(fc, 1, testLogger{t})
		_, err := adapter.Notify(context.Background(), "x")
		if !alertport.IsCode(err, code) {
			t.Fatalf("%q: expected code %s, got %v", msg, code, err)
		}
	}
}

func TestAdapterNotifyRejectsCanceledContextAndEmptyText(t *testing.T) {
	adapter, err := New(&fakeClient{}, 1, testLogger{t})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := adapter.Notify(ctx, "x"); !alertport.IsCode(err, "context_canceled") {
		t.Fatalf("expected context_canceled, got %v", err)
	}
	if _, err := adapter.Notify(context.Background(), "  "); !alertport.IsCode(err, "bad_payload") {
		t.Fatalf("expected bad_payload, got %v", err)
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New(nil, 1, nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := New(&fakeClient{}, 0, nil); err == nil {
		t.Fatalf("expected error for zero chat id")
	}
}

type fakeClient struct {
	sendFn   func(chatID int64, text string) (tgbotapi.Message, error)
	lastText string
}

func (f *fakeClient) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	f.lastText = text
	if f.sendFn == nil {
		return tgbotapi.Message{}, nil
	}
	return f.sendFn(chatID, text)
}

type testLogger struct {
	t *testing.T
}

func (l testLogger) Printf(format string, args ...any) {
	l.t.Logf(format, args...)
}
