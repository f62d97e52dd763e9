package alertport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Package alertport provides the outbound interface between the kiosk and
// operator notification channels (Telegram, logs, fakes).

// Alert is a delivered notification.
type Alert struct {
	ChatID    int64
	MessageID int
	Transport string
	Text      string
	SentAt    time.Time
}

// AlertError wraps adapter failures with retry hints and normalized codes.
type AlertError struct {
	Op         string
	Code       string
	RetryAfter time.Duration
	Wrapped    error
}

func (e *AlertError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

// Unwrap exposes the underlying adapter error for errors.Is/As.
func (e *AlertError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Wrapped
}

// NewAlertError builds an AlertError with the provided operation/code, preserving the wrapped error.
func NewAlertError(op, code string, err error) *AlertError {
	return &AlertError{
		Op:      op,
		Code:    code,
		Wrapped: err,
	}
}

// IsCode determines whether err represents an AlertError with the provided code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var ae *AlertError
	if errors.As(err, &ae) {
		return ae != nil && ae.Code == code
	}
	return false
}

// Notifier abstracts outbound operator notifications.
type Notifier interface {
	Notify(ctx context.Context, text string) (Alert, error)
}
