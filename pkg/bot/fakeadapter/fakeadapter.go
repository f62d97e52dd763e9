package fakeadapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkalashnik/kiosk-survey/pkg/ports/alertport"
)

// FakeAdapter implements alertport.Notifier for headless tests.
type FakeAdapter struct {
	mu            sync.Mutex
	Calls         []Call
	NextMessageID int
	FailNext      map[string]error
}

// Call captures a notifier invocation.
type Call struct {
	Op        string
	MessageID int
	Text      string
}

var _ alertport.Notifier = (*FakeAdapter)(nil)

// Notify records the alert and returns a synthetic delivery.
func (f *FakeAdapter) Notify(ctx context.Context, text string) (alertport.Alert, error) {
	if err := ctx.Err(); err != nil {
		return alertport.Alert{}, wrapContextError("notify", err)
	}
	if err := f.maybeFail("notify"); err != nil {
		return alertport.Alert{}, err
	}
	msgID := f.nextMessageID()
	f.record(Call{Op: "notify", MessageID: msgID, Text: text})
	return alertport.Alert{MessageID: msgID, Transport: "fake", Text: text, SentAt: time.Now()}, nil
}

// Fail configures the next call for op to return err (wrapped as AlertError if needed).
func (f *FakeAdapter) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext == nil {
		f.FailNext = make(map[string]error)
	}
	f.FailNext[op] = err
}

// LastCall returns the most recent call for the given op.
func (f *FakeAdapter) LastCall(op string) *Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Calls) - 1; i >= 0; i-- {
		if f.Calls[i].Op == op {
			c := f.Calls[i]
			return &c
		}
	}
	return nil
}

// Count returns how many calls were recorded for op.
func (f *FakeAdapter) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *FakeAdapter) nextMessageID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NextMessageID == 0 {
		f.NextMessageID = 1
	}
	id := f.NextMessageID
	f.NextMessageID++
	return id
}

func (f *FakeAdapter) record(call Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
}

func (f *FakeAdapter) maybeFail(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext == nil {
		return nil
	}
	err, ok := f.FailNext[op]
	if !ok {
		return nil
	}
	delete(f.FailNext, op)
	var ae *alertport.AlertError
	if errors.As(err, &ae) {
		return err
	}
	return &alertport.AlertError{Op: op, Code: "fake_error", Wrapped: err}
}

func wrapContextError(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return &alertport.AlertError{Op: op, Code: "context_canceled", Wrapped: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &alertport.AlertError{Op: op, Code: "context_deadline", Wrapped: err}
	default:
		return &alertport.AlertError{Op: op, Code: "context_error", Wrapped: err}
	}
}

// RateLimited scripts a Telegram rate-limit failure.
func RateLimited(op string, retry time.Duration) *alertport.AlertError {
	return &alertport.AlertError{Op: op, Code: "rate_limited", RetryAfter: retry, Wrapped: fmt.Errorf("rate limited")}
}
