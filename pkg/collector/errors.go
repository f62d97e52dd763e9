package collector

import (
	"context"
	"errors"
	"fmt"
)

// DeliveryError wraps collector failures with a normalized code.
type DeliveryError struct {
	Op      string
	Code    string
	Status  int
	Wrapped error
}

const (
	CodeNoEndpoint      = "no_endpoint"
	CodeBadURL          = "bad_url"
	CodeEncode          = "encode"
	CodeTransport       = "transport"
	CodeHTTPStatus      = "http_status"
	CodeContextCanceled = "context_canceled"
	CodeContextDeadline = "context_deadline"
)

func (e *DeliveryError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Op, e.Code)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %v", msg, e.Wrapped)
	}
	return msg
}

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Wrapped
}

// IsCode determines whether err is a DeliveryError with the provided code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return de != nil && de.Code == code
	}
	return false
}

func wrapTransportError(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return &DeliveryError{Op: op, Code: CodeContextCanceled, Wrapped: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &DeliveryError{Op: op, Code: CodeContextDeadline, Wrapped: err}
	default:
		return &DeliveryError{Op: op, Code: CodeTransport, Wrapped: err}
	}
}
