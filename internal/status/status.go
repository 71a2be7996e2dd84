package status

import (
	"errors"
	"fmt"
)

var (
	ErrSignatureInvalid      = errors.New("webhook: signature invalid")
	ErrDecodeFailed          = errors.New("webhook: payload decode failed")
	ErrProviderNotRegistered = errors.New("gateway: provider not registered")
	ErrPaymentNotFound       = errors.New("payment: payment not found")
)

// HandlerError wraps a single handler failure during event fan-out.
// These are logged and counted but never escalated to the ingest caller.
type HandlerError struct {
	EventType string
	EventID   string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler: %s event %s: %v", e.EventType, e.EventID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
