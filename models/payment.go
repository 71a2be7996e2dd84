package models

import (
	"encoding/json"
	"time"
)

// PaymentProvider identifies which payment backend issued an intent.
type PaymentProvider string

const (
	ProviderRazorpay PaymentProvider = "razorpay"
	ProviderMockPay  PaymentProvider = "mockpay"
)

// PaymentStatus is the lifecycle status of a payment intent.
type PaymentStatus string

const (
	StatusRequiresAction PaymentStatus = "requires_action"
	StatusProcessing     PaymentStatus = "processing"
	StatusSucceeded      PaymentStatus = "succeeded"
	StatusFailed         PaymentStatus = "failed"
	StatusCancelled      PaymentStatus = "cancelled"
)

// DefaultTerminalStatuses are the statuses from which no further
// transition occurs for a payment intent.
var DefaultTerminalStatuses = []PaymentStatus{
	StatusSucceeded,
	StatusFailed,
	StatusCancelled,
}

// IsTerminal reports whether status belongs to the given terminal set.
func IsTerminal(status PaymentStatus, terminal []PaymentStatus) bool {
	for _, t := range terminal {
		if status == t {
			return true
		}
	}
	return false
}

// TerminalStatusesFromStrings converts configured status names into the
// typed terminal set, falling back to the default set when empty.
func TerminalStatusesFromStrings(values []string) []PaymentStatus {
	if len(values) == 0 {
		return DefaultTerminalStatuses
	}

	statuses := make([]PaymentStatus, 0, len(values))
	for _, v := range values {
		statuses = append(statuses, PaymentStatus(v))
	}
	return statuses
}

// PaymentIntent is a snapshot of a single payment attempt as reported by
// the provider. This service only reads snapshots; the provider owns all
// mutation.
type PaymentIntent struct {
	ID        string          `json:"id"`
	Amount    int64           `json:"amount"` // minor currency units
	Currency  string          `json:"currency"`
	Status    PaymentStatus   `json:"status"`
	Provider  PaymentProvider `json:"provider"`
	OrderID   string          `json:"order_id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// WebhookEventType tags a decoded provider notification.
type WebhookEventType string

const (
	EventPaymentSucceeded  WebhookEventType = "payment_intent.succeeded"
	EventPaymentFailed     WebhookEventType = "payment_intent.failed"
	EventPaymentProcessing WebhookEventType = "payment_intent.processing"
	EventPaymentCancelled  WebhookEventType = "payment_intent.cancelled"
	EventPaymentRefunded   WebhookEventType = "payment_intent.refunded"
)

// KnownEventTypes lists every event type this service dispatches.
var KnownEventTypes = []WebhookEventType{
	EventPaymentSucceeded,
	EventPaymentFailed,
	EventPaymentProcessing,
	EventPaymentCancelled,
	EventPaymentRefunded,
}

// WebhookEvent is one decoded webhook delivery. Immutable after decode.
// The signature is retained for audit only; it has already been verified
// by the time an event exists.
type WebhookEvent struct {
	ID        string           `json:"id"`
	Type      WebhookEventType `json:"type"`
	Data      PaymentIntent    `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
	Provider  PaymentProvider  `json:"provider"`
	Signature string           `json:"signature,omitempty"`
}

// PushNotification is a raw provider push frame carrying an undecoded
// webhook payload and its out-of-band signature.
type PushNotification struct {
	Provider  PaymentProvider `json:"provider"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// PaymentSession is the checkout-side record of a payment attempt, kept
// in Redis while the customer completes the flow.
type PaymentSession struct {
	PaymentID   string     `json:"payment_id"`
	UserID      string     `json:"user_id"`
	OrderID     string     `json:"order_id"`
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"` // pending, completed, failed, cancelled
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
