package gateway

import (
	"context"

	"happyhomes-payments/models"

	"github.com/shopspring/decimal"
)

// CheckoutRequest describes a payment to be opened with a provider.
// Amount is in major currency units; gateways convert to minor units
// on the wire.
type CheckoutRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	OrderID       string          `json:"order_id"`
	Phone         string          `json:"phone,omitempty"`
	Description   string          `json:"description,omitempty"`
	ExpiryMinutes int             `json:"expiry_minutes,omitempty"`
}

// MinorUnits returns the request amount in minor currency units.
func (r *CheckoutRequest) MinorUnits() int64 {
	return r.Amount.Mul(decimal.NewFromInt(100)).IntPart()
}

// PaymentGateway defines the common interface for all payment providers.
// Switching providers means swapping the gateway, not its consumers.
type PaymentGateway interface {
	// GetProvider returns the payment provider type
	GetProvider() models.PaymentProvider

	// VerifyWebhookSignature reports whether signature authenticates payload
	VerifyWebhookSignature(payload []byte, signature string) bool

	// HandleWebhook decodes a verified payload into a WebhookEvent
	HandleWebhook(ctx context.Context, payload []byte) (*models.WebhookEvent, error)

	// GetPaymentIntent fetches the current snapshot of a payment intent
	GetPaymentIntent(ctx context.Context, id string) (*models.PaymentIntent, error)

	// CreatePaymentIntent opens a new payment with the provider
	CreatePaymentIntent(ctx context.Context, req *CheckoutRequest) (*models.PaymentIntent, error)

	// SetNotificationChannel sets the channel for receiving provider push frames
	SetNotificationChannel(ch chan *models.PushNotification)

	// Close gracefully closes any connections
	Close(ctx context.Context) error
}

// GatewayFactory creates gateway instances based on provider type
type GatewayFactory interface {
	CreateGateway(ctx context.Context, provider models.PaymentProvider, config interface{}) (PaymentGateway, error)
	GetSupportedProviders() []models.PaymentProvider
}
