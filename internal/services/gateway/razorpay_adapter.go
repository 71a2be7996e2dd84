package gateway

import (
	"context"
	"fmt"

	"happyhomes-payments/internal/services/gateway/razorpay"
	"happyhomes-payments/models"
)

// RazorpayAdapter wraps the Razorpay implementation to conform to PaymentGateway
type RazorpayAdapter struct {
	gw *razorpay.Gateway
}

// NewRazorpayAdapter creates a new Razorpay adapter
func NewRazorpayAdapter(ctx context.Context, config *razorpay.Config) (*RazorpayAdapter, error) {
	gw, err := razorpay.New(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create razorpay gateway: %w", err)
	}

	return &RazorpayAdapter{gw: gw}, nil
}

// GetProvider returns the payment provider type
func (a *RazorpayAdapter) GetProvider() models.PaymentProvider {
	return models.ProviderRazorpay
}

// VerifyWebhookSignature reports whether signature authenticates payload
func (a *RazorpayAdapter) VerifyWebhookSignature(payload []byte, signature string) bool {
	return a.gw.VerifySignature(payload, signature)
}

// HandleWebhook decodes a verified payload into a WebhookEvent
func (a *RazorpayAdapter) HandleWebhook(ctx context.Context, payload []byte) (*models.WebhookEvent, error) {
	return a.gw.DecodeWebhook(ctx, payload)
}

// GetPaymentIntent fetches the current snapshot of a payment intent
func (a *RazorpayAdapter) GetPaymentIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	return a.gw.GetPayment(ctx, id)
}

// CreatePaymentIntent opens a new payment with the provider
func (a *RazorpayAdapter) CreatePaymentIntent(ctx context.Context, req *CheckoutRequest) (*models.PaymentIntent, error) {
	return a.gw.CreatePayment(ctx, &razorpay.PaymentForm{
		Amount:      req.MinorUnits(),
		Currency:    req.Currency,
		OrderID:     req.OrderID,
		Contact:     req.Phone,
		Description: req.Description,
	})
}

// SetNotificationChannel sets the channel for receiving provider push frames
func (a *RazorpayAdapter) SetNotificationChannel(ch chan *models.PushNotification) {
	// Razorpay delivers over HTTP webhooks only; there is no push channel.
}

// Close gracefully closes any connections
func (a *RazorpayAdapter) Close(ctx context.Context) error {
	// The Razorpay client holds no persistent connections.
	return nil
}
