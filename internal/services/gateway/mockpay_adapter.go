package gateway

import (
	"context"
	"fmt"

	"happyhomes-payments/internal/services/gateway/mockpay"
	"happyhomes-payments/models"

	"github.com/redis/go-redis/v9"
)

// MockPayAdapter wraps the MockPay implementation to conform to PaymentGateway
type MockPayAdapter struct {
	mp *mockpay.MockPay
}

// NewMockPayAdapter creates a new MockPay adapter
func NewMockPayAdapter(ctx context.Context, config *mockpay.Config, redisClient *redis.Client) (*MockPayAdapter, error) {
	mp, err := mockpay.New(ctx, config, redisClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create mockpay gateway: %w", err)
	}

	return &MockPayAdapter{mp: mp}, nil
}

// GetProvider returns the payment provider type
func (a *MockPayAdapter) GetProvider() models.PaymentProvider {
	return models.ProviderMockPay
}

// VerifyWebhookSignature reports whether signature authenticates payload
func (a *MockPayAdapter) VerifyWebhookSignature(payload []byte, signature string) bool {
	return a.mp.VerifySignature(payload, signature)
}

// HandleWebhook decodes a verified payload into a WebhookEvent
func (a *MockPayAdapter) HandleWebhook(ctx context.Context, payload []byte) (*models.WebhookEvent, error) {
	return a.mp.DecodeWebhook(ctx, payload)
}

// GetPaymentIntent fetches the current snapshot of a payment intent
func (a *MockPayAdapter) GetPaymentIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	return a.mp.GetIntent(ctx, id)
}

// CreatePaymentIntent opens a new payment with the provider
func (a *MockPayAdapter) CreatePaymentIntent(ctx context.Context, req *CheckoutRequest) (*models.PaymentIntent, error) {
	return a.mp.CreateIntent(ctx, req.MinorUnits(), req.Currency, req.OrderID)
}

// SetNotificationChannel sets the channel for receiving provider push frames
func (a *MockPayAdapter) SetNotificationChannel(ch chan *models.PushNotification) {
	a.mp.SetNotificationChannel(ch)
}

// Close gracefully closes any connections
func (a *MockPayAdapter) Close(ctx context.Context) error {
	return a.mp.Close(ctx)
}

// Simulate exposes the mockpay status-change simulator for the dev/test
// endpoint without widening the PaymentGateway interface.
func (a *MockPayAdapter) Simulate(ctx context.Context, id string, status models.PaymentStatus) (*models.PushNotification, error) {
	return a.mp.SimulateStatusChange(ctx, id, status)
}
