package razorpay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"happyhomes-payments/internal/status"
	"happyhomes-payments/models"
)

// Gateway talks to the Razorpay API and decodes its webhook deliveries.
type Gateway struct {
	webhookSecret string

	client *Client
}

// PaymentForm carries the provider-agnostic checkout fields already
// converted to the wire conventions (minor units).
type PaymentForm struct {
	Amount      int64
	Currency    string
	OrderID     string
	Contact     string
	Description string
}

// New returns a new Razorpay gateway instance.
func New(ctx context.Context, cfg *Config) (*Gateway, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("razorpay: missing API credentials")
	}

	return &Gateway{
		webhookSecret: cfg.WebhookSecret,
		client:        newClient(ctx, cfg),
	}, nil
}

// eventPayload is the provider wire representation of a webhook delivery.
type eventPayload struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity paymentPayload `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// VerifySignature reports whether signature is the HMAC-SHA256 of payload
// under the configured webhook secret.
func (g *Gateway) VerifySignature(payload []byte, signature string) bool {
	if g.webhookSecret == "" || signature == "" {
		return false
	}
	return VerifyHMAC(payload, []byte(g.webhookSecret), signature)
}

// DecodeWebhook decodes a verified webhook payload into a WebhookEvent.
func (g *Gateway) DecodeWebhook(_ context.Context, payload []byte) (*models.WebhookEvent, error) {
	var p eventPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrDecodeFailed, err)
	}

	eventType, err := toEventType(p.Event)
	if err != nil {
		return nil, err
	}

	if p.Payload.Payment.Entity.ID == "" {
		return nil, fmt.Errorf("%w: event %s carries no payment entity", status.ErrDecodeFailed, p.ID)
	}

	return &models.WebhookEvent{
		ID:        p.ID,
		Type:      eventType,
		Data:      *p.Payload.Payment.Entity.toDomain(),
		Timestamp: time.Unix(p.CreatedAt, 0),
		Provider:  models.ProviderRazorpay,
	}, nil
}

// GetPayment fetches the current snapshot of a payment.
func (g *Gateway) GetPayment(ctx context.Context, id string) (*models.PaymentIntent, error) {
	p, err := g.client.getPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.toDomain(), nil
}

// CreatePayment opens a new payment with the provider.
func (g *Gateway) CreatePayment(ctx context.Context, form *PaymentForm) (*models.PaymentIntent, error) {
	p, err := g.client.createPayment(ctx, &createPaymentRequest{
		Amount:      form.Amount,
		Currency:    form.Currency,
		OrderID:     form.OrderID,
		Contact:     form.Contact,
		Description: form.Description,
	})
	if err != nil {
		return nil, err
	}
	return p.toDomain(), nil
}

func (p *paymentPayload) toDomain() *models.PaymentIntent {
	created := time.Unix(p.CreatedAt, 0)

	return &models.PaymentIntent{
		ID:        p.ID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Status:    toPaymentStatus(p.Status),
		Provider:  models.ProviderRazorpay,
		OrderID:   p.OrderID,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func toPaymentStatus(s string) models.PaymentStatus {
	switch s {
	case "created":
		return models.StatusRequiresAction
	case "authorized", "pending":
		return models.StatusProcessing
	case "captured", "paid":
		return models.StatusSucceeded
	case "failed":
		return models.StatusFailed
	case "cancelled":
		return models.StatusCancelled
	default:
		return models.PaymentStatus(s)
	}
}

func toEventType(event string) (models.WebhookEventType, error) {
	switch event {
	case "payment.captured":
		return models.EventPaymentSucceeded, nil
	case "payment.failed":
		return models.EventPaymentFailed, nil
	case "payment.authorized":
		return models.EventPaymentProcessing, nil
	case "payment.cancelled":
		return models.EventPaymentCancelled, nil
	case "refund.processed":
		return models.EventPaymentRefunded, nil
	default:
		return "", fmt.Errorf("%w: unknown event type %q", status.ErrDecodeFailed, event)
	}
}
