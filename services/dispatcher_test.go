package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"happyhomes-payments/internal/services/gateway"
	"happyhomes-payments/internal/status"
	"happyhomes-payments/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSignature = "valid-signature"

// fakeGateway accepts exactly one signature and decodes payloads that are
// plain JSON-encoded WebhookEvents.
type fakeGateway struct {
	provider models.PaymentProvider

	mu      sync.Mutex
	intents map[string]*models.PaymentIntent
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		provider: models.ProviderMockPay,
		intents:  make(map[string]*models.PaymentIntent),
	}
}

func (g *fakeGateway) GetProvider() models.PaymentProvider {
	return g.provider
}

func (g *fakeGateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	return signature == testSignature
}

func (g *fakeGateway) HandleWebhook(ctx context.Context, payload []byte) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrDecodeFailed, err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("%w: missing event fields", status.ErrDecodeFailed)
	}
	event.Provider = g.provider
	return &event, nil
}

func (g *fakeGateway) GetPaymentIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", status.ErrPaymentNotFound, id)
	}
	copied := *intent
	return &copied, nil
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, req *gateway.CheckoutRequest) (*models.PaymentIntent, error) {
	intent := &models.PaymentIntent{
		ID:       fmt.Sprintf("pi_test_%d", len(g.intents)+1),
		Amount:   req.MinorUnits(),
		Currency: req.Currency,
		Status:   models.StatusRequiresAction,
		Provider: g.provider,
		OrderID:  req.OrderID,
	}

	g.mu.Lock()
	g.intents[intent.ID] = intent
	g.mu.Unlock()

	return intent, nil
}

func (g *fakeGateway) SetNotificationChannel(ch chan *models.PushNotification) {}

func (g *fakeGateway) Close(ctx context.Context) error { return nil }

// fakeFactory hands out a prebuilt gateway regardless of config.
type fakeFactory struct {
	gw gateway.PaymentGateway
}

func (f *fakeFactory) CreateGateway(ctx context.Context, provider models.PaymentProvider, config interface{}) (gateway.PaymentGateway, error) {
	return f.gw, nil
}

func (f *fakeFactory) GetSupportedProviders() []models.PaymentProvider {
	return []models.PaymentProvider{models.ProviderMockPay}
}

func newTestDispatcher(t *testing.T) (*EventDispatcher, *fakeGateway) {
	t.Helper()

	gw := newFakeGateway()
	registry := gateway.NewRegistry(&fakeFactory{gw: gw})
	require.NoError(t, registry.Register(context.Background(), models.ProviderMockPay, nil))

	return NewEventDispatcher(registry), gw
}

func eventPayload(t *testing.T, id string, eventType models.WebhookEventType, intentStatus models.PaymentStatus) []byte {
	t.Helper()

	payload, err := json.Marshal(models.WebhookEvent{
		ID:   id,
		Type: eventType,
		Data: models.PaymentIntent{
			ID:       "pi_123",
			Amount:   49900,
			Currency: "INR",
			Status:   intentStatus,
			OrderID:  "order_42",
		},
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	return payload
}

func TestIngestDispatchesToAllHandlers(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	var mu sync.Mutex
	var seen []string

	record := func(name string) EventHandler {
		return func(ctx context.Context, event *models.WebhookEvent) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, name+":"+event.ID)
			return nil
		}
	}

	dispatcher.Register(models.EventPaymentSucceeded, record("h1"))
	dispatcher.Register(models.EventPaymentSucceeded, record("h2"))

	payload := eventPayload(t, "evt_1", models.EventPaymentSucceeded, models.StatusSucceeded)

	event, err := dispatcher.Ingest(context.Background(), payload, testSignature, "")

	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, models.EventPaymentSucceeded, event.Type)
	assert.Equal(t, testSignature, event.Signature)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"h1:evt_1", "h2:evt_1"}, seen)
}

func TestIngestIsolatesHandlerFailure(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	var mu sync.Mutex
	completed := false

	dispatcher.Register(models.EventPaymentFailed, func(ctx context.Context, event *models.WebhookEvent) error {
		return fmt.Errorf("downstream unavailable")
	})
	dispatcher.Register(models.EventPaymentFailed, func(ctx context.Context, event *models.WebhookEvent) error {
		mu.Lock()
		defer mu.Unlock()
		completed = true
		return nil
	})

	payload := eventPayload(t, "evt_2", models.EventPaymentFailed, models.StatusFailed)

	event, err := dispatcher.Ingest(context.Background(), payload, testSignature, "")

	require.NoError(t, err)
	assert.Equal(t, "evt_2", event.ID)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, completed, "second handler must complete despite first failing")
}

func TestIngestRecoversFromHandlerPanic(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	var mu sync.Mutex
	completed := false

	dispatcher.Register(models.EventPaymentSucceeded, func(ctx context.Context, event *models.WebhookEvent) error {
		panic("handler bug")
	})
	dispatcher.Register(models.EventPaymentSucceeded, func(ctx context.Context, event *models.WebhookEvent) error {
		mu.Lock()
		defer mu.Unlock()
		completed = true
		return nil
	})

	payload := eventPayload(t, "evt_3", models.EventPaymentSucceeded, models.StatusSucceeded)

	event, err := dispatcher.Ingest(context.Background(), payload, testSignature, "")

	require.NoError(t, err)
	assert.Equal(t, "evt_3", event.ID)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, completed)
}

func TestIngestRejectsInvalidSignature(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	var mu sync.Mutex
	calls := 0

	dispatcher.Register(models.EventPaymentSucceeded, func(ctx context.Context, event *models.WebhookEvent) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	})

	payload := eventPayload(t, "evt_4", models.EventPaymentSucceeded, models.StatusSucceeded)

	event, err := dispatcher.Ingest(context.Background(), payload, "tampered", "")

	assert.Nil(t, event)
	assert.ErrorIs(t, err, status.ErrSignatureInvalid)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls, "no handler may run for an unverified payload")
}

func TestIngestRejectsMalformedPayload(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	dispatcher.Register(models.EventPaymentSucceeded, func(ctx context.Context, event *models.WebhookEvent) error {
		t.Error("handler must not run for an undecodable payload")
		return nil
	})

	event, err := dispatcher.Ingest(context.Background(), []byte("{not json"), testSignature, "")

	assert.Nil(t, event)
	assert.ErrorIs(t, err, status.ErrDecodeFailed)
}

func TestIngestUnknownProvider(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	event, err := dispatcher.Ingest(context.Background(), []byte("{}"), testSignature, models.ProviderRazorpay)

	assert.Nil(t, event)
	assert.ErrorIs(t, err, status.ErrProviderNotRegistered)
}

func TestDuplicateRegistrationFiresTwice(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	var mu sync.Mutex
	calls := 0

	handler := func(ctx context.Context, event *models.WebhookEvent) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	}

	dispatcher.Register(models.EventPaymentRefunded, handler)
	dispatcher.Register(models.EventPaymentRefunded, handler)

	assert.Equal(t, 2, dispatcher.HandlerCount(models.EventPaymentRefunded))

	payload := eventPayload(t, "evt_5", models.EventPaymentRefunded, models.StatusSucceeded)

	_, err := dispatcher.Ingest(context.Background(), payload, testSignature, "")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestUnregisteredEventTypeIsDroppedSilently(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	dispatcher.Register(models.EventPaymentCancelled, func(ctx context.Context, event *models.WebhookEvent) error {
		t.Error("handler should have been unregistered")
		return nil
	})
	dispatcher.Unregister(models.EventPaymentCancelled)

	assert.Zero(t, dispatcher.HandlerCount(models.EventPaymentCancelled))

	payload := eventPayload(t, "evt_6", models.EventPaymentCancelled, models.StatusCancelled)

	event, err := dispatcher.Ingest(context.Background(), payload, testSignature, "")

	require.NoError(t, err)
	assert.Equal(t, "evt_6", event.ID)
}

func BenchmarkDispatch(b *testing.B) {
	gw := newFakeGateway()
	registry := gateway.NewRegistry(&fakeFactory{gw: gw})
	if err := registry.Register(context.Background(), models.ProviderMockPay, nil); err != nil {
		b.Fatal(err)
	}

	dispatcher := NewEventDispatcher(registry)
	for i := 0; i < 8; i++ {
		dispatcher.Register(models.EventPaymentSucceeded, func(ctx context.Context, event *models.WebhookEvent) error {
			return nil
		})
	}

	payload, _ := json.Marshal(models.WebhookEvent{
		ID:   "evt_bench",
		Type: models.EventPaymentSucceeded,
		Data: models.PaymentIntent{ID: "pi_bench", Status: models.StatusSucceeded},
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := dispatcher.Ingest(context.Background(), payload, testSignature, ""); err != nil {
			b.Fatal(err)
		}
	}
}
