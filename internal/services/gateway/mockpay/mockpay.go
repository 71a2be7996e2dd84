package mockpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"happyhomes-payments/internal/status"
	"happyhomes-payments/models"
	"happyhomes-payments/utils"

	pubnub "github.com/pubnub/go/v7"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	HMACKey string `json:"hmacKey" mapstructure:"hmac_key"`

	PNPublishKey   string `json:"pn_pubkey" mapstructure:"pn_pubkey"`
	PNSubscribeKey string `json:"pn_subkey" mapstructure:"pn_subkey"`
	PNSecretKey    string `json:"pn_secret" mapstructure:"pn_secret"`
	PNUUID         string `json:"pn_uuid" mapstructure:"pn_uuid"`
	PNChannel      string `json:"pn_channel" mapstructure:"pn_channel"`
}

// MockPay is a development payment provider. Intents live in Redis, webhook
// payloads are signed with a shared HMAC key, and push frames are delivered
// over a PubNub channel the same way a real provider would call back.
type MockPay struct {
	hmacKey []byte
	channel string

	redis *redis.Client

	sub *subscribe
}

type subscribe struct {
	pn  *pubnub.PubNub
	lis *pubnub.Listener
	ch  chan *models.PushNotification
}

// New returns a new MockPay instance. PubNub push delivery is optional and
// only wired when a subscribe key is configured.
func New(ctx context.Context, cfg *Config, redisClient *redis.Client) (*MockPay, error) {
	m := &MockPay{
		hmacKey: []byte(cfg.HMACKey),
		channel: cfg.PNChannel,
		redis:   redisClient,
	}

	if cfg.PNSubscribeKey != "" {
		pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PNUUID))
		pnCfg.SubscribeKey = cfg.PNSubscribeKey
		pnCfg.PublishKey = cfg.PNPublishKey
		pnCfg.SecretKey = cfg.PNSecretKey

		sub := &subscribe{
			pn:  pubnub.NewPubNub(pnCfg),
			lis: pubnub.NewListener(),
		}
		sub.pn.AddListener(sub.lis)
		sub.pn.Subscribe().Channels([]string{cfg.PNChannel}).Execute()

		go sub.processSubscription(ctx)

		m.sub = sub
	}

	return m, nil
}

func (s *subscribe) processSubscription(ctx context.Context) {
	for {
		select {
		case st := <-s.lis.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				log.Println("mockpay: connected to pubnub")

			case pubnub.PNReconnectedCategory:
				log.Println("mockpay: reconnected to pubnub")

			case pubnub.PNDisconnectedCategory:
				log.Println("mockpay: disconnected from pubnub")

			default:
				log.Printf("mockpay: pubnub status category %v", st.Category)
			}

		case message := <-s.lis.Message:
			raw, ok := message.Message.(string)
			if !ok {
				log.Printf("mockpay: unexpected push frame type %T", message.Message)
				continue
			}

			var frame models.PushNotification
			dec := json.NewDecoder(strings.NewReader(raw))
			if err := dec.Decode(&frame); err != nil {
				log.Printf("mockpay: decode push frame: %v", err)
				continue
			}

			if s.ch != nil {
				s.ch <- &frame
			}

		case <-ctx.Done():
			log.Println("mockpay: close subscribe")
			return
		}
	}
}

// SetNotificationChannel sets the channel receiving provider push frames.
func (m *MockPay) SetNotificationChannel(ch chan *models.PushNotification) {
	if m.sub != nil {
		m.sub.ch = ch
	}
}

// Sign returns the hex HMAC-SHA256 of payload under the shared key.
func (m *MockPay) Sign(payload []byte) string {
	h := hmac.New(sha256.New, m.hmacKey)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature reports whether signature authenticates payload.
func (m *MockPay) VerifySignature(payload []byte, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(m.Sign(payload)))
}

// DecodeWebhook decodes a verified payload into a WebhookEvent.
func (m *MockPay) DecodeWebhook(_ context.Context, payload []byte) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrDecodeFailed, err)
	}

	if event.ID == "" || event.Type == "" || event.Data.ID == "" {
		return nil, fmt.Errorf("%w: incomplete mockpay event", status.ErrDecodeFailed)
	}

	event.Provider = models.ProviderMockPay
	event.Data.Provider = models.ProviderMockPay

	return &event, nil
}

// CreateIntent opens a new payment intent and stores it in Redis.
func (m *MockPay) CreateIntent(ctx context.Context, amount int64, currency, orderID string) (*models.PaymentIntent, error) {
	id, err := utils.GenerateID("pi", 12)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	intent := &models.PaymentIntent{
		ID:        id,
		Amount:    amount,
		Currency:  currency,
		Status:    models.StatusRequiresAction,
		Provider:  models.ProviderMockPay,
		OrderID:   orderID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.storeIntent(ctx, intent); err != nil {
		return nil, err
	}

	return intent, nil
}

// GetIntent fetches the current snapshot of a payment intent.
func (m *MockPay) GetIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	data, err := m.redis.HGetAll(ctx, intentKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("mockpay: get intent %s: %w", id, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", status.ErrPaymentNotFound, id)
	}

	return intentFromHash(data), nil
}

// SimulateStatusChange moves an intent to a new status and returns the
// signed webhook frame a real provider would deliver for the transition.
// When PubNub is configured the frame is also published to the push channel.
func (m *MockPay) SimulateStatusChange(ctx context.Context, id string, newStatus models.PaymentStatus) (*models.PushNotification, error) {
	intent, err := m.GetIntent(ctx, id)
	if err != nil {
		return nil, err
	}

	intent.Status = newStatus
	intent.UpdatedAt = time.Now()

	if err := m.storeIntent(ctx, intent); err != nil {
		return nil, err
	}

	event, err := m.NewSyntheticEvent(intent, eventTypeForStatus(newStatus))
	if err != nil {
		return nil, err
	}

	frame, err := m.EncodeEvent(event)
	if err != nil {
		return nil, err
	}

	if m.sub != nil && m.sub.pn != nil {
		raw, err := json.Marshal(frame)
		if err != nil {
			return nil, err
		}
		m.sub.pn.Publish().Channel(m.channel).Message(string(raw)).Execute()
	}

	return frame, nil
}

// NewSyntheticEvent builds a webhook event for an intent snapshot.
func (m *MockPay) NewSyntheticEvent(intent *models.PaymentIntent, eventType models.WebhookEventType) (*models.WebhookEvent, error) {
	id, err := utils.GenerateID("evt", 12)
	if err != nil {
		return nil, err
	}

	return &models.WebhookEvent{
		ID:        id,
		Type:      eventType,
		Data:      *intent,
		Timestamp: time.Now(),
		Provider:  models.ProviderMockPay,
	}, nil
}

// EncodeEvent marshals an event into a signed push frame.
func (m *MockPay) EncodeEvent(event *models.WebhookEvent) (*models.PushNotification, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &models.PushNotification{
		Provider:  models.ProviderMockPay,
		Payload:   payload,
		Signature: m.Sign(payload),
	}, nil
}

// Close unsubscribes from the push channel.
func (m *MockPay) Close(_ context.Context) error {
	if m.sub != nil && m.sub.pn != nil {
		m.sub.pn.Unsubscribe().Channels([]string{m.channel}).Execute()
	}
	return nil
}

func (m *MockPay) storeIntent(ctx context.Context, intent *models.PaymentIntent) error {
	key := intentKey(intent.ID)

	if err := m.redis.HSet(ctx, key, map[string]any{
		"id":         intent.ID,
		"amount":     intent.Amount,
		"currency":   intent.Currency,
		"status":     string(intent.Status),
		"order_id":   intent.OrderID,
		"created_at": intent.CreatedAt.Unix(),
		"updated_at": intent.UpdatedAt.Unix(),
	}).Err(); err != nil {
		return fmt.Errorf("mockpay: store intent %s: %w", intent.ID, err)
	}

	m.redis.Expire(ctx, key, 24*time.Hour)

	return nil
}

func intentKey(id string) string {
	return fmt.Sprintf("mockpay:intent:%s", id)
}

func intentFromHash(data map[string]string) *models.PaymentIntent {
	amount, _ := strconv.ParseInt(data["amount"], 10, 64)
	createdAt, _ := strconv.ParseInt(data["created_at"], 10, 64)
	updatedAt, _ := strconv.ParseInt(data["updated_at"], 10, 64)

	return &models.PaymentIntent{
		ID:        data["id"],
		Amount:    amount,
		Currency:  data["currency"],
		Status:    models.PaymentStatus(data["status"]),
		Provider:  models.ProviderMockPay,
		OrderID:   data["order_id"],
		CreatedAt: time.Unix(createdAt, 0),
		UpdatedAt: time.Unix(updatedAt, 0),
	}
}

func eventTypeForStatus(s models.PaymentStatus) models.WebhookEventType {
	switch s {
	case models.StatusSucceeded:
		return models.EventPaymentSucceeded
	case models.StatusFailed:
		return models.EventPaymentFailed
	case models.StatusCancelled:
		return models.EventPaymentCancelled
	default:
		return models.EventPaymentProcessing
	}
}
