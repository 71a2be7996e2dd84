package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"happyhomes-payments/internal/status"
	"happyhomes-payments/models"

	"github.com/pocketbase/pocketbase/core"
	pubnub "github.com/pubnub/go"
)

// WebhookReactions holds the built-in consumers of decoded webhook
// events: session transitions, realtime user notifications and the
// persistent audit trail.
type WebhookReactions struct {
	sessions *PaymentSessionService
	pubnub   *pubnub.PubNub
	app      core.App
}

func NewWebhookReactions(sessions *PaymentSessionService, pn *pubnub.PubNub, app core.App) *WebhookReactions {
	return &WebhookReactions{
		sessions: sessions,
		pubnub:   pn,
		app:      app,
	}
}

// RegisterDefaultHandlers wires the built-in reactions into the
// dispatcher. The audit handler runs for every known event type.
func RegisterDefaultHandlers(d *EventDispatcher, r *WebhookReactions) {
	d.Register(models.EventPaymentSucceeded, r.HandlePaymentSucceeded)
	d.Register(models.EventPaymentFailed, r.HandlePaymentFailed)
	d.Register(models.EventPaymentCancelled, r.HandlePaymentCancelled)
	d.Register(models.EventPaymentRefunded, r.HandlePaymentRefunded)

	for _, eventType := range models.KnownEventTypes {
		d.Register(eventType, r.AuditEvent)
	}
}

// HandlePaymentSucceeded completes the checkout session and notifies the
// customer on their realtime channel.
func (r *WebhookReactions) HandlePaymentSucceeded(ctx context.Context, event *models.WebhookEvent) error {
	paymentID := event.Data.ID

	if err := r.sessions.CompleteSession(ctx, paymentID); err != nil {
		return err
	}

	r.upsertIntentRecord(&event.Data)

	return r.notifyUser(ctx, paymentID, map[string]interface{}{
		"type":       "payment_success",
		"payment_id": paymentID,
		"order_id":   event.Data.OrderID,
		"amount":     event.Data.Amount,
	})
}

// HandlePaymentFailed closes the session and notifies the customer so the
// checkout page can offer a retry.
func (r *WebhookReactions) HandlePaymentFailed(ctx context.Context, event *models.WebhookEvent) error {
	paymentID := event.Data.ID

	if err := r.sessions.CloseSession(ctx, paymentID, "failed"); err != nil {
		return err
	}

	r.upsertIntentRecord(&event.Data)

	return r.notifyUser(ctx, paymentID, map[string]interface{}{
		"type":       "payment_failed",
		"payment_id": paymentID,
		"order_id":   event.Data.OrderID,
	})
}

// HandlePaymentCancelled closes the session without a retry prompt.
func (r *WebhookReactions) HandlePaymentCancelled(ctx context.Context, event *models.WebhookEvent) error {
	paymentID := event.Data.ID

	if err := r.sessions.CloseSession(ctx, paymentID, "cancelled"); err != nil {
		return err
	}

	r.upsertIntentRecord(&event.Data)

	return r.notifyUser(ctx, paymentID, map[string]interface{}{
		"type":       "payment_cancelled",
		"payment_id": paymentID,
	})
}

// HandlePaymentRefunded only notifies; the original session is long gone
// by the time a refund lands.
func (r *WebhookReactions) HandlePaymentRefunded(ctx context.Context, event *models.WebhookEvent) error {
	r.upsertIntentRecord(&event.Data)

	return r.notifyUser(ctx, event.Data.ID, map[string]interface{}{
		"type":       "payment_refunded",
		"payment_id": event.Data.ID,
		"amount":     event.Data.Amount,
	})
}

// AuditEvent persists the delivery into the webhook_events collection.
func (r *WebhookReactions) AuditEvent(ctx context.Context, event *models.WebhookEvent) error {
	if r.app == nil {
		return nil
	}

	collection, err := r.app.FindCollectionByNameOrId("webhook_events")
	if err != nil {
		return fmt.Errorf("audit webhook event %s: %w", event.ID, err)
	}

	record := core.NewRecord(collection)
	record.Set("event_id", event.ID)
	record.Set("type", string(event.Type))
	record.Set("provider", string(event.Provider))
	record.Set("payment_id", event.Data.ID)
	record.Set("payment_status", string(event.Data.Status))
	record.Set("order_id", event.Data.OrderID)
	record.Set("amount", event.Data.Amount)
	record.Set("signature", event.Signature)
	record.Set("received_at", event.Timestamp)

	if err := r.app.Save(record); err != nil {
		return fmt.Errorf("audit webhook event %s: %w", event.ID, err)
	}

	return nil
}

// notifyUser publishes to the customer channel of the session owner.
// Missing sessions and missing user ids are not errors: the payment may
// have been created outside a checkout flow.
func (r *WebhookReactions) notifyUser(ctx context.Context, paymentID string, message map[string]interface{}) error {
	if r.pubnub == nil {
		return nil
	}

	session, err := r.sessions.GetSession(ctx, paymentID)
	if err != nil {
		if errors.Is(err, status.ErrPaymentNotFound) {
			return nil
		}
		return err
	}
	if session.UserID == "" {
		return nil
	}

	channel := fmt.Sprintf("user-%s", session.UserID)
	_, _, err = r.pubnub.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}

	return nil
}

// upsertIntentRecord mirrors the latest intent snapshot into the
// payment_intents collection. Failures here are logged, not returned:
// the collection is a cache of provider state, not the source of truth.
func (r *WebhookReactions) upsertIntentRecord(intent *models.PaymentIntent) {
	if r.app == nil {
		return
	}

	record, err := r.app.FindFirstRecordByData("payment_intents", "intent_id", intent.ID)
	if err != nil {
		collection, cerr := r.app.FindCollectionByNameOrId("payment_intents")
		if cerr != nil {
			log.Printf("Error loading payment_intents collection: %v", cerr)
			return
		}
		record = core.NewRecord(collection)
		record.Set("intent_id", intent.ID)
	}

	record.Set("status", string(intent.Status))
	record.Set("provider", string(intent.Provider))
	record.Set("amount", intent.Amount)
	record.Set("currency", intent.Currency)
	record.Set("order_id", intent.OrderID)

	if err := r.app.Save(record); err != nil {
		log.Printf("Error saving payment intent %s: %v", intent.ID, err)
	}
}
