package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"happyhomes-payments/internal/services/gateway"
	"happyhomes-payments/internal/status"
	"happyhomes-payments/models"
	"happyhomes-payments/monitoring"
)

// EventHandler reacts to one decoded webhook event. Failures are isolated
// per handler and never surface to the webhook caller.
type EventHandler func(ctx context.Context, event *models.WebhookEvent) error

// EventDispatcher fans decoded webhook events out to registered handlers.
// Delivery is best-effort: the dispatcher guarantees an attempt for every
// handler, not successful processing. Consumers needing durability must
// queue on their own side.
type EventDispatcher struct {
	registry *gateway.Registry

	mu       sync.RWMutex
	handlers map[models.WebhookEventType][]EventHandler
}

func NewEventDispatcher(registry *gateway.Registry) *EventDispatcher {
	return &EventDispatcher{
		registry: registry,
		handlers: make(map[models.WebhookEventType][]EventHandler),
	}
}

// Register appends handler to the list for eventType. Registering the same
// handler twice makes it fire twice per event; registration happens at the
// composition root, so duplicates are left to the caller.
func (d *EventDispatcher) Register(eventType models.WebhookEventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Unregister clears all handlers for eventType. Subsequent events of that
// type are silently dropped.
func (d *EventDispatcher) Unregister(eventType models.WebhookEventType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.handlers, eventType)
}

// HandlerCount returns the number of handlers registered for eventType.
func (d *EventDispatcher) HandlerCount(eventType models.WebhookEventType) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.handlers[eventType])
}

// Ingest verifies, decodes and dispatches one raw webhook delivery.
// An empty provider resolves to the primary gateway. Signature and decode
// failures abort the call; handler failures do not.
func (d *EventDispatcher) Ingest(ctx context.Context, payload []byte, signature string, provider models.PaymentProvider) (*models.WebhookEvent, error) {
	gw, err := d.registry.Resolve(provider)
	if err != nil {
		return nil, err
	}

	providerLabel := string(gw.GetProvider())

	if !gw.VerifyWebhookSignature(payload, signature) {
		monitoring.TrackWebhookEvent(providerLabel, "", "signature_invalid")
		return nil, status.ErrSignatureInvalid
	}

	event, err := gw.HandleWebhook(ctx, payload)
	if err != nil {
		monitoring.TrackWebhookEvent(providerLabel, "", "decode_failed")
		return nil, err
	}

	// Retained for audit; verification already happened above.
	event.Signature = signature

	d.dispatch(ctx, event)

	monitoring.TrackWebhookEvent(providerLabel, string(event.Type), "accepted")

	return event, nil
}

// dispatch starts every handler for the event's type concurrently, waits
// for all of them to settle, and logs each failure independently.
func (d *EventDispatcher) dispatch(ctx context.Context, event *models.WebhookEvent) {
	d.mu.RLock()
	handlers := make([]EventHandler, len(d.handlers[event.Type]))
	copy(handlers, d.handlers[event.Type])
	d.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	start := time.Now()

	var wg sync.WaitGroup
	errs := make([]error, len(handlers))

	for i, handler := range handlers {
		wg.Add(1)
		go func(i int, h EventHandler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()

			errs[i] = h(ctx, event)
		}(i, handler)
	}

	wg.Wait()

	for _, err := range errs {
		if err == nil {
			continue
		}
		hErr := &status.HandlerError{
			EventType: string(event.Type),
			EventID:   event.ID,
			Err:       err,
		}
		log.Printf("Webhook handler failed: %v", hErr)
		monitoring.TrackHandlerFailure(string(event.Type))
	}

	monitoring.TrackDispatch(string(event.Type), time.Since(start))
}
