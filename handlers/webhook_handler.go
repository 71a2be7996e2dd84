package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"happyhomes-payments/config"
	"happyhomes-payments/internal/status"
	"happyhomes-payments/models"
	"happyhomes-payments/monitoring"
	"happyhomes-payments/security"
	"happyhomes-payments/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// Providers retry aggressively; anything bigger than this is not a
// webhook we recognize.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	dispatcher *services.EventDispatcher
	limiter    *security.RateLimiter
	cfg        *config.Config
}

func NewWebhookHandler(dispatcher *services.EventDispatcher, limiter *security.RateLimiter, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
		limiter:    limiter,
		cfg:        cfg,
	}
}

// HandleWebhook - Receive a webhook delivery for the primary provider
func (h *WebhookHandler) HandleWebhook(e *core.RequestEvent) error {
	return h.ingest(e, "")
}

// HandleProviderWebhook - Receive a webhook delivery for a named provider
func (h *WebhookHandler) HandleProviderWebhook(e *core.RequestEvent) error {
	return h.ingest(e, models.PaymentProvider(e.Request.PathValue("provider")))
}

func (h *WebhookHandler) ingest(e *core.RequestEvent, provider models.PaymentProvider) error {
	ctx := e.Request.Context()

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(ctx, "webhook:"+e.RealIP())
		if err != nil {
			// Fail open: dropping genuine payment webhooks costs more
			// than letting a burst through while Redis is down.
			log.Printf("Rate limit check failed: %v", err)
		} else if !allowed {
			monitoring.TrackWebhookEvent(string(provider), "", "rate_limited")
			return apis.NewApiError(http.StatusTooManyRequests, "Too many requests", nil)
		}
	}

	body, err := io.ReadAll(io.LimitReader(e.Request.Body, maxWebhookBody))
	if err != nil {
		return apis.NewBadRequestError("Failed to read request body", err)
	}

	signature := e.Request.Header.Get(h.cfg.SignatureHeader)
	if signature == "" {
		signature = e.Request.Header.Get(h.cfg.SignatureHeaderAlt)
	}

	event, err := h.dispatcher.Ingest(ctx, body, signature, provider)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrSignatureInvalid):
			return e.JSON(http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "invalid signature",
			})

		case errors.Is(err, status.ErrDecodeFailed):
			return e.JSON(http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   "malformed event payload",
			})

		case errors.Is(err, status.ErrProviderNotRegistered):
			return apis.NewNotFoundError("Unknown payment provider", err)

		default:
			return apis.NewApiError(http.StatusInternalServerError, "Failed to process webhook", err)
		}
	}

	// Handler failures are deliberately invisible here; a 200 means the
	// delivery was authenticated and decoded, so the provider must not
	// retry it.
	return e.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"event_id":  event.ID,
		"type":      event.Type,
		"processed": true,
	})
}
