package handlers

import (
	"net/http"

	"happyhomes-payments/config"
	"happyhomes-payments/internal/services/gateway"
	"happyhomes-payments/models"
	"happyhomes-payments/security"
	"happyhomes-payments/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

const adminKeyHeader = "X-Admin-Key"

type AdminHandler struct {
	registry   *gateway.Registry
	tracker    *services.StatusTracker
	dispatcher *services.EventDispatcher
	cfg        *config.Config
}

func NewAdminHandler(registry *gateway.Registry, tracker *services.StatusTracker, dispatcher *services.EventDispatcher, cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		registry:   registry,
		tracker:    tracker,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

func (h *AdminHandler) authorize(e *core.RequestEvent) error {
	if !security.VerifyAPIKey(h.cfg.AdminAPIKeyHash, e.Request.Header.Get(adminKeyHeader)) {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}
	return nil
}

// GetTrackingDashboard - Report active tracking and handler registrations
func (h *AdminHandler) GetTrackingDashboard(e *core.RequestEvent) error {
	if err := h.authorize(e); err != nil {
		return err
	}

	active := h.tracker.GetActivePayments()

	handlers := make(map[string]int, len(models.KnownEventTypes))
	for _, eventType := range models.KnownEventTypes {
		handlers[string(eventType)] = h.dispatcher.HandlerCount(eventType)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"tracked_payments": active,
		"tracked_count":    len(active),
		"handlers":         handlers,
	})
}

// StopAllTracking - Cancel every active poll loop
func (h *AdminHandler) StopAllTracking(e *core.RequestEvent) error {
	if err := h.authorize(e); err != nil {
		return err
	}

	stopped := len(h.tracker.GetActivePayments())
	h.tracker.StopAll()

	return e.JSON(http.StatusOK, map[string]any{
		"stopped": stopped,
	})
}

// ListProviders - List registered providers and the current primary
func (h *AdminHandler) ListProviders(e *core.RequestEvent) error {
	if err := h.authorize(e); err != nil {
		return err
	}

	return e.JSON(http.StatusOK, map[string]any{
		"providers": h.registry.GetAvailableProviders(),
		"primary":   h.registry.Primary(),
	})
}

// SetPrimaryProvider - Switch the process-wide primary provider
func (h *AdminHandler) SetPrimaryProvider(e *core.RequestEvent) error {
	if err := h.authorize(e); err != nil {
		return err
	}

	var req struct {
		Provider string `json:"provider"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.registry.SetPrimary(models.PaymentProvider(req.Provider)); err != nil {
		return apis.NewBadRequestError("Unknown provider", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"primary": h.registry.Primary(),
	})
}
