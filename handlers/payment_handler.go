package handlers

import (
	"errors"
	"log"
	"net/http"

	"happyhomes-payments/config"
	"happyhomes-payments/internal/services/gateway"
	"happyhomes-payments/internal/status"
	"happyhomes-payments/models"
	"happyhomes-payments/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	registry *gateway.Registry
	sessions *services.PaymentSessionService
	tracker  *services.StatusTracker
	cfg      *config.Config
}

func NewPaymentHandler(registry *gateway.Registry, sessions *services.PaymentSessionService, tracker *services.StatusTracker, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{
		registry: registry,
		sessions: sessions,
		tracker:  tracker,
		cfg:      cfg,
	}
}

// Checkout - Open a payment with the provider and start tracking it
func (h *PaymentHandler) Checkout(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currency"`
		OrderID     string          `json:"order_id"`
		Provider    string          `json:"provider"`
		Phone       string          `json:"phone"`
		Description string          `json:"description"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return apis.NewBadRequestError("Amount must be positive", nil)
	}
	if req.OrderID == "" {
		return apis.NewBadRequestError("Missing order_id", nil)
	}
	if req.Currency == "" {
		req.Currency = "INR"
	}

	ctx := e.Request.Context()

	gw, err := h.registry.Resolve(models.PaymentProvider(req.Provider))
	if err != nil {
		return apis.NewBadRequestError("Unknown payment provider", err)
	}

	intent, err := gw.CreatePaymentIntent(ctx, &gateway.CheckoutRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		OrderID:     req.OrderID,
		Phone:       req.Phone,
		Description: req.Description,
	})
	if err != nil {
		return apis.NewApiError(http.StatusBadGateway, "Failed to create payment", err)
	}

	if err := h.sessions.CreateSession(ctx, intent, e.Auth.Id); err != nil {
		log.Printf("Error creating payment session %s: %v", intent.ID, err)
	}

	h.tracker.StartTracking(intent.ID, logStatusChange)

	return e.JSON(http.StatusOK, map[string]any{
		"payment_id": intent.ID,
		"amount":     intent.Amount,
		"currency":   intent.Currency,
		"status":     intent.Status,
		"provider":   intent.Provider,
		"order_id":   intent.OrderID,
	})
}

// GetPaymentStatus - Fetch the live status of a payment from its provider
func (h *PaymentHandler) GetPaymentStatus(e *core.RequestEvent) error {
	paymentID := e.Request.PathValue("paymentId")
	provider := models.PaymentProvider(e.Request.URL.Query().Get("provider"))

	gw, err := h.registry.Resolve(provider)
	if err != nil {
		return apis.NewBadRequestError("Unknown payment provider", err)
	}

	intent, err := gw.GetPaymentIntent(e.Request.Context(), paymentID)
	if err != nil {
		if errors.Is(err, status.ErrPaymentNotFound) {
			return apis.NewNotFoundError("Payment not found", nil)
		}
		return apis.NewApiError(http.StatusBadGateway, "Failed to fetch payment status", err)
	}

	tracked := false
	for _, id := range h.tracker.GetActivePayments() {
		if id == paymentID {
			tracked = true
			break
		}
	}

	return e.JSON(http.StatusOK, map[string]any{
		"payment_id": intent.ID,
		"status":     intent.Status,
		"provider":   intent.Provider,
		"tracked":    tracked,
		"updated_at": intent.UpdatedAt,
	})
}

// GetPaymentDetails - Return the checkout session owned by the caller
func (h *PaymentHandler) GetPaymentDetails(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	paymentID := e.Request.PathValue("paymentId")

	session, err := h.sessions.GetSession(e.Request.Context(), paymentID)
	if err != nil {
		if errors.Is(err, status.ErrPaymentNotFound) {
			return apis.NewNotFoundError("Payment not found", nil)
		}
		return apis.NewApiError(http.StatusInternalServerError, "Failed to load payment", err)
	}

	if session.UserID != e.Auth.Id {
		return apis.NewForbiddenError("Access denied", nil)
	}

	return e.JSON(http.StatusOK, session)
}

// TrackPayment - Start polling a payment's status
func (h *PaymentHandler) TrackPayment(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	paymentID := e.Request.PathValue("paymentId")
	if paymentID == "" {
		return apis.NewBadRequestError("Missing payment id", nil)
	}

	h.tracker.StartTracking(paymentID, logStatusChange)

	return e.JSON(http.StatusOK, map[string]any{
		"payment_id": paymentID,
		"tracking":   true,
	})
}

// UntrackPayment - Stop polling a payment's status
func (h *PaymentHandler) UntrackPayment(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	paymentID := e.Request.PathValue("paymentId")
	h.tracker.StopTracking(paymentID)

	return e.JSON(http.StatusOK, map[string]any{
		"payment_id": paymentID,
		"tracking":   false,
	})
}

// SimulatePayment - Drive a mockpay intent to a new status (development only)
func (h *PaymentHandler) SimulatePayment(e *core.RequestEvent) error {
	if h.cfg.Environment != "development" {
		return apis.NewNotFoundError("Not found", nil)
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	gw, err := h.registry.Get(models.ProviderMockPay)
	if err != nil {
		return apis.NewBadRequestError("MockPay is not registered", err)
	}

	adapter, ok := gw.(*gateway.MockPayAdapter)
	if !ok {
		return apis.NewApiError(http.StatusInternalServerError, "Unexpected gateway type", nil)
	}

	paymentID := e.Request.PathValue("paymentId")

	frame, err := adapter.Simulate(e.Request.Context(), paymentID, models.PaymentStatus(req.Status))
	if err != nil {
		if errors.Is(err, status.ErrPaymentNotFound) {
			return apis.NewNotFoundError("Payment not found", nil)
		}
		return apis.NewApiError(http.StatusInternalServerError, "Failed to simulate status change", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"payment_id": paymentID,
		"status":     req.Status,
		"frame":      frame,
	})
}

func logStatusChange(intent *models.PaymentIntent) {
	log.Printf("Payment %s status: %s", intent.ID, intent.Status)
}
