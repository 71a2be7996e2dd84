package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"happyhomes-payments/config"
	"happyhomes-payments/handlers"
	"happyhomes-payments/internal/services/gateway"
	"happyhomes-payments/internal/services/gateway/mockpay"
	"happyhomes-payments/internal/services/gateway/razorpay"
	"happyhomes-payments/models"
	"happyhomes-payments/monitoring"
	"happyhomes-payments/security"
	"happyhomes-payments/services"
	"happyhomes-payments/utils"

	_ "happyhomes-payments/migrations"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub for user-facing notifications
	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		pn = pubnub.NewPubNub(pnConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register payment gateways
	registry := gateway.NewRegistry(gateway.NewFactory(redisClient))

	if cfg.Environment == "development" || cfg.PaymentProvider == string(models.ProviderMockPay) {
		err := registry.Register(ctx, models.ProviderMockPay, &mockpay.Config{
			HMACKey:        cfg.MockPay.HMACKey,
			PNPublishKey:   cfg.MockPay.PNPublishKey,
			PNSubscribeKey: cfg.MockPay.PNSubscribeKey,
			PNSecretKey:    cfg.MockPay.PNSecretKey,
			PNUUID:         cfg.MockPay.PNUUID,
			PNChannel:      cfg.MockPay.PNChannel,
		})
		if err != nil {
			return err
		}
	}

	if cfg.Razorpay.KeyID != "" {
		err := registry.Register(ctx, models.ProviderRazorpay, &razorpay.Config{
			BaseURL:       cfg.Razorpay.BaseURL,
			KeyID:         cfg.Razorpay.KeyID,
			KeySecret:     cfg.Razorpay.KeySecret,
			WebhookSecret: cfg.Razorpay.WebhookSecret,
		})
		if err != nil {
			return err
		}
	}

	if err := registry.SetPrimary(models.PaymentProvider(cfg.PaymentProvider)); err != nil {
		// Keep the first registered gateway as primary instead of failing.
		log.Printf("Configured provider unavailable, using %s: %v", registry.Primary(), err)
	}

	// Initialize services
	sessions := services.NewPaymentSessionService(redisClient, cfg.SessionTTL)
	dispatcher := services.NewEventDispatcher(registry)
	reactions := services.NewWebhookReactions(sessions, pn, app)
	services.RegisterDefaultHandlers(dispatcher, reactions)

	tracker := services.NewStatusTracker(&registryFetcher{registry: registry}, services.TrackerConfig{
		PollInterval:        cfg.PollInterval,
		MaxTrackingDuration: cfg.MaxTrackingDuration,
		TerminalStatuses:    models.TerminalStatusesFromStrings(cfg.TerminalStatuses),
	})

	// Bridge provider push frames into the normal webhook path.
	pushCh := make(chan *models.PushNotification, 16)
	for _, provider := range registry.GetAvailableProviders() {
		if gw, err := registry.Get(provider); err == nil {
			gw.SetNotificationChannel(pushCh)
		}
	}
	go func() {
		for {
			select {
			case frame := <-pushCh:
				slog.Info("push frame received", "provider", frame.Provider)
				if _, err := dispatcher.Ingest(ctx, frame.Payload, frame.Signature, frame.Provider); err != nil {
					slog.Error("push frame rejected", "provider", frame.Provider, "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Initialize handlers
	limiter := security.NewRateLimiter(redisClient, cfg.WebhookRateLimit)
	webhookHandler := handlers.NewWebhookHandler(dispatcher, limiter, cfg)
	paymentHandler := handlers.NewPaymentHandler(registry, sessions, tracker, cfg)
	adminHandler := handlers.NewAdminHandler(registry, tracker, dispatcher, cfg)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Monitoring
	if cfg.EnableMetrics {
		monitoring.NewMonitor(redisClient)
		go monitoring.StartMetricsServer(cfg.MetricsPort)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel, tracker, registry)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		go restorePendingTracking(app, tracker)

		// Webhook endpoints
		e.Router.POST("/api/v1/webhooks/payment", webhookHandler.HandleWebhook)
		e.Router.POST("/api/v1/webhooks/payment/{provider}", webhookHandler.HandleProviderWebhook)

		// Payment endpoints
		e.Router.POST("/api/v1/payments", paymentHandler.Checkout)
		e.Router.GET("/api/v1/payments/{paymentId}", paymentHandler.GetPaymentDetails)
		e.Router.GET("/api/v1/payments/{paymentId}/status", paymentHandler.GetPaymentStatus)
		e.Router.POST("/api/v1/payments/{paymentId}/track", paymentHandler.TrackPayment)
		e.Router.DELETE("/api/v1/payments/{paymentId}/track", paymentHandler.UntrackPayment)

		// Admin endpoints
		e.Router.GET("/api/v1/admin/tracking-dashboard", adminHandler.GetTrackingDashboard)
		e.Router.POST("/api/v1/admin/stop-all-tracking", adminHandler.StopAllTracking)
		e.Router.GET("/api/v1/admin/providers", adminHandler.ListProviders)
		e.Router.POST("/api/v1/admin/primary-provider", adminHandler.SetPrimaryProvider)

		// Test endpoint for payment simulation
		if cfg.Environment == "development" {
			e.Router.POST("/api/v1/test/payments/{paymentId}/simulate", paymentHandler.SimulatePayment)
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// registryFetcher routes tracker polls through the primary gateway.
type registryFetcher struct {
	registry *gateway.Registry
}

func (f *registryFetcher) GetPaymentIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	gw, err := f.registry.GetPrimary()
	if err != nil {
		return nil, err
	}
	return gw.GetPaymentIntent(ctx, id)
}

// restorePendingTracking resumes polling for payments that were still in
// flight when the process last stopped.
func restorePendingTracking(app *pocketbase.PocketBase, tracker *services.StatusTracker) {
	var records []dbx.NullStringMap
	if err := app.DB().NewQuery(
		"SELECT intent_id FROM payment_intents WHERE status NOT IN ('succeeded', 'failed', 'cancelled')",
	).All(&records); err != nil {
		log.Printf("Error fetching pending payments: %v", err)
		return
	}

	resumed := 0
	for _, record := range records {
		if id := record["intent_id"].String; id != "" {
			tracker.StartTracking(id, func(intent *models.PaymentIntent) {
				log.Printf("Payment %s status: %s", intent.ID, intent.Status)
			})
			resumed++
		}
	}

	if resumed > 0 {
		log.Printf("Resumed tracking for %d pending payments", resumed)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc, tracker *services.StatusTracker, registry *gateway.Registry) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")

	cancel()
	tracker.StopAll()

	if err := registry.Close(context.Background()); err != nil {
		log.Printf("Error closing gateways: %v", err)
	}
}
