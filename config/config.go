package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration (user-facing notifications)
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Payment provider configuration
	PaymentProvider string
	Razorpay        RazorpayConfig
	MockPay         MockPayConfig

	// Webhook ingestion
	WebhookRateLimit   int
	SignatureHeader    string
	SignatureHeaderAlt string

	// Status tracking
	PollInterval        time.Duration
	MaxTrackingDuration time.Duration
	TerminalStatuses    []string

	// Payment sessions
	SessionTTL time.Duration

	// Admin
	AdminAPIKeyHash string

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

type RazorpayConfig struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
}

type MockPayConfig struct {
	HMACKey string

	PNPublishKey   string
	PNSubscribeKey string
	PNSecretKey    string
	PNUUID         string
	PNChannel      string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Providers
		PaymentProvider: getEnv("PAYMENT_PROVIDER", "mockpay"),
		Razorpay: RazorpayConfig{
			BaseURL:       getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
			KeyID:         getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret:     getEnv("RAZORPAY_KEY_SECRET", ""),
			WebhookSecret: getEnv("RAZORPAY_WEBHOOK_SECRET", ""),
		},
		MockPay: MockPayConfig{
			HMACKey:        getEnv("MOCKPAY_HMAC_KEY", "mockpay-dev-key"),
			PNPublishKey:   getEnv("MOCKPAY_PN_PUBLISH_KEY", ""),
			PNSubscribeKey: getEnv("MOCKPAY_PN_SUBSCRIBE_KEY", ""),
			PNSecretKey:    getEnv("MOCKPAY_PN_SECRET_KEY", ""),
			PNUUID:         getEnv("MOCKPAY_PN_UUID", "happyhomes-server"),
			PNChannel:      getEnv("MOCKPAY_PN_CHANNEL", "mockpay-webhooks"),
		},

		// Webhooks
		WebhookRateLimit:   getEnvAsInt("WEBHOOK_RATE_LIMIT", 60),
		SignatureHeader:    getEnv("SIGNATURE_HEADER", "X-Razorpay-Signature"),
		SignatureHeaderAlt: getEnv("SIGNATURE_HEADER_ALT", "X-Webhook-Signature"),

		// Tracking
		PollInterval:        getEnvAsDuration("WEBHOOK_POLL_INTERVAL", "2s"),
		MaxTrackingDuration: getEnvAsDuration("MAX_TRACKING_DURATION", "10m"),
		TerminalStatuses:    getEnvAsList("TERMINAL_STATUSES", "succeeded,failed,cancelled"),

		// Sessions
		SessionTTL: getEnvAsDuration("PAYMENT_SESSION_TTL", "10m"),

		// Admin
		AdminAPIKeyHash: getEnv("ADMIN_API_KEY_HASH", ""),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsList(key string, defaultValue string) []string {
	valueStr := getEnv(key, defaultValue)

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
