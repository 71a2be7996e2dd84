package monitoring

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var (
	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook deliveries by provider, event type and outcome",
		},
		[]string{"provider", "event_type", "outcome"},
	)

	handlerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_handler_failures_total",
			Help: "Handler failures during event fan-out",
		},
		[]string{"event_type"},
	)

	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_dispatch_duration_seconds",
			Help:    "Time to fan an event out to all handlers",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"event_type"},
	)

	trackedPayments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracked_payments_total",
			Help: "Payment intents currently being polled",
		},
	)

	pollOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_poll_total",
			Help: "Status poll ticks by outcome",
		},
		[]string{"outcome"},
	)

	pollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_poll_duration_seconds",
			Help:    "Duration of a single status poll fetch",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_sessions_total",
			Help: "Open payment sessions in Redis",
		},
	)
)

// TrackWebhookEvent records a webhook delivery outcome
// (accepted, signature_invalid, decode_failed, rate_limited).
func TrackWebhookEvent(provider, eventType, outcome string) {
	webhookEvents.WithLabelValues(provider, eventType, outcome).Inc()
}

// TrackHandlerFailure records one failed handler invocation.
func TrackHandlerFailure(eventType string) {
	handlerFailures.WithLabelValues(eventType).Inc()
}

// TrackDispatch records the fan-out duration for one event.
func TrackDispatch(eventType string, duration time.Duration) {
	dispatchDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// SetTrackedPayments records the current tracking table size.
func SetTrackedPayments(n int) {
	trackedPayments.Set(float64(n))
}

// TrackPoll records one poll tick outcome (ok, error, terminal).
func TrackPoll(outcome string, duration time.Duration) {
	pollOutcomes.WithLabelValues(outcome).Inc()
	pollDuration.Observe(duration.Seconds())
}

type Monitor struct {
	redis *redis.Client
}

// NewMonitor starts background collection of Redis-derived gauges.
func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		m.collectSessionMetrics(ctx)
	}
}

func (m *Monitor) collectSessionMetrics(ctx context.Context) {
	keys, err := m.redis.Keys(ctx, "payment:*").Result()
	if err != nil {
		return
	}
	activeSessions.Set(float64(len(keys)))
}

// StartMetricsServer serves /metrics on its own port.
func StartMetricsServer(port string) {
	e := echo.New()

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	log.Printf("Metrics server listening on :%s", port)
	if err := e.Start(":" + port); err != nil {
		log.Printf("Metrics server stopped: %v", err)
	}
}
