package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"happyhomes-payments/internal/status"
	"happyhomes-payments/models"

	"github.com/redis/go-redis/v9"
)

// PaymentSessionService keeps the checkout-side record of a payment
// attempt in Redis while the customer completes the flow. Sessions expire
// on their own; webhook reactions transition them before that.
type PaymentSessionService struct {
	Redis *redis.Client
	ttl   time.Duration
}

func NewPaymentSessionService(redisClient *redis.Client, ttl time.Duration) *PaymentSessionService {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}

	return &PaymentSessionService{
		Redis: redisClient,
		ttl:   ttl,
	}
}

// CreateSession opens a session for a freshly created payment intent.
func (s *PaymentSessionService) CreateSession(ctx context.Context, intent *models.PaymentIntent, userID string) error {
	key := sessionKey(intent.ID)

	if err := s.Redis.HSet(ctx, key,
		"payment_id", intent.ID,
		"user_id", userID,
		"order_id", intent.OrderID,
		"amount", intent.Amount,
		"currency", intent.Currency,
		"status", "pending",
		"created_at", time.Now().Unix(),
	).Err(); err != nil {
		return fmt.Errorf("create payment session %s: %w", intent.ID, err)
	}

	s.Redis.Expire(ctx, key, s.ttl)

	return nil
}

// GetSession fetches a session by payment id.
func (s *PaymentSessionService) GetSession(ctx context.Context, paymentID string) (*models.PaymentSession, error) {
	data, err := s.Redis.HGetAll(ctx, sessionKey(paymentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get payment session %s: %w", paymentID, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: session %s", status.ErrPaymentNotFound, paymentID)
	}

	amount, _ := strconv.ParseInt(data["amount"], 10, 64)
	createdAt, _ := strconv.ParseInt(data["created_at"], 10, 64)

	session := &models.PaymentSession{
		PaymentID: data["payment_id"],
		UserID:    data["user_id"],
		OrderID:   data["order_id"],
		Amount:    amount,
		Currency:  data["currency"],
		Status:    data["status"],
		CreatedAt: time.Unix(createdAt, 0),
	}

	if v, ok := data["completed_at"]; ok {
		completedAt, _ := strconv.ParseInt(v, 10, 64)
		ts := time.Unix(completedAt, 0)
		session.CompletedAt = &ts
	}

	return session, nil
}

// CompleteSession marks a session as completed.
func (s *PaymentSessionService) CompleteSession(ctx context.Context, paymentID string) error {
	return s.setSessionStatus(ctx, paymentID, "completed")
}

// CloseSession marks a session as failed or cancelled.
func (s *PaymentSessionService) CloseSession(ctx context.Context, paymentID, sessionStatus string) error {
	return s.setSessionStatus(ctx, paymentID, sessionStatus)
}

func (s *PaymentSessionService) setSessionStatus(ctx context.Context, paymentID, sessionStatus string) error {
	key := sessionKey(paymentID)

	if err := s.Redis.HSet(ctx, key,
		"status", sessionStatus,
		"completed_at", time.Now().Unix(),
	).Err(); err != nil {
		return fmt.Errorf("update payment session %s: %w", paymentID, err)
	}

	return nil
}

func sessionKey(paymentID string) string {
	return fmt.Sprintf("payment:%s", paymentID)
}
