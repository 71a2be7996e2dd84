package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"happyhomes-payments/internal/status"
	"happyhomes-payments/utils"
)

type Config struct {
	BaseURL       string `json:"baseUrl" mapstructure:"base_url"`
	KeyID         string `json:"keyId" mapstructure:"key_id"`
	KeySecret     string `json:"keySecret" mapstructure:"key_secret"`
	WebhookSecret string `json:"webhookSecret" mapstructure:"webhook_secret"`
}

type Client struct {
	// baseURL is the base url of the Razorpay API.
	baseURL string

	// keyID and keySecret authenticate API requests (basic auth).
	keyID     string
	keySecret string

	// breaker guards the provider API against cascading failures.
	breaker *utils.CircuitBreaker

	// hc is the http client.
	hc *http.Client
}

func newClient(_ context.Context, cfg *Config) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,

		breaker: utils.NewCircuitBreaker("razorpay", utils.CircuitBreakerSettings{
			MaxRequests:  100,
			Interval:     60 * time.Second,
			Timeout:      30 * time.Second,
			FailureRatio: 0.6,
		}),

		// set http client with timeout.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// paymentPayload is the provider wire representation of a payment.
type paymentPayload struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	OrderID   string `json:"order_id"`
	CreatedAt int64  `json:"created_at"`
}

type createPaymentRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	OrderID     string `json:"order_id"`
	Contact     string `json:"contact,omitempty"`
	Description string `json:"description,omitempty"`
}

func (c *Client) getPayment(ctx context.Context, id string) (*paymentPayload, error) {
	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.doGetPayment(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*paymentPayload), nil
}

func (c *Client) doGetPayment(ctx context.Context, id string) (*paymentPayload, error) {
	url := fmt.Sprintf("%s/v1/payments/%s", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay: get payment %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", status.ErrPaymentNotFound, id)
	}
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("razorpay: get payment %s: unexpected status %d: %s", id, res.StatusCode, body)
	}

	var p paymentPayload
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("razorpay: decode payment %s: %w", id, err)
	}

	return &p, nil
}

func (c *Client) createPayment(ctx context.Context, form *createPaymentRequest) (*paymentPayload, error) {
	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return c.doCreatePayment(ctx, form)
	})
	if err != nil {
		return nil, err
	}
	return result.(*paymentPayload), nil
}

func (c *Client) doCreatePayment(ctx context.Context, form *createPaymentRequest) (*paymentPayload, error) {
	body, err := json.Marshal(form)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/payments", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay: create payment: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("razorpay: create payment: unexpected status %d: %s", res.StatusCode, respBody)
	}

	var p paymentPayload
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("razorpay: decode create payment response: %w", err)
	}

	return &p, nil
}
