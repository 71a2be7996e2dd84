package gateway

import (
	"context"
	"fmt"
	"log"
	"sync"

	"happyhomes-payments/internal/services/gateway/mockpay"
	"happyhomes-payments/internal/services/gateway/razorpay"
	"happyhomes-payments/internal/status"
	"happyhomes-payments/models"

	"github.com/redis/go-redis/v9"
)

// Factory implements GatewayFactory
type Factory struct {
	redis *redis.Client
}

// NewFactory creates a new gateway factory. The Redis client is handed to
// providers that keep local state (mockpay).
func NewFactory(redisClient *redis.Client) *Factory {
	return &Factory{redis: redisClient}
}

// CreateGateway creates a gateway instance based on provider type and configuration
func (f *Factory) CreateGateway(ctx context.Context, provider models.PaymentProvider, config interface{}) (PaymentGateway, error) {
	switch provider {
	case models.ProviderRazorpay:
		rzpConfig, ok := config.(*razorpay.Config)
		if !ok {
			return nil, fmt.Errorf("invalid razorpay config type, expected *razorpay.Config")
		}
		return NewRazorpayAdapter(ctx, rzpConfig)

	case models.ProviderMockPay:
		mpConfig, ok := config.(*mockpay.Config)
		if !ok {
			return nil, fmt.Errorf("invalid mockpay config type, expected *mockpay.Config")
		}
		return NewMockPayAdapter(ctx, mpConfig, f.redis)

	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", provider)
	}
}

// GetSupportedProviders returns list of supported payment providers
func (f *Factory) GetSupportedProviders() []models.PaymentProvider {
	return []models.PaymentProvider{
		models.ProviderRazorpay,
		models.ProviderMockPay,
	}
}

// Registry manages the registered gateway instances and the process-wide
// primary provider selection.
type Registry struct {
	mu       sync.RWMutex
	gateways map[models.PaymentProvider]PaymentGateway
	factory  GatewayFactory
	primary  models.PaymentProvider
}

// NewRegistry creates a new gateway registry
func NewRegistry(factory GatewayFactory) *Registry {
	return &Registry{
		gateways: make(map[models.PaymentProvider]PaymentGateway),
		factory:  factory,
	}
}

// Register creates and registers a gateway instance
func (r *Registry) Register(ctx context.Context, provider models.PaymentProvider, config interface{}) error {
	gw, err := r.factory.CreateGateway(ctx, provider, config)
	if err != nil {
		return fmt.Errorf("failed to create %s gateway: %w", provider, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.gateways[provider] = gw

	// First registered gateway becomes primary.
	if r.primary == "" {
		r.primary = provider
	}

	return nil
}

// Get returns a gateway instance by provider
func (r *Registry) Get(provider models.PaymentProvider) (PaymentGateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	gw, exists := r.gateways[provider]
	if !exists {
		return nil, fmt.Errorf("%w: %s", status.ErrProviderNotRegistered, provider)
	}
	return gw, nil
}

// GetPrimary returns the primary gateway instance
func (r *Registry) GetPrimary() (PaymentGateway, error) {
	r.mu.RLock()
	primary := r.primary
	r.mu.RUnlock()

	if primary == "" {
		return nil, fmt.Errorf("%w: no primary provider configured", status.ErrProviderNotRegistered)
	}
	return r.Get(primary)
}

// Resolve returns the gateway for provider, or the primary gateway when
// provider is empty.
func (r *Registry) Resolve(provider models.PaymentProvider) (PaymentGateway, error) {
	if provider == "" {
		return r.GetPrimary()
	}
	return r.Get(provider)
}

// SetPrimary sets the primary payment provider
func (r *Registry) SetPrimary(provider models.PaymentProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.gateways[provider]; !exists {
		return fmt.Errorf("%w: %s", status.ErrProviderNotRegistered, provider)
	}
	r.primary = provider
	return nil
}

// Primary returns the current primary provider tag.
func (r *Registry) Primary() models.PaymentProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primary
}

// GetAvailableProviders returns list of registered providers
func (r *Registry) GetAvailableProviders() []models.PaymentProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]models.PaymentProvider, 0, len(r.gateways))
	for provider := range r.gateways {
		providers = append(providers, provider)
	}
	return providers
}

// Close gracefully closes all gateway connections
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for provider, gw := range r.gateways {
		if err := gw.Close(ctx); err != nil {
			// Log and continue closing the others.
			log.Printf("Error closing %s gateway: %v", provider, err)
		}
	}
	return nil
}
