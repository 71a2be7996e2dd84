package services

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"happyhomes-payments/models"
	"happyhomes-payments/monitoring"
)

// IntentFetcher is the slice of the payment gateway the tracker needs.
type IntentFetcher interface {
	GetPaymentIntent(ctx context.Context, id string) (*models.PaymentIntent, error)
}

// StatusCallback observes payment intent snapshots as they are polled.
type StatusCallback func(intent *models.PaymentIntent)

type TrackerConfig struct {
	PollInterval        time.Duration
	MaxTrackingDuration time.Duration
	TerminalStatuses    []models.PaymentStatus
}

type trackedPayment struct {
	callbacks []StatusCallback
	stop      chan struct{}
}

// StatusTracker polls the payment service for tracked intents and pushes
// every snapshot to the registered callbacks. Tracking ends when the
// intent reaches a terminal status, when StopTracking is called, or when
// the maximum tracking duration elapses, whichever comes first.
type StatusTracker struct {
	fetcher IntentFetcher
	cfg     TrackerConfig

	mu      sync.Mutex
	tracked map[string]*trackedPayment
}

func NewStatusTracker(fetcher IntentFetcher, cfg TrackerConfig) *StatusTracker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxTrackingDuration == 0 {
		cfg.MaxTrackingDuration = 10 * time.Minute
	}
	if len(cfg.TerminalStatuses) == 0 {
		cfg.TerminalStatuses = models.DefaultTerminalStatuses
	}

	return &StatusTracker{
		fetcher: fetcher,
		cfg:     cfg,
		tracked: make(map[string]*trackedPayment),
	}
}

// StartTracking registers callback for paymentID and starts the poll loop
// if none is running yet. Tracking an already-tracked id only appends the
// callback; there is never more than one loop per id.
func (t *StatusTracker) StartTracking(paymentID string, callback StatusCallback) {
	t.mu.Lock()

	if entry, exists := t.tracked[paymentID]; exists {
		entry.callbacks = append(entry.callbacks, callback)
		t.mu.Unlock()
		return
	}

	entry := &trackedPayment{
		callbacks: []StatusCallback{callback},
		stop:      make(chan struct{}),
	}
	t.tracked[paymentID] = entry
	size := len(t.tracked)

	t.mu.Unlock()

	monitoring.SetTrackedPayments(size)

	go t.pollLoop(paymentID, entry.stop)
}

// StopTracking cancels polling for paymentID and discards its callbacks.
// Calling it on an untracked id is a no-op.
func (t *StatusTracker) StopTracking(paymentID string) {
	t.mu.Lock()

	entry, exists := t.tracked[paymentID]
	if exists {
		delete(t.tracked, paymentID)
		close(entry.stop)
	}
	size := len(t.tracked)

	t.mu.Unlock()

	if exists {
		monitoring.SetTrackedPayments(size)
	}
}

// GetActivePayments returns a snapshot of currently tracked ids.
func (t *StatusTracker) GetActivePayments() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.tracked))
	for id := range t.tracked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StopAll cancels every active poll loop. Intended for process shutdown;
// the tracker holds timers that are not reclaimed otherwise.
func (t *StatusTracker) StopAll() {
	t.mu.Lock()

	for id, entry := range t.tracked {
		close(entry.stop)
		delete(t.tracked, id)
	}

	t.mu.Unlock()

	monitoring.SetTrackedPayments(0)
}

func (t *StatusTracker) pollLoop(paymentID string, stop chan struct{}) {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	// Unconditional cleanup: no tracked id may poll forever.
	deadline := time.NewTimer(t.cfg.MaxTrackingDuration)
	defer deadline.Stop()

	for {
		select {
		case <-stop:
			return

		case <-deadline.C:
			log.Printf("Tracking timed out for payment %s", paymentID)
			t.StopTracking(paymentID)
			return

		case <-ticker.C:
			// The fetch runs inline, so ticks never overlap: a slow fetch
			// stretches the effective period instead.
			if done := t.pollStep(paymentID); done {
				return
			}
		}
	}
}

// pollStep performs one poll tick. It reports whether tracking for the id
// has ended.
func (t *StatusTracker) pollStep(paymentID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()

	intent, err := t.fetcher.GetPaymentIntent(ctx, paymentID)
	if err != nil {
		// Transient fetch failures are tolerated; the next tick retries.
		log.Printf("Error polling payment %s: %v", paymentID, err)
		monitoring.TrackPoll("error", time.Since(start))
		return false
	}

	callbacks, active := t.snapshotCallbacks(paymentID)
	if !active {
		// Stopped while the fetch was in flight; discard the result.
		return true
	}

	if models.IsTerminal(intent.Status, t.cfg.TerminalStatuses) {
		// Remove the entry first so a forced extra poll can never fire
		// the callbacks twice.
		t.StopTracking(paymentID)

		for _, cb := range callbacks {
			cb(intent)
		}

		monitoring.TrackPoll("terminal", time.Since(start))
		return true
	}

	for _, cb := range callbacks {
		cb(intent)
	}

	monitoring.TrackPoll("ok", time.Since(start))
	return false
}

// snapshotCallbacks copies the callback list in registration order.
func (t *StatusTracker) snapshotCallbacks(paymentID string) ([]StatusCallback, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.tracked[paymentID]
	if !exists {
		return nil, false
	}

	callbacks := make([]StatusCallback, len(entry.callbacks))
	copy(callbacks, entry.callbacks)
	return callbacks, true
}
