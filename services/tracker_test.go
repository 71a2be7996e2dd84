package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"happyhomes-payments/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedFetcher serves a fixed status sequence, one entry per
// successful fetch; the last entry repeats. Leading calls can be made to
// fail to exercise retry behavior.
type scriptedFetcher struct {
	mu       sync.Mutex
	statuses []models.PaymentStatus
	failures int
	calls    int
	served   int
}

func (f *scriptedFetcher) GetPaymentIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, fmt.Errorf("provider unavailable")
	}

	idx := f.served
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.served++

	return &models.PaymentIntent{
		ID:       id,
		Amount:   49900,
		Currency: "INR",
		Status:   f.statuses[idx],
		Provider: models.ProviderMockPay,
	}, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestTracker(fetcher IntentFetcher) *StatusTracker {
	return NewStatusTracker(fetcher, TrackerConfig{
		PollInterval:        5 * time.Millisecond,
		MaxTrackingDuration: 2 * time.Second,
	})
}

// statusRecorder collects intent snapshots delivered to a callback.
type statusRecorder struct {
	mu       sync.Mutex
	statuses []models.PaymentStatus
}

func (r *statusRecorder) callback(intent *models.PaymentIntent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, intent.Status)
}

func (r *statusRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}

func (r *statusRecorder) countOf(status models.PaymentStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.statuses {
		if s == status {
			n++
		}
	}
	return n
}

func TestTrackingStopsOnTerminalStatus(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []models.PaymentStatus{
		models.StatusProcessing,
		models.StatusProcessing,
		models.StatusSucceeded,
	}}
	tracker := newTestTracker(fetcher)
	defer tracker.StopAll()

	rec := &statusRecorder{}
	tracker.StartTracking("pi_1", rec.callback)

	require.Eventually(t, func() bool {
		return rec.countOf(models.StatusSucceeded) == 1
	}, time.Second, time.Millisecond)

	// The loop must have removed itself.
	require.Eventually(t, func() bool {
		return len(tracker.GetActivePayments()) == 0
	}, time.Second, time.Millisecond)

	// Settled payments poll no further.
	settled := fetcher.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, fetcher.callCount())
	assert.Equal(t, 1, rec.countOf(models.StatusSucceeded))
}

func TestStartTrackingSharesOneLoop(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []models.PaymentStatus{models.StatusProcessing}}
	tracker := newTestTracker(fetcher)
	defer tracker.StopAll()

	rec1 := &statusRecorder{}
	rec2 := &statusRecorder{}
	tracker.StartTracking("pi_2", rec1.callback)
	tracker.StartTracking("pi_2", rec2.callback)

	assert.Equal(t, []string{"pi_2"}, tracker.GetActivePayments())

	// Both callbacks observe updates from the single poll loop.
	require.Eventually(t, func() bool {
		return rec1.count() >= 2 && rec2.count() >= 2
	}, time.Second, time.Millisecond)

	tracker.StopTracking("pi_2")

	// One fetch per tick regardless of callback count.
	assert.GreaterOrEqual(t, fetcher.callCount(), rec1.count())
}

func TestTerminalCallbackNeverRefires(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []models.PaymentStatus{models.StatusSucceeded}}
	tracker := newTestTracker(fetcher)

	rec := &statusRecorder{}
	tracker.StartTracking("pi_3", rec.callback)

	require.Eventually(t, func() bool {
		return rec.countOf(models.StatusSucceeded) == 1
	}, time.Second, time.Millisecond)

	// A forced extra poll finds the id untracked and discards the result.
	done := tracker.pollStep("pi_3")
	assert.True(t, done)
	assert.Equal(t, 1, rec.countOf(models.StatusSucceeded))
}

func TestFetchErrorsAreRetried(t *testing.T) {
	fetcher := &scriptedFetcher{
		statuses: []models.PaymentStatus{models.StatusSucceeded},
		failures: 3,
	}
	tracker := newTestTracker(fetcher)
	defer tracker.StopAll()

	rec := &statusRecorder{}
	tracker.StartTracking("pi_4", rec.callback)

	// Polling survives transient fetch failures and still lands on the
	// terminal snapshot.
	require.Eventually(t, func() bool {
		return rec.countOf(models.StatusSucceeded) == 1
	}, time.Second, time.Millisecond)

	assert.GreaterOrEqual(t, fetcher.callCount(), 4)
}

func TestStopTrackingIsIdempotent(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []models.PaymentStatus{models.StatusProcessing}}
	tracker := newTestTracker(fetcher)

	// Untracked ids are a no-op.
	tracker.StopTracking("pi_missing")

	rec := &statusRecorder{}
	tracker.StartTracking("pi_5", rec.callback)
	tracker.StopTracking("pi_5")
	tracker.StopTracking("pi_5")

	assert.Empty(t, tracker.GetActivePayments())
}

func TestTrackingTimesOut(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []models.PaymentStatus{models.StatusProcessing}}
	tracker := NewStatusTracker(fetcher, TrackerConfig{
		PollInterval:        5 * time.Millisecond,
		MaxTrackingDuration: 40 * time.Millisecond,
	})

	rec := &statusRecorder{}
	tracker.StartTracking("pi_6", rec.callback)

	require.Eventually(t, func() bool {
		return len(tracker.GetActivePayments()) == 0
	}, time.Second, time.Millisecond, "never-terminal payment must stop at the tracking deadline")
}

func TestStopAll(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []models.PaymentStatus{models.StatusProcessing}}
	tracker := newTestTracker(fetcher)

	for i := 0; i < 5; i++ {
		tracker.StartTracking(fmt.Sprintf("pi_%d", i), func(intent *models.PaymentIntent) {})
	}
	require.Len(t, tracker.GetActivePayments(), 5)

	tracker.StopAll()
	assert.Empty(t, tracker.GetActivePayments())
}

func TestCallbackAddedMidFlight(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []models.PaymentStatus{models.StatusProcessing}}
	tracker := newTestTracker(fetcher)
	defer tracker.StopAll()

	rec1 := &statusRecorder{}
	tracker.StartTracking("pi_7", rec1.callback)

	require.Eventually(t, func() bool {
		return rec1.count() >= 1
	}, time.Second, time.Millisecond)

	rec2 := &statusRecorder{}
	tracker.StartTracking("pi_7", rec2.callback)

	require.Eventually(t, func() bool {
		return rec2.count() >= 1
	}, time.Second, time.Millisecond)

	assert.Equal(t, []string{"pi_7"}, tracker.GetActivePayments())
}

func TestCustomTerminalStatuses(t *testing.T) {
	fetcher := &scriptedFetcher{statuses: []models.PaymentStatus{models.StatusProcessing}}
	tracker := NewStatusTracker(fetcher, TrackerConfig{
		PollInterval:        5 * time.Millisecond,
		MaxTrackingDuration: 2 * time.Second,
		TerminalStatuses:    []models.PaymentStatus{models.StatusProcessing},
	})

	rec := &statusRecorder{}
	tracker.StartTracking("pi_8", rec.callback)

	// With processing configured terminal, the very first snapshot settles
	// the payment.
	require.Eventually(t, func() bool {
		return len(tracker.GetActivePayments()) == 0
	}, time.Second, time.Millisecond)

	assert.Equal(t, 1, rec.countOf(models.StatusProcessing))
}
