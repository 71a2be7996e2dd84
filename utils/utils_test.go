package utils

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Circuit Breaker Tests

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerSettings{})

	assert.Equal(t, "test", cb.name)
	assert.Equal(t, uint32(100), cb.maxRequests)
	assert.Equal(t, 60*time.Second, cb.interval)
	assert.Equal(t, 60*time.Second, cb.timeout)
	assert.Equal(t, 0.6, cb.failureRatio)
	assert.Equal(t, StateClosed, cb.state)
}

func TestCircuitBreaker_Settings(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerSettings{
		MaxRequests:  10,
		Interval:     30 * time.Second,
		Timeout:      5 * time.Second,
		FailureRatio: 0.5,
	})

	assert.Equal(t, uint32(10), cb.maxRequests)
	assert.Equal(t, 30*time.Second, cb.interval)
	assert.Equal(t, 5*time.Second, cb.timeout)
	assert.Equal(t, 0.5, cb.failureRatio)
}

func TestCircuitBreaker_ExecuteSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerSettings{})
	ctx := context.Background()

	expectedResult := "success"
	result, err := cb.Execute(ctx, func() (any, error) {
		return expectedResult, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, expectedResult, result)
	assert.Equal(t, StateClosed, cb.state)
	assert.Equal(t, uint32(1), cb.counts.Requests)
	assert.Equal(t, uint32(1), cb.counts.TotalSuccesses)
	assert.Equal(t, uint32(0), cb.counts.TotalFailures)
}

func TestCircuitBreaker_ExecuteFailure(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerSettings{})
	ctx := context.Background()

	expectedError := errors.New("test error")
	result, err := cb.Execute(ctx, func() (any, error) {
		return nil, expectedError
	})

	assert.Error(t, err)
	assert.Equal(t, expectedError, err)
	assert.Nil(t, result)
	assert.Equal(t, uint32(1), cb.counts.Requests)
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
}

func TestCircuitBreaker_StateTransition_ClosedToOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerSettings{
		MaxRequests:  5,
		FailureRatio: 0.6,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(ctx, func() (any, error) {
			return "success", nil
		})
		assert.NoError(t, err)
	}

	for i := 0; i < 4; i++ {
		_, err := cb.Execute(ctx, func() (any, error) {
			return nil, errors.New("failure")
		})
		assert.Error(t, err)
	}

	assert.Equal(t, StateOpen, cb.state)

	// Requests are rejected without executing while open.
	_, err := cb.Execute(ctx, func() (any, error) {
		t.Fatal("This should not be executed when circuit is open")
		return nil, nil
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerSettings{
		MaxRequests:  2,
		Timeout:      20 * time.Millisecond,
		FailureRatio: 0.5,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		cb.Execute(ctx, func() (any, error) {
			return nil, errors.New("failure")
		})
	}
	assert.Equal(t, StateOpen, cb.state)

	// After the timeout a probe request is allowed; success closes the
	// circuit again.
	time.Sleep(30 * time.Millisecond)

	result, err := cb.Execute(ctx, func() (any, error) {
		return "recovered", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, StateClosed, cb.state)
}

func TestCircuitBreaker_PanicPropagates(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerSettings{})
	ctx := context.Background()

	assert.Panics(t, func() {
		cb.Execute(ctx, func() (any, error) {
			panic("boom")
		})
	})

	// The panic still counts as a failed request.
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
}

func TestCircuitBreaker_ConcurrentExecute(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerSettings{MaxRequests: 1000})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.Execute(ctx, func() (any, error) {
				return nil, nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, uint32(50), cb.counts.Requests)
	assert.Equal(t, uint32(50), cb.counts.TotalSuccesses)
}

// ID Generation Tests

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(6)

	assert.NoError(t, err)
	assert.Len(t, code, 12)
	assert.Equal(t, strings.ToUpper(code), code)
}

func TestGenerateID(t *testing.T) {
	id, err := GenerateID("pi", 12)

	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "pi_"))
	assert.Len(t, id, 3+24)
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := GenerateID("evt", 12)
		assert.NoError(t, err)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func BenchmarkGenerateID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := GenerateID("pi", 12); err != nil {
			b.Fatal(err)
		}
	}
}
