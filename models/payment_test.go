package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusSucceeded, DefaultTerminalStatuses))
	assert.True(t, IsTerminal(StatusFailed, DefaultTerminalStatuses))
	assert.True(t, IsTerminal(StatusCancelled, DefaultTerminalStatuses))
	assert.False(t, IsTerminal(StatusProcessing, DefaultTerminalStatuses))
	assert.False(t, IsTerminal(StatusRequiresAction, DefaultTerminalStatuses))
}

func TestIsTerminalCustomSet(t *testing.T) {
	terminal := []PaymentStatus{StatusProcessing}

	assert.True(t, IsTerminal(StatusProcessing, terminal))
	assert.False(t, IsTerminal(StatusSucceeded, terminal))
}

func TestTerminalStatusesFromStrings(t *testing.T) {
	assert.Equal(t, DefaultTerminalStatuses, TerminalStatusesFromStrings(nil))
	assert.Equal(t, DefaultTerminalStatuses, TerminalStatusesFromStrings([]string{}))

	custom := TerminalStatusesFromStrings([]string{"succeeded", "failed"})
	assert.Equal(t, []PaymentStatus{StatusSucceeded, StatusFailed}, custom)
}

func TestWebhookEventJSON(t *testing.T) {
	raw := `{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {
			"id": "pi_1",
			"amount": 49900,
			"currency": "INR",
			"status": "succeeded",
			"provider": "mockpay",
			"order_id": "order_42"
		}
	}`

	var event WebhookEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &event))

	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventPaymentSucceeded, event.Type)
	assert.Equal(t, "pi_1", event.Data.ID)
	assert.Equal(t, StatusSucceeded, event.Data.Status)
	assert.Equal(t, ProviderMockPay, event.Data.Provider)

	// An unsigned event omits the signature field entirely.
	out, err := json.Marshal(event)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "signature")
}

func TestKnownEventTypesCoverDispatchableStatuses(t *testing.T) {
	assert.Contains(t, KnownEventTypes, EventPaymentSucceeded)
	assert.Contains(t, KnownEventTypes, EventPaymentFailed)
	assert.Contains(t, KnownEventTypes, EventPaymentProcessing)
	assert.Contains(t, KnownEventTypes, EventPaymentCancelled)
	assert.Contains(t, KnownEventTypes, EventPaymentRefunded)
}
